// Package log writes append-only, hourly rotated JSONL files compressed with
// zstd. The simulator keeps one entry per completed cycle.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"colonynav.ai/internal/observerproto"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one line. Lines are buffered; Flush or Close makes them
// durable.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines through the encoder as a complete zstd block.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		err1 = errors.Join(err1, w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		err1 = errors.Join(err1, w.f.Close())
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// CycleLogger writes one JSONL entry per completed cycle (compressed).
type CycleLogger struct {
	w *JSONLZstdWriter
	// every > 1 keeps only cycles divisible by it.
	every uint64
}

func NewCycleLogger(dir string, every uint64) *CycleLogger {
	return &CycleLogger{w: NewJSONLZstdWriter(filepath.Join(dir, "cycles"), "cycles"), every: max(every, 1)}
}

// WriteCycle records m without its per-agent table.
func (l *CycleLogger) WriteCycle(m observerproto.CycleMsg) error {
	if m.Cycle%l.every != 0 {
		return nil
	}
	m.Agents = nil
	return l.w.Write(m)
}

func (l *CycleLogger) Flush() error { return l.w.Flush() }
func (l *CycleLogger) Close() error { return l.w.Close() }

// ReadCycles decodes every entry of one cycle log file. Files appended to by
// several runs hold several zstd frames; the decoder reads them in sequence.
func ReadCycles(path string) ([]observerproto.CycleMsg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []observerproto.CycleMsg
	jd := json.NewDecoder(dec)
	for {
		var m observerproto.CycleMsg
		if err := jd.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%s: entry %d: %w", path, len(out), err)
		}
		out = append(out, m)
	}
}
