// Package segments pages data in and out of a small pool of fixed-capacity
// external slots. Loads are queued and batched under the host's activation
// ceiling; saves are queued and flushed a few per cycle.
package segments

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"colonynav.ai/internal/sim/cycle"
)

// ErrAlreadyTicked is returned when Tick runs twice for one cycle. Draining the
// queues twice would drop requests that were meant for the next cycle.
var ErrAlreadyTicked = errors.New("segments: tick already ran this cycle")

type Config struct {
	MaxActive        int
	MaxSavesPerCycle int
}

func DefaultConfig() Config {
	return Config{MaxActive: 10, MaxSavesPerCycle: 9}
}

type Stats struct {
	QueuedLoads   int    `json:"queued_loads"`
	QueuedSaves   int    `json:"queued_saves"`
	Activated     uint64 `json:"activated"`
	Delivered     uint64 `json:"delivered"`
	Written       uint64 `json:"written"`
	CorruptResets uint64 `json:"corrupt_resets"`
	WriteFailures uint64 `json:"write_failures"`
}

type loadReq struct {
	slot int
	cb   func(json.RawMessage)
}

type saveReq struct {
	slot int
	data []byte
}

type Pager struct {
	host  Host
	codec *Codec
	cfg   Config
	log   *zap.Logger

	loads  []loadReq
	saves  []saveReq
	active []int

	ticked    bool
	lastCycle uint64

	stats Stats
}

func NewPager(host Host, codec *Codec, cfg Config, logger *zap.Logger) *Pager {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = DefaultConfig().MaxActive
	}
	if cfg.MaxSavesPerCycle <= 0 {
		cfg.MaxSavesPerCycle = DefaultConfig().MaxSavesPerCycle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{host: host, codec: codec, cfg: cfg, log: logger.Named("segments")}
}

// RequestLoad queues a read of slot. cb runs during a later Tick with the
// decoded document, or nil if the slot is empty or unreadable.
func (p *Pager) RequestLoad(slot int, cb func(json.RawMessage)) {
	p.loads = append(p.loads, loadReq{slot: slot, cb: cb})
}

// Save queues a write. A write already queued for the same slot is replaced
// and keeps its place in the queue.
func (p *Pager) Save(slot int, v any) error {
	blob, err := p.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode slot %d: %w", slot, err)
	}
	for i := range p.saves {
		if p.saves[i].slot == slot {
			p.saves[i].data = blob
			return nil
		}
	}
	p.saves = append(p.saves, saveReq{slot: slot, data: blob})
	return nil
}

// Tick runs the per-cycle paging work: deliver, activate, flush.
func (p *Pager) Tick(c *cycle.Cycle) error {
	if c == nil {
		return fmt.Errorf("segments: nil cycle")
	}
	if p.ticked && c.Number() <= p.lastCycle {
		return fmt.Errorf("cycle %d: %w", c.Number(), ErrAlreadyTicked)
	}
	if err := c.Claim("segments"); err != nil {
		return fmt.Errorf("%w: %v", ErrAlreadyTicked, err)
	}
	p.ticked = true
	p.lastCycle = c.Number()

	p.deliver()
	p.activate()
	p.flush()
	return nil
}

func (p *Pager) deliver() {
	if len(p.active) == 0 {
		return
	}
	docs := make(map[int]json.RawMessage, len(p.active))
	for _, slot := range p.active {
		if blob, ok := p.pendingSave(slot); ok {
			docs[slot] = p.decode(slot, blob)
			continue
		}
		blob, ok := p.host.ReadSlot(p.lastCycle, slot)
		if !ok {
			continue
		}
		docs[slot] = p.decode(slot, blob)
	}
	p.active = nil

	queue := p.loads
	p.loads = nil
	kept := make([]loadReq, 0, len(queue))
	for _, r := range queue {
		doc, ok := docs[r.slot]
		if !ok {
			kept = append(kept, r)
			continue
		}
		p.stats.Delivered++
		if r.cb != nil {
			r.cb(doc)
		}
	}
	// Requests queued from inside callbacks go after the survivors.
	p.loads = append(kept, p.loads...)
}

func (p *Pager) decode(slot int, blob []byte) json.RawMessage {
	doc, err := p.codec.Decode(blob)
	if err == nil {
		return doc
	}
	p.stats.CorruptResets++
	p.log.Warn("corrupt slot reset", zap.Int("slot", slot), zap.Int("bytes", len(blob)), zap.Error(err))
	if werr := p.host.WriteSlot(slot, nil); werr != nil {
		p.log.Warn("reset corrupt slot", zap.Int("slot", slot), zap.Error(werr))
	}
	p.dropSave(slot)
	return nil
}

func (p *Pager) activate() {
	ids := make([]int, 0, p.cfg.MaxActive)
	seen := make(map[int]bool, p.cfg.MaxActive)
	for _, r := range p.loads {
		if seen[r.slot] {
			continue
		}
		if len(ids) == p.cfg.MaxActive {
			break
		}
		seen[r.slot] = true
		ids = append(ids, r.slot)
	}
	if err := p.host.ActivateSlots(p.lastCycle, ids); err != nil {
		p.log.Warn("activate slots", zap.Ints("slots", ids), zap.Error(err))
		return
	}
	p.active = ids
	p.stats.Activated += uint64(len(ids))
}

func (p *Pager) flush() {
	n := min(len(p.saves), p.cfg.MaxSavesPerCycle)
	for _, s := range p.saves[:n] {
		if err := p.host.WriteSlot(s.slot, s.data); err != nil {
			p.stats.WriteFailures++
			p.log.Warn("write slot", zap.Int("slot", s.slot), zap.Int("bytes", len(s.data)), zap.Error(err))
			continue
		}
		p.stats.Written++
	}
	p.saves = append(p.saves[:0:0], p.saves[n:]...)
}

func (p *Pager) pendingSave(slot int) ([]byte, bool) {
	for _, s := range p.saves {
		if s.slot == slot {
			return s.data, true
		}
	}
	return nil, false
}

func (p *Pager) dropSave(slot int) {
	out := p.saves[:0]
	for _, s := range p.saves {
		if s.slot != slot {
			out = append(out, s)
		}
	}
	p.saves = out
}

// Active returns the slots activated by the last Tick.
func (p *Pager) Active() []int { return append([]int(nil), p.active...) }

func (p *Pager) Stats() Stats {
	s := p.stats
	s.QueuedLoads = len(p.loads)
	s.QueuedSaves = len(p.saves)
	return s
}
