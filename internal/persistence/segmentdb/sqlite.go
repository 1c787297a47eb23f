// Package segmentdb stores segment slots in a SQLite file so paged navigation
// data survives process restarts.
package segmentdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"colonynav.ai/internal/persistence/segments"
)

type Host struct {
	db     *sql.DB
	limits segments.Limits
	window segments.ActivationWindow
}

var _ segments.Host = (*Host)(nil)

func Open(path string, limits segments.Limits) (*Host, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Host{db: db, limits: limits}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS segments (
			id INTEGER PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) Close() error { return h.db.Close() }

func (h *Host) ActivateSlots(cycle uint64, ids []int) error {
	if err := h.limits.CheckActivation(ids); err != nil {
		return err
	}
	h.window.Activate(cycle, ids)
	return nil
}

func (h *Host) ReadSlot(cycle uint64, id int) ([]byte, bool) {
	if !h.window.Visible(cycle, id) {
		return nil, false
	}
	b, err := h.Load(id)
	if err != nil {
		// The pager keeps the request queued and activates the slot again.
		return nil, false
	}
	return b, true
}

func (h *Host) WriteSlot(id int, data []byte) error {
	if err := h.limits.CheckWrite(id, data); err != nil {
		return err
	}
	if len(data) == 0 {
		_, err := h.db.Exec(`DELETE FROM segments WHERE id = ?`, id)
		return err
	}
	_, err := h.db.Exec(
		`INSERT INTO segments(id, data, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Load reads a slot directly, bypassing activation. Missing rows are empty.
func (h *Host) Load(id int) ([]byte, error) {
	var b []byte
	err := h.db.QueryRow(`SELECT data FROM segments WHERE id = ?`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

type SlotInfo struct {
	ID        int
	Bytes     int
	UpdatedAt string
}

// List returns every stored slot ordered by id.
func (h *Host) List() ([]SlotInfo, error) {
	rows, err := h.db.Query(`SELECT id, length(data), updated_at FROM segments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SlotInfo
	for rows.Next() {
		var s SlotInfo
		if err := rows.Scan(&s.ID, &s.Bytes, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
