// Package journal records poll cycle outcomes in SQLite.
//
// The journal is an append-only observability trail: one row per cycle with
// its status, counts, and timing. It never feeds state back into the poll
// loop, so losing it (or running without it) changes nothing about polling
// semantics.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Schema is applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS cycles (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    entry_count  INTEGER NOT NULL DEFAULT 0,
    updated_id   TEXT NOT NULL DEFAULT '',
    trigger_seen INTEGER NOT NULL DEFAULT 0,
    watermark    TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_at ON cycles(at DESC);
`

// Cycle statuses.
const (
	StatusOK         = "ok"
	StatusFetchError = "fetch_error"
)

// Cycle is one recorded poll cycle.
type Cycle struct {
	ID          string
	Status      string
	EntryCount  int
	UpdatedID   string
	TriggerSeen bool
	Watermark   string
	Error       string
	Duration    time.Duration
	At          time.Time
}

// Journal wraps the cycles table.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and applies
// the schema. The caller must have registered the "sqlite" driver.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// Single connection keeps writes ordered and pragmas consistent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Record inserts one cycle row. A zero ID gets a generated UUID; a zero At
// gets the current time.
func (j *Journal) Record(ctx context.Context, c *Cycle) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO cycles (id, status, entry_count, updated_id, trigger_seen,
		watermark, error, duration_ms, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Status, c.EntryCount, c.UpdatedID, boolInt(c.TriggerSeen),
		c.Watermark, c.Error, c.Duration.Milliseconds(), c.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal: insert cycle: %w", err)
	}
	return nil
}

// History returns recorded cycles, newest first.
func (j *Journal) History(ctx context.Context, limit int) ([]*Cycle, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, status, entry_count, updated_id, trigger_seen,
		watermark, error, duration_ms, at
		FROM cycles ORDER BY at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query history: %w", err)
	}
	defer rows.Close()

	var result []*Cycle
	for rows.Next() {
		var c Cycle
		var trig int
		var durationMs, atMs int64
		if err := rows.Scan(&c.ID, &c.Status, &c.EntryCount, &c.UpdatedID,
			&trig, &c.Watermark, &c.Error, &durationMs, &atMs); err != nil {
			return nil, fmt.Errorf("journal: scan cycle: %w", err)
		}
		c.TriggerSeen = trig != 0
		c.Duration = time.Duration(durationMs) * time.Millisecond
		c.At = time.UnixMilli(atMs)
		result = append(result, &c)
	}
	return result, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
