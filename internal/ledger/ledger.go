// Package ledger keeps a sqlite log of light status transitions so the
// HTTP API can answer history queries across restarts.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"aidotbridge/aidot"
)

const schema = `
CREATE TABLE IF NOT EXISTS status_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id   TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	online      INTEGER NOT NULL,
	is_on       INTEGER NOT NULL,
	dimming     INTEGER NOT NULL,
	cct         INTEGER NOT NULL,
	red         INTEGER NOT NULL,
	green       INTEGER NOT NULL,
	blue        INTEGER NOT NULL,
	white       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_status_log_device_time
	ON status_log (device_id, recorded_at);
`

// Entry is one recorded transition.
type Entry struct {
	DeviceID   string       `json:"device_id"`
	RecordedAt time.Time    `json:"recorded_at"`
	Status     aidot.Status `json:"status"`
}

// Ledger records status transitions, writing only on change.
type Ledger struct {
	db *sql.DB

	mu   sync.Mutex
	last map[string]aidot.Status
	seen map[string]bool
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{
		db:   db,
		last: make(map[string]aidot.Status),
		seen: make(map[string]bool),
	}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Record inserts the status when it differs from the device's previous
// one. Repeated identical snapshots are dropped.
func (l *Ledger) Record(ctx context.Context, deviceID string, status aidot.Status) error {
	l.mu.Lock()
	if l.seen[deviceID] && l.last[deviceID] == status {
		l.mu.Unlock()
		return nil
	}
	l.last[deviceID] = status
	l.seen[deviceID] = true
	l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
INSERT INTO status_log (device_id, recorded_at, online, is_on, dimming, cct, red, green, blue, white)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceID, time.Now().UTC(),
		status.Online, status.On, status.Dimming, status.CCT,
		status.RGBW[0], status.RGBW[1], status.RGBW[2], status.RGBW[3],
	)
	if err != nil {
		return fmt.Errorf("record status: %w", err)
	}
	return nil
}

// History returns the most recent entries for a device, newest first.
func (l *Ledger) History(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT device_id, recorded_at, online, is_on, dimming, cct, red, green, blue, white
FROM status_log
WHERE device_id = ?
ORDER BY recorded_at DESC, id DESC
LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		var r, g, b, w int
		if err := rows.Scan(
			&entry.DeviceID, &entry.RecordedAt,
			&entry.Status.Online, &entry.Status.On,
			&entry.Status.Dimming, &entry.Status.CCT,
			&r, &g, &b, &w,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.Status.RGBW = aidot.RGBW{uint8(r), uint8(g), uint8(b), uint8(w)}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Prune deletes entries recorded before the cutoff and reports how many
// rows went away.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM status_log WHERE recorded_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return result.RowsAffected()
}

// RunPruner prunes on the given interval until the context ends.
func (l *Ledger) RunPruner(ctx context.Context, interval time.Duration, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = l.Prune(ctx, time.Now().Add(-retention))
		}
	}
}
