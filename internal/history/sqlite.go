// Package history records panel state updates to SQLite.
//
// The recorder is an observer: rows are written for later inspection and are
// never read back into the dashboard.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jpalmerr/statsboard"
)

const driverName = "sqlite"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS panel_history (
    id TEXT PRIMARY KEY,
    panel TEXT NOT NULL,
    url TEXT NOT NULL,
    generation INTEGER NOT NULL,
    kind TEXT NOT NULL,
    view_text TEXT NOT NULL,
    error TEXT,
    status_code INTEGER,
    latency_ms INTEGER NOT NULL,
    issued_at TEXT NOT NULL,
    resolved_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_panel_history_panel ON panel_history(panel, resolved_at);
CREATE INDEX IF NOT EXISTS idx_panel_history_resolved_at ON panel_history(resolved_at);
`

// Entry is one recorded state update.
type Entry struct {
	ID         string
	Panel      string
	URL        string
	Generation uint64
	Kind       string
	ViewText   string
	Error      string
	StatusCode int
	LatencyMs  int64
	IssuedAt   time.Time
	ResolvedAt time.Time
}

// SQLiteRecorder appends state updates to a SQLite table.
type SQLiteRecorder struct {
	log *slog.Logger
	db  *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(log *slog.Logger, path string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// a single writer avoids SQLITE_BUSY between the result loop and cleanup
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	rec := New(log, db)
	if err := rec.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return rec, nil
}

// New wraps an open database. The schema is not created.
func New(log *slog.Logger, db *sql.DB) *SQLiteRecorder {
	return &SQLiteRecorder{log: log, db: db}
}

func (r *SQLiteRecorder) migrate() error {
	_, err := r.db.Exec(schema)
	return err
}

// Record implements statsboard.Recorder.
func (r *SQLiteRecorder) Record(ctx context.Context, u statsboard.StateUpdate) error {
	var errText sql.NullString
	if u.State.Err != nil {
		errText = sql.NullString{String: u.State.Err.Error(), Valid: true}
	}
	var status sql.NullInt64
	if u.StatusCode != 0 {
		status = sql.NullInt64{Int64: int64(u.StatusCode), Valid: true}
	}

	query := `
		INSERT INTO panel_history (id, panel, url, generation, kind, view_text, error, status_code, latency_ms, issued_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(),
		u.PanelName,
		u.URL,
		int64(u.Generation),
		u.State.Kind.String(),
		u.View.Text(),
		errText,
		status,
		u.Latency.Milliseconds(),
		u.IssuedAt.UTC().Format(timeLayout),
		u.ResolvedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", u.PanelName, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty panel matches
// every panel.
func (r *SQLiteRecorder) Recent(ctx context.Context, panel string, limit int) ([]Entry, error) {
	query := `
		SELECT id, panel, url, generation, kind, view_text, error, status_code, latency_ms, issued_at, resolved_at
		FROM panel_history
		WHERE (? = '' OR panel = ?)
		ORDER BY resolved_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, panel, panel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			generation         int64
			errText            sql.NullString
			status             sql.NullInt64
			issuedAt, resolved string
		)
		if err := rows.Scan(&e.ID, &e.Panel, &e.URL, &generation, &e.Kind, &e.ViewText,
			&errText, &status, &e.LatencyMs, &issuedAt, &resolved); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		e.Generation = uint64(generation)
		e.Error = errText.String
		e.StatusCode = int(status.Int64)
		if e.IssuedAt, err = time.Parse(time.RFC3339Nano, issuedAt); err != nil {
			r.log.Warn("skipping history row with bad issued_at", "id", e.ID, "error", err)
			continue
		}
		if e.ResolvedAt, err = time.Parse(time.RFC3339Nano, resolved); err != nil {
			r.log.Warn("skipping history row with bad resolved_at", "id", e.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries resolved more than maxAge ago.
func (r *SQLiteRecorder) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)

	result, err := r.db.ExecContext(ctx, "DELETE FROM panel_history WHERE resolved_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up history: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		r.log.Info("cleaned up history entries", "deleted", deleted)
	}
	return deleted, nil
}

// RunCleanup calls Cleanup every interval until ctx is cancelled.
func (r *SQLiteRecorder) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Cleanup(ctx, maxAge); err != nil && ctx.Err() == nil {
				r.log.Warn("history cleanup failed", "error", err)
			}
		}
	}
}

// Ping verifies the database is reachable.
func (r *SQLiteRecorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
