package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultLimit bounds Recent when the caller passes a non-positive limit.
const DefaultLimit = 20

// Store persists lifecycle events in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an event. A zero RecordedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, event Event) (Event, error) {
	if event.Kind == "" {
		return event, errors.New("event kind is required")
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}
	event.RecordedAt = event.RecordedAt.UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lifecycle_events (kind, pid, volume, pid_file, session_id, detail, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(event.Kind),
		nullableInt(event.PID),
		event.Volume,
		event.PIDFile,
		nullableString(event.SessionID),
		nullableString(event.Detail),
		event.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return event, fmt.Errorf("insert lifecycle event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return event, fmt.Errorf("last insert id: %w", err)
	}
	event.ID = id
	return event, nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, pid, volume, pid_file, session_id, detail, recorded_at
        FROM lifecycle_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event      Event
			kind       string
			pid        sql.NullInt64
			volume     sql.NullFloat64
			sessionID  sql.NullString
			detail     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&event.ID, &kind, &pid, &volume, &event.PIDFile, &sessionID, &detail, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		event.Kind = Kind(kind)
		event.PID = int(pid.Int64)
		event.Volume = volume.Float64
		event.SessionID = sessionID.String
		event.Detail = detail.String
		if ts, parseErr := time.Parse(time.RFC3339Nano, recordedAt); parseErr == nil {
			event.RecordedAt = ts
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle events: %w", err)
	}
	return events, nil
}

// Prune keeps the newest keep events and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lifecycle_events WHERE id NOT IN (
            SELECT id FROM lifecycle_events ORDER BY id DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune lifecycle events: %w", err)
	}
	return res.RowsAffected()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}
