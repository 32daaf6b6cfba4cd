package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/draftloop/graph/emit"
)

// sqlStore holds the queries shared by the SQLite and MySQL stores. Both
// drivers use "?" placeholders; only the DDL differs.
type sqlStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

func (s *sqlStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *sqlStore) Append(ctx context.Context, event emit.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal event meta: %w", err)
	}

	query := `
		INSERT INTO run_events (run_id, step, stage, msg, ts, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		event.RunID, event.Step, event.NodeID, event.Msg, event.Timestamp.UnixNano(), string(meta)); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *sqlStore) Events(ctx context.Context, runID string) ([]emit.Event, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT step, stage, msg, ts, meta
		FROM run_events
		WHERE run_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var (
			event    = emit.Event{RunID: runID}
			ts       int64
			metaJSON string
		)
		if err := rows.Scan(&event.Step, &event.NodeID, &event.Msg, &ts, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		event.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(metaJSON), &event.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event meta: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

func (s *sqlStore) Runs(ctx context.Context) ([]RunSummary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT e.run_id, COUNT(*), MIN(e.ts) AS first_ts, MAX(e.ts) AS last_ts,
			(SELECT f.meta FROM run_events f
			 WHERE f.run_id = e.run_id AND f.msg = 'run_end'
			 ORDER BY f.id DESC LIMIT 1)
		FROM run_events e
		GROUP BY e.run_id
		ORDER BY last_ts DESC, e.run_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			run         RunSummary
			first, last int64
			endMeta     sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.Events, &first, &last, &endMeta); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.First = time.Unix(0, first).UTC()
		run.Last = time.Unix(0, last).UTC()
		if endMeta.Valid {
			var meta map[string]interface{}
			if err := json.Unmarshal([]byte(endMeta.String), &meta); err == nil {
				run.Status, _ = meta["status"].(string)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

func (s *sqlStore) DeleteRun(ctx context.Context, runID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM run_events WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. Calling Close multiple times is safe.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func execAll(ctx context.Context, db *sql.DB, statements ...string) error {
	var errs []error
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
