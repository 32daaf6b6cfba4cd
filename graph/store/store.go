// Package store persists the audit trail of pipeline runs: every event a run
// emits, in order, queryable by run ID after the run has finished.
//
// The trail is write-only from the engine's point of view. Nothing in it is
// ever read back to resume or replay a run.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/draftloop/graph/emit"
)

var (
	// ErrNotFound is returned when a run has no recorded events.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Store is an append-only event log keyed by run ID.
//
// Meta values of events read back from a SQL store are JSON-decoded, so
// integers come back as float64.
type Store interface {
	// Append records one event. Events of a run are returned in append order.
	Append(ctx context.Context, event emit.Event) error

	// Events returns the events of runID, or ErrNotFound.
	Events(ctx context.Context, runID string) ([]emit.Event, error)

	// Runs summarises every run in the store, most recent first.
	Runs(ctx context.Context) ([]RunSummary, error)

	// DeleteRun removes the events of runID. Deleting an unknown run is not
	// an error.
	DeleteRun(ctx context.Context, runID string) error

	Close() error
}

// RunSummary describes one run of the audit trail.
type RunSummary struct {
	RunID  string
	Events int
	First  time.Time
	Last   time.Time

	// Status is the status reported by the run_end event, empty while the
	// run has not finished.
	Status string
}

func summarize(runID string, events []emit.Event) RunSummary {
	s := RunSummary{RunID: runID, Events: len(events)}
	for i, e := range events {
		if i == 0 || e.Timestamp.Before(s.First) {
			s.First = e.Timestamp
		}
		if e.Timestamp.After(s.Last) {
			s.Last = e.Timestamp
		}
		if e.Msg == "run_end" {
			if status, ok := e.Meta["status"].(string); ok {
				s.Status = status
			}
		}
	}
	return s
}
