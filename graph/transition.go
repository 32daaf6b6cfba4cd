package graph

import (
	"fmt"
	"time"

	"github.com/dshills/draftloop/graph/emit"
)

// TransitionKind distinguishes stage invocations from routing decisions.
type TransitionKind string

const (
	KindStage TransitionKind = "stage"
	KindRoute TransitionKind = "route"
)

// TransitionStatus is the outcome recorded for a transition.
type TransitionStatus string

const (
	TransitionOK    TransitionStatus = "ok"
	TransitionError TransitionStatus = "error"
)

// Transition is one entry of a run's append-only audit log. A stage record is
// written after every stage invocation; a route record after every
// conditional routing decision. Records are never mutated once appended.
type Transition struct {
	// Seq is the 1-based position of this record in the run's log.
	Seq int `json:"seq"`

	// Stage is the stage that ran, or for route records the stage whose
	// outgoing branch was evaluated.
	Stage string `json:"stage"`

	Kind      TransitionKind   `json:"kind"`
	Status    TransitionStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`

	// Duration is the wall time spent inside the stage. Zero for route records.
	Duration time.Duration `json:"duration,omitempty"`

	// Next and Reason are set on route records only.
	Next   string `json:"next,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Detail carries the diagnostic text of a degraded stage.
	Detail string `json:"detail,omitempty"`
}

// String renders the record as a single log line.
func (t Transition) String() string {
	switch t.Kind {
	case KindRoute:
		return fmt.Sprintf("#%d route %s -> %s (%s)", t.Seq, t.Stage, t.Next, t.Reason)
	default:
		if t.Status == TransitionError {
			return fmt.Sprintf("#%d stage %s %s: %s", t.Seq, t.Stage, t.Status, t.Detail)
		}
		return fmt.Sprintf("#%d stage %s %s in %s", t.Seq, t.Stage, t.Status, t.Duration.Round(time.Millisecond))
	}
}

// Event converts the record into an observability event for runID.
func (t Transition) Event(runID string) emit.Event {
	meta := map[string]interface{}{
		"kind":   string(t.Kind),
		"status": string(t.Status),
	}
	msg := "stage_completed"
	switch {
	case t.Kind == KindRoute:
		msg = "route_decided"
		meta["next"] = t.Next
		meta["reason"] = t.Reason
	case t.Status == TransitionError:
		msg = "stage_degraded"
		meta["error"] = t.Detail
		meta["duration_ms"] = t.Duration.Milliseconds()
	default:
		meta["duration_ms"] = t.Duration.Milliseconds()
	}
	return emit.Event{
		RunID:     runID,
		Step:      t.Seq,
		NodeID:    t.Stage,
		Msg:       msg,
		Timestamp: t.Timestamp,
		Meta:      meta,
	}
}

// Journal is implemented by state types that keep their own copy of the
// transition log. When *S implements Journal the engine appends every record
// to the state as well as to the Result.
type Journal interface {
	AppendTransition(t Transition)
}
