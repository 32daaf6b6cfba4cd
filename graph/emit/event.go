package emit

import "time"

// Event is a single observability record.
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the transition sequence number (1-indexed).
	// Zero for run-level events (run_start, run_end).
	Step int

	// NodeID identifies the stage the event refers to.
	// Empty string for run-level events.
	NodeID string

	// Msg names the event: run_start, stage_completed, stage_degraded,
	// route_decided or run_end.
	Msg string

	// Timestamp is when the event happened according to the engine clock.
	Timestamp time.Time

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Stage duration in milliseconds
	//   - "error": Diagnostic text of a degraded stage or failed run
	//   - "next", "reason": Routing decision
	//   - "status": Transition or run status
	Meta map[string]interface{}
}

// IsError reports whether the event carries an error.
func (e Event) IsError() bool {
	_, ok := e.Meta["error"]
	return ok
}
