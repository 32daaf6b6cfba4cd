// Package emit defines the observability sinks a run reports to.
package emit

// Emitter receives observability events from workflow execution.
//
// The engine emits one event per transition plus run_start and run_end.
// Implementations must be safe for concurrent use because independent runs
// may share an emitter, and they must never block or panic: a failing sink is
// logged and ignored, it never fails the run.
type Emitter interface {
	Emit(event Event)
}
