// Package graph provides the stage-sequencing engine used by draftloop pipelines.
package graph

import "errors"

// ErrMaxStepsExceeded indicates that a run reached the step budget without
// arriving at END.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrAborted indicates that the run's context was cancelled between stages.
// The partial Result is still returned alongside this error.
var ErrAborted = errors.New("run aborted")

// ErrNotCompiled is returned by Run when Compile has not succeeded.
var ErrNotCompiled = errors.New("graph not compiled")

// ErrCompiled is returned by builder methods once the graph is frozen.
var ErrCompiled = errors.New("graph already compiled")

// Graph configuration errors, reported by Compile.
var (
	ErrNoEntry        = errors.New("entry stage not set")
	ErrUnknownStage   = errors.New("unknown stage")
	ErrMissingRoute   = errors.New("stage has no outgoing route")
	ErrDuplicateRoute = errors.New("stage has more than one outgoing route")
	ErrCycle          = errors.New("cycle outside a declared loop")
	ErrInvalidLoop    = errors.New("invalid loop declaration")
)

// Runtime routing errors. Both are fatal for the run.
var (
	ErrIllegalRoute      = errors.New("router chose a stage outside its candidate set")
	ErrLoopLimitExceeded = errors.New("loop traversed more times than declared")
)
