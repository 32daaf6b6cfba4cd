package graph

import "context"

// Node is one stage of a workflow graph. It receives the current state and
// returns the state it wants to hand to the next stage.
//
// Nodes own the state only for the duration of Run. They must not keep
// references to it after returning.
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult is the output of a single stage invocation.
type NodeResult[S any] struct {
	// State is the state after the stage ran. It replaces the engine's
	// current state wholesale.
	State S

	// Degraded reports a recoverable failure. The stage has already written a
	// placeholder into State; the engine records an error transition and
	// continues with the next stage.
	Degraded error

	// Err is a fatal error. The run stops and State is discarded.
	Err error
}

// Done returns a NodeResult carrying the updated state.
func Done[S any](state S) NodeResult[S] {
	return NodeResult[S]{State: state}
}

// Degrade returns a NodeResult for a stage that recovered from err by
// substituting a placeholder value.
func Degrade[S any](state S, err error) NodeResult[S] {
	return NodeResult[S]{State: state, Degraded: err}
}

// NodeFunc is a function adapter that implements the Node interface.
//
// Example:
//
//	upper := graph.NodeFunc[Doc](func(ctx context.Context, d Doc) graph.NodeResult[Doc] {
//	    d.Body = strings.ToUpper(d.Body)
//	    return graph.Done(d)
//	})
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeError represents a fatal error raised while running a stage.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which stage produced this error.
	NodeID string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
