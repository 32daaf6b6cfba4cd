package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/draftloop/graph/emit"
)

// Engine sequences the stages of a workflow graph over one shared state.
//
// The Engine is built in two phases. During construction the graph is
// assembled with Add, StartAt, Connect and Branch. Compile then validates the
// topology and freezes it; after that the Engine is read-only and Run may be
// called from any number of goroutines, each run owning its own state.
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	engine, _ := graph.New[Doc](graph.WithMaxSteps(10))
//	_ = engine.Add("write", writeNode)
//	_ = engine.Add("check", checkNode)
//	_ = engine.StartAt("write")
//	_ = engine.Connect("write", "check")
//	_ = engine.Branch("check", router, []string{"write", graph.END}, graph.Loop{To: "write", Max: 3})
//	if err := engine.Compile(); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := engine.Run(ctx, "run-001", Doc{Topic: "otters"})
type Engine[S any] struct {
	mu sync.RWMutex

	// nodes maps stage IDs to Node implementations
	nodes map[string]Node[S]

	// order keeps registration order so validation output is deterministic
	order []string

	// edges holds unconditional transitions keyed by source stage
	edges map[string]string

	// branches holds conditional routing rules keyed by source stage
	branches map[string]*branch[S]

	// startNode is the entry point for workflow execution
	startNode string

	compiled bool

	emitter emit.Emitter
	metrics *PrometheusMetrics
	logger  *slog.Logger
	clock   func() time.Time
	opts    Options
}

// Status is the terminal state of a run.
type Status string

const (
	// StatusCompleted means the run reached END.
	StatusCompleted Status = "completed"

	// StatusAborted means the context was cancelled between stages.
	StatusAborted Status = "aborted"

	// StatusFailed means a fatal error stopped the run.
	StatusFailed Status = "failed"
)

// Result is what a run produced, whether or not it reached END.
type Result[S any] struct {
	// State is the last state handed back by a stage.
	State S

	// Transitions is the run's audit log in append order.
	Transitions []Transition

	Status Status

	// Steps counts stage invocations.
	Steps int
}

// New creates an empty Engine configured by opts.
func New[S any](opts ...Option) (*Engine[S], error) {
	cfg := engineConfig{}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, &EngineError{Message: "invalid option: " + err.Error(), Code: "INVALID_OPTION", Err: err}
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return &Engine[S]{
		nodes:    make(map[string]Node[S]),
		edges:    make(map[string]string),
		branches: make(map[string]*branch[S]),
		emitter:  cfg.emitter,
		metrics:  cfg.metrics,
		logger:   cfg.logger,
		clock:    cfg.clock,
		opts:     cfg.opts,
	}, nil
}

// Add registers a stage.
//
// Returns error if:
//   - nodeID is empty or END
//   - node is nil
//   - a stage with this ID already exists
//   - the graph is already compiled
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty", Code: "INVALID_NODE"}
	}
	if nodeID == END {
		return &EngineError{Message: "node ID " + END + " is reserved", Code: "INVALID_NODE"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil", Code: "INVALID_NODE"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.compiled {
		return compiledError()
	}
	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    "DUPLICATE_NODE",
		}
	}

	e.nodes[nodeID] = node
	e.order = append(e.order, nodeID)
	return nil
}

// StartAt sets the entry stage. The stage must already be registered.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty", Code: "INVALID_NODE"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.compiled {
		return compiledError()
	}
	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
			Err:     ErrUnknownStage,
		}
	}

	e.startNode = nodeID
	return nil
}

// Connect declares an unconditional transition from one stage to another
// (or to END). Target existence is checked by Compile so stages may be
// connected in any order.
func (e *Engine[S]) Connect(from, to string) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty", Code: "INVALID_EDGE"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty", Code: "INVALID_EDGE"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.compiled {
		return compiledError()
	}
	if prev, exists := e.edges[from]; exists {
		return &EngineError{
			Message: fmt.Sprintf("node %s already connected to %s", from, prev),
			Code:    "DUPLICATE_EDGE",
			Err:     ErrDuplicateRoute,
		}
	}

	e.edges[from] = to
	return nil
}

// Branch declares a conditional routing point after stage from. The router
// must return one of candidates; any other answer fails the run with
// ErrIllegalRoute. Backward edges must be declared as loops so Compile can
// tell them apart from accidental cycles.
func (e *Engine[S]) Branch(from string, router Router[S], candidates []string, loops ...Loop) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty", Code: "INVALID_EDGE"}
	}
	if router == nil {
		return &EngineError{Message: "router cannot be nil", Code: "INVALID_EDGE"}
	}
	if len(candidates) == 0 {
		return &EngineError{Message: "branch from " + from + " has no candidates", Code: "INVALID_EDGE"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.compiled {
		return compiledError()
	}
	if _, exists := e.branches[from]; exists {
		return &EngineError{
			Message: "node " + from + " already has a branch",
			Code:    "DUPLICATE_EDGE",
			Err:     ErrDuplicateRoute,
		}
	}

	b := &branch[S]{
		from:       from,
		route:      router,
		candidates: append([]string(nil), candidates...),
		loops:      make(map[string]int, len(loops)),
	}
	for _, l := range loops {
		b.loops[l.To] = l.Max
	}
	e.branches[from] = b
	return nil
}

// Stages returns the registered stage IDs in registration order.
func (e *Engine[S]) Stages() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Run executes the compiled graph from the entry stage until END, a fatal
// error, or cancellation.
//
// The context is checked before every stage. Cancellation never interrupts
// a stage that is already running; it stops the run at the next boundary and
// returns the partial Result with Status StatusAborted and an error wrapping
// ErrAborted.
//
// The returned Result is always populated, including on error, so callers
// can inspect the transition log of a failed run.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (Result[S], error) {
	res := Result[S]{State: initial, Status: StatusFailed}

	e.mu.RLock()
	compiled := e.compiled
	e.mu.RUnlock()
	if !compiled {
		return res, &EngineError{
			Message: "call Compile before Run",
			Code:    "NOT_COMPILED",
			Err:     ErrNotCompiled,
		}
	}

	r := &run[S]{engine: e, runID: runID, result: &res, loops: make(map[string]int)}
	e.emit(emit.Event{RunID: runID, Msg: "run_start", Timestamp: e.clock()})
	if e.metrics != nil {
		e.metrics.runStarted()
	}

	err := r.loop(ctx)

	switch {
	case err == nil:
		res.Status = StatusCompleted
	case errors.Is(err, ErrAborted):
		res.Status = StatusAborted
	default:
		res.Status = StatusFailed
	}

	meta := map[string]interface{}{
		"status": string(res.Status),
		"steps":  res.Steps,
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	e.emit(emit.Event{RunID: runID, Msg: "run_end", Timestamp: e.clock(), Meta: meta})
	if e.metrics != nil {
		e.metrics.runFinished(string(res.Status))
	}
	e.logger.Info("run finished", "run_id", runID, "status", res.Status, "steps", res.Steps, "transitions", len(res.Transitions))

	return res, err
}

// run holds the mutable bookkeeping of a single execution.
type run[S any] struct {
	engine *Engine[S]
	runID  string
	result *Result[S]

	// loops counts traversals of declared loop edges, keyed "from->to"
	loops map[string]int
}

func (r *run[S]) loop(ctx context.Context) error {
	e := r.engine
	current := e.startNode

	for {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run cancelled", "run_id", r.runID, "before", current, "error", err)
			return fmt.Errorf("%w before stage %s: %w", ErrAborted, current, context.Cause(ctx))
		}

		if e.opts.MaxSteps > 0 && r.result.Steps >= e.opts.MaxSteps {
			return &EngineError{
				Message: fmt.Sprintf("workflow exceeded MaxSteps limit of %d", e.opts.MaxSteps),
				Code:    "MAX_STEPS_EXCEEDED",
				Err:     ErrMaxStepsExceeded,
			}
		}

		if err := r.invoke(ctx, current); err != nil {
			return err
		}

		next, err := r.next(current)
		if err != nil {
			return err
		}
		if next == END {
			return nil
		}
		current = next
	}
}

// invoke runs one stage and records its transition.
func (r *run[S]) invoke(ctx context.Context, nodeID string) error {
	e := r.engine
	node := e.nodes[nodeID]

	started := e.clock()
	out := node.Run(ctx, r.result.State)
	elapsed := e.clock().Sub(started)
	r.result.Steps++

	if out.Err != nil {
		if e.metrics != nil {
			e.metrics.recordStage(nodeID, elapsed, "fatal")
		}
		e.logger.Error("stage failed", "run_id", r.runID, "stage", nodeID, "error", out.Err)
		var nodeErr *NodeError
		if errors.As(out.Err, &nodeErr) {
			return nodeErr
		}
		return &NodeError{Message: out.Err.Error(), Code: "NODE_FAILED", NodeID: nodeID, Cause: out.Err}
	}
	r.result.State = out.State

	t := Transition{
		Stage:     nodeID,
		Kind:      KindStage,
		Status:    TransitionOK,
		Timestamp: started,
		Duration:  elapsed,
	}
	status := "ok"
	if out.Degraded != nil {
		t.Status = TransitionError
		t.Detail = out.Degraded.Error()
		status = "degraded"
		e.logger.Warn("stage degraded", "run_id", r.runID, "stage", nodeID, "error", out.Degraded)
	} else {
		e.logger.Debug("stage completed", "run_id", r.runID, "stage", nodeID, "duration", elapsed)
	}
	if e.metrics != nil {
		e.metrics.recordStage(nodeID, elapsed, status)
	}
	r.record(t)
	return nil
}

// next resolves the stage that follows from. Unconditional edges are followed
// silently; branches are evaluated, validated and recorded.
func (r *run[S]) next(from string) (string, error) {
	e := r.engine
	if to, ok := e.edges[from]; ok {
		return to, nil
	}

	b := e.branches[from]
	d := b.route(r.result.State)
	if !b.allows(d.To) {
		e.logger.Error("illegal route", "run_id", r.runID, "from", from, "to", d.To, "candidates", b.candidates)
		return "", &EngineError{
			Message: fmt.Sprintf("node %s routed to %q, allowed %v", from, d.To, b.candidates),
			Code:    "ILLEGAL_ROUTE",
			Err:     ErrIllegalRoute,
		}
	}

	if limit, isLoop := b.loops[d.To]; isLoop {
		key := from + "->" + d.To
		if r.loops[key] >= limit {
			return "", &EngineError{
				Message: fmt.Sprintf("loop %s exceeded %d traversals", key, limit),
				Code:    "LOOP_LIMIT_EXCEEDED",
				Err:     ErrLoopLimitExceeded,
			}
		}
		r.loops[key]++
	}

	e.logger.Debug("route decided", "run_id", r.runID, "from", from, "to", d.To, "reason", d.Reason)
	if e.metrics != nil {
		e.metrics.recordRoute(from, d.To, d.Reason)
	}
	r.record(Transition{
		Stage:     from,
		Kind:      KindRoute,
		Status:    TransitionOK,
		Timestamp: e.clock(),
		Next:      d.To,
		Reason:    d.Reason,
	})
	return d.To, nil
}

// record appends t to the run's log, mirrors it into the state when the state
// keeps a journal, and emits it.
func (r *run[S]) record(t Transition) {
	t.Seq = len(r.result.Transitions) + 1
	r.result.Transitions = append(r.result.Transitions, t)
	if j, ok := any(&r.result.State).(Journal); ok {
		j.AppendTransition(t)
	}
	r.engine.emit(t.Event(r.runID))
}

func (e *Engine[S]) emit(event emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string

	// Err is the sentinel or underlying error, matched by errors.Is.
	Err error
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the wrapped sentinel error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func compiledError() error {
	return &EngineError{Message: "graph is frozen", Code: "COMPILED", Err: ErrCompiled}
}
