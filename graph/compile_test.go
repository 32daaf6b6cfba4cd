package graph

import (
	"errors"
	"testing"
)

func always(to string) Router[doc] {
	return func(doc) Decision { return Decision{To: to} }
}

func TestCompile_Validation(t *testing.T) {
	tests := []struct {
		name  string
		build func(e *Engine[doc]) error
		want  error
	}{
		{
			name: "no entry",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				return e.Connect("a", END)
			},
			want: ErrNoEntry,
		},
		{
			name: "missing route",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				return e.StartAt("a")
			},
			want: ErrMissingRoute,
		},
		{
			name: "edge and branch on one stage",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.StartAt("a"))
				must(t, e.Connect("a", END))
				return e.Branch("a", always(END), []string{END})
			},
			want: ErrDuplicateRoute,
		},
		{
			name: "unknown edge target",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.StartAt("a"))
				return e.Connect("a", "ghost")
			},
			want: ErrUnknownStage,
		},
		{
			name: "edge from unregistered stage",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.StartAt("a"))
				must(t, e.Connect("a", END))
				return e.Connect("ghost", END)
			},
			want: ErrUnknownStage,
		},
		{
			name: "unknown branch candidate",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.StartAt("a"))
				return e.Branch("a", always(END), []string{END, "ghost"})
			},
			want: ErrUnknownStage,
		},
		{
			name: "undeclared cycle",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.Add("b", appendNode("b")))
				must(t, e.StartAt("a"))
				must(t, e.Connect("a", "b"))
				return e.Branch("b", always(END), []string{"a", END})
			},
			want: ErrCycle,
		},
		{
			name: "loop target not a candidate",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.StartAt("a"))
				return e.Branch("a", always(END), []string{END}, Loop{To: "a", Max: 1})
			},
			want: ErrInvalidLoop,
		},
		{
			name: "negative loop max",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.Add("b", appendNode("b")))
				must(t, e.StartAt("a"))
				must(t, e.Connect("a", "b"))
				return e.Branch("b", always(END), []string{"a", END}, Loop{To: "a", Max: -1})
			},
			want: ErrInvalidLoop,
		},
		{
			name: "loop closed through another branch",
			build: func(e *Engine[doc]) error {
				must(t, e.Add("a", appendNode("a")))
				must(t, e.Add("b", appendNode("b")))
				must(t, e.Add("c", appendNode("c")))
				must(t, e.StartAt("a"))
				must(t, e.Branch("a", always("b"), []string{"b", "c"}))
				must(t, e.Connect("c", END))
				return e.Branch("b", always(END), []string{"a", END}, Loop{To: "a", Max: 2})
			},
			want: ErrInvalidLoop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := New[doc]()
			must(t, tt.build(e))

			err := e.Compile()
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var engErr *EngineError
			if !errors.As(err, &engErr) || engErr.Code != "INVALID_GRAPH" {
				t.Errorf("expected INVALID_GRAPH, got %v", err)
			}
			if _, runErr := e.Run(t.Context(), "r", doc{}); !errors.Is(runErr, ErrNotCompiled) {
				t.Errorf("failed Compile must leave the graph unrunnable, got %v", runErr)
			}
		})
	}
}

func TestCompile_ReportsEveryProblem(t *testing.T) {
	e, _ := New[doc]()
	must(t, e.Add("a", appendNode("a")))
	must(t, e.Add("b", appendNode("b")))
	must(t, e.Connect("a", "ghost"))

	err := e.Compile()
	for _, want := range []error{ErrNoEntry, ErrUnknownStage, ErrMissingRoute} {
		if !errors.Is(err, want) {
			t.Errorf("expected %v in %v", want, err)
		}
	}
}

func TestCompile_ZeroLoopMax(t *testing.T) {
	e := newLoopEngine(t, untilPasses(1), 0)

	res, err := e.Run(t.Context(), "r", doc{})
	if err != nil {
		t.Fatalf("a loop that is never taken should run: %v", err)
	}
	if res.State.Body != "spcd" {
		t.Errorf("unexpected body %q", res.State.Body)
	}

	e = newLoopEngine(t, untilPasses(2), 0)
	if _, err := e.Run(t.Context(), "r", doc{}); !errors.Is(err, ErrLoopLimitExceeded) {
		t.Errorf("taking a zero-max loop must fail, got %v", err)
	}
}

func TestCompile_UnreachableStageIsAllowed(t *testing.T) {
	e, _ := New[doc]()
	must(t, e.Add("a", appendNode("a")))
	must(t, e.Add("orphan", appendNode("o")))
	must(t, e.StartAt("a"))
	must(t, e.Connect("a", END))
	must(t, e.Connect("orphan", END))

	if err := e.Compile(); err != nil {
		t.Errorf("unreachable stages only warn, got %v", err)
	}
}

func TestClosesLoop(t *testing.T) {
	e, _ := New[doc]()
	for _, id := range []string{"draft", "review", "enrich"} {
		must(t, e.Add(id, appendNode(id)))
	}
	must(t, e.Connect("draft", "review"))
	must(t, e.Connect("enrich", END))

	if !e.closesLoop("review", "draft") {
		t.Error("draft -> review should close the loop")
	}
	if e.closesLoop("review", "enrich") {
		t.Error("enrich never returns to review")
	}
}
