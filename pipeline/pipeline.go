package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/draftloop/graph"
	"github.com/dshills/draftloop/graph/model"
	"github.com/dshills/draftloop/graph/tool"
)

var (
	// ErrInvalidConfig wraps every configuration problem reported by New.
	ErrInvalidConfig = errors.New("invalid pipeline config")

	// ErrEmptyTopic is the error of a run started without a topic.
	ErrEmptyTopic = errors.New("topic is empty")
)

// Config shapes the pipeline graph and its enrichment tools.
type Config struct {
	// RevisionCeiling is the maximum number of revision passes. Zero
	// disables revision: the first review always moves on.
	RevisionCeiling int

	// Finalize adds the Finalize stage after Enrich. Without it the
	// enriched draft becomes the final result.
	Finalize bool

	// Location, TargetLanguage and SummaryWords configure the built-in
	// enrichment tools. They are ignored when Collaborators.Tools is set.
	Location       string
	TargetLanguage string
	SummaryWords   int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		RevisionCeiling: DefaultRevisionCeiling,
		Finalize:        true,
		Location:        tool.DefaultLocation,
		TargetLanguage:  tool.DefaultTargetLanguage,
		SummaryWords:    tool.DefaultSummaryWords,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.RevisionCeiling < 0 {
		errs = append(errs, fmt.Errorf("revision ceiling must be >= 0, got %d", c.RevisionCeiling))
	}
	if c.SummaryWords < 0 {
		errs = append(errs, fmt.Errorf("summary words must be >= 0, got %d", c.SummaryWords))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Stages returns the number of distinct stages in the graph c builds.
func (c Config) Stages() int {
	if c.Finalize {
		return 5
	}
	return 4
}

// MaxSteps is the step budget of one run: every stage once, plus a Draft and
// a Review for each revision pass.
func (c Config) MaxSteps() int {
	return c.Stages() + 2*c.RevisionCeiling
}

// Outcome is what every run returns, whether it completed or not.
type Outcome struct {
	RunID  string       `json:"run_id"`
	Topic  string       `json:"topic"`
	Status graph.Status `json:"status"`

	FinalResult  string `json:"final_result"`
	Analysis     string `json:"analysis"`
	DraftContent string `json:"draft_content"`
	Feedback     string `json:"feedback"`

	ToolsUsed     []string          `json:"tools_used"`
	ToolResults   map[string]string `json:"tool_results"`
	RevisionCount int               `json:"revision_count"`

	Transitions []graph.Transition `json:"transitions"`
	Usage       model.RunUsage     `json:"usage"`

	// Err is set for aborted and failed runs.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Completed reports whether the run reached the end of the graph.
func (o Outcome) Completed() bool {
	return o.Status == graph.StatusCompleted
}

// Pipeline is a compiled content pipeline. It is safe for concurrent use;
// every Run owns its own state.
type Pipeline struct {
	cfg    Config
	engine *graph.Engine[State]
	collab *Collaborators
	logger *slog.Logger
}

// New validates cfg, builds the stage graph and compiles it. It is the only
// place configuration errors surface; engine options such as an emitter or
// metrics are passed through opts.
func New(cfg Config, collab Collaborators, opts ...graph.Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if collab.Clock == nil {
		collab.Clock = time.Now
	}
	if collab.Logger == nil {
		collab.Logger = slog.New(slog.DiscardHandler)
	}
	if collab.Tools == nil {
		collab.Tools = tool.NewRegistry(tool.Builtins(collab.Clock, cfg.Location, cfg.TargetLanguage, cfg.SummaryWords)...)
	}

	base := []graph.Option{graph.WithLogger(collab.Logger), graph.WithClock(collab.Clock)}
	opts = append(append(base, opts...), graph.WithMaxSteps(cfg.MaxSteps()))
	engine, err := graph.New[State](opts...)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, engine: engine, collab: &collab, logger: collab.Logger}
	if err := p.build(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) build() error {
	c, e := p.collab, p.engine

	type stage struct {
		id   string
		node graph.Node[State]
	}
	stages := []stage{
		{StageAnalyze, AnalyzeStage{c}},
		{StageDraft, DraftStage{c}},
		{StageReview, ReviewStage{c}},
		{StageEnrich, EnrichStage{c}},
	}
	if p.cfg.Finalize {
		stages = append(stages, stage{StageFinalize, FinalizeStage{c}})
	}

	var errs []error
	for _, st := range stages {
		errs = append(errs, e.Add(st.id, st.node))
	}
	errs = append(errs,
		e.StartAt(StageAnalyze),
		e.Connect(StageAnalyze, StageDraft),
		e.Connect(StageDraft, StageReview),
		e.Branch(StageReview, p.route(), []string{StageDraft, StageEnrich},
			graph.Loop{To: StageDraft, Max: p.cfg.RevisionCeiling}),
	)
	if p.cfg.Finalize {
		errs = append(errs, e.Connect(StageEnrich, StageFinalize), e.Connect(StageFinalize, graph.END))
	} else {
		errs = append(errs, e.Connect(StageEnrich, graph.END))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return e.Compile()
}

// route wraps Decide with the decision log line.
func (p *Pipeline) route() graph.Router[State] {
	decide := Decide(p.cfg.RevisionCeiling)
	return func(s State) graph.Decision {
		d := decide(s)
		p.logger.Info("review routed",
			"run_id", s.RunID,
			"to", d.To,
			"reason", d.Reason,
			"verdict", s.Verdict,
			"revision_count", s.RevisionCount,
			"ceiling", p.cfg.RevisionCeiling,
		)
		return d
	}
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run executes the pipeline for topic under a fresh run ID. It never fails:
// collaborator errors degrade the affected field, cancellation yields an
// aborted outcome.
func (p *Pipeline) Run(ctx context.Context, topic string) Outcome {
	return p.RunWithID(ctx, uuid.NewString(), topic)
}

// RunWithID is Run with a caller-chosen run ID.
func (p *Pipeline) RunWithID(ctx context.Context, runID, topic string) Outcome {
	if strings.TrimSpace(topic) == "" {
		p.logger.Warn("run rejected", "run_id", runID, "error", ErrEmptyTopic)
		return Outcome{
			RunID:       runID,
			Topic:       topic,
			Status:      graph.StatusFailed,
			ToolsUsed:   []string{},
			ToolResults: map[string]string{},
			Transitions: []graph.Transition{},
			Err:         ErrEmptyTopic,
			Error:       ErrEmptyTopic.Error(),
		}
	}

	res, err := p.engine.Run(ctx, runID, NewState(runID, topic))
	s := res.State
	if res.Status == graph.StatusCompleted && !p.cfg.Finalize {
		s.FinalResult = s.DraftContent
	}

	out := Outcome{
		RunID:         runID,
		Topic:         s.Topic,
		Status:        res.Status,
		FinalResult:   s.FinalResult,
		Analysis:      s.Analysis,
		DraftContent:  s.DraftContent,
		Feedback:      s.Feedback,
		ToolsUsed:     s.ToolsUsed,
		ToolResults:   s.ToolResults,
		RevisionCount: s.RevisionCount,
		Transitions:   s.TransitionLog,
		Err:           err,
	}
	if err != nil {
		out.Error = err.Error()
	}
	if p.collab.Costs != nil {
		out.Usage = p.collab.Costs.RunUsage(runID)
	}
	return out
}

// RunBatch runs topics in parallel, at most limit at a time (no bound when
// limit <= 0), and returns their outcomes in input order.
func RunBatch(ctx context.Context, p *Pipeline, topics []string, limit int) []Outcome {
	outcomes := make([]Outcome, len(topics))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, topic := range topics {
		g.Go(func() error {
			outcomes[i] = p.Run(ctx, topic)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
