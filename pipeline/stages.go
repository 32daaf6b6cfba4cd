package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/draftloop/graph"
	"github.com/dshills/draftloop/graph/model"
	"github.com/dshills/draftloop/graph/tool"
)

// Collaborators are the external capabilities the stages call. Zero values
// are usable: a nil Generator degrades every generating stage, nil Tools
// means the built-in enrichment tools.
type Collaborators struct {
	Generator Generator
	Tools     *tool.Registry

	// Costs, if set, is consulted for each run's token usage. It should be
	// the tracker the Generator records into.
	Costs *model.CostTracker

	// Clock is the time source for enrichment and the transition log.
	// Nil means time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

func (c *Collaborators) generate(ctx context.Context, p Prompt) (string, error) {
	if c.Generator == nil {
		return "", ErrNoGenerator
	}
	text, err := c.Generator.Generate(ctx, p)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// Placeholder prefixes written in place of a failed stage's output.
const (
	analysisUnavailable = "analysis unavailable: "
	draftUnavailable    = "draft unavailable: "
	reviewUnavailable   = "review unavailable: "
	finalUnavailable    = "final result unavailable: "
)

// AnalyzeStage writes the brief the writer drafts from.
type AnalyzeStage struct{ c *Collaborators }

func (st AnalyzeStage) Run(ctx context.Context, s State) graph.NodeResult[State] {
	if strings.TrimSpace(s.Topic) == "" {
		return graph.NodeResult[State]{Err: ErrEmptyTopic}
	}
	text, err := st.c.generate(ctx, analyzePrompt(s))
	if err != nil {
		s.Analysis = analysisUnavailable + err.Error()
		return graph.Degrade(s, err)
	}
	s.Analysis = text
	return graph.Done(s)
}

// DraftStage writes the article, or rewrites it on a revision pass.
type DraftStage struct{ c *Collaborators }

func (st DraftStage) Run(ctx context.Context, s State) graph.NodeResult[State] {
	if s.Analysis == "" {
		return graph.NodeResult[State]{Err: errors.New("draft requires an analysis")}
	}
	if s.DraftContent != "" {
		s.RevisionCount++
	}
	text, err := st.c.generate(ctx, draftPrompt(s))
	if err != nil {
		s.DraftContent = draftUnavailable + err.Error()
		return graph.Degrade(s, err)
	}
	s.DraftContent = text
	return graph.Done(s)
}

// ReviewStage critiques the draft and decides whether it needs revision.
type ReviewStage struct{ c *Collaborators }

func (st ReviewStage) Run(ctx context.Context, s State) graph.NodeResult[State] {
	if s.DraftContent == "" {
		return graph.NodeResult[State]{Err: errors.New("review requires a draft")}
	}
	text, err := st.c.generate(ctx, reviewPrompt(s))
	if err != nil {
		s.Feedback = reviewUnavailable + err.Error()
		s.Verdict = VerdictAmbiguous
		s.NeedsRevision = true
		return graph.Degrade(s, err)
	}
	s.Feedback = text
	s.Verdict = ParseVerdict(text)
	s.NeedsRevision = s.Verdict.NeedsRevision()
	return graph.Done(s)
}

// enrichPlan is the order tools run in and are listed in ToolsUsed.
var enrichPlan = []struct {
	name  string
	label string
}{
	{"current_time", ""},
	{"word_count", ""},
	{"sentence_count", ""},
	{"sentiment", ""},
	{"weather", ""},
	{"summary", "summary: "},
	{"translate", "translation: "},
}

// EnrichStage runs the deterministic tools over the draft and appends their
// results to it.
type EnrichStage struct{ c *Collaborators }

func (st EnrichStage) Run(ctx context.Context, s State) graph.NodeResult[State] {
	// Tools are local and quick; a cancellation is honoured at the next
	// stage boundary instead.
	ctx = context.WithoutCancel(ctx)

	stats := Enrich(ctx, st.c.Tools, s.DraftContent)

	var b strings.Builder
	b.WriteString(s.DraftContent)
	b.WriteString("\n\n---\nAdditional information:\n")
	for _, step := range enrichPlan {
		if line, ok := stats.Results[step.name]; ok {
			fmt.Fprintf(&b, "- %s%s\n", step.label, line)
		}
	}

	s.ToolsUsed = stats.Used
	s.ToolResults = stats.Results
	s.DraftContent = strings.TrimRight(b.String(), "\n")
	if stats.Err != nil {
		return graph.Degrade(s, stats.Err)
	}
	return graph.Done(s)
}

// Enrichment is the outcome of one enrichment pass.
type Enrichment struct {
	// Used lists the tools that succeeded, in plan order.
	Used []string

	// Results maps every planned tool to its display line. Failed tools map
	// to a diagnostic.
	Results map[string]string

	Err error
}

// Enrich runs every enrichment tool over text. The translation is applied to
// the summary.
func Enrich(ctx context.Context, tools *tool.Registry, text string) Enrichment {
	e := Enrichment{
		Used:    make([]string, 0, len(enrichPlan)),
		Results: make(map[string]string, len(enrichPlan)),
	}
	var errs []error
	summary := text
	for _, step := range enrichPlan {
		input := map[string]interface{}{"text": text}
		if step.name == "translate" {
			input["text"] = summary
		}
		out, err := tools.Call(ctx, step.name, input)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			e.Results[step.name] = "unavailable: " + err.Error()
			continue
		}
		line := tool.Result(out)
		if step.name == "summary" {
			summary = line
		}
		e.Used = append(e.Used, step.name)
		e.Results[step.name] = line
	}
	e.Err = errors.Join(errs...)
	return e
}

// FinalizeStage produces the publication-ready result.
type FinalizeStage struct{ c *Collaborators }

func (st FinalizeStage) Run(ctx context.Context, s State) graph.NodeResult[State] {
	text, err := st.c.generate(ctx, finalizePrompt(s))
	if err != nil {
		s.FinalResult = finalUnavailable + err.Error()
		return graph.Degrade(s, err)
	}
	s.FinalResult = text
	return graph.Done(s)
}
