// Package pipeline runs the draftloop content pipeline: analyze a topic,
// draft, review and revise up to a ceiling, enrich, and optionally finalize.
package pipeline

import "github.com/dshills/draftloop/graph"

// Stage identifiers.
const (
	StageAnalyze  = "analyze"
	StageDraft    = "draft"
	StageReview   = "review"
	StageEnrich   = "enrich"
	StageFinalize = "finalize"
)

// State is the record threaded through every stage of one run. The engine
// owns it between stages; a stage owns it while running and hands back the
// updated copy.
type State struct {
	RunID string `json:"run_id"`

	// Topic is the run input. Stages never change it.
	Topic string `json:"topic"`

	Analysis     string `json:"analysis"`
	DraftContent string `json:"draft_content"`
	Feedback     string `json:"feedback"`

	// FinalResult is set once, by Finalize or when the run completes
	// without it.
	FinalResult string `json:"final_result"`

	// ToolsUsed and ToolResults are replaced wholesale by each Enrich pass.
	ToolsUsed   []string          `json:"tools_used"`
	ToolResults map[string]string `json:"tool_results"`

	NeedsRevision bool    `json:"needs_revision"`
	Verdict       Verdict `json:"verdict,omitempty"`

	// RevisionCount is the number of Draft passes after the first.
	RevisionCount int `json:"revision_count"`

	TransitionLog []graph.Transition `json:"transition_log"`
}

// NewState returns the initial record for a run on topic.
func NewState(runID, topic string) State {
	return State{
		RunID:         runID,
		Topic:         topic,
		ToolsUsed:     []string{},
		ToolResults:   map[string]string{},
		TransitionLog: []graph.Transition{},
	}
}

// AppendTransition implements graph.Journal.
func (s *State) AppendTransition(t graph.Transition) {
	s.TransitionLog = append(s.TransitionLog, t)
}

// Count returns how many stage records in the log belong to stage.
func (s State) Count(stage string) int {
	n := 0
	for _, t := range s.TransitionLog {
		if t.Kind == graph.KindStage && t.Stage == stage {
			n++
		}
	}
	return n
}
