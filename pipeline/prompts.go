package pipeline

import (
	"fmt"
	"strings"
)

const (
	analystSystem = "You are an analyst preparing a writing brief. Identify the key aspects of the " +
		"topic, the intended audience, and a sensible structure for a short article."
	writerSystem = "You are a writer. Produce a clear, well-structured article based on the brief. " +
		"When feedback is provided, revise the previous draft to address every point."
	criticSystem = "You are a demanding editor. Assess the draft for accuracy, structure and clarity, " +
		"list concrete improvements, and finish with exactly one line: " +
		MarkerRevise + " or " + MarkerAccept + "."
	finalizerSystem = "You are a managing editor. Produce the publication-ready version of the article, " +
		"incorporating the editor's remaining remarks."
)

func analyzePrompt(s State) Prompt {
	return Prompt{
		RunID:  s.RunID,
		Stage:  StageAnalyze,
		System: analystSystem,
		User:   "Topic: " + s.Topic,
	}
}

func draftPrompt(s State) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nBrief:\n%s\n", s.Topic, s.Analysis)
	if s.DraftContent != "" {
		fmt.Fprintf(&b, "\nPrevious draft:\n%s\n", s.DraftContent)
	}
	if s.Feedback != "" {
		fmt.Fprintf(&b, "\nEditor feedback:\n%s\n", s.Feedback)
	}
	return Prompt{RunID: s.RunID, Stage: StageDraft, System: writerSystem, User: b.String()}
}

func reviewPrompt(s State) Prompt {
	return Prompt{
		RunID:  s.RunID,
		Stage:  StageReview,
		System: criticSystem,
		User:   fmt.Sprintf("Topic: %s\n\nDraft (revision %d):\n%s", s.Topic, s.RevisionCount, s.DraftContent),
	}
}

func finalizePrompt(s State) Prompt {
	return Prompt{
		RunID:  s.RunID,
		Stage:  StageFinalize,
		System: finalizerSystem,
		User: fmt.Sprintf("Topic: %s\n\nBrief:\n%s\n\nArticle:\n%s\n\nEditor feedback:\n%s",
			s.Topic, s.Analysis, s.DraftContent, s.Feedback),
	}
}
