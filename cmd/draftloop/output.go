package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/draftloop/graph/model"
	"github.com/dshills/draftloop/pipeline"
)

func writeJSON(w io.Writer, outcomes []pipeline.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

func writeText(w io.Writer, outcomes []pipeline.Outcome, costs *model.CostTracker) error {
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("\n")
		}
		writeOutcome(&b, o)
	}
	if costs != nil {
		fmt.Fprintf(&b, "\n%s\n", costs)
		byModel := costs.GetCostByModel()
		names := make([]string, 0, len(byModel))
		for name := range byModel {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: $%.4f\n", name, byModel[name])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeOutcome(b *strings.Builder, o pipeline.Outcome) {
	header := fmt.Sprintf("Topic: %s", o.Topic)
	fmt.Fprintf(b, "%s\n%s\n", header, strings.Repeat("=", len(header)))
	fmt.Fprintf(b, "Run: %s\nStatus: %s\n", o.RunID, o.Status)
	if o.Error != "" {
		fmt.Fprintf(b, "Error: %s\n", o.Error)
	}
	fmt.Fprintf(b, "Revisions: %d\n", o.RevisionCount)

	section(b, "Analysis", o.Analysis)
	section(b, "Content", o.DraftContent)
	section(b, "Feedback", o.Feedback)
	section(b, "Final result", o.FinalResult)

	if len(o.ToolsUsed) > 0 {
		fmt.Fprintf(b, "\nTools used: %s\n", strings.Join(o.ToolsUsed, ", "))
		for _, name := range o.ToolsUsed {
			fmt.Fprintf(b, "  %s: %s\n", name, o.ToolResults[name])
		}
	}

	if len(o.Transitions) > 0 {
		b.WriteString("\nTransitions:\n")
		for _, t := range o.Transitions {
			fmt.Fprintf(b, "  %s\n", t)
		}
	}
	if o.Usage.Calls > 0 {
		fmt.Fprintf(b, "\nUsage: %d calls, %d in / %d out tokens, $%.4f\n",
			o.Usage.Calls, o.Usage.InputTokens, o.Usage.OutputTokens, o.Usage.CostUSD)
	}
}

func section(b *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", title, body)
}
