package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/dshills/draftloop/graph/model"
)

// ErrEmptyOutput is returned when a generator produced only whitespace.
var ErrEmptyOutput = errors.New("generator returned empty output")

// ErrNoGenerator is the failure a stage reports when the pipeline was built
// without a text generator.
var ErrNoGenerator = errors.New("no text generator configured")

// Prompt is the structured request a stage sends to its generator.
type Prompt struct {
	RunID string
	Stage string

	System string
	User   string
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p Prompt) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// ChatGenerator adapts a model.ChatModel to Generator and attributes token
// usage to the prompt's run and stage.
type ChatGenerator struct {
	Model model.ChatModel

	// Costs, if set, records every successful call.
	Costs *model.CostTracker

	// ModelName is used for cost attribution when the provider does not
	// report the model it used.
	ModelName string
}

// Generate implements Generator.
func (g *ChatGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	messages := make([]model.Message, 0, 2)
	if p.System != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: p.System})
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: p.User})

	out, err := g.Model.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	if g.Costs != nil {
		name := out.Model
		if name == "" {
			name = g.ModelName
		}
		g.Costs.RecordLLMCall(p.RunID, p.Stage, name, out.Usage.InputTokens, out.Usage.OutputTokens)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrEmptyOutput
	}
	return out.Text, nil
}
