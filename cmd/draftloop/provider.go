package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/draftloop/graph/model"
	"github.com/dshills/draftloop/graph/model/anthropic"
	"github.com/dshills/draftloop/graph/model/google"
	"github.com/dshills/draftloop/graph/model/openai"
	"github.com/dshills/draftloop/internal/config"
	"github.com/dshills/draftloop/pipeline"
)

const mockModelName = "mock"

// newChatModel builds the configured provider wrapped in retries. It returns
// the model name used for cost attribution.
func newChatModel(cfg config.ProviderConfig, logger *slog.Logger) (model.ChatModel, string, error) {
	var (
		base model.ChatModel
		name = cfg.Model
		err  error
	)
	switch cfg.Name {
	case config.ProviderAnthropic:
		if name == "" {
			name = anthropic.DefaultModel
		}
		base, err = anthropic.NewChatModel(cfg.APIKey, name)
	case config.ProviderOpenAI:
		if name == "" {
			name = openai.DefaultModel
		}
		base, err = openai.NewChatModel(cfg.APIKey, name)
	case config.ProviderGoogle:
		if name == "" {
			name = google.DefaultModel
		}
		base, err = google.NewChatModel(cfg.APIKey, name)
	case config.ProviderMock:
		return newMockModel(), mockModelName, nil
	default:
		return nil, "", fmt.Errorf("unknown provider %q", cfg.Name)
	}
	if err != nil {
		return nil, "", fmt.Errorf("provider %s: %w", cfg.Name, err)
	}

	policy := (&config.Config{Provider: cfg}).RetryPolicy()
	retrying, err := model.NewRetryingChatModel(base, policy, logger.With("provider", cfg.Name))
	if err != nil {
		return nil, "", err
	}
	return retrying, name, nil
}

// newMockModel answers offline. The editor asks for one revision of every
// first draft and accepts the rewrite.
func newMockModel() *model.MockChatModel {
	return &model.MockChatModel{
		Respond: func(messages []model.Message) (model.ChatOut, error) {
			system, rest := model.SplitSystem(messages)
			var user string
			if len(rest) > 0 {
				user = rest[len(rest)-1].Content
			}
			topic, _, _ := strings.Cut(strings.TrimPrefix(user, "Topic: "), "\n")

			var text string
			switch {
			case strings.Contains(system, pipeline.MarkerAccept) && strings.Contains(user, "(revision 0)"):
				text = "The structure works but the introduction is thin. Add a concrete example.\n" + pipeline.MarkerRevise
			case strings.Contains(system, pipeline.MarkerAccept):
				text = "The example fixed the introduction. Ready to publish.\n" + pipeline.MarkerAccept
			case strings.Contains(user, "Editor feedback:"):
				text = fmt.Sprintf("%s, revised. This version opens with a concrete example. The result is a good, focused read.", topic)
			default:
				text = fmt.Sprintf("%s in brief. It explains the key ideas and why they matter.", topic)
			}
			return model.ChatOut{
				Text:  text,
				Model: mockModelName,
				Usage: model.Usage{
					InputTokens:  len(strings.Fields(system)) + len(strings.Fields(user)),
					OutputTokens: len(strings.Fields(text)),
				},
			}, nil
		},
	}
}
