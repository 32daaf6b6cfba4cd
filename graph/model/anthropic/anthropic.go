// Package anthropic provides a ChatModel adapter for Anthropic's Claude API.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/draftloop/graph/model"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "claude-3-5-sonnet-20241022"

// ChatModel implements model.ChatModel for Anthropic's Claude API.
//
// System messages are lifted into the request's system parameter; the
// remaining conversation is sent as user and assistant turns.
//
// Example usage:
//
//	m, err := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "Hi"}})
type ChatModel struct {
	modelName string
	maxTokens int64
	client    anthropicClient
}

// anthropicClient is the subset of the SDK's MessageService used here.
// This allows for easy mocking in tests.
type anthropicClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// NewChatModel creates a new Anthropic ChatModel. An empty modelName uses
// DefaultModel.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		modelName: modelName,
		maxTokens: 4096,
		client:    &client.Messages,
	}, nil
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := buildParams(m.modelName, m.maxTokens, messages)
	message, err := m.client.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, translateError(err)
	}

	out := model.ChatOut{
		Model: string(message.Model),
		Usage: model.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}
	if out.Model == "" {
		out.Model = m.modelName
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			out.Text += block.Text
		}
	}
	if out.Text == "" {
		return out, model.ErrEmptyResponse
	}
	return out, nil
}

func buildParams(modelName string, maxTokens int64, messages []model.Message) anthropic.MessageNewParams {
	system, conversation := model.SplitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(conversation)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, msg := range conversation {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	return params
}

// translateError maps SDK errors to *model.ProviderError using the HTTP status
// when the SDK exposes one.
func translateError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.Classify("anthropic", apiErr.StatusCode, err)
	}
	return model.Classify("anthropic", 0, err)
}
