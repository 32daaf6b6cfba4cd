// Package openai provides a ChatModel adapter for OpenAI's chat completions API.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/draftloop/graph/model"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "gpt-4o-mini"

// ChatModel implements model.ChatModel for OpenAI's GPT models.
//
// Example usage:
//
//	m, err := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o")
//	out, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "Hi"}})
type ChatModel struct {
	modelName string
	client    openaiClient
}

// openaiClient is the subset of the SDK's ChatCompletionService used here.
// This allows for easy mocking in tests.
type openaiClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// NewChatModel creates a new OpenAI ChatModel. An empty modelName uses
// DefaultModel.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		modelName: modelName,
		client:    &client.Chat.Completions,
	}, nil
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	completion, err := m.client.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	})
	if err != nil {
		return model.ChatOut{}, translateError(err)
	}

	out := model.ChatOut{
		Model: completion.Model,
		Usage: model.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
	if out.Model == "" {
		out.Model = m.modelName
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return out, model.ErrEmptyResponse
	}
	out.Text = completion.Choices[0].Message.Content
	return out, nil
}

// convertMessages maps our roles onto the SDK's message constructors.
func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.Classify("openai", apiErr.StatusCode, err)
	}
	return model.Classify("openai", 0, err)
}
