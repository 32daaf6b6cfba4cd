package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dshills/draftloop/graph/model"
)

type mockOpenAIClient struct {
	completion *openai.ChatCompletion
	err        error
	callCount  int
	lastBody   openai.ChatCompletionNewParams
}

func (m *mockOpenAIClient) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.callCount++
	m.lastBody = body
	if m.err != nil {
		return nil, m.err
	}
	return m.completion, nil
}

func completion(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Model: "gpt-4o-2024-08-06",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
		Usage: openai.CompletionUsage{PromptTokens: 30, CompletionTokens: 11},
	}
}

func TestOpenAIChatModel_Construction(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		if _, err := NewChatModel("", "gpt-4o"); !errors.Is(err, model.ErrMissingAPIKey) {
			t.Fatalf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("defaults model name", func(t *testing.T) {
		m, err := NewChatModel("test-api-key", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if m.modelName != DefaultModel {
			t.Errorf("expected %q, got %q", DefaultModel, m.modelName)
		}
	})
}

func TestOpenAIChatModel_Chat(t *testing.T) {
	t.Run("sends messages and returns response", func(t *testing.T) {
		mockClient := &mockOpenAIClient{completion: completion("A structured analysis.")}
		m := &ChatModel{client: mockClient, modelName: "gpt-4o"}

		out, err := m.Chat(context.Background(), []model.Message{
			{Role: model.RoleSystem, Content: "You are an analyst."},
			{Role: model.RoleUser, Content: "Analyse otters."},
			{Role: model.RoleAssistant, Content: "Sure."},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "A structured analysis." {
			t.Errorf("unexpected text %q", out.Text)
		}
		if out.Model != "gpt-4o-2024-08-06" {
			t.Errorf("expected response model, got %q", out.Model)
		}
		if out.Usage.Total() != 41 {
			t.Errorf("expected 41 tokens, got %d", out.Usage.Total())
		}
		if len(mockClient.lastBody.Messages) != 3 {
			t.Errorf("expected 3 messages, got %d", len(mockClient.lastBody.Messages))
		}
		if mockClient.lastBody.Messages[0].OfSystem == nil {
			t.Error("expected first message to be a system message")
		}
		if mockClient.lastBody.Messages[2].OfAssistant == nil {
			t.Error("expected last message to be an assistant message")
		}
	})

	t.Run("no choices is an error", func(t *testing.T) {
		m := &ChatModel{client: &mockOpenAIClient{completion: &openai.ChatCompletion{}}, modelName: "gpt-4o"}
		if _, err := m.Chat(context.Background(), nil); !errors.Is(err, model.ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("translates API errors", func(t *testing.T) {
		m := &ChatModel{client: &mockOpenAIClient{err: errors.New("401 invalid api_key")}, modelName: "gpt-4o"}
		_, err := m.Chat(context.Background(), nil)
		var pe *model.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProviderError, got %T", err)
		}
		if pe.Code != "invalid_api_key" || pe.Retryable {
			t.Errorf("expected permanent invalid_api_key, got %+v", pe)
		}
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		mockClient := &mockOpenAIClient{completion: completion("x")}
		m := &ChatModel{client: mockClient, modelName: "gpt-4o"}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := m.Chat(ctx, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if mockClient.callCount != 0 {
			t.Error("expected no API call")
		}
	})
}
