package google

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/dshills/draftloop/graph/model"
)

type mockGoogleClient struct {
	resp       *genai.GenerateContentResponse
	err        error
	callCount  int
	lastSystem string
	lastParts  []genai.Part
}

func (m *mockGoogleClient) generateContent(ctx context.Context, system string, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	m.callCount++
	m.lastSystem = system
	m.lastParts = parts
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}},
		},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 20, CandidatesTokenCount: 8},
	}
}

func TestGoogleChatModel_Construction(t *testing.T) {
	if _, err := NewChatModel("", ""); !errors.Is(err, model.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}

	m, err := NewChatModel("test-api-key", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.modelName != DefaultModel {
		t.Errorf("expected %q, got %q", DefaultModel, m.modelName)
	}
}

func TestGoogleChatModel_Chat(t *testing.T) {
	t.Run("joins text parts and reports usage", func(t *testing.T) {
		mockClient := &mockGoogleClient{resp: textResponse(genai.Text("first"), genai.Text("second"))}
		m := &ChatModel{client: mockClient, modelName: DefaultModel}

		out, err := m.Chat(context.Background(), []model.Message{
			{Role: model.RoleSystem, Content: "Be brief."},
			{Role: model.RoleUser, Content: "Write."},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "first\nsecond" {
			t.Errorf("unexpected text %q", out.Text)
		}
		if out.Usage.InputTokens != 20 || out.Usage.OutputTokens != 8 {
			t.Errorf("unexpected usage %+v", out.Usage)
		}
		if mockClient.lastSystem != "Be brief." {
			t.Errorf("expected system instruction, got %q", mockClient.lastSystem)
		}
		if len(mockClient.lastParts) != 1 {
			t.Errorf("expected 1 conversation part, got %d", len(mockClient.lastParts))
		}
	})

	t.Run("no candidates is an error", func(t *testing.T) {
		m := &ChatModel{client: &mockGoogleClient{resp: &genai.GenerateContentResponse{}}, modelName: DefaultModel}
		if _, err := m.Chat(context.Background(), nil); !errors.Is(err, model.ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("safety finish reason surfaces SafetyFilterError", func(t *testing.T) {
		resp := textResponse(genai.Text("partial"))
		resp.Candidates[0].FinishReason = genai.FinishReasonSafety
		m := &ChatModel{client: &mockGoogleClient{resp: resp}, modelName: DefaultModel}

		_, err := m.Chat(context.Background(), nil)
		var safetyErr *SafetyFilterError
		if !errors.As(err, &safetyErr) {
			t.Fatalf("expected SafetyFilterError, got %v", err)
		}
		if safetyErr.Reason() != "SAFETY" {
			t.Errorf("expected reason SAFETY, got %q", safetyErr.Reason())
		}
	})

	t.Run("passes client safety errors through", func(t *testing.T) {
		m := &ChatModel{client: &mockGoogleClient{err: &SafetyFilterError{reason: "SAFETY", category: "HARM"}}, modelName: DefaultModel}
		_, err := m.Chat(context.Background(), nil)
		var safetyErr *SafetyFilterError
		if !errors.As(err, &safetyErr) || safetyErr.Category() != "HARM" {
			t.Errorf("expected SafetyFilterError HARM, got %v", err)
		}
	})

	t.Run("classifies other errors", func(t *testing.T) {
		m := &ChatModel{client: &mockGoogleClient{err: errors.New("503 service unavailable")}, modelName: DefaultModel}
		_, err := m.Chat(context.Background(), nil)
		if !model.IsRetryable(err) {
			t.Errorf("expected retryable error, got %v", err)
		}
	})
}
