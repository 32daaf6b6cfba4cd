// Package google provides a ChatModel adapter for the Google Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dshills/draftloop/graph/model"
)

// DefaultModel is used when NewChatModel is given an empty model name.
const DefaultModel = "gemini-2.5-flash"

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// System messages become the model's system instruction; user and assistant
// turns are sent as text parts. Responses blocked by the safety filters
// surface as *SafetyFilterError.
//
// Example usage:
//
//	m, err := google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), "")
//	out, err := m.Chat(ctx, msgs)
//	var safetyErr *google.SafetyFilterError
//	if errors.As(err, &safetyErr) {
//	    log.Printf("Content blocked: %s", safetyErr.Category())
//	}
type ChatModel struct {
	modelName string
	client    googleClient
}

// googleClient defines the Gemini operation used by ChatModel.
// This allows for easy mocking in tests.
type googleClient interface {
	generateContent(ctx context.Context, system string, parts []genai.Part) (*genai.GenerateContentResponse, error)
}

// NewChatModel creates a new Google ChatModel. An empty modelName uses
// DefaultModel.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	return &ChatModel{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}, nil
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, conversation := model.SplitSystem(messages)
	resp, err := m.client.generateContent(ctx, system, convertMessages(conversation))
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return model.ChatOut{}, err
		}
		return model.ChatOut{}, translateError(err)
	}

	return convertResponse(m.modelName, resp)
}

// defaultClient wraps the official Google Gemini SDK client. A client is
// created per call and closed afterwards.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, system string, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	genModel := client.GenerativeModel(c.modelName)
	if system != "" {
		genModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, safetyErrorFromBlocked(blocked)
		}
		return nil, err
	}
	return resp, nil
}

// convertMessages turns the conversation into text parts. Gemini's single
// GenerateContent call takes parts rather than role-tagged turns.
func convertMessages(messages []model.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

// convertResponse extracts text and usage from the first candidate.
func convertResponse(modelName string, resp *genai.GenerateContentResponse) (model.ChatOut, error) {
	out := model.ChatOut{Model: modelName}
	if resp == nil {
		return out, model.ErrEmptyResponse
	}
	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, model.ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return out, &SafetyFilterError{reason: "SAFETY", category: blockedCategory(candidate.SafetyRatings)}
	}
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(text)
		}
	}
	if out.Text == "" {
		return out, model.ErrEmptyResponse
	}
	return out, nil
}

func blockedCategory(ratings []*genai.SafetyRating) string {
	for _, r := range ratings {
		if r != nil && r.Blocked {
			return r.Category.String()
		}
	}
	return "unspecified"
}

func safetyErrorFromBlocked(err *genai.BlockedError) *SafetyFilterError {
	se := &SafetyFilterError{reason: "SAFETY", category: "unspecified"}
	if err.PromptFeedback != nil {
		se.reason = err.PromptFeedback.BlockReason.String()
		se.category = blockedCategory(err.PromptFeedback.SafetyRatings)
	}
	if err.Candidate != nil {
		se.category = blockedCategory(err.Candidate.SafetyRatings)
	}
	return se
}

func translateError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return model.Classify("google", apiErr.Code, err)
	}
	return model.Classify("google", 0, err)
}

// SafetyFilterError represents a Google safety filter block.
//
// Use errors.As to check for this error type.
type SafetyFilterError struct {
	reason   string
	category string
}

// Error implements the error interface.
func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string {
	return e.category
}

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string {
	return e.reason
}
