// Package model provides the text-generation abstraction and its provider
// adapters.
package model

import "context"

// ChatModel is a chat-style text generation backend.
//
// Implementations convert Messages to the provider's request format, respect
// context cancellation, and report token usage when the provider returns it.
//
// Example usage:
//
//	m := anthropic.NewChatModel(apiKey, "claude-3-5-sonnet-20241022")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "You are a careful editor."},
//	    {Role: model.RoleUser, Content: "Summarise the draft."},
//	})
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is a single turn in a conversation.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string

	Content string
}

// Standard role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOut is the response of a ChatModel.
type ChatOut struct {
	// Text is the concatenated text content of the response.
	Text string

	// Model is the model that produced the response, used for cost
	// attribution. Empty when the provider does not report it.
	Model string

	Usage Usage
}

// Usage is the token accounting of a single call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// SplitSystem separates system messages from the conversation. Several
// system messages are joined with a blank line. Providers that take the system
// prompt as a separate parameter use this.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	var rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
