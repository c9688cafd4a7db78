package llm

import "context"

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation context. Messages are treated
// as immutable; ordering within a context is chronological.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input for chat providers.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage captures token accounting reported by a backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a chat completion.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
	ProviderName string
	Model        string
}

// Provider is one interchangeable generative backend. Availability can
// change between calls (a local daemon may stop at any moment), so Available
// is consulted once per dispatch and never cached beyond that attempt.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
