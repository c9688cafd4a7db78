package mock

import (
	"context"

	"github.com/codemend/codemend/internal/llm"
)

// Provider is a test double implementing llm.Provider. Call counters let
// tests assert that unavailable providers are never contacted.
type Provider struct {
	NameValue   string
	AvailableFn func(ctx context.Context) bool
	ChatFn      func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)

	AvailableCalls int
	ChatCalls      int
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Available(ctx context.Context) bool {
	p.AvailableCalls++
	if p.AvailableFn != nil {
		return p.AvailableFn(ctx)
	}
	return true
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.ChatCalls++
	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	return llm.ChatResponse{Content: "mock", ProviderName: p.Name()}, nil
}
