package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExhaustedError is returned when every provider in the chain has been
// skipped or has failed. Cause holds the last underlying error, Attempts the
// per-provider record of what happened.
type ExhaustedError struct {
	Attempts []Attempt
	Cause    error
}

func (e *ExhaustedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("all %d providers exhausted, last error: %v", len(e.Attempts), e.Cause)
	}
	return fmt.Sprintf("all %d providers exhausted", len(e.Attempts))
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// Attempt records one provider's outcome during a chain dispatch.
type Attempt struct {
	Provider string
	Skipped  bool
	Err      error
}

// ProviderStatus reports per-provider availability for health endpoints.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ChainObserver receives per-provider dispatch outcomes (metrics hook).
type ChainObserver interface {
	RecordProviderAttempt(provider, outcome string)
}

// Chain presents an ordered list of providers as a single reliable call.
// Providers are tried strictly in configured order; the first non-empty
// success wins and no further providers are contacted. The chain holds no
// state besides the ordered list, so one instance is safe for concurrent use.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *zap.Logger
	observer  ChainObserver
}

// NewChain builds a failover chain over providers in priority order.
// perProviderTimeout bounds each individual attempt (0 = no extra bound
// beyond the caller's context).
func NewChain(providers []Provider, perProviderTimeout time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, timeout: perProviderTimeout, logger: logger}
}

// SetObserver attaches a dispatch observer. Intended to be called once
// during wiring, before the chain is shared.
func (c *Chain) SetObserver(obs ChainObserver) { c.observer = obs }

// Len returns the number of configured providers.
func (c *Chain) Len() int { return len(c.providers) }

// Respond dispatches the request to the first provider that is available and
// returns a non-empty completion. Per-provider failures are absorbed; only
// total exhaustion surfaces, as an *ExhaustedError.
func (c *Chain) Respond(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if len(c.providers) == 0 {
		return ChatResponse{}, &ExhaustedError{Cause: errors.New("no providers configured")}
	}

	attempts := make([]Attempt, 0, len(c.providers))
	var lastErr error

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return ChatResponse{}, err
		}

		if !p.Available(ctx) {
			c.logger.Debug("provider unavailable, skipping", zap.String("provider", p.Name()))
			attempts = append(attempts, Attempt{Provider: p.Name(), Skipped: true})
			c.observe(p.Name(), "skipped")
			continue
		}

		resp, err := c.attempt(ctx, p, req)
		if err == nil && strings.TrimSpace(resp.Content) == "" {
			err = fmt.Errorf("provider %s returned empty content", p.Name())
		}
		if err != nil {
			// Caller cancellation is not a provider failure; stop immediately.
			if ctx.Err() != nil {
				return ChatResponse{}, ctx.Err()
			}
			c.logger.Warn("provider failed", zap.String("provider", p.Name()), zap.Error(err))
			attempts = append(attempts, Attempt{Provider: p.Name(), Err: err})
			c.observe(p.Name(), "failed")
			lastErr = err
			continue
		}

		attempts = append(attempts, Attempt{Provider: p.Name()})
		c.observe(p.Name(), "success")
		return resp, nil
	}

	return ChatResponse{}, &ExhaustedError{Attempts: attempts, Cause: lastErr}
}

// Status re-checks each provider's availability. Results reflect the moment
// of the call only.
func (c *Chain) Status(ctx context.Context) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, ProviderStatus{Name: p.Name(), Available: p.Available(ctx)})
	}
	return out
}

func (c *Chain) attempt(ctx context.Context, p Provider, req ChatRequest) (ChatResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return p.Chat(ctx, req)
}

func (c *Chain) observe(provider, outcome string) {
	if c.observer != nil {
		c.observer.RecordProviderAttempt(provider, outcome)
	}
}
