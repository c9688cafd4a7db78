// Package repair drives the bounded verify/generate loop that converges
// failing code toward a verified-passing state.
package repair

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codemend/codemend/internal/llm"
	"github.com/codemend/codemend/internal/verify"
)

// Status is the terminal state of a repair session.
type Status string

const (
	// StatusSucceeded means verification passed within the iteration budget.
	StatusSucceeded Status = "succeeded"
	// StatusExhausted means the iteration budget ran out; the last candidate
	// and diagnostic are still returned as best effort.
	StatusExhausted Status = "exhausted"
	// StatusAborted means infrastructure failed mid-loop (chain exhausted,
	// oracle broken, or deadline exceeded). Higher severity than exhausted.
	StatusAborted Status = "aborted"
)

// Attempt records one completed iteration for observability.
type Attempt struct {
	Iteration     int
	Result        verify.Result
	CandidateCode string
}

// Outcome is the result of a repair session.
type Outcome struct {
	Status     Status
	Code       string
	Iteration  int
	Diagnostic string
	Attempts   []Attempt
	Err        error
}

// Generator dispatches a repair request to a generative backend.
// *llm.Chain satisfies this.
type Generator interface {
	Respond(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
}

// PromptBuilder turns the current code and diagnostic into a repair context.
type PromptBuilder func(code, diagnostic string) []llm.Message

// Config bounds a repair loop.
type Config struct {
	MaxIterations  int
	SessionTimeout time.Duration // 0 = no overall deadline
	MaxReplyTokens int
	Temperature    float64
}

// Loop owns the verify/generate cycle. One Loop may serve concurrent
// sessions: all mutable state lives in the session created per Run call.
type Loop struct {
	generator   Generator
	oracle      verify.Oracle
	buildPrompt PromptBuilder
	cfg         Config
	logger      *zap.Logger

	// OnVerify and OnGenerate, when set, receive progress for streaming
	// transports. Set during wiring, before the loop is shared.
	OnVerify   func(iteration int, res verify.Result)
	OnGenerate func(iteration int, provider, candidate string)
}

// NewLoop constructs a repair loop.
func NewLoop(generator Generator, oracle verify.Oracle, buildPrompt PromptBuilder, cfg Config, logger *zap.Logger) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{generator: generator, oracle: oracle, buildPrompt: buildPrompt, cfg: cfg, logger: logger}
}

// Run executes the repair session on code. Iterations are strictly
// sequential: each candidate is a function of the previous diagnostic.
func (l *Loop) Run(ctx context.Context, code string) Outcome {
	if l.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.SessionTimeout)
		defer cancel()
	}

	session := &session{currentCode: code}

	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return l.aborted(session, fmt.Errorf("repair session cancelled: %w", err))
		}

		res, err := l.verifyOnce(ctx, iteration, session.currentCode)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return l.aborted(session, fmt.Errorf("repair session deadline exceeded: %w", err))
			}
			return l.aborted(session, fmt.Errorf("verification oracle: %w", err))
		}
		session.lastDiagnostic = res.Diagnostic

		if res.Passed {
			// The incoming code passing counts as the first iteration; a
			// passing candidate is credited to the generation that produced it.
			succeededAt := session.generations
			if succeededAt == 0 {
				succeededAt = 1
			}
			l.logger.Info("repair verification passed",
				zap.Int("iteration", succeededAt),
				zap.Int("generations", session.generations))
			return Outcome{
				Status:    StatusSucceeded,
				Code:      session.currentCode,
				Iteration: succeededAt,
				Attempts:  session.attempts,
			}
		}

		candidate, provider, err := l.generateOnce(ctx, iteration, session)
		if err != nil {
			return l.aborted(session, err)
		}

		session.currentCode = candidate
		session.generations++
		session.attempts = append(session.attempts, Attempt{
			Iteration:     iteration,
			Result:        res,
			CandidateCode: candidate,
		})
		l.logger.Debug("repair candidate generated",
			zap.Int("iteration", iteration),
			zap.String("provider", provider))
	}

	l.logger.Warn("repair iterations exhausted", zap.Int("max_iterations", l.cfg.MaxIterations))
	return Outcome{
		Status:     StatusExhausted,
		Code:       session.currentCode,
		Iteration:  l.cfg.MaxIterations,
		Diagnostic: session.lastDiagnostic,
		Attempts:   session.attempts,
	}
}

// session holds the mutable loop state. It lives for one Run call only and
// is never persisted.
type session struct {
	currentCode    string
	lastDiagnostic string
	generations    int
	attempts       []Attempt
}

func (l *Loop) verifyOnce(ctx context.Context, iteration int, code string) (verify.Result, error) {
	res, err := l.oracle.Run(ctx, code)
	if err != nil {
		// A verification timeout is a failed iteration with the timeout
		// message as diagnostic, not a fatal error.
		if errors.Is(err, verify.ErrTimeout) {
			res = verify.Result{Passed: false, Diagnostic: err.Error()}
			err = nil
		}
	}
	if err == nil && l.OnVerify != nil {
		l.OnVerify(iteration, res)
	}
	return res, err
}

func (l *Loop) generateOnce(ctx context.Context, iteration int, s *session) (string, string, error) {
	req := llm.ChatRequest{
		Messages:    l.buildPrompt(s.currentCode, s.lastDiagnostic),
		MaxTokens:   l.cfg.MaxReplyTokens,
		Temperature: l.cfg.Temperature,
	}

	resp, err := l.generator.Respond(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("generate fix: %w", err)
	}

	candidate := ExtractCode(resp.Content)
	if l.OnGenerate != nil {
		l.OnGenerate(iteration, resp.ProviderName, candidate)
	}
	return candidate, resp.ProviderName, nil
}

func (l *Loop) aborted(s *session, err error) Outcome {
	l.logger.Error("repair session aborted", zap.Error(err))
	return Outcome{
		Status:     StatusAborted,
		Code:       s.currentCode,
		Iteration:  s.generations,
		Diagnostic: s.lastDiagnostic,
		Attempts:   s.attempts,
		Err:        err,
	}
}
