// Package agent orchestrates the request pipeline: budget-bounded context
// assembly, failover dispatch, and the bounded repair loop.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/codemend/codemend/internal/budget"
	"github.com/codemend/codemend/internal/config"
	"github.com/codemend/codemend/internal/llm"
	"github.com/codemend/codemend/internal/repair"
	"github.com/codemend/codemend/internal/retrieve"
	"github.com/codemend/codemend/internal/verify"
)

// Dispatcher is the failover chain surface the agent needs. *llm.Chain
// satisfies this.
type Dispatcher interface {
	Respond(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	Status(ctx context.Context) []llm.ProviderStatus
}

// Retriever feeds ranked snippets into the fill tier. *retrieve.Engine
// satisfies this; a nil retriever simply contributes nothing.
type Retriever interface {
	Retrieve(query string, k int) []retrieve.Snippet
}

// Session stores per-session conversation history. Sessions are fully
// independent: the only state shared between them is read-only configuration.
type Session struct {
	ID      string
	History []llm.Message
}

// Agent is the orchestration entry point used by all transports. Configured
// once at construction; safe for concurrent sessions.
type Agent struct {
	chain     Dispatcher
	budgeter  *budget.Manager
	retriever Retriever
	oracle    verify.Oracle
	cfg       config.AgentConfig
	budgetCfg config.BudgetConfig
	repairCfg config.RepairConfig
	topK      int
	logger    *zap.Logger

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

// New constructs an Agent. retriever may be nil to disable retrieval.
func New(chain Dispatcher, budgeter *budget.Manager, retriever Retriever, oracle verify.Oracle, cfg *config.Config, logger *zap.Logger) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.Agent.SessionCacheSize
	if size <= 0 {
		size = 256
	}
	sessions, err := lru.New[string, *Session](size)
	if err != nil {
		return nil, fmt.Errorf("build session cache: %w", err)
	}

	topK := cfg.Retrieve.TopK
	if !cfg.Retrieve.Enabled {
		retriever = nil
	}

	return &Agent{
		chain:     chain,
		budgeter:  budgeter,
		retriever: retriever,
		oracle:    oracle,
		cfg:       cfg.Agent,
		budgetCfg: cfg.Budget,
		repairCfg: cfg.Repair,
		topK:      topK,
		logger:    logger,
		sessions:  sessions,
	}, nil
}

// Chat answers a user message within a session. The assembled context is
// system prompt, retrieved snippets, session history, then the live
// question, squeezed under the token budget before dispatch.
func (a *Agent) Chat(ctx context.Context, sessionID, userMessage string) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", fmt.Errorf("message is required")
	}

	session := a.ensureSession(sessionID)
	userMsg := llm.Message{Role: llm.RoleUser, Content: userMessage}

	messages := make([]llm.Message, 0, 8)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: buildSystemPrompt(a.cfg.SystemPrompt)})
	messages = append(messages, snippetMessages(a.retrieveSnippets(userMessage))...)
	messages = append(messages, a.sessionHistory(session)...)
	messages = append(messages, userMsg)

	limited := a.budgeter.LimitContext(messages, a.budgetCfg.MaxTokens)

	resp, err := a.chain.Respond(ctx, llm.ChatRequest{
		Messages:    limited,
		MaxTokens:   a.cfg.MaxReplyTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	a.appendHistory(session, userMsg, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
	a.logger.Debug("chat turn complete",
		zap.String("session", session.ID),
		zap.String("provider", resp.ProviderName),
		zap.Int("context_messages", len(limited)))

	return resp.Content, nil
}

// Repair runs the bounded verify/generate loop on code. maxIterations <= 0
// falls back to the configured default.
func (a *Agent) Repair(ctx context.Context, code string, maxIterations int) repair.Outcome {
	return a.newRepairLoop(maxIterations, nil, nil).Run(ctx, code)
}

// RepairStream is Repair with progress callbacks for streaming transports.
func (a *Agent) RepairStream(ctx context.Context, code string, maxIterations int,
	onVerify func(iteration int, res verify.Result),
	onGenerate func(iteration int, provider, candidate string)) repair.Outcome {
	return a.newRepairLoop(maxIterations, onVerify, onGenerate).Run(ctx, code)
}

// ProviderStatus reports current availability of each configured provider.
func (a *Agent) ProviderStatus(ctx context.Context) []llm.ProviderStatus {
	return a.chain.Status(ctx)
}

func (a *Agent) newRepairLoop(maxIterations int,
	onVerify func(int, verify.Result),
	onGenerate func(int, string, string)) *repair.Loop {
	if maxIterations <= 0 {
		maxIterations = a.repairCfg.MaxIterations
	}
	// Repair prompts go through the same token budget as chat context: a
	// sprawling diagnostic must be squeezed, never sent oversized.
	prompt := func(code, diagnostic string) []llm.Message {
		return a.budgeter.LimitContext(buildRepairPrompt(code, diagnostic), a.budgetCfg.MaxTokens)
	}
	loop := repair.NewLoop(a.chain, a.oracle, prompt, repair.Config{
		MaxIterations:  maxIterations,
		SessionTimeout: time.Duration(a.repairCfg.SessionTimeoutSeconds) * time.Second,
		MaxReplyTokens: a.cfg.MaxReplyTokens,
		Temperature:    a.cfg.Temperature,
	}, a.logger)
	loop.OnVerify = onVerify
	loop.OnGenerate = onGenerate
	return loop
}

func (a *Agent) retrieveSnippets(query string) []retrieve.Snippet {
	if a.retriever == nil || a.topK <= 0 {
		return nil
	}
	return a.retriever.Retrieve(query, a.topK)
}

func (a *Agent) ensureSession(id string) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id == "" {
		id = "sess-" + uuid.NewString()
	}
	if s, ok := a.sessions.Get(id); ok {
		return s
	}
	s := &Session{ID: id, History: make([]llm.Message, 0, 8)}
	a.sessions.Add(id, s)
	return s
}

func (a *Agent) sessionHistory(s *Session) []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]llm.Message, len(s.History))
	copy(out, s.History)
	return out
}

func (a *Agent) appendHistory(s *Session, userMsg, assistantMsg llm.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s.History = append(s.History, userMsg, assistantMsg)
	if limit := a.cfg.HistoryLimit; limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}
