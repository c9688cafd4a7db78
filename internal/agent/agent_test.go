package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codemend/codemend/internal/budget"
	"github.com/codemend/codemend/internal/config"
	"github.com/codemend/codemend/internal/llm"
	llmmock "github.com/codemend/codemend/internal/llm/mock"
	"github.com/codemend/codemend/internal/repair"
	"github.com/codemend/codemend/internal/retrieve"
	"github.com/codemend/codemend/internal/verify"
)

type byteTokenizer struct{}

func (byteTokenizer) Count(text string) int { return len(text) }
func (byteTokenizer) Truncate(text string, maxTokens int) (string, int) {
	if maxTokens <= 0 {
		return "", 0
	}
	if len(text) <= maxTokens {
		return text, len(text)
	}
	return text[:maxTokens], maxTokens
}

type stubRetriever struct {
	snippets []retrieve.Snippet
	queries  []string
}

func (r *stubRetriever) Retrieve(query string, k int) []retrieve.Snippet {
	r.queries = append(r.queries, query)
	return r.snippets
}

type passOracle struct{ calls int }

func (o *passOracle) Run(ctx context.Context, code string) (verify.Result, error) {
	o.calls++
	return verify.Result{Passed: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Budget:   config.BudgetConfig{MaxTokens: 100000, Encoding: "cl100k_base"},
		Repair:   config.RepairConfig{MaxIterations: 3, VerifyCommand: "true", VerifyTimeoutSeconds: 30},
		Retrieve: config.RetrieveConfig{Enabled: true, TopK: 3},
		Agent:    config.AgentConfig{HistoryLimit: 6, SessionCacheSize: 8, MaxReplyTokens: 256},
	}
}

func newTestAgent(t *testing.T, provider *llmmock.Provider, retriever Retriever, oracle verify.Oracle, cfg *config.Config) *Agent {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	chain := llm.NewChain([]llm.Provider{provider}, 0, nil)
	a, err := New(chain, budget.NewManager(byteTokenizer{}), retriever, oracle, cfg, nil)
	require.NoError(t, err)
	return a
}

func TestChatKeepsSessionHistory(t *testing.T) {
	t.Parallel()

	callCount := 0
	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		callCount++
		if callCount == 1 {
			require.Len(t, req.Messages, 2) // system + user
			return llm.ChatResponse{Content: "first answer"}, nil
		}
		require.Len(t, req.Messages, 4) // system + prior turn + new user
		require.Equal(t, "first answer", req.Messages[2].Content)
		return llm.ChatResponse{Content: "second answer"}, nil
	}}

	a := newTestAgent(t, provider, nil, &passOracle{}, nil)

	out, err := a.Chat(context.Background(), "s1", "hello")
	require.NoError(t, err)
	require.Equal(t, "first answer", out)

	out, err = a.Chat(context.Background(), "s1", "and then?")
	require.NoError(t, err)
	require.Equal(t, "second answer", out)
}

func TestChatSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		require.Len(t, req.Messages, 2, "fresh session must not see another session's history")
		return llm.ChatResponse{Content: "ok"}, nil
	}}

	a := newTestAgent(t, provider, nil, &passOracle{}, nil)
	_, err := a.Chat(context.Background(), "a", "hi")
	require.NoError(t, err)
	_, err = a.Chat(context.Background(), "b", "hi")
	require.NoError(t, err)
}

func TestChatInjectsRetrievedSnippets(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{snippets: []retrieve.Snippet{
		{Path: "billing.go", Score: 0.9, Content: "func Charge() {}"},
		{Path: "util.go", Score: 0.2, Content: "func Helper() {}"},
	}}

	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		require.Len(t, req.Messages, 4) // system + 2 snippets + user
		require.Contains(t, req.Messages[1].Content, "util.go", "least relevant snippet comes first")
		require.Contains(t, req.Messages[2].Content, "billing.go")
		return llm.ChatResponse{Content: "answer"}, nil
	}}

	a := newTestAgent(t, provider, retriever, &passOracle{}, nil)
	_, err := a.Chat(context.Background(), "s", "how does billing work")
	require.NoError(t, err)
	require.Equal(t, []string{"how does billing work"}, retriever.queries)
}

func TestChatRetrieverDisabledByConfig(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{snippets: []retrieve.Snippet{{Path: "x", Content: "y"}}}
	cfg := testConfig()
	cfg.Retrieve.Enabled = false

	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		require.Len(t, req.Messages, 2)
		return llm.ChatResponse{Content: "ok"}, nil
	}}

	a := newTestAgent(t, provider, retriever, &passOracle{}, cfg)
	_, err := a.Chat(context.Background(), "s", "hi")
	require.NoError(t, err)
	require.Empty(t, retriever.queries)
}

func TestChatEmptyMessageRejected(t *testing.T) {
	t.Parallel()

	a := newTestAgent(t, &llmmock.Provider{}, nil, &passOracle{}, nil)
	_, err := a.Chat(context.Background(), "s", "   ")
	require.Error(t, err)
}

func TestChatSurfacesChainExhaustion(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{AvailableFn: func(ctx context.Context) bool { return false }}
	a := newTestAgent(t, provider, nil, &passOracle{}, nil)

	_, err := a.Chat(context.Background(), "s", "hi")
	var exhausted *llm.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
}

func TestChatHistoryLimitApplies(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{Content: "ok"}, nil
	}}
	a := newTestAgent(t, provider, nil, &passOracle{}, nil)

	for i := 0; i < 10; i++ {
		_, err := a.Chat(context.Background(), "s", "turn")
		require.NoError(t, err)
	}

	s := a.ensureSession("s")
	require.LessOrEqual(t, len(a.sessionHistory(s)), 6)
}

func TestRepairDelegatesToLoop(t *testing.T) {
	t.Parallel()

	oracle := &passOracle{}
	provider := &llmmock.Provider{}
	a := newTestAgent(t, provider, nil, oracle, nil)

	out := a.Repair(context.Background(), "fine code", 0)
	require.Equal(t, repair.StatusSucceeded, out.Status)
	require.Equal(t, "fine code", out.Code)
	require.Equal(t, 1, oracle.calls)
	require.Zero(t, provider.ChatCalls)
}

type failThenPassOracle struct {
	diagnostic string
	calls      int
}

func (o *failThenPassOracle) Run(ctx context.Context, code string) (verify.Result, error) {
	o.calls++
	if o.calls == 1 {
		return verify.Result{Passed: false, Diagnostic: o.diagnostic}, nil
	}
	return verify.Result{Passed: true}, nil
}

func TestRepairPromptBoundedByBudget(t *testing.T) {
	t.Parallel()

	// A sprawling diagnostic must be squeezed under the token ceiling
	// before it reaches the provider, same as chat context.
	oracle := &failThenPassOracle{diagnostic: strings.Repeat("assert add(2,3)==5 failed at line 42\n", 500)}

	var captured [][]llm.Message
	provider := &llmmock.Provider{NameValue: "groq", ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		captured = append(captured, req.Messages)
		return llm.ChatResponse{Content: "fixed", ProviderName: "groq"}, nil
	}}

	cfg := testConfig()
	cfg.Budget.MaxTokens = 600
	a := newTestAgent(t, provider, nil, oracle, cfg)

	out := a.Repair(context.Background(), "broken", 0)
	require.Equal(t, repair.StatusSucceeded, out.Status)
	require.Len(t, captured, 1)

	budgeter := budget.NewManager(byteTokenizer{})
	msgs := captured[0]
	require.LessOrEqual(t, budgeter.CountContextTokens(msgs), cfg.Budget.MaxTokens)
	require.Contains(t, msgs[len(msgs)-1].Content, "[truncated]")
}

func TestRepairPromptCarriesDiagnosticAndCode(t *testing.T) {
	t.Parallel()

	msgs := buildRepairPrompt("def add(a,b): return a-b", "assert add(2,3)==5 failed")
	require.Len(t, msgs, 2)
	require.Equal(t, llm.RoleSystem, msgs[0].Role)
	require.Contains(t, msgs[1].Content, "assert add(2,3)==5 failed")
	require.Contains(t, msgs[1].Content, "def add(a,b): return a-b")
}

func TestRepairPromptEmptyDiagnostic(t *testing.T) {
	t.Parallel()

	msgs := buildRepairPrompt("code", "  ")
	require.Contains(t, msgs[1].Content, "(no diagnostic output)")
}

func TestProviderStatusPassthrough(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{NameValue: "groq"}
	a := newTestAgent(t, provider, nil, &passOracle{}, nil)

	status := a.ProviderStatus(context.Background())
	require.Equal(t, []llm.ProviderStatus{{Name: "groq", Available: true}}, status)
}

func TestSystemPromptOverride(t *testing.T) {
	t.Parallel()

	require.Contains(t, buildSystemPrompt(""), "Codemend")
	require.Equal(t, "custom", buildSystemPrompt("custom"))
}
