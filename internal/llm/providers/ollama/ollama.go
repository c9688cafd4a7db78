package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codemend/codemend/internal/llm"
)

// Provider implements a minimal Ollama chat client for local inference.
type Provider struct {
	name        string
	client      *http.Client
	probeClient *http.Client
	baseURL     string
	model       string
}

// NewProvider constructs an Ollama provider.
func NewProvider(name, baseURL, model string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if model == "" {
		model = "llama3"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Provider{
		name:   name,
		client: &http.Client{Timeout: timeout},
		// Availability probes must be cheap: a down daemon should fail fast,
		// not burn the full request timeout.
		probeClient: &http.Client{Timeout: 2 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
	}
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Available probes the local daemon. The answer is valid only for the
// current dispatch; the daemon can be stopped or started between calls.
func (p *Provider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	res, err := p.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return res.StatusCode < 300
}

// Chat executes a non-streaming chat completion.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	body := chatRequest{
		Model:    p.model,
		Messages: toWireMessages(req.Messages),
		Stream:   false,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(httpReq)
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return llm.ChatResponse{}, fmt.Errorf("ollama: status %d: %s", res.StatusCode, string(b))
	}

	var resp chatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return llm.ChatResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return llm.ChatResponse{
		Content:      resp.Message.Content,
		FinishReason: "stop",
		ProviderName: p.name,
		Model:        p.model,
	}, nil
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []wireMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func toWireMessages(msgs []llm.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
