package groq

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codemend/codemend/internal/llm"
)

func TestChat(t *testing.T) {
	t.Parallel()

	p := NewProvider("groq", "http://mock", "key", "llama-test", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "llama-test", body["model"])

			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body: io.NopCloser(strings.NewReader(
					`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)),
			}, nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestChatErrorStatus(t *testing.T) {
	t.Parallel()

	p := NewProvider("groq", "http://mock", "key", "", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(`{"error":"rate limit"}`)),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{})
	require.ErrorContains(t, err, "status 429")
}

func TestAvailableRequiresKey(t *testing.T) {
	t.Parallel()

	require.False(t, NewProvider("groq", "", "", "", 0).Available(context.Background()))
	require.False(t, NewProvider("groq", "", "  ", "", 0).Available(context.Background()))
	require.True(t, NewProvider("groq", "", "key", "", 0).Available(context.Background()))
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
