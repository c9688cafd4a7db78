package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codemend/codemend/internal/llm"
	"github.com/codemend/codemend/internal/observability"
	"github.com/codemend/codemend/internal/rpc"
)

// Chatter is the slice of the agent the chat endpoints need.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
	ProviderStatus(ctx context.Context) []llm.ProviderStatus
}

// Handler serves the unary chat endpoint.
type Handler struct {
	agent   Chatter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler constructs a chat handler.
func NewHandler(agent Chatter, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{agent: agent, metrics: metrics, logger: logger}
}

// ServeHTTP handles POST /chat.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpc.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("http", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = "sess-" + uuid.NewString()
	}

	start := time.Now()
	reply, err := h.agent.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		var exhausted *llm.ExhaustedError
		if errors.As(err, &exhausted) {
			h.metrics.RecordChat("unavailable", time.Since(start))
			http.Error(w, "no backend available", http.StatusServiceUnavailable)
			return
		}
		h.metrics.RecordChat("error", time.Since(start))
		h.logger.Warn("chat failed", zap.String("session", req.SessionID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.metrics.RecordChat("ok", time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpc.ChatResponse{SessionID: req.SessionID, Reply: reply})
}

// StatusHandler serves GET /providers with current backend availability.
type StatusHandler struct {
	agent Chatter
}

// NewStatusHandler constructs a provider status handler.
func NewStatusHandler(agent Chatter) *StatusHandler {
	return &StatusHandler{agent: agent}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses := h.agent.ProviderStatus(r.Context())
	out := rpc.StatusResponse{Providers: make([]rpc.ProviderStatus, 0, len(statuses))}
	for _, s := range statuses {
		out.Providers = append(out.Providers, rpc.ProviderStatus{Name: s.Name, Available: s.Available})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
