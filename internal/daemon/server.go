package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"go.uber.org/zap"

	"github.com/codemend/codemend/internal/agent"
	"github.com/codemend/codemend/internal/budget"
	"github.com/codemend/codemend/internal/config"
	"github.com/codemend/codemend/internal/llm/configbuilder"
	"github.com/codemend/codemend/internal/observability"
	"github.com/codemend/codemend/internal/retrieve"
	chatrpc "github.com/codemend/codemend/internal/rpc/chat"
	repairrpc "github.com/codemend/codemend/internal/rpc/repair"
	"github.com/codemend/codemend/internal/tokenizer"
	"github.com/codemend/codemend/internal/verify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts the daemon endpoints: health/metrics, unary chat, provider
// status, and the streaming repair transports.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	agent   *agent.Agent
	runner  repairrpc.Runner
	metrics *observability.Metrics
}

// NewServer constructs a daemon instance from config.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	chain, err := configbuilder.BuildChainFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build provider chain: %w", err)
	}

	metrics := observability.NewMetrics()
	chain.SetObserver(metrics)

	tok, err := newTokenizer(cfg.Budget.Encoding, logger)
	if err != nil {
		return nil, err
	}
	budgeter := budget.NewManager(tok)

	var retriever agent.Retriever
	if cfg.Retrieve.Enabled {
		retriever = retrieve.NewEngine(cfg.Retrieve.Root, cfg.Retrieve.MaxFiles, cfg.Retrieve.MaxFileBytes, logger)
	}

	oracle := &verify.CommandOracle{
		Command:    cfg.Repair.VerifyCommand,
		WorkingDir: cfg.Repair.VerifyDir,
		TargetFile: cfg.Repair.TargetFile,
		Timeout:    time.Duration(cfg.Repair.VerifyTimeoutSeconds) * time.Second,
	}

	agentCore, err := agent.New(chain, budgeter, retriever, oracle, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}

	runner := &repairrpc.AgentRunner{Agent: agentCore, Metrics: metrics, Logger: logger}

	return &Server{cfg: cfg, logger: logger, agent: agentCore, runner: runner, metrics: metrics}, nil
}

// newTokenizer loads the configured encoding, falling back to the byte
// heuristic when the encoding tables cannot be loaded (offline hosts).
func newTokenizer(encoding string, logger *zap.Logger) (budget.Tokenizer, error) {
	counter, err := tokenizer.New(encoding)
	if err != nil {
		logger.Warn("tokenizer encoding unavailable, using byte heuristic",
			zap.String("encoding", encoding), zap.Error(err))
		return tokenizer.Heuristic{}, nil
	}
	return counter, nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle("/chat", chatrpc.NewHandler(s.agent, s.metrics, s.logger))
	mux.Handle("/providers", chatrpc.NewStatusHandler(s.agent))

	switch strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport)) {
	case "ndjson":
		mux.Handle("/repair/run", repairrpc.NewHandler(s.runner, s.metrics))
	default:
		path, handler := repairrpc.NewConnectHandler(s.runner, s.metrics)
		mux.Handle(path, handler)
		// keep legacy NDJSON path available during migration
		mux.Handle("/repair/run", repairrpc.NewHandler(s.runner, s.metrics))
	}

	handler := http.Handler(mux)
	if strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport)) != "ndjson" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting codemend daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down codemend daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
