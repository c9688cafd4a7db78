package repair

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codemend/codemend/internal/agent"
	"github.com/codemend/codemend/internal/repair"
	"github.com/codemend/codemend/internal/rpc"
	"github.com/codemend/codemend/internal/verify"
)

// Runner executes a repair run and yields streamed events.
type Runner interface {
	Run(r *http.Request, req rpc.RepairRequest) (<-chan rpc.RepairEvent, error)
}

// AgentRunner bridges the agent core to RPC events.
type AgentRunner struct {
	Agent   *agent.Agent
	Metrics interface {
		RecordRepair(status string, iterations int, duration time.Duration)
	}
	Logger *zap.Logger
}

// Run drives the repair loop and translates its progress callbacks into a
// buffered event stream. The channel closes after the terminal done or
// error event.
func (r *AgentRunner) Run(reqCtx *http.Request, req rpc.RepairRequest) (<-chan rpc.RepairEvent, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("code must not be empty")
	}

	out := make(chan rpc.RepairEvent, 16)
	go func() {
		defer close(out)
		start := time.Now()

		ctx := context.Background()
		if reqCtx != nil {
			ctx = reqCtx.Context()
		}

		// A slow or vanished consumer must never wedge the run goroutine:
		// every send races the request context.
		send := func(evt rpc.RepairEvent) {
			select {
			case out <- evt:
			case <-ctx.Done():
			}
		}

		if r.Agent == nil {
			send(rpc.RepairEvent{Type: "error", SessionID: req.SessionID, Error: "agent unavailable", Done: true})
			return
		}

		onVerify := func(iteration int, res verify.Result) {
			evt := rpc.RepairEvent{
				Type:       "verify",
				SessionID:  req.SessionID,
				Iteration:  iteration,
				Passed:     res.Passed,
				Diagnostic: res.Diagnostic,
			}
			if !res.Passed {
				evt.Summary, evt.Failing = verify.Summarize(res.Diagnostic)
			}
			send(evt)
		}
		onGenerate := func(iteration int, provider, candidate string) {
			send(rpc.RepairEvent{
				Type:      "generate",
				SessionID: req.SessionID,
				Iteration: iteration,
				Provider:  provider,
				Candidate: candidate,
			})
		}

		outcome := r.Agent.RepairStream(ctx, req.Code, req.MaxIterations, onVerify, onGenerate)

		if r.Metrics != nil {
			r.Metrics.RecordRepair(string(outcome.Status), outcome.Iteration, time.Since(start))
		}
		if r.Logger != nil {
			r.Logger.Info("repair run finished",
				zap.String("session", req.SessionID),
				zap.String("status", string(outcome.Status)),
				zap.Int("iteration", outcome.Iteration))
		}

		if outcome.Status == repair.StatusAborted {
			evt := rpc.RepairEvent{
				Type:      "error",
				SessionID: req.SessionID,
				Iteration: outcome.Iteration,
				Status:    string(outcome.Status),
				Code:      outcome.Code,
				Done:      true,
			}
			if outcome.Err != nil {
				evt.Error = outcome.Err.Error()
			}
			send(evt)
			return
		}

		send(rpc.RepairEvent{
			Type:       "done",
			SessionID:  req.SessionID,
			Iteration:  outcome.Iteration,
			Status:     string(outcome.Status),
			Code:       outcome.Code,
			Diagnostic: outcome.Diagnostic,
			Done:       true,
		})
	}()
	return out, nil
}
