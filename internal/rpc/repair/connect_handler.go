package repair

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"
	"github.com/google/uuid"

	"github.com/codemend/codemend/internal/observability"
	"github.com/codemend/codemend/internal/rpc"
	"github.com/codemend/codemend/internal/rpc/connectjson"
)

const ConnectRunRepairProcedure = "/connect.repair.v1.RepairService/RunRepair"

// NewConnectHandler builds a Connect bidi stream handler for RunRepair.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectRepairHandler{runner: runner, metrics: metrics}
	return ConnectRunRepairProcedure, connect.NewBidiStreamHandler(ConnectRunRepairProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRepairHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectRepairHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.RepairStreamRequest, rpc.RepairEvent]) error {
	if h.metrics != nil {
		h.metrics.IncActiveSessions("connect")
		defer h.metrics.DecActiveSessions("connect")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "receive_first")
		}
		return err
	}
	if first == nil || first.Run == nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "missing_run")
		}
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include run payload"))
	}

	req := *first.Run
	if req.SessionID == "" {
		req.SessionID = "repair-" + uuid.NewString()
	}

	// Client-side cancel messages stop the loop between iterations.
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				if h.metrics != nil && !errors.Is(recvErr, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	httpReq := (&http.Request{}).WithContext(ctx)

	events, runErr := h.runner.Run(httpReq, req)
	if runErr != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "runner_error")
		}
		return connect.NewError(connect.CodeInvalidArgument, runErr)
	}

	for ev := range events {
		if err := stream.Send(&ev); err != nil {
			if h.metrics != nil {
				h.metrics.RecordTransportError("connect", "send")
			}
			return err
		}
	}
	return nil
}
