package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codemend/codemend/internal/rpc"
	"github.com/codemend/codemend/internal/rpc/connectjson"
	repairrpc "github.com/codemend/codemend/internal/rpc/repair"
)

// NewRepairCmd streams a repair run from the daemon. The code comes from a
// file argument or stdin when the argument is "-".
func NewRepairCmd(opts *Options) *cobra.Command {
	var maxIterations int
	var outputPath string

	cmd := &cobra.Command{
		Use:   "repair <file|->",
		Short: "Run the verify/generate repair loop over a code file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			code, err := readCode(cmd, args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(code) == "" {
				return fmt.Errorf("code cannot be empty")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reqBody := rpc.RepairRequest{
				SessionID:     "cli-" + uuid.NewString(),
				Code:          code,
				MaxIterations: maxIterations,
			}

			baseURL := daemonURL(cfg.Server.Addr)
			var final *rpc.RepairEvent
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "ndjson":
				final, err = repairNDJSON(ctx, cmd, baseURL+"/repair/run", reqBody)
			default:
				final, err = repairConnect(ctx, cmd, baseURL+repairrpc.ConnectRunRepairProcedure, reqBody)
			}
			if err != nil {
				return err
			}
			if final == nil {
				return fmt.Errorf("stream ended without a terminal event")
			}

			if outputPath != "" && final.Code != "" {
				if err := os.WriteFile(outputPath, []byte(final.Code), 0o644); err != nil {
					return fmt.Errorf("write repaired code: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote repaired code to %s\n", outputPath)
			}

			if final.Status != "succeeded" {
				return fmt.Errorf("repair %s after iteration %d", final.Status, final.Iteration)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Iteration budget for this run (default: server config)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the final candidate code to this file")
	return cmd
}

func readCode(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", arg, err)
	}
	return string(data), nil
}

func repairNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.RepairRequest) (*rpc.RepairEvent, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var final *rpc.RepairEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var evt rpc.RepairEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		renderRepairEvent(cmd, evt)
		if evt.Done {
			final = &evt
		}
	}
	return final, scanner.Err()
}

func repairConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.RepairRequest) (*rpc.RepairEvent, error) {
	client := connect.NewClient[rpc.RepairStreamRequest, rpc.RepairEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	if err := stream.Send(&rpc.RepairStreamRequest{Run: &reqBody}); err != nil {
		return nil, err
	}

	// propagate cancellation to the daemon.
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.RepairStreamRequest{Cancel: true, SessionID: reqBody.SessionID})
		_ = stream.CloseRequest()
	}()

	var final *rpc.RepairEvent
	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		renderRepairEvent(cmd, *evt)
		if evt.Done {
			final = evt
		}
	}
	_ = stream.CloseRequest()
	return final, stream.CloseResponse()
}

func renderRepairEvent(cmd *cobra.Command, evt rpc.RepairEvent) {
	out := cmd.OutOrStdout()
	switch evt.Type {
	case "verify":
		status := "fail"
		if evt.Passed {
			status = "pass"
		}
		fmt.Fprintf(out, "[verify %d] %s\n", evt.Iteration, status)
		if len(evt.Failing) > 0 {
			fmt.Fprintf(out, "Failing: %s\n", strings.Join(evt.Failing, ", "))
		}
		if !evt.Passed && evt.Diagnostic != "" {
			fmt.Fprintln(out, evt.Diagnostic)
		}
	case "generate":
		fmt.Fprintf(out, "[generate %d] candidate from %s\n", evt.Iteration, evt.Provider)
	case "done":
		fmt.Fprintf(out, "[%s] iteration %d\n", evt.Status, evt.Iteration)
		if evt.Code != "" {
			fmt.Fprintln(out, evt.Code)
		}
	case "error":
		fmt.Fprintf(out, "[aborted] %s\n", evt.Error)
	}
}
