package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codemend/codemend/internal/rpc"
)

// NewChatCmd sends a single chat turn to the daemon.
func NewChatCmd(opts *Options) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat \"<message>\"",
		Short: "Send a chat message to the daemon and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			message := args[0]
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("message cannot be empty")
			}
			if sessionID == "" {
				sessionID = "cli-" + uuid.NewString()
			}

			data, err := json.Marshal(rpc.ChatRequest{SessionID: sessionID, Message: message})
			if err != nil {
				return err
			}

			url := daemonURL(cfg.Server.Addr) + "/chat"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(data))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusServiceUnavailable {
				return fmt.Errorf("no backend available")
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("daemon returned status %d", resp.StatusCode)
			}

			var out rpc.ChatResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to continue a conversation")
	return cmd
}
