package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/codemend/codemend/internal/rpc"
)

// NewStatusCmd queries provider availability from the daemon.
func NewStatusCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current provider availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			url := daemonURL(cfg.Server.Addr) + "/providers"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 300 {
				return fmt.Errorf("daemon returned status %d", resp.StatusCode)
			}

			var out rpc.StatusResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			for _, p := range out.Providers {
				state := "unavailable"
				if p.Available {
					state = "available"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", p.Name, state)
			}
			return nil
		},
	}
}
