package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, chain order: %v\n", len(cfg.Providers), cfg.Chain.Order)
			fmt.Fprintf(out, "Repair: max_iterations=%d, verify_command=%q\n", cfg.Repair.MaxIterations, cfg.Repair.VerifyCommand)
			fmt.Fprintf(out, "Budget: max_tokens=%d, encoding=%s\n", cfg.Budget.MaxTokens, cfg.Budget.Encoding)
			fmt.Fprintf(out, "Retrieval enabled: %v, metrics: %v\n", cfg.Retrieve.Enabled, cfg.Server.MetricsEnabled)
			return nil
		},
	}
}
