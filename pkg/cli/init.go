package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/config"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var cfg config.Config

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the adsctl configuration directory",
		Long: `Create the adsctl configuration directory and write the initial config file.

The directory (~/.adsctl by default) holds the config file, generated plans,
rendered reports, and the apply-history database.

Examples:
  adsctl init --account 1234567890 --snapshot-root /data/snapshots
  adsctl init --account 1234567890 --merchant 98765 --rule-config ./rules.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AccountID == "" {
				return fmt.Errorf("an account id is required (use --account)")
			}

			created, err := config.Initialize(GetConfigDir(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ Initialized adsctl configuration\n")
			_, _ = fmt.Fprintf(out, "  Location: %s\n", created.Dir())
			_, _ = fmt.Fprintln(out, "\nNext steps:")
			_, _ = fmt.Fprintln(out, "  1. Store the approver identity: adsctl credential set-approver --email you@example.com")
			_, _ = fmt.Fprintln(out, "  2. Build a plan from the latest snapshot: adsctl plan --latest")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.AccountID, "account", "", "Google Ads customer id (required)")
	cmd.Flags().StringVar(&cfg.MerchantID, "merchant", "", "Merchant Center account id")
	cmd.Flags().StringVar(&cfg.SnapshotRoot, "snapshot-root", "", "Directory holding timestamped snapshot dumps")
	cmd.Flags().StringVar(&cfg.RuleConfig, "rule-config", "", "Path to the rule configuration YAML")
	cmd.Flags().IntVar(&cfg.OpTimeoutSeconds, "op-timeout", 0, "Per-operation mutation timeout in seconds (0 = default)")

	return cmd
}
