// Package cli implements the adsctl command surface. Commands are thin:
// they parse flags, load configuration, and hand off to the planner,
// guardrail, approval, and apply packages.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/config"
)

const (
	// Version is the current version of adsctl
	Version = "1.1.0"
)

// GlobalFlags holds the flag state shared by all subcommands.
type GlobalFlags struct {
	ConfigDir string
	Debug     bool
}

// GlobalConfig is the shared flag instance.
var GlobalConfig = &GlobalFlags{}

// NewRootCommand creates the root cobra command for adsctl.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adsctl",
		Short: "adsctl - staged change plans for advertising accounts",
		Long: `adsctl builds reviewable change plans from account snapshots and applies
them under guardrails. Every mutation goes through the same pipeline:
snapshot, deterministic rules, guardrail validation, human approval, and
a precondition-checked apply with a full audit trail.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.adsctl)")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewPlansCommand())
	cmd.AddCommand(NewShowCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewApproveCommand())
	cmd.AddCommand(NewApplyCommand())
	cmd.AddCommand(NewExecutionsCommand())
	cmd.AddCommand(NewExecutionCommand())
	cmd.AddCommand(NewCredentialCommand())

	return cmd
}

// GetConfigDir returns the configuration directory path.
// Priority order: 1) ADSCTL_CONFIG_DIR env var (for testing), 2) --config-dir
// flag, 3) ~/.adsctl
func GetConfigDir() string {
	if envDir := os.Getenv("ADSCTL_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir != "" {
		return GlobalConfig.ConfigDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return config.AdsctlDir
	}
	return filepath.Join(homeDir, config.AdsctlDir)
}

// loadToolConfig loads the persistent tool configuration, pointing the user
// at `adsctl init` when it does not exist yet.
func loadToolConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(GetConfigDir())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
