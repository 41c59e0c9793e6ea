package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/config"
	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/guardrail"
	"github.com/adsctl/adsctl/pkg/planner"
	"github.com/adsctl/adsctl/pkg/report"
	"github.com/adsctl/adsctl/pkg/snapshot"
	"github.com/adsctl/adsctl/pkg/storage"
	"github.com/adsctl/adsctl/pkg/validation"
)

// PlanFlags holds the flags for the plan command
type PlanFlags struct {
	Snapshot string
	Latest   bool
	MaxOps   int
	NoReport bool
}

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	flags := &PlanFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a change plan from a snapshot",
		Long: `Build a DRY_RUN change plan by running the safety rules against an
account snapshot.

The plan is written to the plans directory and a markdown report to the
reports directory. Plans are inert until approved and promoted with
'adsctl approve'.

Examples:
  # Plan from the most recent snapshot
  adsctl plan --latest

  # Plan from a specific snapshot directory
  adsctl plan --snapshot 2026-08-29T0400

  # Cap the number of operations for a smaller first rollout
  adsctl plan --latest --max-ops 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Snapshot, "snapshot", "", "Snapshot directory name under the snapshot root")
	cmd.Flags().BoolVar(&flags.Latest, "latest", false, "Use the most recent snapshot under the snapshot root")
	cmd.Flags().IntVar(&flags.MaxOps, "max-ops", 0, "Override the total operation ceiling (0 = guardrail default)")
	cmd.Flags().BoolVar(&flags.NoReport, "no-report", false, "Skip writing the markdown report")
	cmd.MarkFlagsMutuallyExclusive("snapshot", "latest")

	return cmd
}

func runPlan(cmd *cobra.Command, flags *PlanFlags) error {
	cfg, err := loadToolConfig()
	if err != nil {
		return err
	}

	snapDir, err := resolveSnapshotDir(cfg, flags)
	if err != nil {
		return err
	}

	snap, err := snapshot.Load(snapDir)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	if cfg.RuleConfig == "" {
		return fmt.Errorf("no rule configuration set\nSet rule_config in %s or re-run: adsctl init --rule-config <path>", filepath.Join(cfg.Dir(), config.ConfigFile))
	}
	ruleCfg, err := planner.LoadConfig(cfg.RuleConfig)
	if err != nil {
		return fmt.Errorf("failed to load rule configuration: %w", err)
	}

	guardrails := plan.DefaultGuardrails()
	if flags.MaxOps > 0 {
		guardrails.MaxTotalOps = flags.MaxOps
	}

	pl, err := planner.New(ruleCfg)
	if err != nil {
		return err
	}
	p, err := pl.BuildPlan(snap, guardrails)
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}
	p.PlanContext.AccountID = cfg.AccountID
	p.PlanContext.MerchantID = cfg.MerchantID

	store, err := storage.NewPlanStoreWithPath(cfg.Dir())
	if err != nil {
		return err
	}
	if err := store.Save(p); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "✓ Plan %s built from snapshot %s\n", p.PlanID, p.SnapshotID)
	_, _ = fmt.Fprintf(out, "  Operations: %d  Findings: %d  Risk: %s\n",
		p.Summary.TotalOperations, p.Summary.TotalFindings, colorizeRisk(p.Summary.RiskScore))
	if p.Summary.RequiresApproval {
		_, _ = fmt.Fprintf(out, "  %d operation(s) require per-operation approval\n", len(p.Summary.ApprovalRequiredOps))
	}

	// Advisory validation at plan time so problems surface before review.
	if violations := guardrail.Validate(p); len(violations) > 0 {
		_, _ = fmt.Fprintf(out, "\n%s\n", color.RedString("Guardrail violations (%d):", len(violations)))
		for _, v := range violations {
			_, _ = fmt.Fprintf(out, "  - %s\n", v)
		}
	}

	if !flags.NoReport {
		reportPath := filepath.Join(cfg.ReportsPath(), string(p.PlanID)+".md")
		if err := os.WriteFile(reportPath, []byte(report.PlanMarkdown(p)), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		_, _ = fmt.Fprintf(out, "\nReport: %s\n", reportPath)
	}
	_, _ = fmt.Fprintf(out, "Review with: adsctl show %s\n", p.PlanID)

	return nil
}

// resolveSnapshotDir maps the plan flags to an on-disk snapshot directory.
// Named snapshots are validated against the snapshot root so a config typo or
// hostile name cannot read outside it.
func resolveSnapshotDir(cfg *config.Config, flags *PlanFlags) (string, error) {
	if cfg.SnapshotRoot == "" {
		return "", fmt.Errorf("no snapshot root set\nSet snapshot_root in %s or re-run: adsctl init --snapshot-root <dir>", filepath.Join(cfg.Dir(), config.ConfigFile))
	}
	if flags.Latest {
		return snapshot.Latest(cfg.SnapshotRoot)
	}
	if flags.Snapshot == "" {
		return "", fmt.Errorf("a snapshot is required (use --snapshot <dir> or --latest)")
	}
	return validation.ValidateSecurePath(cfg.SnapshotRoot, flags.Snapshot)
}

// NewPlansCommand creates the plans listing command
func NewPlansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List stored plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadToolConfig()
			if err != nil {
				return err
			}
			store, err := storage.NewPlanStoreWithPath(cfg.Dir())
			if err != nil {
				return err
			}
			plans, err := store.List()
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}
			if len(plans) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No plans found. Build one with: adsctl plan --latest")
				return nil
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%-30s %-17s %-9s %5s %6s  %s\n",
				"PLAN", "CREATED", "MODE", "OPS", "RISK", "SNAPSHOT")
			_, _ = fmt.Fprintln(out, strings.Repeat("-", 90))
			for _, p := range plans {
				_, _ = fmt.Fprintf(out, "%-30s %-17s %-9s %5d %6s  %s\n",
					p.PlanID,
					p.CreatedUTC.Format("2006-01-02 15:04"),
					colorizeMode(p.Mode),
					p.Summary.TotalOperations,
					colorizeRisk(p.Summary.RiskScore),
					p.SnapshotID)
			}
			return nil
		},
	}
}

// NewShowCommand creates the plan detail command
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id|plan.json>",
		Short: "Render a plan as a markdown review document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlanArg(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), report.PlanMarkdown(p))
			return nil
		},
	}
}

// loadPlanArg loads a plan by stored id or by explicit file path. Anything
// that looks like a path on disk is treated as one; everything else goes
// through the plan store.
func loadPlanArg(arg string) (*plan.Plan, error) {
	store, err := newPlanStore()
	if err != nil {
		return nil, err
	}
	if strings.ContainsRune(arg, os.PathSeparator) || strings.HasSuffix(arg, ".json") {
		return store.LoadFile(arg)
	}
	return store.Load(types.PlanID(arg))
}

func newPlanStore() (*storage.PlanStore, error) {
	cfg, err := loadToolConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewPlanStoreWithPath(cfg.Dir())
}

func colorizeRisk(level plan.RiskLevel) string {
	switch level {
	case plan.RiskHigh:
		return color.RedString(string(level))
	case plan.RiskMedium:
		return color.YellowString(string(level))
	case plan.RiskLow:
		return color.GreenString(string(level))
	default:
		return string(level)
	}
}

func colorizeMode(m plan.Mode) string {
	if m == plan.ModeApply {
		return color.RedString(string(m))
	}
	return string(m)
}
