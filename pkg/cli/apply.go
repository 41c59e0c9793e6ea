package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/apply"
	"github.com/adsctl/adsctl/pkg/approval"
	"github.com/adsctl/adsctl/pkg/report"
	"github.com/adsctl/adsctl/pkg/snapshot"
	"github.com/adsctl/adsctl/pkg/storage"
)

// LiveSystemFactory builds the live mutation port from stored API
// credentials. It is nil in builds without a live adapter; embedding programs
// install their own.
var LiveSystemFactory func(creds storage.AdsAPICredentials) (apply.LiveSystem, error)

// ApplyFlags holds the flags for the apply command
type ApplyFlags struct {
	Execute bool
	Yes     bool
}

// NewApplyCommand creates the apply command
func NewApplyCommand() *cobra.Command {
	flags := &ApplyFlags{}

	cmd := &cobra.Command{
		Use:   "apply <plan-id|plan.json>",
		Short: "Execute an approved plan",
		Long: `Execute an approved, promoted plan operation by operation.

Without --execute the plan is rehearsed against its source snapshot: the
full pipeline runs, including the approval gate, integrity check, and
precondition rechecks, but no external system is touched. With --execute
the same pipeline runs against the live account.

Every run that reaches the executor is recorded in the apply history,
including runs the executor itself refuses.

Examples:
  # Rehearse the approved plan against its snapshot
  adsctl apply plan-20260829-120000

  # Execute for real, with a confirmation prompt
  adsctl apply plan-20260829-120000 --execute`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Execute, "execute", false, "Execute against the live account instead of rehearsing")
	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "Skip the confirmation prompt for live execution")

	return cmd
}

func runApply(cmd *cobra.Command, planArg string, flags *ApplyFlags) error {
	cfg, err := loadToolConfig()
	if err != nil {
		return err
	}
	p, err := loadPlanArg(planArg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	// Check the gate up front for a readable refusal. The executor enforces
	// it again before touching anything.
	if decision := approval.Check(p); !decision.Allowed {
		_, _ = fmt.Fprintf(out, "%s\n", color.RedString("Plan %s is not applyable:", p.PlanID))
		for _, reason := range decision.Reasons {
			_, _ = fmt.Fprintf(out, "  - %s\n", reason)
		}
		return fmt.Errorf("plan %s refused by the approval gate", p.PlanID)
	}

	var sys apply.LiveSystem
	if flags.Execute {
		if LiveSystemFactory == nil {
			return fmt.Errorf("this build has no live adapter; rehearse without --execute")
		}
		var creds storage.AdsAPICredentials
		if err := storage.NewKeyringCredentialStore().GetStructured(storage.KeyAdsAPI, &creds); err != nil {
			return fmt.Errorf("no API credentials: run: adsctl credential set-ads")
		}
		sys, err = LiveSystemFactory(creds)
		if err != nil {
			return fmt.Errorf("failed to build live adapter: %w", err)
		}

		if !flags.Yes {
			_, _ = fmt.Fprintf(out, "About to execute %d operation(s) against account %s.\n",
				len(p.Operations), p.PlanContext.AccountID)
			_, _ = fmt.Fprint(out, "Continue? [y/N]: ")
			var response string
			_, _ = fmt.Fscanln(cmd.InOrStdin(), &response)
			if r := strings.ToLower(strings.TrimSpace(response)); r != "y" && r != "yes" {
				_, _ = fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}
	} else {
		snap, err := snapshot.Load(p.Sources.SnapshotDir)
		if err != nil {
			return fmt.Errorf("failed to load source snapshot for rehearsal: %w", err)
		}
		sys = apply.NewReplay(snap)
	}

	opts := apply.Options{}
	if cfg.OpTimeoutSeconds > 0 {
		opts.OpTimeout = time.Duration(cfg.OpTimeoutSeconds) * time.Second
	}

	runReport, runErr := apply.NewExecutor(sys, opts).Run(cmd.Context(), p)

	// The audit record is written no matter how the run ended.
	repo, err := storage.NewSQLiteApplyRepositoryWithPath(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open apply history: %w", err)
	}
	defer func() { _ = repo.Close() }()
	if err := repo.Save(runReport); err != nil {
		return fmt.Errorf("failed to record apply run: %w", err)
	}

	md := report.ApplyMarkdown(runReport)
	reportPath := filepath.Join(cfg.ReportsPath(), string(runReport.ApplyID)+".md")
	if err := os.WriteFile(reportPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write apply report: %w", err)
	}

	printApplySummary(cmd, runReport, flags.Execute)
	_, _ = fmt.Fprintf(out, "\nReport: %s\n", reportPath)

	return runErr
}

func printApplySummary(cmd *cobra.Command, r *apply.Report, executed bool) {
	out := cmd.OutOrStdout()
	label := "Rehearsal"
	if executed {
		label = "Apply"
	}
	state := string(r.State)
	if r.State == apply.StateCompleted {
		state = color.GreenString(state)
	} else {
		state = color.RedString(state)
	}
	_, _ = fmt.Fprintf(out, "%s %s: %s\n", label, r.ApplyID, state)
	if r.AbortReason != "" {
		_, _ = fmt.Fprintf(out, "  Abort reason: %s\n", r.AbortReason)
	}
	_, _ = fmt.Fprintf(out, "  Applied: %d  Skipped: %d  Failed: %d  Aborted: %d\n",
		r.Counts[apply.OutcomeApplied], r.Counts[apply.OutcomeSkipped],
		r.Counts[apply.OutcomeFailed], r.Counts[apply.OutcomeAborted])
}
