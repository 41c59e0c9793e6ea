package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/apply"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/report"
	"github.com/adsctl/adsctl/pkg/storage"
	"github.com/adsctl/adsctl/pkg/validation"
)

// ExecutionsListFlags holds the flags for the executions list command
type ExecutionsListFlags struct {
	Limit  int
	Offset int
	Plan   string
	State  string
	Since  string
}

// ExecutionDetailFlags holds the flags for the execution detail command
type ExecutionDetailFlags struct {
	JSON     bool
	Markdown bool
	Delete   bool
}

// NewExecutionsCommand creates the apply-history listing command
func NewExecutionsCommand() *cobra.Command {
	flags := &ExecutionsListFlags{}

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List apply-run history",
		Long:  `List recorded apply runs with pagination and filtering options.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecutionsList(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "Maximum number of runs to display")
	cmd.Flags().IntVar(&flags.Offset, "offset", 0, "Number of runs to skip")
	cmd.Flags().StringVar(&flags.Plan, "plan", "", "Filter by plan id")
	cmd.Flags().StringVar(&flags.State, "state", "", "Filter by state (PENDING, VALIDATING, EXECUTING, COMPLETED, ABORTED)")
	cmd.Flags().StringVar(&flags.Since, "since", "", "Filter by date (e.g., 7d, 24h, 2026-08-05)")

	return cmd
}

// NewExecutionCommand creates the apply-run detail command
func NewExecutionCommand() *cobra.Command {
	flags := &ExecutionDetailFlags{}

	cmd := &cobra.Command{
		Use:   "execution <apply-id>",
		Short: "Display detailed apply-run information",
		Long:  `Display the full audit record for one apply run, including per-operation outcomes and captured live state.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecutionDetail(cmd, args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the run as JSON")
	cmd.Flags().BoolVar(&flags.Markdown, "markdown", false, "Output the run as a markdown report")
	cmd.Flags().BoolVar(&flags.Delete, "delete", false, "Remove the run and its operation results from the apply history")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown", "delete")

	return cmd
}

func runExecutionsList(cmd *cobra.Command, flags *ExecutionsListFlags) error {
	repo, err := newApplyRepository()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	options := storage.ListOptions{
		Limit:  flags.Limit,
		Offset: flags.Offset,
	}

	if flags.Plan != "" {
		if !validation.IsValidIdentifier(flags.Plan) {
			return fmt.Errorf("invalid plan id: %q", flags.Plan)
		}
		planID := types.PlanID(flags.Plan)
		options.PlanID = &planID
	}

	if flags.State != "" {
		state := strings.ToUpper(flags.State)
		switch apply.State(state) {
		case apply.StatePending, apply.StateValidating, apply.StateExecuting, apply.StateCompleted, apply.StateAborted:
		default:
			return fmt.Errorf("invalid state: %s (valid: PENDING, VALIDATING, EXECUTING, COMPLETED, ABORTED)", flags.State)
		}
		options.State = &state
	}

	if flags.Since != "" {
		startedAfter, err := parseSinceFlag(flags.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		options.StartedAfter = &startedAfter
	}

	result, err := repo.List(options)
	if err != nil {
		return fmt.Errorf("failed to list apply runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(result.Runs) == 0 {
		_, _ = fmt.Fprintln(out, "No apply runs found.")
		return nil
	}

	printRunsTable(cmd, result)

	if result.TotalCount > len(result.Runs) {
		showing := flags.Offset + len(result.Runs)
		_, _ = fmt.Fprintf(out, "\nShowing %d-%d of %d total runs\n", flags.Offset+1, showing, result.TotalCount)
	}

	return nil
}

func runExecutionDetail(cmd *cobra.Command, applyID string, flags *ExecutionDetailFlags) error {
	// User-supplied; reject anything outside the identifier character set
	// before it reaches storage.
	if !validation.IsValidIdentifier(applyID) {
		return fmt.Errorf("invalid apply id: %q", applyID)
	}

	repo, err := newApplyRepository()
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	if flags.Delete {
		if err := repo.Delete(types.ApplyID(applyID)); err != nil {
			return fmt.Errorf("failed to delete apply run: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Apply run %s removed from history\n", applyID)
		return nil
	}

	run, err := repo.Load(types.ApplyID(applyID))
	if err != nil {
		return fmt.Errorf("failed to load apply run: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case flags.JSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(run)
	case flags.Markdown:
		_, _ = fmt.Fprint(out, report.ApplyMarkdown(run))
		return nil
	default:
		printRunDetail(cmd, run)
		return nil
	}
}

func newApplyRepository() (*storage.SQLiteApplyRepository, error) {
	cfg, err := loadToolConfig()
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteApplyRepositoryWithPath(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open apply history: %w", err)
	}
	return repo, nil
}

// printRunsTable displays apply runs in a formatted table
func printRunsTable(cmd *cobra.Command, result *storage.ListResult) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%-42s %-28s %-12s %-10s %s\n",
		"APPLY", "PLAN", "STATE", "DURATION", "STARTED")
	_, _ = fmt.Fprintln(out, strings.Repeat("-", 110))

	for _, run := range result.Runs {
		_, _ = fmt.Fprintf(out, "%-42s %-28s %-22s %-10s %s\n",
			truncateString(string(run.ApplyID), 40),
			truncateString(string(run.PlanID), 26),
			colorizeState(run.State),
			formatRunDuration(run.StartedUTC, run.FinishedUTC),
			run.StartedUTC.Format("2006-01-02 15:04"))
	}
}

// printRunDetail displays the full per-operation record of one run
func printRunDetail(cmd *cobra.Command, run *apply.Report) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Apply run: %s\n", color.CyanString(string(run.ApplyID)))
	_, _ = fmt.Fprintf(out, "Plan: %s (snapshot %s, mode %s)\n", run.PlanID, run.SnapshotID, run.Mode)
	_, _ = fmt.Fprintf(out, "State: %s\n", colorizeState(string(run.State)))
	if run.AbortReason != "" {
		_, _ = fmt.Fprintf(out, "Abort reason: %s\n", color.RedString(run.AbortReason))
	}
	_, _ = fmt.Fprintf(out, "Started: %s\n", run.StartedUTC.Format("2006-01-02 15:04:05"))
	if !run.FinishedUTC.IsZero() {
		_, _ = fmt.Fprintf(out, "Finished: %s\n", run.FinishedUTC.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(out, "Duration: %s\n", formatDurationValue(run.FinishedUTC.Sub(run.StartedUTC)))
	}
	_, _ = fmt.Fprintln(out)

	if len(run.Results) == 0 {
		_, _ = fmt.Fprintln(out, "No operations were dispatched.")
		return
	}

	_, _ = fmt.Fprintln(out, "Operations:")
	for _, res := range run.Results {
		symbol := outcomeSymbol(res.Outcome)
		_, _ = fmt.Fprintf(out, "  %s %-22s %-28s %s\n",
			symbol, res.OpID, truncateString(string(res.EntityRef), 26), res.Outcome)
		if res.Reason != "" {
			_, _ = fmt.Fprintf(out, "      Reason: %s\n", res.Reason)
		}
		if res.Error != "" {
			_, _ = fmt.Fprintf(out, "      %s\n", color.RedString("Error: %s", res.Error))
		}
		for _, d := range res.Detail {
			_, _ = fmt.Fprintf(out, "      %s\n", d)
		}
	}
}

// parseSinceFlag parses the --since flag into a time.Time
// Supports formats: "7d" (7 days), "24h" (24 hours), "2026-08-05" (date)
func parseSinceFlag(since string) (time.Time, error) {
	now := time.Now()

	if strings.HasSuffix(since, "d") {
		var d int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &d); err == nil {
			return now.AddDate(0, 0, -d), nil
		}
	}
	if strings.HasSuffix(since, "h") {
		var h int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &h); err == nil {
			return now.Add(-time.Duration(h) * time.Hour), nil
		}
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, since); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format (use: 7d, 24h, or 2026-08-05)")
}

func colorizeState(state string) string {
	switch apply.State(state) {
	case apply.StateCompleted:
		return color.GreenString(state)
	case apply.StateAborted:
		return color.RedString(state)
	case apply.StateExecuting, apply.StateValidating:
		return color.YellowString(state)
	default:
		return state
	}
}

func outcomeSymbol(outcome apply.Outcome) string {
	switch outcome {
	case apply.OutcomeApplied:
		return color.GreenString("✓")
	case apply.OutcomeFailed:
		return color.RedString("✗")
	case apply.OutcomeSkipped:
		return color.YellowString("○")
	case apply.OutcomeAborted:
		return color.RedString("○")
	default:
		return " "
	}
}

// formatRunDuration returns a formatted duration for a run row
func formatRunDuration(started, finished time.Time) string {
	if finished.IsZero() {
		return "-"
	}
	return formatDurationValue(finished.Sub(started))
}

// formatDurationValue formats a duration value
func formatDurationValue(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
