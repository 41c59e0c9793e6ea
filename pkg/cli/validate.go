package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/approval"
	"github.com/adsctl/adsctl/pkg/guardrail"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan-id|plan.json>",
		Short: "Validate a plan against its guardrails",
		Long: `Validate a plan against its embedded guardrails and report every
violation, grouped by category.

Loading a plan file already enforces the schema and format version, so a
plan that loads but fails validation is well-formed and unsafe, not broken.

Examples:
  adsctl validate plan-20260829-120000
  adsctl validate ./exported/plan.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlanArg(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			violations := guardrail.Validate(p)
			if len(violations) > 0 {
				_, _ = fmt.Fprintf(out, "%s\n", color.RedString("Plan %s has %d guardrail violation(s):", p.PlanID, len(violations)))
				for _, v := range violations {
					_, _ = fmt.Fprintf(out, "  [%s] %s\n", v.Category, v)
				}
				return fmt.Errorf("plan %s failed guardrail validation", p.PlanID)
			}

			_, _ = fmt.Fprintf(out, "✓ Plan %s passes all guardrails\n", p.PlanID)

			// Approval status is informational here; the apply command
			// enforces it.
			if decision := approval.CanApply(p, nil); !decision.Allowed {
				_, _ = fmt.Fprintln(out, "\nNot yet applyable:")
				for _, reason := range decision.Reasons {
					_, _ = fmt.Fprintf(out, "  - %s\n", reason)
				}
			} else {
				_, _ = fmt.Fprintln(out, "Plan is approved and armed for apply.")
			}
			return nil
		},
	}
}
