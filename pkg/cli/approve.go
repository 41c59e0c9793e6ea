package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/guardrail"
	"github.com/adsctl/adsctl/pkg/storage"
)

// ApproveFlags holds the flags for the approve command
type ApproveFlags struct {
	Ops     []string
	By      string
	Notes   string
	Promote bool
}

// NewApproveCommand creates the approve command
func NewApproveCommand() *cobra.Command {
	flags := &ApproveFlags{}

	cmd := &cobra.Command{
		Use:   "approve <plan-id|plan.json>",
		Short: "Approve a plan or individual operations",
		Long: `Record a plan-level approval, per-operation approvals, or both.

Without --op the plan-level approval is recorded. Operations listed in the
plan's approval-required set each need their own --op approval before the
plan can be applied. Approvals bind to the plan revision they were granted
at; revising the plan invalidates them.

The approver identity comes from --by, falling back to the identity stored
with 'adsctl credential set-approver'.

Examples:
  # Plan-level approval, then arm for execution
  adsctl approve plan-20260829-120000 --promote

  # Approve two flagged operations
  adsctl approve plan-20260829-120000 --op op-003-9f2c11aa04de --op op-007-77ab12cd34ef`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringArrayVar(&flags.Ops, "op", nil, "Operation id to approve (repeatable)")
	cmd.Flags().StringVar(&flags.By, "by", "", "Approver identity (default: stored approver)")
	cmd.Flags().StringVar(&flags.Notes, "notes", "", "Approval notes")
	cmd.Flags().BoolVar(&flags.Promote, "promote", false, "Promote the plan to APPLY mode after approving")

	return cmd
}

func runApprove(cmd *cobra.Command, planArg string, flags *ApproveFlags) error {
	p, err := loadPlanArg(planArg)
	if err != nil {
		return err
	}

	by := flags.By
	if by == "" {
		identity, err := storage.NewKeyringCredentialStore().Approver()
		if err != nil {
			return fmt.Errorf("no approver identity: pass --by or run: adsctl credential set-approver --email <email>")
		}
		by = identity.Email
	}

	now := time.Now().UTC()
	out := cmd.OutOrStdout()

	if len(flags.Ops) > 0 {
		for _, opID := range flags.Ops {
			if err := p.ApproveOperation(types.OpID(opID), by, flags.Notes, now); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "✓ Operation %s approved by %s\n", opID, by)
		}
	} else {
		// Surface violations before recording a plan-level approval: an
		// approval cannot make an unsafe plan applyable.
		if violations := guardrail.Validate(p); len(violations) > 0 {
			return fmt.Errorf("plan %s has %d guardrail violation(s); run: adsctl validate %s", p.PlanID, len(violations), p.PlanID)
		}
		if err := p.Approve(by, flags.Notes, now); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "✓ Plan %s approved by %s (revision %d)\n", p.PlanID, by, p.Revision)
	}

	if flags.Promote {
		if err := p.PromoteToApply(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "✓ Plan %s promoted to APPLY mode\n", p.PlanID)
	}

	store, err := newPlanStore()
	if err != nil {
		return err
	}
	if err := store.Save(p); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	if pending := pendingApprovals(p); len(pending) > 0 {
		_, _ = fmt.Fprintf(out, "\n%d operation(s) still awaiting approval:\n", len(pending))
		for _, id := range pending {
			_, _ = fmt.Fprintf(out, "  - %s\n", id)
		}
	}
	return nil
}

// pendingApprovals lists the operations still lacking a current approval.
func pendingApprovals(p *plan.Plan) []types.OpID {
	var pending []types.OpID
	for _, id := range p.Approvals.OperationsRequiringApproval {
		if !p.Approvals.OperationApproved(id, p.Revision) {
			pending = append(pending, id)
		}
	}
	return pending
}
