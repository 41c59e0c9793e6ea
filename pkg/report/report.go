// Package report renders plans and apply runs as markdown for human review.
// The plan summary is the artifact a reviewer reads before approving, so it
// leads with the numbers that decide approval: operation counts, risk mix,
// and what needs a manual sign-off.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adsctl/adsctl/pkg/apply"
	"github.com/adsctl/adsctl/pkg/domain/plan"
)

// PlanMarkdown renders the reviewer-facing plan summary.
func PlanMarkdown(p *plan.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Change Plan %s\n\n", p.PlanID)
	fmt.Fprintf(&b, "- Created: %s\n", p.CreatedUTC.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Snapshot: %s\n", p.SnapshotID)
	fmt.Fprintf(&b, "- Mode: **%s**\n", p.Mode)
	fmt.Fprintf(&b, "- Revision: %d\n", p.Revision)
	if p.PlanContext.AccountID != "" {
		fmt.Fprintf(&b, "- Account: %s\n", p.PlanContext.AccountID)
	}
	if p.PlanContext.MerchantID != "" {
		fmt.Fprintf(&b, "- Merchant: %s\n", p.PlanContext.MerchantID)
	}
	b.WriteString("\n")

	s := p.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total operations: %d\n", s.TotalOperations)
	fmt.Fprintf(&b, "- Findings: %d\n", s.TotalFindings)
	fmt.Fprintf(&b, "- Risk score: %s\n", s.RiskScore)
	if s.RiskSummary != "" {
		fmt.Fprintf(&b, "- %s\n", s.RiskSummary)
	}
	b.WriteString("\n")

	if len(s.OpsByType) > 0 {
		b.WriteString("| Operation type | Count |\n|---|---|\n")
		for _, t := range sortedOpTypes(s.OpsByType) {
			fmt.Fprintf(&b, "| %s | %d |\n", t, s.OpsByType[t])
		}
		b.WriteString("\n")
	}

	if len(s.CampaignsAffected) > 0 {
		fmt.Fprintf(&b, "Campaigns affected: %s\n\n", strings.Join(s.CampaignsAffected, ", "))
	}

	if s.RequiresApproval {
		b.WriteString("## Approval required\n\n")
		fmt.Fprintf(&b, "%d operation(s) need an explicit per-operation approval before apply:\n\n",
			len(s.ApprovalRequiredOps))
		for _, id := range s.ApprovalRequiredOps {
			status := "pending"
			if p.Approvals.OperationApproved(id, p.Revision) {
				status = "approved"
			}
			fmt.Fprintf(&b, "- %s (%s)\n", id, status)
		}
		b.WriteString("\n")
	}

	if len(s.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, level := range []plan.FindingLevel{plan.FindingError, plan.FindingWarning, plan.FindingInfo} {
			for _, f := range s.Findings {
				if f.Level != level {
					continue
				}
				fmt.Fprintf(&b, "- **%s** [%s] %s", f.Level, f.RuleID, f.Message)
				if f.EntityRef != "" {
					fmt.Fprintf(&b, " (%s)", f.EntityRef)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	if len(p.Operations) > 0 {
		b.WriteString("## Operations\n\n")
		for i := range p.Operations {
			writeOperation(&b, &p.Operations[i])
		}
	}

	fmt.Fprintf(&b, "---\nIntegrity: %s:%s, generated by %s\n",
		p.Integrity.Algorithm, p.Integrity.OperationsSHA256, p.Integrity.GeneratedBy)

	return b.String()
}

func writeOperation(b *strings.Builder, op *plan.Operation) {
	fmt.Fprintf(b, "### %s — %s\n\n", op.OpID, op.OpType)
	fmt.Fprintf(b, "%s\n\n", op.Intent)
	fmt.Fprintf(b, "- Target: `%s`\n", op.EntityRef)
	fmt.Fprintf(b, "- Risk: %s (%s)\n", op.Risk.Level, strings.Join(op.Risk.Reasons, "; "))
	fmt.Fprintf(b, "- Rule: %s\n", op.CreatedFromRule)
	fmt.Fprintf(b, "- Rollback: %s\n", op.Rollback.Type)

	for _, k := range sortedKeys(op.After) {
		fmt.Fprintf(b, "- `%s`: %v -> %v\n", k, op.Before[k], op.After[k])
	}

	if len(op.Preconditions) > 0 {
		b.WriteString("- Preconditions:\n")
		for _, pc := range op.Preconditions {
			if pc.Value != nil {
				fmt.Fprintf(b, "  - %s %s %v\n", pc.Path, pc.Op, pc.Value)
			} else {
				fmt.Fprintf(b, "  - %s %s\n", pc.Path, pc.Op)
			}
		}
	}
	b.WriteString("\n")
}

// ApplyMarkdown renders the execution report for one apply run.
func ApplyMarkdown(r *apply.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Apply Run %s\n\n", r.ApplyID)
	fmt.Fprintf(&b, "- Plan: %s\n", r.PlanID)
	fmt.Fprintf(&b, "- Snapshot: %s\n", r.SnapshotID)
	fmt.Fprintf(&b, "- State: **%s**\n", r.State)
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedUTC.Format("2006-01-02 15:04:05 UTC"))
	if !r.FinishedUTC.IsZero() {
		fmt.Fprintf(&b, "- Finished: %s\n", r.FinishedUTC.Format("2006-01-02 15:04:05 UTC"))
	}
	if r.AbortReason != "" {
		fmt.Fprintf(&b, "- Abort reason: %s\n", r.AbortReason)
	}
	b.WriteString("\n")

	b.WriteString("## Outcomes\n\n")
	for _, outcome := range []apply.Outcome{apply.OutcomeApplied, apply.OutcomeSkipped, apply.OutcomeFailed, apply.OutcomeAborted} {
		if n := r.Counts[outcome]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", outcome, n)
		}
	}
	b.WriteString("\n")

	if len(r.Results) > 0 {
		b.WriteString("| Operation | Type | Target | Outcome | Detail |\n|---|---|---|---|---|\n")
		for _, res := range r.Results {
			detail := res.Reason
			if res.Error != "" {
				detail = res.Error
			}
			if len(res.Detail) > 0 {
				detail = strings.Join(res.Detail, "; ")
			}
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s | %s |\n",
				res.OpID, res.OpType, res.EntityRef, res.Outcome, detail)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func sortedOpTypes(m map[plan.OpType]int) []plan.OpType {
	out := make([]plan.OpType, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
