package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adsctl/adsctl/pkg/apply"
	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
)

func reportPlan() *plan.Plan {
	ref := types.MakeEntityRef(types.DomainAds, "keyword", "1001")
	p := &plan.Plan{
		PlanID:      "plan-20260801-001",
		PlanVersion: plan.PlanVersion,
		CreatedUTC:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		SnapshotID:  "20260801T000000Z",
		Mode:        plan.ModeDryRun,
		PlanContext: plan.PlanContext{AccountID: "123-456-7890"},
		Guardrails:  plan.DefaultGuardrails(),
		Operations: []plan.Operation{{
			OpID:      "op-001-abcdef123456",
			OpType:    plan.OpAdsSetKeywordStatus,
			EntityRef: ref,
			Intent:    "Pause non-brand keyword in branded campaign",
			Before:    map[string]any{"status": "ENABLED"},
			After:     map[string]any{"status": "PAUSED"},
			Preconditions: []plan.Precondition{
				{Path: "status", Op: plan.OpEquals, Value: "ENABLED"},
				{Path: "brand_list_id", Op: plan.OpNotExists},
			},
			Rollback:        plan.RestoreBefore(map[string]any{"status": "ENABLED"}, ""),
			Risk:            plan.NewRisk(plan.RiskMedium, []string{"pauses serving"}, nil),
			Evidence:        []plan.Evidence{{SnapshotPath: "normalized/ads/keywords.json"}},
			CreatedFromRule: "safety/non-brand-keyword",
		}},
		Approvals: plan.NewApprovals([]types.OpID{"op-001-abcdef123456"}),
		Summary: plan.Summary{
			TotalOperations:     1,
			TotalFindings:       2,
			OpsByType:           map[plan.OpType]int{plan.OpAdsSetKeywordStatus: 1},
			OpsByRisk:           map[string]int{"MEDIUM": 1},
			CampaignsAffected:   []string{"20958985895"},
			RiskScore:           plan.RiskMedium,
			RiskSummary:         "1 medium-risk operation(s)",
			RequiresApproval:    true,
			ApprovalRequiredOps: []types.OpID{"op-001-abcdef123456"},
			Findings: []plan.Finding{
				{RuleID: "safety/broad-match", Level: plan.FindingWarning, Message: "broad match keyword in branded campaign", EntityRef: ref},
				{RuleID: "safety/bidding-strategy", Level: plan.FindingError, Message: "campaign uses TARGET_SPEND"},
			},
		},
		Integrity: plan.Integrity{Algorithm: "sha256", OperationsSHA256: "deadbeef", GeneratedBy: "adsctl"},
	}
	return p
}

func TestPlanMarkdown(t *testing.T) {
	out := PlanMarkdown(reportPlan())

	assert.Contains(t, out, "# Change Plan plan-20260801-001")
	assert.Contains(t, out, "Mode: **DRY_RUN**")
	assert.Contains(t, out, "- Total operations: 1")
	assert.Contains(t, out, "| ADS_SET_KEYWORD_STATUS | 1 |")
	assert.Contains(t, out, "Campaigns affected: 20958985895")
	assert.Contains(t, out, "## Approval required")
	assert.Contains(t, out, "op-001-abcdef123456 (pending)")
	assert.Contains(t, out, "`status`: ENABLED -> PAUSED")
	assert.Contains(t, out, "status EQUALS ENABLED")
	assert.Contains(t, out, "brand_list_id NOT_EXISTS")
	assert.Contains(t, out, "Rollback: RESTORE_BEFORE")
	// Errors sort before warnings in the findings section.
	errIdx := strings.Index(out, "campaign uses TARGET_SPEND")
	warnIdx := strings.Index(out, "broad match keyword")
	assert.Less(t, errIdx, warnIdx)
}

func TestPlanMarkdownShowsApprovedOps(t *testing.T) {
	p := reportPlan()
	assert.NoError(t, p.ApproveOperation("op-001-abcdef123456", "reviewer@example.com", "", time.Now()))
	out := PlanMarkdown(p)
	assert.Contains(t, out, "op-001-abcdef123456 (approved)")
}

func TestApplyMarkdown(t *testing.T) {
	r := &apply.Report{
		ApplyID:     "apply-1",
		PlanID:      "plan-20260801-001",
		SnapshotID:  "20260801T000000Z",
		Mode:        plan.ModeApply,
		State:       apply.StateAborted,
		AbortReason: apply.ReasonPreconditionMismatch,
		StartedUTC:  time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
		FinishedUTC: time.Date(2026, 8, 1, 13, 0, 2, 0, time.UTC),
		Results: []apply.ExecutionResult{
			{OpID: "op-001", OpType: plan.OpAdsSetKeywordStatus, EntityRef: "ads.keyword:1001", Outcome: apply.OutcomeApplied},
			{OpID: "op-002", OpType: plan.OpAdsSetKeywordStatus, EntityRef: "ads.keyword:1002", Outcome: apply.OutcomeFailed,
				Reason: apply.ReasonPreconditionMismatch, Detail: []string{"status EQUALS ENABLED, actual \"PAUSED\""}},
			{OpID: "op-003", OpType: plan.OpMerchantExcludeProduct, EntityRef: "merchant.product:sku-1", Outcome: apply.OutcomeAborted,
				Reason: apply.ReasonPlanAborted},
		},
		Counts: map[apply.Outcome]int{apply.OutcomeApplied: 1, apply.OutcomeFailed: 1, apply.OutcomeAborted: 1},
	}

	out := ApplyMarkdown(r)
	assert.Contains(t, out, "# Apply Run apply-1")
	assert.Contains(t, out, "State: **ABORTED**")
	assert.Contains(t, out, "Abort reason: PRECONDITION_MISMATCH")
	assert.Contains(t, out, "- APPLIED: 1")
	assert.Contains(t, out, "- FAILED: 1")
	assert.Contains(t, out, "| op-002 |")
	assert.Contains(t, out, "status EQUALS ENABLED")
}
