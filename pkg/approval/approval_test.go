package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/guardrail"
)

func approvedPlan(t *testing.T) *plan.Plan {
	t.Helper()
	g := plan.DefaultGuardrails()
	p := &plan.Plan{
		PlanID:     "plan-test",
		Mode:       plan.ModeDryRun,
		Guardrails: g,
		Approvals:  plan.NewApprovals(nil),
	}
	require.NoError(t, p.Approve("reviewer@example.com", "looks good", time.Now()))
	require.NoError(t, p.PromoteToApply())
	return p
}

func TestCanApplyHappyPath(t *testing.T) {
	p := approvedPlan(t)
	d := Check(p)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reasons)
	assert.NoError(t, d.Error())
}

func TestCanApplyRequiresApplyMode(t *testing.T) {
	p := approvedPlan(t)
	p.Mode = plan.ModeDryRun
	d := CanApply(p, nil)
	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "DRY_RUN")
	assert.Error(t, d.Error())
}

func TestCanApplyApplyModeIsNotSufficient(t *testing.T) {
	p := &plan.Plan{
		PlanID:     "plan-test",
		Mode:       plan.ModeApply,
		Guardrails: plan.DefaultGuardrails(),
		Approvals:  plan.NewApprovals(nil),
	}
	d := CanApply(p, nil)
	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "plan-level approval is missing")
}

func TestCanApplyStaleRevision(t *testing.T) {
	p := approvedPlan(t)
	p.Revise()
	d := CanApply(p, nil)
	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "revision")
}

func TestCanApplyMissingOperationApproval(t *testing.T) {
	p := approvedPlan(t)
	p.Operations = []plan.Operation{{
		OpID:      "op-001",
		OpType:    plan.OpMerchantExcludeProduct,
		EntityRef: types.MakeEntityRef(types.DomainMerchant, "product", "sku1"),
	}}
	p.Approvals.OperationsRequiringApproval = []types.OpID{"op-001"}

	d := CanApply(p, nil)
	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "op-001")

	require.NoError(t, p.ApproveOperation("op-001", "reviewer@example.com", "", time.Now()))
	assert.True(t, CanApply(p, nil).Allowed)
}

func TestCanApplyBlockedByViolations(t *testing.T) {
	p := approvedPlan(t)
	d := CanApply(p, []guardrail.Violation{{
		Category: guardrail.CategoryForbids,
		Code:     "forbid_budget_changes",
		Message:  "budget changes are forbidden",
	}})
	assert.False(t, d.Allowed)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "forbid_budget_changes")
}
