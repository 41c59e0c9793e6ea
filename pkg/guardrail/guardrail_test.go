package guardrail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
)

func testOp(id types.OpID, t plan.OpType) plan.Operation {
	ref := types.MakeEntityRef(types.DomainAds, "keyword", string(id))
	return plan.Operation{
		OpID:      id,
		OpType:    t,
		EntityRef: ref,
		Entity: plan.EntityMetadata{
			Platform:   "google_ads",
			EntityType: "KEYWORD",
			EntityID:   string(id),
			ParentRefs: []types.EntityRef{
				types.MakeEntityRef(types.DomainAds, "campaign", "c1"),
			},
		},
		Intent: "pause keyword",
		Before: map[string]any{"status": "ENABLED"},
		After:  map[string]any{"status": "PAUSED"},
		Preconditions: []plan.Precondition{
			{Path: "status", Op: plan.OpEquals, Value: "ENABLED"},
		},
		Rollback:        plan.RestoreBefore(map[string]any{"status": "ENABLED"}, ""),
		Risk:            plan.NewRisk(plan.RiskLow, []string{"reversible"}, nil),
		Evidence:        []plan.Evidence{{SnapshotPath: "normalized/ads/keywords.json"}},
		CreatedFromRule: "safety/non-brand-keyword",
	}
}

func testPlan(ops ...plan.Operation) *plan.Plan {
	g := plan.DefaultGuardrails()
	g.AbortOnFirstError = false
	return &plan.Plan{
		PlanID:     "plan-test",
		Mode:       plan.ModeDryRun,
		Guardrails: g,
		Operations: ops,
		Approvals:  plan.NewApprovals(nil),
	}
}

func codes(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Code)
	}
	return out
}

func TestValidateCleanPlan(t *testing.T) {
	p := testPlan(testOp("op-001", plan.OpAdsSetKeywordStatus))
	assert.Empty(t, Validate(p))
}

func TestValidateTotalCeiling(t *testing.T) {
	p := testPlan()
	p.Guardrails.MaxTotalOps = 2
	for i := 0; i < 3; i++ {
		p.Operations = append(p.Operations, testOp(types.OpID(string(rune('a'+i))), plan.OpAdsSetKeywordStatus))
	}
	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "max_total_ops", vs[0].Code)
	assert.Equal(t, CategoryCeilings, vs[0].Category)
}

func TestValidatePerTypeCeiling(t *testing.T) {
	op1 := testOp("op-001", plan.OpAdsSetKeywordStatus)
	op2 := testOp("op-002", plan.OpAdsSetKeywordStatus)
	p := testPlan(op1, op2)
	p.Guardrails.MaxOpsByType = map[plan.OpType]int{plan.OpAdsSetKeywordStatus: 1}
	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "max_ops_by_type", vs[0].Code)
}

func TestValidateBudgetForbid(t *testing.T) {
	op := testOp("op-001", plan.OpAdsUpdateBudget)
	op.Before = map[string]any{"amount_micros": 1000000}
	op.After = map[string]any{"amount_micros": 2000000}
	op.Risk = plan.NewRisk(plan.RiskHigh, []string{"spend change"}, nil)
	p := testPlan(op)
	// Lift the per-type zero ceiling and risk ceiling so the forbid flag
	// itself is what fires.
	p.Guardrails.MaxOpsByType = nil
	p.Guardrails.MaxRiskLevel = plan.RiskHigh

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "forbid_budget_changes", vs[0].Code)
	assert.Equal(t, types.OpID("op-001"), vs[0].OpID)
}

func TestValidateCampaignPauseForbid(t *testing.T) {
	op := testOp("op-001", plan.OpAdsSetCampaignStatus)
	op.Risk = plan.NewRisk(plan.RiskHigh, []string{"campaign-wide"}, nil)
	p := testPlan(op)
	p.Guardrails.MaxRiskLevel = plan.RiskHigh

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "forbid_campaign_pause", vs[0].Code)
}

func TestValidateBroadMatchForbid(t *testing.T) {
	op := testOp("op-001", plan.OpAdsSetKeywordMatchType)
	op.Before = map[string]any{"match_type": "PHRASE"}
	op.After = map[string]any{"match_type": "BROAD"}
	op.Risk = plan.NewRisk(plan.RiskMedium, []string{"match type widens"}, nil)
	p := testPlan(op)

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "forbid_broad_match", vs[0].Code)
}

func TestValidateManufacturerBrandNegative(t *testing.T) {
	op := testOp("op-001", plan.OpAdsAddNegativeKeyword)
	op.Before = map[string]any{"exists": false}
	op.After = map[string]any{"text": "rheem water heater", "match_type": "PHRASE"}
	p := testPlan(op)
	p.PlanContext.ManufacturerBrands = []string{"rheem", "goodman"}

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "forbid_manufacturer_brand_negatives", vs[0].Code)
}

func TestValidateBlocklistedCampaign(t *testing.T) {
	op := testOp("op-001", plan.OpAdsSetKeywordStatus)
	p := testPlan(op)
	p.Guardrails.BlocklistCampaignIDs = []string{"c1"}

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "blocklist_campaign_ids", vs[0].Code)
	assert.Equal(t, CategoryCampaigns, vs[0].Category)
}

func TestValidateAllowlistEnforcedOnlyWhenSet(t *testing.T) {
	op := testOp("op-001", plan.OpAdsSetKeywordStatus)

	p := testPlan(op)
	assert.Empty(t, Validate(p), "nil allowlist must not be enforced")

	p = testPlan(op)
	p.Guardrails.AllowlistCampaignIDs = []string{"other"}
	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "allowlist_campaign_ids", vs[0].Code)
}

func TestValidateTextEditDelta(t *testing.T) {
	op := testOp("op-001", plan.OpAdsUpdateAssetText)
	op.Before = map[string]any{"text": "short"}
	op.After = map[string]any{"text": "a considerably longer replacement headline for the asset in question"}
	op.Risk = plan.NewRisk(plan.RiskMedium, []string{"customer-visible text"}, nil)
	p := testPlan(op)
	p.Guardrails.MaxTextEditChars = 10

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "max_text_edit_chars", vs[0].Code)
	assert.Equal(t, CategoryTextEdits, vs[0].Category)
}

func TestValidateMissingRequiredApproval(t *testing.T) {
	op := testOp("op-001", plan.OpMerchantExcludeProduct)
	op.EntityRef = types.MakeEntityRef(types.DomainMerchant, "product", "sku1")
	op.Entity = plan.EntityMetadata{Platform: "merchant_center", EntityType: "PRODUCT", EntityID: "sku1"}
	op.Before = map[string]any{"excluded": false}
	op.After = map[string]any{"excluded": true}
	op.Risk = plan.NewRisk(plan.RiskMedium, []string{"removes product from serving"}, nil)

	p := testPlan(op)
	p.Approvals = plan.NewApprovals([]types.OpID{"op-001"})

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "require_manual_approval_for_types", vs[0].Code)

	require.NoError(t, p.ApproveOperation("op-001", "reviewer@example.com", "confirmed discontinued", time.Now()))
	assert.Empty(t, Validate(p))
}

func TestValidateApprovalInvalidatedByRevision(t *testing.T) {
	op := testOp("op-001", plan.OpMerchantExcludeProduct)
	op.Before = map[string]any{"excluded": false}
	op.After = map[string]any{"excluded": true}
	op.Risk = plan.NewRisk(plan.RiskMedium, []string{"removes product from serving"}, nil)

	p := testPlan(op)
	p.Approvals = plan.NewApprovals([]types.OpID{"op-001"})
	require.NoError(t, p.ApproveOperation("op-001", "reviewer@example.com", "", time.Now()))
	require.Empty(t, Validate(p))

	p.Revise()
	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "require_manual_approval_for_types", vs[0].Code)
}

func TestValidateRiskCeiling(t *testing.T) {
	op := testOp("op-001", plan.OpAdsSetCampaignStatus)
	op.After = map[string]any{"status": "ENABLED"}
	op.Before = map[string]any{"status": "PAUSED"}
	op.Risk = plan.NewRisk(plan.RiskHigh, []string{"campaign-wide"}, nil)
	p := testPlan(op)
	p.Guardrails.ForbidCampaignEnable = false

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "max_risk_level", vs[0].Code)
	assert.Equal(t, CategoryRisk, vs[0].Category)
}

func TestValidateMediumRiskVolume(t *testing.T) {
	p := testPlan()
	p.Guardrails.MaxMediumRiskOps = 2
	for i := 0; i < 3; i++ {
		op := testOp(types.OpID(string(rune('a'+i))), plan.OpAdsSetKeywordStatus)
		op.Risk = plan.NewRisk(plan.RiskMedium, []string{"bulk change"}, nil)
		p.Operations = append(p.Operations, op)
	}

	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, "max_medium_risk_ops", vs[0].Code)
}

func TestValidateReportsAllCategories(t *testing.T) {
	pause := testOp("op-001", plan.OpAdsSetCampaignStatus)
	pause.Risk = plan.NewRisk(plan.RiskHigh, []string{"campaign-wide"}, nil)
	broad := testOp("op-002", plan.OpAdsSetKeywordMatchType)
	broad.Before = map[string]any{"match_type": "PHRASE"}
	broad.After = map[string]any{"match_type": "BROAD"}
	broad.Risk = plan.NewRisk(plan.RiskMedium, []string{"match type widens"}, nil)

	p := testPlan(pause, broad)
	vs := Validate(p)
	assert.ElementsMatch(t,
		[]string{"forbid_campaign_pause", "forbid_broad_match", "max_risk_level"},
		codes(vs))
}

func TestValidateAbortOnFirstErrorStopsAtCategory(t *testing.T) {
	pause := testOp("op-001", plan.OpAdsSetCampaignStatus)
	pause.Risk = plan.NewRisk(plan.RiskHigh, []string{"campaign-wide"}, nil)
	p := testPlan(pause)
	p.Guardrails.AbortOnFirstError = true

	// Both the forbid and the risk ceiling are breached, but validation
	// stops after the forbid category reports.
	vs := Validate(p)
	require.Len(t, vs, 1)
	assert.Equal(t, CategoryForbids, vs[0].Category)
}
