package planner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

func fixedAssembler() *Assembler {
	return &Assembler{Now: func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}}
}

func generatedOps(t *testing.T, snap *snapshot.Snapshot, cfg *Config) ([]plan.Operation, []plan.Finding) {
	t.Helper()
	ops, findings, err := NewEngine(cfg).Generate(snap, cfg)
	require.NoError(t, err)
	return ops, findings
}

func TestAssemble(t *testing.T) {
	snap := fixtureSnapshot(t)
	cfg := testConfig()
	ops, findings := generatedOps(t, snap, cfg)

	p, err := fixedAssembler().Assemble(snap, ops, findings, plan.DefaultGuardrails(),
		plan.PlanContext{BrandTerms: cfg.BrandTerms}, plan.Sources{SnapshotDir: snap.Dir})
	require.NoError(t, err)

	assert.Equal(t, plan.ModeDryRun, p.Mode, "plans are always born DRY_RUN")
	assert.Equal(t, plan.PlanVersion, p.PlanVersion)
	assert.Equal(t, snap.ID, p.SnapshotID)
	assert.Equal(t, "A3.0", p.SnapshotVersion)
	assert.Contains(t, string(p.PlanID), string(snap.ID))

	assert.Equal(t, len(ops), p.Summary.TotalOperations)
	assert.Equal(t, len(findings), p.Summary.TotalFindings)
	assert.Equal(t, plan.RiskMedium, p.Summary.RiskScore, "max risk across ops")
	assert.Contains(t, p.Summary.PlatformsAffected, "GOOGLE_ADS")
	assert.Contains(t, p.Summary.PlatformsAffected, "MERCHANT_CENTER")
	assert.Contains(t, p.Summary.CampaignsAffected, brandedCampaignID)

	// Merchant exclusion requires manual approval under default guardrails.
	assert.True(t, p.Summary.RequiresApproval)
	require.NotEmpty(t, p.Summary.ApprovalRequiredOps)
	for _, id := range p.Summary.ApprovalRequiredOps {
		op := p.Operation(id)
		require.NotNil(t, op)
		assert.Equal(t, plan.OpMerchantExcludeProduct, op.OpType)
	}
	assert.Equal(t, p.Summary.ApprovalRequiredOps, p.Approvals.OperationsRequiringApproval)
	assert.False(t, p.Approvals.PlanApproved)

	assert.Equal(t, "sha256", p.Integrity.Algorithm)
	assert.NotEmpty(t, p.Integrity.OperationsSHA256)
	assert.NotEmpty(t, p.Integrity.SnapshotSHA256)

	recomputed, err := HashOperations(p.Operations)
	require.NoError(t, err)
	assert.Equal(t, p.Integrity.OperationsSHA256, recomputed)
}

func TestAssembleRejectsOverceiling(t *testing.T) {
	snap := fixtureSnapshot(t)
	cfg := testConfig()
	ops, _ := generatedOps(t, snap, cfg)

	g := plan.DefaultGuardrails()
	g.MaxTotalOps = len(ops) - 1

	_, err := fixedAssembler().Assemble(snap, ops, nil, g, plan.PlanContext{}, plan.Sources{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_total_ops")
}

func TestAssembleZeroCeilingIsUnlimited(t *testing.T) {
	snap := fixtureSnapshot(t)
	cfg := testConfig()
	ops, _ := generatedOps(t, snap, cfg)
	require.NotEmpty(t, ops)

	g := plan.DefaultGuardrails()
	g.MaxTotalOps = 0

	p, err := fixedAssembler().Assemble(snap, ops, nil, g, plan.PlanContext{}, plan.Sources{})
	require.NoError(t, err)
	assert.Len(t, p.Operations, len(ops))
}

func TestHashOperationsIgnoresApprovalMirror(t *testing.T) {
	snap := fixtureSnapshot(t)
	cfg := testConfig()
	ops, _ := generatedOps(t, snap, cfg)
	require.NotEmpty(t, ops)

	sealed, err := HashOperations(ops)
	require.NoError(t, err)

	ops[0].Approved = true
	ops[0].ApprovalNotes = "reviewed"
	resealed, err := HashOperations(ops)
	require.NoError(t, err)
	assert.Equal(t, sealed, resealed)

	ops[0].Intent = "something else"
	tampered, err := HashOperations(ops)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, tampered)
}

func TestAssembleRejectsNoOpOperation(t *testing.T) {
	snap := fixtureSnapshot(t)
	cfg := testConfig()
	ops, _ := generatedOps(t, snap, cfg)
	require.NotEmpty(t, ops)

	ops[0].After = ops[0].Before

	_, err := fixedAssembler().Assemble(snap, ops, nil, plan.DefaultGuardrails(), plan.PlanContext{}, plan.Sources{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-op")
}

func TestAssembleRejectsUnresolvableRef(t *testing.T) {
	snap := fixtureSnapshot(t)
	cfg := testConfig()
	ops, _ := generatedOps(t, snap, cfg)
	require.NotEmpty(t, ops)

	ops[0].EntityRef = types.MakeEntityRef(types.DomainAds, snapshot.TypeKeyword, "does-not-exist")

	_, err := fixedAssembler().Assemble(snap, ops, nil, plan.DefaultGuardrails(), plan.PlanContext{}, plan.Sources{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in snapshot")
}

func TestAssembleEmptyPlan(t *testing.T) {
	snap := fixtureSnapshot(t)

	p, err := fixedAssembler().Assemble(snap, nil, []plan.Finding{
		{RuleID: RuleNonBrandKeyword, Level: plan.FindingInfo, Message: "Protected 3 brand keyword(s)"},
	}, plan.DefaultGuardrails(), plan.PlanContext{}, plan.Sources{})
	require.NoError(t, err)

	assert.Equal(t, 0, p.Summary.TotalOperations)
	assert.Equal(t, plan.RiskLow, p.Summary.RiskScore)
	assert.False(t, p.Summary.RequiresApproval)
	assert.Contains(t, p.Summary.RiskSummary, "No operations")
}

// A snapshot containing only protected brand keywords must produce an empty
// plan: zero mutating operations, protected findings only.
func TestBuildPlanBrandOnlySnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "_manifest.json", `{"snapshot_id": "20260801T130000Z", "snapshot_version": "A3.0", "errors": []}`)
	writeFixture(t, dir, "normalized/ads/campaigns.json", `{
		"count": 1,
		"records": [{"id": "20958985895", "name": "Branded", "status": "ENABLED", "bidding_strategy": "MANUAL_CPC"}]
	}`)
	writeFixture(t, dir, "normalized/ads/ad_groups.json", `{
		"count": 1,
		"records": [{"id": "888", "campaign_id": "20958985895", "name": "Brand Core", "status": "ENABLED"}]
	}`)
	writeFixture(t, dir, "normalized/ads/keywords.json", `{
		"count": 1,
		"records": [{"id": "1", "ad_group_id": "888", "campaign_id": "20958985895", "text": "buy comfort direct", "match_type": "PHRASE", "status": "ENABLED"}]
	}`)
	snap, err := snapshot.Load(dir)
	require.NoError(t, err)

	pl, err := mustPlanner(t, testConfig()).BuildPlan(snap, plan.DefaultGuardrails())
	require.NoError(t, err)

	assert.Equal(t, 0, pl.Summary.TotalOperations)
	found := false
	for _, f := range pl.Summary.Findings {
		if f.RuleID == RuleNonBrandKeyword && f.Level == plan.FindingInfo {
			found = true
		}
	}
	assert.True(t, found, "protected-keyword finding present")
}

// mustPlanner wraps New with test error handling.
func mustPlanner(t *testing.T, cfg *Config) *Planner {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestDisapprovedWithoutDiscontinuedProducesNoOps(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "_manifest.json", `{"snapshot_id": "20260801T140000Z", "snapshot_version": "A3.0", "errors": []}`)
	writeFixture(t, dir, "normalized/ads/campaigns.json", `{
		"count": 1,
		"records": [{"id": "20958985895", "name": "Branded", "status": "ENABLED", "bidding_strategy": "MANUAL_CPC"}]
	}`)
	writeFixture(t, dir, "normalized/ads/keywords.json", `{"count": 0, "records": []}`)

	var productRecords string
	for i := 0; i < 12; i++ {
		if i > 0 {
			productRecords += ","
		}
		productRecords += fmt.Sprintf(`{"id": "online:en:US:sku-%d", "offer_id": "sku-%d", "title": "Product %d", "approval_status": "DISAPPROVED"}`, i, i, i)
	}
	writeFixture(t, dir, "normalized/merchant/products.json", `{"count": 12, "records": [`+productRecords+`]}`)

	snap, err := snapshot.Load(dir)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.DiscontinuedSKUs = nil
	require.NoError(t, cfg.Validate())

	ops, findings, err := NewEngine(cfg).Generate(snap, cfg)
	require.NoError(t, err)

	assert.Empty(t, findOps(ops, plan.OpMerchantExcludeProduct),
		"disapproval alone must never generate an exclusion")

	merchant := findingsFor(findings, RuleMerchantDisapproved)
	require.Len(t, merchant, 1)
	assert.Contains(t, merchant[0].Message, "12 disapproved products")
}
