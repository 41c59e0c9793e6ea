package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

func testOperation(id types.OpID) Operation {
	ref := types.MakeEntityRef(types.DomainAds, "keyword", "123")
	return Operation{
		OpID:      id,
		OpType:    OpAdsSetKeywordStatus,
		EntityRef: ref,
		Entity: EntityMetadata{
			Platform:   "google_ads",
			EntityType: "KEYWORD",
			EntityID:   "123",
			ParentRefs: []types.EntityRef{
				types.MakeEntityRef(types.DomainAds, "campaign", "c1"),
				types.MakeEntityRef(types.DomainAds, "ad_group", "g1"),
			},
		},
		Intent: "Pause non-brand keyword",
		Before: map[string]any{"status": "ENABLED"},
		After:  map[string]any{"status": "PAUSED"},
		Preconditions: []Precondition{
			{Path: "status", Op: OpEquals, Value: "ENABLED"},
		},
		Rollback: RestoreBefore(map[string]any{"status": "ENABLED"}, ""),
		Risk:     NewRisk(RiskLow, []string{"status change is reversible"}, nil),
		Evidence: []Evidence{
			{SnapshotPath: "normalized/ads/keywords.json", Key: "123", Value: "ENABLED"},
		},
		CreatedFromRule: "safety/non-brand-keyword",
	}
}

func TestOperationValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Operation)
		wantErr string
	}{
		{name: "valid", mutate: func(*Operation) {}},
		{
			name:    "no-op diff",
			mutate:  func(op *Operation) { op.After = map[string]any{"status": "ENABLED"} },
			wantErr: "no-op",
		},
		{
			name:    "missing preconditions",
			mutate:  func(op *Operation) { op.Preconditions = nil },
			wantErr: "precondition",
		},
		{
			name:    "missing evidence",
			mutate:  func(op *Operation) { op.Evidence = nil },
			wantErr: "evidence",
		},
		{
			name:    "missing provenance",
			mutate:  func(op *Operation) { op.CreatedFromRule = "" },
			wantErr: "created_from_rule",
		},
		{
			name: "risk below type floor",
			mutate: func(op *Operation) {
				op.OpType = OpAdsRemoveAsset
				op.Rollback = Rollback{Type: RollbackManualRequired, Notes: "re-create by hand"}
			},
			wantErr: "below",
		},
		{
			name:    "malformed entity ref",
			mutate:  func(op *Operation) { op.EntityRef = "keyword:123" },
			wantErr: "entity ref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := testOperation("op_0001")
			tt.mutate(&op)
			err := op.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRiskRaiseNeverLowers(t *testing.T) {
	r := NewRisk(RiskMedium, []string{"text edit"}, nil)
	r = r.Raise(RiskLow, "small delta")
	assert.Equal(t, RiskMedium, r.Level)
	assert.Len(t, r.Reasons, 1)

	r = r.Raise(RiskHigh, "brand term removed")
	assert.Equal(t, RiskHigh, r.Level)
	assert.Equal(t, 3, r.LevelNumeric)
	assert.Len(t, r.Reasons, 2)
}

func TestRollbackValidate(t *testing.T) {
	tests := []struct {
		name    string
		rb      Rollback
		wantErr bool
	}{
		{name: "restore before", rb: RestoreBefore(map[string]any{"status": "ENABLED"}, ""), wantErr: false},
		{name: "restore before without data", rb: Rollback{Type: RollbackRestoreBefore}, wantErr: true},
		{name: "delete created", rb: DeleteCreated(types.MakeEntityRef(types.DomainAds, "negative_keyword", "n1"), ""), wantErr: false},
		{name: "manual without notes or data", rb: Rollback{Type: RollbackManualRequired}, wantErr: true},
		{name: "no rollback", rb: Rollback{Type: RollbackNone, Notes: "irreversible"}, wantErr: false},
		{name: "unknown type", rb: Rollback{Type: "UNDO"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rb.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlanApprovalLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	op := testOperation("op_0001")
	p := &Plan{
		PlanID:      "plan-1",
		PlanVersion: PlanVersion,
		Mode:        ModeDryRun,
		Guardrails:  DefaultGuardrails(),
		Operations:  []Operation{op},
		Approvals:   NewApprovals([]types.OpID{"op_0001"}),
	}

	// Promotion before approval must fail.
	require.Error(t, p.PromoteToApply())
	assert.False(t, p.ApprovalComplete())

	require.NoError(t, p.Approve("reviewer@example.com", "looks safe", now))
	assert.False(t, p.ApprovalComplete(), "required op approval still missing")

	require.NoError(t, p.ApproveOperation("op_0001", "reviewer@example.com", "checked evidence", now))
	assert.True(t, p.ApprovalComplete())
	assert.True(t, p.Operation("op_0001").Approved)

	require.NoError(t, p.PromoteToApply())
	assert.Equal(t, ModeApply, p.Mode)
	assert.Error(t, p.PromoteToApply(), "double promotion rejected")
}

func TestPlanReviseInvalidatesApprovals(t *testing.T) {
	now := time.Now().UTC()
	p := &Plan{
		PlanID:     "plan-2",
		Mode:       ModeDryRun,
		Operations: []Operation{testOperation("op_0001")},
		Approvals:  NewApprovals(nil),
	}
	require.NoError(t, p.Approve("reviewer@example.com", "", now))
	assert.True(t, p.ApprovalComplete())

	p.Revise()
	assert.False(t, p.ApprovalComplete(), "stale approval survives revision bump")
	assert.Error(t, p.PromoteToApply())
}

func TestApproveOperationUnknownOp(t *testing.T) {
	p := &Plan{
		PlanID:    "plan-3",
		Approvals: NewApprovals([]types.OpID{"op_0001"}),
	}
	err := p.ApproveOperation("op_9999", "reviewer@example.com", "", time.Now())
	assert.Error(t, err)
}

func TestGuardrailsDefaults(t *testing.T) {
	g := DefaultGuardrails()
	assert.Equal(t, 50, g.MaxTotalOps)
	assert.True(t, g.ForbidBudgetChanges)
	assert.True(t, g.ForbidCampaignPause)
	assert.True(t, g.ForbidBroadMatch)
	assert.Equal(t, 100, g.MaxTextEditChars)
	assert.Equal(t, RiskMedium, g.MaxRiskLevel)
	assert.True(t, g.RequiresApproval(OpAdsRemoveAsset))
	assert.True(t, g.RequiresApproval(OpMerchantExcludeProduct))
	assert.False(t, g.RequiresApproval(OpAdsSetKeywordStatus))
}

func TestOpTypeDefaultRisk(t *testing.T) {
	assert.Equal(t, RiskLow, OpAdsSetKeywordStatus.DefaultRisk())
	assert.Equal(t, RiskMedium, OpAdsRemoveAsset.DefaultRisk())
	assert.Equal(t, RiskHigh, OpAdsUpdateBudget.DefaultRisk())
	assert.Equal(t, RiskHigh, OpType("ADS_DO_SOMETHING_NEW").DefaultRisk(), "unknown types grade high")
}

func TestTextEditDelta(t *testing.T) {
	op := testOperation("op_0001")
	op.OpType = OpAdsUpdateAssetText
	op.Before = map[string]any{"text": "Official ACME Store - Best Prices"}
	op.After = map[string]any{"text": "Quality Widgets - Best Prices"}
	assert.Greater(t, op.TextEditDelta(), 0)
}
