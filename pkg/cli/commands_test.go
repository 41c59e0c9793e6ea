package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/adsctl/adsctl/pkg/config"
	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/storage"
)

// runCommand executes the root command with the given args and returns the
// combined output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// setupWorkspace initializes a full working configuration: config dir,
// snapshot root with one loadable snapshot, and a rule configuration with a
// branded campaign that yields exactly one keyword pause operation.
func setupWorkspace(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	cfgDir := filepath.Join(home, ".adsctl")
	t.Setenv("ADSCTL_CONFIG_DIR", cfgDir)

	snapRoot := filepath.Join(home, "snapshots")
	writeTestSnapshot(t, filepath.Join(snapRoot, "20260801T000000Z"))

	rulePath := filepath.Join(home, "rules.yaml")
	ruleYAML := `brand_terms:
  - acme hvac
branded_campaign_ids:
  - "c1"
`
	require.NoError(t, os.WriteFile(rulePath, []byte(ruleYAML), 0o644))

	cfg, err := config.Initialize(cfgDir, config.Config{
		AccountID:    "1234567890",
		SnapshotRoot: snapRoot,
		RuleConfig:   rulePath,
	})
	require.NoError(t, err)
	return cfg
}

func writeTestSnapshot(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"_manifest.json": `{
			"snapshot_id": "20260801T000000Z",
			"snapshot_version": "A3.0",
			"record_counts": {"normalized": {"campaigns": 1, "keywords": 1}},
			"errors": []
		}`,
		"normalized/ads/campaigns.json": `{
			"count": 1,
			"records": [{"id": "c1", "name": "Acme HVAC - Brand", "status": "ENABLED", "bidding_strategy": "MANUAL_CPC"}]
		}`,
		"normalized/ads/ad_groups.json": `{
			"count": 1,
			"records": [{"id": "g1", "campaign_id": "c1", "name": "Brand Terms", "status": "ENABLED"}]
		}`,
		"normalized/ads/keywords.json": `{
			"count": 1,
			"records": [{"id": "1001", "ad_group_id": "g1", "campaign_id": "c1", "text": "heat pump repair", "match_type": "PHRASE", "status": "ENABLED"}]
		}`,
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// storedPlans loads every plan in the workspace store.
func storedPlans(t *testing.T, cfg *config.Config) []*plan.Plan {
	t.Helper()
	store, err := storage.NewPlanStoreWithPath(cfg.Dir())
	require.NoError(t, err)
	plans, err := store.List()
	require.NoError(t, err)
	return plans
}

func TestInitCommand(t *testing.T) {
	cfgDir := filepath.Join(t.TempDir(), ".adsctl")
	t.Setenv("ADSCTL_CONFIG_DIR", cfgDir)

	output, err := runCommand(t, "init", "--account", "1234567890")
	require.NoError(t, err)
	assert.Contains(t, output, "Initialized adsctl configuration")
	assert.FileExists(t, filepath.Join(cfgDir, config.ConfigFile))

	// A second init must not clobber the existing configuration.
	_, err = runCommand(t, "init", "--account", "other")
	require.Error(t, err)
}

func TestInitCommandRequiresAccount(t *testing.T) {
	t.Setenv("ADSCTL_CONFIG_DIR", filepath.Join(t.TempDir(), ".adsctl"))

	_, err := runCommand(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account id is required")
}

func TestPlanCommandBuildsPlan(t *testing.T) {
	cfg := setupWorkspace(t)

	output, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	assert.Contains(t, output, "Plan plan-20260801T000000Z-")
	assert.Contains(t, output, "Operations: 1")

	plans := storedPlans(t, cfg)
	require.Len(t, plans, 1)
	p := plans[0]
	assert.Equal(t, plan.ModeDryRun, p.Mode)
	assert.Equal(t, "1234567890", p.PlanContext.AccountID)
	require.Len(t, p.Operations, 1)
	assert.Equal(t, plan.OpAdsSetKeywordStatus, p.Operations[0].OpType)

	// The markdown report lands next to the plan.
	reportPath := filepath.Join(cfg.ReportsPath(), string(p.PlanID)+".md")
	assert.FileExists(t, reportPath)
}

func TestPlanCommandRequiresSnapshotSelection(t *testing.T) {
	setupWorkspace(t)

	_, err := runCommand(t, "plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot is required")
}

func TestPlanCommandRejectsEscapingSnapshotPath(t *testing.T) {
	setupWorkspace(t)

	_, err := runCommand(t, "plan", "--snapshot", "../outside")
	require.Error(t, err)
}

func TestShowCommand(t *testing.T) {
	cfg := setupWorkspace(t)
	_, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	p := storedPlans(t, cfg)[0]

	output, err := runCommand(t, "show", string(p.PlanID))
	require.NoError(t, err)
	assert.Contains(t, output, "# Change Plan "+string(p.PlanID))
	assert.Contains(t, output, "heat pump repair")
}

func TestValidateCommand(t *testing.T) {
	cfg := setupWorkspace(t)
	_, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	p := storedPlans(t, cfg)[0]

	output, err := runCommand(t, "validate", string(p.PlanID))
	require.NoError(t, err)
	assert.Contains(t, output, "passes all guardrails")
	assert.Contains(t, output, "Not yet applyable")
}

func TestApproveCommand(t *testing.T) {
	cfg := setupWorkspace(t)
	_, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	p := storedPlans(t, cfg)[0]

	output, err := runCommand(t, "approve", string(p.PlanID),
		"--by", "reviewer@example.com", "--promote")
	require.NoError(t, err)
	assert.Contains(t, output, "approved by reviewer@example.com")
	assert.Contains(t, output, "promoted to APPLY mode")

	saved := storedPlans(t, cfg)[0]
	assert.Equal(t, plan.ModeApply, saved.Mode)
	assert.True(t, saved.Approvals.PlanApproved)
	assert.Equal(t, "reviewer@example.com", saved.Approvals.ApprovedBy)
}

func TestApplyRefusesUnapprovedPlan(t *testing.T) {
	cfg := setupWorkspace(t)
	_, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	p := storedPlans(t, cfg)[0]

	output, err := runCommand(t, "apply", string(p.PlanID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused by the approval gate")
	assert.Contains(t, output, "not applyable")
}

func TestApplyRehearsalRecordsRun(t *testing.T) {
	cfg := setupWorkspace(t)
	_, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	p := storedPlans(t, cfg)[0]

	_, err = runCommand(t, "approve", string(p.PlanID),
		"--by", "reviewer@example.com", "--promote")
	require.NoError(t, err)

	output, err := runCommand(t, "apply", string(p.PlanID))
	require.NoError(t, err)
	assert.Contains(t, output, "Rehearsal apply-")
	assert.Contains(t, output, "Applied: 1")

	repo, err := storage.NewSQLiteApplyRepositoryWithPath(cfg.DatabasePath())
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()
	runs, err := repo.ListByPlan(p.PlanID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "COMPLETED", runs[0].State)

	// The executions commands read the same history.
	listOutput, err := runCommand(t, "executions")
	require.NoError(t, err)
	assert.Contains(t, listOutput, string(runs[0].ApplyID)[:20])

	detailOutput, err := runCommand(t, "execution", string(runs[0].ApplyID))
	require.NoError(t, err)
	assert.Contains(t, detailOutput, "APPLIED")

	deleteOutput, err := runCommand(t, "execution", string(runs[0].ApplyID), "--delete")
	require.NoError(t, err)
	assert.Contains(t, deleteOutput, "removed from history")

	_, err = runCommand(t, "execution", string(runs[0].ApplyID))
	assert.ErrorContains(t, err, "not found")
}

func TestExecutionRejectsUnsafeID(t *testing.T) {
	setupWorkspace(t)

	_, err := runCommand(t, "execution", "../../etc/passwd")
	assert.ErrorContains(t, err, "invalid apply id")

	_, err = runCommand(t, "executions", "--plan", "plan/../escape")
	assert.ErrorContains(t, err, "invalid plan id")
}

func TestApplyExecuteWithoutAdapter(t *testing.T) {
	cfg := setupWorkspace(t)
	_, err := runCommand(t, "plan", "--latest")
	require.NoError(t, err)
	p := storedPlans(t, cfg)[0]

	_, err = runCommand(t, "approve", string(p.PlanID),
		"--by", "reviewer@example.com", "--promote")
	require.NoError(t, err)

	_, err = runCommand(t, "apply", string(p.PlanID), "--execute")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no live adapter")
}

func TestCredentialApproverRoundTrip(t *testing.T) {
	keyring.MockInit()

	output, err := runCommand(t, "credential", "set-approver",
		"--email", "reviewer@example.com", "--name", "A. Reviewer")
	require.NoError(t, err)
	assert.Contains(t, output, "Approver identity stored")

	output, err = runCommand(t, "credential", "show-approver")
	require.NoError(t, err)
	assert.Contains(t, output, "reviewer@example.com")
	assert.Contains(t, output, "A. Reviewer")
}

func TestParseSinceFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "days", input: "7d"},
		{name: "hours", input: "24h"},
		{name: "date", input: "2026-08-05"},
		{name: "datetime", input: "2026-08-05 10:30:00"},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSinceFlag(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, got.IsZero())
			assert.True(t, got.Before(time.Now().Add(time.Minute)))
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "a-very-l..", truncateString("a-very-long-identifier", 10))
}
