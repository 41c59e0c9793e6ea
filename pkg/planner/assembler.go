package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// generatorName is stamped into plan integrity metadata.
const generatorName = "adsctl"

// Assembler aggregates rule output into a reviewable plan. The clock is
// injectable so tests get stable timestamps.
type Assembler struct {
	Now func() time.Time
}

// NewAssembler creates an assembler using the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{Now: time.Now}
}

// Assemble builds the plan document from the rule engine's output. Every
// operation is validated (no-ops are rejected here), the summary is computed,
// and the plan is stamped DRY_RUN unconditionally. Assembly fails outright
// when the operation count exceeds the guardrail ceiling: a plan that can
// never legally be approved should not exist.
func (a *Assembler) Assemble(
	snap *snapshot.Snapshot,
	ops []plan.Operation,
	findings []plan.Finding,
	guardrails plan.Guardrails,
	planCtx plan.PlanContext,
	sources plan.Sources,
) (*plan.Plan, error) {
	if guardrails.MaxTotalOps > 0 && len(ops) > guardrails.MaxTotalOps {
		return nil, fmt.Errorf("cannot assemble plan: %d operations exceed max_total_ops %d",
			len(ops), guardrails.MaxTotalOps)
	}

	for i := range ops {
		if err := ops[i].Validate(); err != nil {
			return nil, fmt.Errorf("assembly rejected: %w", err)
		}
		// Creation ops reference an entity that does not exist yet.
		if ops[i].OpType == plan.OpAdsAddNegativeKeyword {
			continue
		}
		if _, ok := snap.Resolve(ops[i].EntityRef); !ok {
			return nil, fmt.Errorf("assembly rejected: operation %s references %s which is not in snapshot %s",
				ops[i].OpID, ops[i].EntityRef, snap.ID)
		}
	}

	now := a.Now().UTC()
	required := requiredApprovals(ops, guardrails)

	p := &plan.Plan{
		PlanID:          types.PlanID(fmt.Sprintf("plan-%s-%s", snap.ID, now.Format("2006-01-02T150405Z"))),
		PlanVersion:     plan.PlanVersion,
		CreatedUTC:      now,
		SnapshotID:      snap.ID,
		SnapshotVersion: snap.Version,
		Sources:         sources,
		Mode:            plan.ModeDryRun,
		PlanContext:     planCtx,
		Guardrails:      guardrails,
		Summary:         buildSummary(ops, findings, required),
		Operations:      ops,
		Approvals:       plan.NewApprovals(required),
	}

	integrity, err := buildIntegrity(snap, ops)
	if err != nil {
		return nil, err
	}
	p.Integrity = integrity

	return p, nil
}

func requiredApprovals(ops []plan.Operation, g plan.Guardrails) []types.OpID {
	var out []types.OpID
	for _, op := range ops {
		if g.RequiresApproval(op.OpType) {
			out = append(out, op.OpID)
		}
	}
	return out
}

func buildSummary(ops []plan.Operation, findings []plan.Finding, required []types.OpID) plan.Summary {
	byType := make(map[plan.OpType]int)
	byRisk := map[string]int{"LOW": 0, "MEDIUM": 0, "HIGH": 0}
	platforms := make(map[string]struct{})
	campaigns := make(map[string]struct{})
	maxRisk := plan.RiskLow

	for _, op := range ops {
		byType[op.OpType]++
		byRisk[string(op.Risk.Level)]++
		if op.Entity.Platform != "" {
			platforms[op.Entity.Platform] = struct{}{}
		}
		if id := op.Entity.CampaignID(); id != "" {
			campaigns[id] = struct{}{}
		}
		if op.Risk.Level.Exceeds(maxRisk) {
			maxRisk = op.Risk.Level
		}
	}

	s := plan.Summary{
		TotalOperations:     len(ops),
		TotalFindings:       len(findings),
		OpsByType:           byType,
		OpsByRisk:           byRisk,
		PlatformsAffected:   sortedKeys(platforms),
		CampaignsAffected:   sortedKeys(campaigns),
		RiskScore:           maxRisk,
		RiskSummary:         riskSummary(byRisk, findings),
		RequiresApproval:    len(required) > 0,
		ApprovalRequiredOps: required,
		Findings:            findings,
	}
	if len(ops) == 0 {
		s.RiskScore = plan.RiskLow
	}
	return s
}

func riskSummary(byRisk map[string]int, findings []plan.Finding) string {
	var parts []string
	for _, level := range []string{"HIGH", "MEDIUM", "LOW"} {
		if n := byRisk[level]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s-risk", n, level))
		}
	}
	out := "No operations"
	if len(parts) > 0 {
		out = strings.Join(parts, "; ")
	}
	if len(findings) > 0 {
		counts := make(map[plan.FindingLevel]int)
		for _, f := range findings {
			counts[f.Level]++
		}
		var fp []string
		for _, level := range []plan.FindingLevel{plan.FindingError, plan.FindingWarning, plan.FindingInfo} {
			if n := counts[level]; n > 0 {
				fp = append(fp, fmt.Sprintf("%d %s", n, level))
			}
		}
		out += " | Findings: " + strings.Join(fp, ", ")
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// buildIntegrity hashes the canonical operations JSON and the snapshot
// manifest file, so apply can detect a plan edited after review.
func buildIntegrity(snap *snapshot.Snapshot, ops []plan.Operation) (plan.Integrity, error) {
	opsSum, err := HashOperations(ops)
	if err != nil {
		return plan.Integrity{}, err
	}

	integrity := plan.Integrity{
		Algorithm:        "sha256",
		OperationsSHA256: opsSum,
		GeneratedBy:      generatorName,
	}

	if snap.Dir != "" {
		manifest, err := os.ReadFile(filepath.Join(snap.Dir, "_manifest.json"))
		if err == nil {
			sum := sha256.Sum256(manifest)
			integrity.SnapshotSHA256 = hex.EncodeToString(sum[:])
		}
	}
	return integrity, nil
}

// HashOperations recomputes the canonical operations hash for integrity
// verification at load and apply time. Approval state is mirrored onto
// operations after assembly and lives in the plan's approval ledger, so it
// is zeroed before hashing: the seal covers the change content, not the
// review workflow.
func HashOperations(ops []plan.Operation) (string, error) {
	canonical := make([]plan.Operation, len(ops))
	copy(canonical, ops)
	for i := range canonical {
		canonical[i].Approved = false
		canonical[i].ApprovalNotes = ""
	}
	opsJSON, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("hashing operations: %w", err)
	}
	sum := sha256.Sum256(opsJSON)
	return hex.EncodeToString(sum[:]), nil
}
