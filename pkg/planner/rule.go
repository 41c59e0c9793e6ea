package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// Result is one rule's output. Rules never see each other's results.
type Result struct {
	Operations []plan.Operation
	Findings   []plan.Finding
}

// AddFinding appends a finding to the result.
func (r *Result) AddFinding(ruleID types.RuleID, level plan.FindingLevel, message string, ref types.EntityRef) {
	r.Findings = append(r.Findings, plan.Finding{
		RuleID:    ruleID,
		Level:     level,
		Message:   message,
		EntityRef: ref,
	})
}

// Rule is one deterministic safety rule: a pure function from snapshot and
// configuration to candidate operations and findings.
type Rule interface {
	ID() types.RuleID
	Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error)
}

// Engine runs rules in a fixed order, deduplicates their output, and applies
// the final manufacturer-brand guard.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over the default safety ruleset plus any custom
// rules defined in the configuration.
func NewEngine(cfg *Config) *Engine {
	rules := []Rule{
		&BroadMatchRule{},
		&NonBrandKeywordRule{},
		&BiddingStrategyRule{},
		&AssetBrandTextRule{},
		&MerchantDisapprovedRule{},
		&PMaxBrandExclusionsRule{},
	}
	for _, cr := range cfg.CustomRules {
		rules = append(rules, newCustomRule(cr))
	}
	return &Engine{rules: rules}
}

// RuleIDs returns the ids of the rules the engine will run, in order.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = string(r.ID())
	}
	return ids
}

// Generate runs every rule against the snapshot and returns the merged
// candidate operations and findings. Duplicate operations targeting the same
// (entity ref, op type) keep the first writer; any candidate negative keyword
// matching a manufacturer brand is unconditionally discarded, no matter which
// rule produced it.
func (e *Engine) Generate(snap *snapshot.Snapshot, cfg *Config) ([]plan.Operation, []plan.Finding, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var ops []plan.Operation
	var findings []plan.Finding
	type opKey struct {
		ref types.EntityRef
		typ plan.OpType
	}
	seen := make(map[opKey]types.RuleID)

	for _, rule := range e.rules {
		result, err := rule.Generate(snap, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: %w", rule.ID(), err)
		}
		findings = append(findings, result.Findings...)
		for _, op := range result.Operations {
			key := opKey{op.EntityRef, op.OpType}
			if first, dup := seen[key]; dup {
				findings = append(findings, plan.Finding{
					RuleID:    rule.ID(),
					Level:     plan.FindingInfo,
					Message:   fmt.Sprintf("duplicate %s for %s suppressed (already proposed by %s)", op.OpType, op.EntityRef, first),
					EntityRef: op.EntityRef,
				})
				continue
			}
			seen[key] = rule.ID()
			ops = append(ops, op)
		}
	}

	ops, guardFindings := manufacturerBrandGuard(ops, cfg)
	findings = append(findings, guardFindings...)

	assignOpIDs(ops)
	return ops, findings, nil
}

// manufacturerBrandGuard is the final filter stage over all rules' output:
// a negative keyword whose text matches a manufacturer brand would block the
// very traffic the account depends on, so it is dropped unconditionally.
func manufacturerBrandGuard(ops []plan.Operation, cfg *Config) ([]plan.Operation, []plan.Finding) {
	var kept []plan.Operation
	var findings []plan.Finding
	for _, op := range ops {
		if op.OpType == plan.OpAdsAddNegativeKeyword {
			text, _ := op.After["text"].(string)
			if brand := cfg.ManufacturerBrandIn(text); brand != "" {
				findings = append(findings, plan.Finding{
					RuleID:    "guardrail/forbid-manufacturer-brand-negatives",
					Level:     plan.FindingWarning,
					Message:   fmt.Sprintf("BLOCKED: cannot add manufacturer brand %q as negative keyword: %q", brand, text),
					EntityRef: op.EntityRef,
				})
				continue
			}
		}
		kept = append(kept, op)
	}
	return kept, findings
}

// assignOpIDs gives every operation a stable, deterministic id: a plan-order
// counter plus a content hash, so re-running the same rules over the same
// snapshot yields the same ids.
func assignOpIDs(ops []plan.Operation) {
	for i := range ops {
		ops[i].OpID = types.OpID(fmt.Sprintf("op-%03d-%s", i+1,
			stableHash(string(ops[i].OpType), string(ops[i].EntityRef), string(ops[i].CreatedFromRule))))
	}
}

func stableHash(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte("|"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
