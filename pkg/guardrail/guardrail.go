// Package guardrail validates a plan against its guardrails. Validation is a
// pure function invoked twice: advisory at assembly time, and mandatory
// immediately before apply, where any violation blocks execution outright.
package guardrail

import (
	"fmt"
	"strings"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
)

// Category identifies the ordered check group a violation came from.
type Category string

// Check categories, in validation order.
const (
	CategoryCeilings  Category = "ceilings"
	CategoryForbids   Category = "forbids"
	CategoryCampaigns Category = "campaign_lists"
	CategoryTextEdits Category = "text_edits"
	CategoryApprovals Category = "approvals"
	CategoryRisk      Category = "risk"
)

// Violation is one guardrail breach. Violations are reported as a list, not
// just the first, so the reviewer sees everything at once.
type Violation struct {
	Category  Category        `json:"category"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	OpID      types.OpID      `json:"op_id,omitempty"`
	EntityRef types.EntityRef `json:"entity_ref,omitempty"`
}

func (v Violation) String() string {
	if v.OpID != "" {
		return fmt.Sprintf("[%s] %s: %s (op %s)", v.Category, v.Code, v.Message, v.OpID)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Category, v.Code, v.Message)
}

type checkFn func(*plan.Plan) []Violation

// Validate runs every check category in order and returns all violations.
// When abort_on_first_error is set, validation stops after the first
// category that produced violations; the categories keep their fixed order
// either way.
func Validate(p *plan.Plan) []Violation {
	checks := []checkFn{
		checkCeilings,
		checkForbids,
		checkCampaignLists,
		checkTextEdits,
		checkApprovals,
		checkRisk,
	}

	var out []Violation
	for _, check := range checks {
		vs := check(p)
		out = append(out, vs...)
		if len(vs) > 0 && p.Guardrails.AbortOnFirstError {
			break
		}
	}
	return out
}

func checkCeilings(p *plan.Plan) []Violation {
	g := p.Guardrails
	var out []Violation

	if g.MaxTotalOps > 0 && len(p.Operations) > g.MaxTotalOps {
		out = append(out, Violation{
			Category: CategoryCeilings,
			Code:     "max_total_ops",
			Message:  fmt.Sprintf("%d operations exceed the ceiling of %d", len(p.Operations), g.MaxTotalOps),
		})
	}

	byType := make(map[plan.OpType]int)
	for _, op := range p.Operations {
		byType[op.OpType]++
	}
	for _, t := range plan.AllOpTypes {
		ceiling, bounded := g.MaxOpsByType[t]
		if !bounded {
			continue
		}
		if n := byType[t]; n > ceiling {
			out = append(out, Violation{
				Category: CategoryCeilings,
				Code:     "max_ops_by_type",
				Message:  fmt.Sprintf("%d %s operations exceed the per-type ceiling of %d", n, t, ceiling),
			})
		}
	}
	return out
}

func checkForbids(p *plan.Plan) []Violation {
	g := p.Guardrails
	var out []Violation

	forbid := func(code string, op plan.Operation, msg string) {
		out = append(out, Violation{
			Category:  CategoryForbids,
			Code:      code,
			Message:   msg,
			OpID:      op.OpID,
			EntityRef: op.EntityRef,
		})
	}

	for _, op := range p.Operations {
		if g.ForbidBudgetChanges && op.OpType == plan.OpAdsUpdateBudget {
			forbid("forbid_budget_changes", op, "budget changes are forbidden")
		}
		if op.OpType == plan.OpAdsSetCampaignStatus {
			status, _ := op.After["status"].(string)
			if g.ForbidCampaignPause && status == "PAUSED" {
				forbid("forbid_campaign_pause", op, "pausing campaigns is forbidden")
			}
			if g.ForbidCampaignEnable && status == "ENABLED" {
				forbid("forbid_campaign_enable", op, "enabling campaigns is forbidden")
			}
		}
		if g.ForbidBroadMatch {
			if mt, _ := op.After["match_type"].(string); mt == "BROAD" {
				forbid("forbid_broad_match", op, "changing keywords to BROAD match is forbidden")
			}
		}
		if g.ForbidManufacturerBrandNegatives && op.OpType == plan.OpAdsAddNegativeKeyword {
			text, _ := op.After["text"].(string)
			if containsAny(text, p.PlanContext.ManufacturerBrands) {
				forbid("forbid_manufacturer_brand_negatives", op,
					fmt.Sprintf("negative keyword %q matches a manufacturer brand", text))
			}
		}
		if g.ForbidBidStrategyChanges && op.OpType == plan.OpAdsUpdateBidStrategy {
			forbid("forbid_bid_strategy_changes", op, "bid strategy changes are forbidden")
		}
		if g.ForbidConversionGoalChanges && touchesField(op, "conversion_goal") {
			forbid("forbid_conversion_goal_changes", op, "conversion goal changes are forbidden")
		}
		if g.ForbidLocationTargetingChanges && (touchesField(op, "location_target") || touchesField(op, "geo_target")) {
			forbid("forbid_location_targeting_changes", op, "location targeting changes are forbidden")
		}
		if g.ForbidURLExpansionChanges && touchesField(op, "url_expansion") {
			forbid("forbid_url_expansion_changes", op, "URL expansion changes are forbidden")
		}
		if g.ForbidAutoApplySettings && touchesField(op, "auto_apply") {
			forbid("forbid_auto_apply_settings", op, "auto-apply setting changes are forbidden")
		}
	}
	return out
}

// touchesField reports whether the operation's after-image writes any field
// whose name contains the fragment.
func touchesField(op plan.Operation, fragment string) bool {
	for k := range op.After {
		if strings.Contains(k, fragment) {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	t := strings.ToLower(text)
	for _, term := range terms {
		if term != "" && strings.Contains(t, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func checkCampaignLists(p *plan.Plan) []Violation {
	g := p.Guardrails
	var out []Violation

	allow := make(map[string]struct{})
	for _, id := range g.AllowlistCampaignIDs {
		allow[id] = struct{}{}
	}
	block := make(map[string]struct{})
	for _, id := range g.BlocklistCampaignIDs {
		block[id] = struct{}{}
	}

	for _, op := range p.Operations {
		campaignID := op.Entity.CampaignID()
		if campaignID == "" {
			continue
		}
		// A nil allowlist means the check is not enforced; an empty one
		// would forbid every campaign.
		if g.AllowlistCampaignIDs != nil {
			if _, ok := allow[campaignID]; !ok {
				out = append(out, Violation{
					Category:  CategoryCampaigns,
					Code:      "allowlist_campaign_ids",
					Message:   fmt.Sprintf("campaign %s is not on the allowlist", campaignID),
					OpID:      op.OpID,
					EntityRef: op.EntityRef,
				})
			}
		}
		if _, ok := block[campaignID]; ok {
			out = append(out, Violation{
				Category:  CategoryCampaigns,
				Code:      "blocklist_campaign_ids",
				Message:   fmt.Sprintf("campaign %s is on the blocklist", campaignID),
				OpID:      op.OpID,
				EntityRef: op.EntityRef,
			})
		}
	}
	return out
}

func checkTextEdits(p *plan.Plan) []Violation {
	g := p.Guardrails
	if g.MaxTextEditChars <= 0 {
		return nil
	}
	var out []Violation
	for _, op := range p.Operations {
		if delta := op.TextEditDelta(); delta > g.MaxTextEditChars {
			out = append(out, Violation{
				Category:  CategoryTextEdits,
				Code:      "max_text_edit_chars",
				Message:   fmt.Sprintf("text edit delta of %d chars exceeds the limit of %d", delta, g.MaxTextEditChars),
				OpID:      op.OpID,
				EntityRef: op.EntityRef,
			})
		}
	}
	return out
}

func checkApprovals(p *plan.Plan) []Violation {
	var out []Violation
	for _, op := range p.Operations {
		if !p.Guardrails.RequiresApproval(op.OpType) {
			continue
		}
		if !p.Approvals.OperationApproved(op.OpID, p.Revision) {
			out = append(out, Violation{
				Category:  CategoryApprovals,
				Code:      "require_manual_approval_for_types",
				Message:   fmt.Sprintf("%s requires a current manual approval", op.OpType),
				OpID:      op.OpID,
				EntityRef: op.EntityRef,
			})
		}
	}
	return out
}

func checkRisk(p *plan.Plan) []Violation {
	g := p.Guardrails
	var out []Violation

	mediumOps := 0
	for _, op := range p.Operations {
		if op.Risk.Level == plan.RiskMedium {
			mediumOps++
		}
		if g.MaxRiskLevel.IsValid() && op.Risk.Level.Exceeds(g.MaxRiskLevel) {
			out = append(out, Violation{
				Category:  CategoryRisk,
				Code:      "max_risk_level",
				Message:   fmt.Sprintf("operation risk %s exceeds the ceiling %s", op.Risk.Level, g.MaxRiskLevel),
				OpID:      op.OpID,
				EntityRef: op.EntityRef,
			})
		}
	}

	if g.MaxMediumRiskOps > 0 && mediumOps > g.MaxMediumRiskOps {
		out = append(out, Violation{
			Category: CategoryRisk,
			Code:     "max_medium_risk_ops",
			Message: fmt.Sprintf("%d medium-risk operations exceed the volume ceiling of %d",
				mediumOps, g.MaxMediumRiskOps),
		})
	}
	return out
}
