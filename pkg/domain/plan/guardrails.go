package plan

// Guardrails is the plan-independent safety configuration bound to a plan at
// assembly time and never mutated during apply. It is the single source of
// truth for whether a plan may ever be applied.
type Guardrails struct {
	// MaxTotalOps is the absolute operation ceiling for one plan. Zero
	// means no ceiling.
	MaxTotalOps int `json:"max_total_ops"`
	// MaxOpsByType sets per-type operation ceilings. A type that is absent
	// has no per-type ceiling.
	MaxOpsByType map[OpType]int `json:"max_ops_by_type,omitempty"`

	// Feature forbids. Each flag blocks the operation set it governs.
	ForbidBudgetChanges              bool `json:"forbid_budget_changes"`
	ForbidCampaignPause              bool `json:"forbid_campaign_pause"`
	ForbidCampaignEnable             bool `json:"forbid_campaign_enable"`
	ForbidBroadMatch                 bool `json:"forbid_broad_match"`
	ForbidManufacturerBrandNegatives bool `json:"forbid_manufacturer_brand_negatives"`
	ForbidBidStrategyChanges         bool `json:"forbid_bid_strategy_changes"`
	ForbidConversionGoalChanges      bool `json:"forbid_conversion_goal_changes"`
	ForbidLocationTargetingChanges   bool `json:"forbid_location_targeting_changes"`
	ForbidURLExpansionChanges        bool `json:"forbid_url_expansion_changes"`
	ForbidAutoApplySettings          bool `json:"forbid_auto_apply_settings"`

	// MaxTextEditChars caps the aggregate character delta of a single text
	// edit operation.
	MaxTextEditChars int `json:"max_text_edit_chars"`

	// AllowlistCampaignIDs, when non-nil, restricts operations to the listed
	// campaigns. A nil slice means no allowlist is enforced; an empty
	// non-nil slice blocks every campaign-scoped operation.
	AllowlistCampaignIDs []string `json:"allowlist_campaign_ids"`
	// BlocklistCampaignIDs always blocks operations on the listed campaigns.
	BlocklistCampaignIDs []string `json:"blocklist_campaign_ids"`

	// RequireManualApprovalForTypes lists op types that need an explicit
	// per-operation human approval before apply.
	RequireManualApprovalForTypes []OpType `json:"require_manual_approval_for_types"`

	// RequirePreconditionMatch aborts apply when a re-checked precondition
	// fails; when false the operation is skipped instead.
	RequirePreconditionMatch bool `json:"require_precondition_match"`
	// AbortOnMissingEntity aborts the whole plan when a target entity no
	// longer exists in the live system.
	AbortOnMissingEntity bool `json:"abort_on_missing_entity"`
	// AbortOnFirstError halts remaining operations after the first FAILED
	// outcome.
	AbortOnFirstError bool `json:"abort_on_first_error"`

	// MaxRiskLevel is the ceiling risk level any single operation may carry.
	MaxRiskLevel RiskLevel `json:"max_risk_level"`
	// MaxMediumRiskOps caps how many medium-risk operations one plan may
	// carry before the plan as a whole is treated as over the risk ceiling.
	MaxMediumRiskOps int `json:"max_medium_risk_ops"`
}

// DefaultGuardrails returns the conservative default configuration.
func DefaultGuardrails() Guardrails {
	return Guardrails{
		MaxTotalOps: 50,
		MaxOpsByType: map[OpType]int{
			OpAdsSetKeywordStatus:       20,
			OpAdsAddNegativeKeyword:     20,
			OpAdsSetKeywordMatchType:    10,
			OpAdsUpdateAssetText:        5,
			OpAdsRemoveAsset:            5,
			OpAdsSetPMaxBrandExclusions: 5,
			OpMerchantExcludeProduct:    10,
			OpAdsUpdateBidStrategy:      0,
			OpAdsUpdateBudget:           0,
		},
		ForbidBudgetChanges:              true,
		ForbidCampaignPause:              true,
		ForbidCampaignEnable:             false,
		ForbidBroadMatch:                 true,
		ForbidManufacturerBrandNegatives: true,
		ForbidBidStrategyChanges:         true,
		ForbidConversionGoalChanges:      true,
		ForbidLocationTargetingChanges:   true,
		ForbidURLExpansionChanges:        true,
		ForbidAutoApplySettings:          true,
		MaxTextEditChars:                 100,
		AllowlistCampaignIDs:             nil,
		BlocklistCampaignIDs:             []string{},
		RequireManualApprovalForTypes: []OpType{
			OpAdsRemoveAsset,
			OpMerchantExcludeProduct,
		},
		RequirePreconditionMatch: true,
		AbortOnMissingEntity:     true,
		AbortOnFirstError:        true,
		MaxRiskLevel:             RiskMedium,
		MaxMediumRiskOps:         10,
	}
}

// RequiresApproval reports whether the given op type needs an explicit
// per-operation approval.
func (g Guardrails) RequiresApproval(t OpType) bool {
	for _, rt := range g.RequireManualApprovalForTypes {
		if rt == t {
			return true
		}
	}
	return false
}
