package planner

import (
	"fmt"
	"strings"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// Rule ids, in engine order.
const (
	RuleBroadMatch          types.RuleID = "safety/broad-match"
	RuleNonBrandKeyword     types.RuleID = "safety/non-brand-keyword"
	RuleBiddingStrategy     types.RuleID = "safety/bidding-strategy"
	RuleAssetBrandText      types.RuleID = "safety/asset-brand-text"
	RuleMerchantDisapproved types.RuleID = "safety/merchant-disapproved"
	RulePMaxBrandExclusions types.RuleID = "safety/pmax-brand-exclusions"
)

func platformName(d types.Domain) string {
	if d == types.DomainMerchant {
		return "MERCHANT_CENTER"
	}
	return "GOOGLE_ADS"
}

func entityMeta(e *snapshot.Entity) plan.EntityMetadata {
	return plan.EntityMetadata{
		Platform:   platformName(e.Domain),
		EntityType: strings.ToUpper(e.Type),
		EntityID:   e.ID,
		EntityName: e.Name,
		ParentRefs: e.ParentRefs,
	}
}

// BroadMatchRule flags enabled broad-match keywords inside a branded
// campaign. Broad match in a brand-protection campaign leaks spend onto
// unrelated queries; the fix (narrowing match type) is left to a human.
type BroadMatchRule struct{}

// ID returns the rule id.
func (r *BroadMatchRule) ID() types.RuleID { return RuleBroadMatch }

// Generate emits a warning finding per offending keyword. No operations.
func (r *BroadMatchRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result
	for _, kw := range snap.Keywords() {
		if !cfg.IsBrandedCampaign(kw.CampaignID()) {
			continue
		}
		if kw.StringField("status") != "ENABLED" || kw.StringField("match_type") != "BROAD" {
			continue
		}
		res.AddFinding(r.ID(), plan.FindingWarning,
			fmt.Sprintf("BROAD match keyword in branded campaign: %q - consider EXACT or PHRASE", kw.StringField("text")),
			kw.Ref)
	}
	return res, nil
}

// NonBrandKeywordRule proposes pausing enabled non-brand keywords found in a
// branded campaign. Keywords matching a configured brand term are never
// touched; they are reported as protected instead.
type NonBrandKeywordRule struct{}

// ID returns the rule id.
func (r *NonBrandKeywordRule) ID() types.RuleID { return RuleNonBrandKeyword }

// Generate emits one pause operation per non-brand keyword.
func (r *NonBrandKeywordRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result

	foundBranded := false
	for _, id := range cfg.BrandedCampaignIDs {
		if _, ok := snap.Campaign(id); ok {
			foundBranded = true
			break
		}
	}
	if !foundBranded {
		res.AddFinding(r.ID(), plan.FindingError,
			fmt.Sprintf("no branded campaign found in snapshot (looked for %v)", cfg.BrandedCampaignIDs), "")
		return res, nil
	}

	var protected []string
	for _, kw := range snap.Keywords() {
		campaignID := kw.CampaignID()
		if !cfg.IsBrandedCampaign(campaignID) {
			continue
		}
		if kw.StringField("status") != "ENABLED" {
			continue
		}

		text := kw.StringField("text")
		if cfg.IsBrandTerm(text) {
			protected = append(protected, text)
			continue
		}

		op := plan.Operation{
			OpType:    plan.OpAdsSetKeywordStatus,
			EntityRef: kw.Ref,
			Entity:    entityMeta(kw),
			Intent:    fmt.Sprintf("Pause non-brand keyword %q in branded campaign to maintain brand purity", text),
			Before: map[string]any{
				"text":       text,
				"match_type": kw.StringField("match_type"),
				"status":     "ENABLED",
			},
			After: map[string]any{
				"text":       text,
				"match_type": kw.StringField("match_type"),
				"status":     "PAUSED",
			},
			Preconditions: []plan.Precondition{
				{Path: "status", Op: plan.OpEquals, Value: "ENABLED",
					Description: "Keyword must still be enabled"},
				{Path: "campaign.id", Op: plan.OpEquals, Value: campaignID,
					Description: "Keyword must still be in the branded campaign"},
			},
			Rollback: plan.RestoreBefore(map[string]any{"status": "ENABLED"},
				"Re-enable keyword if rollback needed"),
			Risk: plan.NewRisk(plan.RiskMedium,
				[]string{
					"Non-brand keyword in branded campaign dilutes brand protection",
					"Pausing may reduce impressions for this term",
				},
				[]string{
					"Keyword can be re-enabled via rollback",
					"Term may be better served by a non-brand campaign",
				}),
			Evidence: []plan.Evidence{{
				SnapshotPath: kw.SourcePath,
				Key:          "id",
				Value:        kw.ID,
				Note:         fmt.Sprintf("Keyword %q is not a recognized brand term", text),
			}},
			EvidenceQuery:   fmt.Sprintf("keywords WHERE campaign_id=%q AND status='ENABLED' AND text NOT IN brand_terms", campaignID),
			CreatedFromRule: r.ID(),
		}
		res.Operations = append(res.Operations, op)
	}

	if len(protected) > 0 {
		res.AddFinding(r.ID(), plan.FindingInfo,
			fmt.Sprintf("Protected %d brand keyword(s) in branded campaign (not proposed for pause)", len(protected)), "")
	}
	return res, nil
}

// BiddingStrategyRule flags branded campaigns whose bidding strategy is not
// manual CPC. Automated strategies on a brand campaign can bid brand clicks
// far above their value. By default this is a finding only; corrective
// operations require explicit configuration.
type BiddingStrategyRule struct{}

// ID returns the rule id.
func (r *BiddingStrategyRule) ID() types.RuleID { return RuleBiddingStrategy }

// Generate emits findings, plus corrective operations when authorized.
func (r *BiddingStrategyRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result
	for _, id := range cfg.BrandedCampaignIDs {
		campaign, ok := snap.Campaign(id)
		if !ok {
			res.AddFinding(r.ID(), plan.FindingError,
				fmt.Sprintf("branded campaign %s not found in snapshot", id), "")
			continue
		}

		strategy := campaign.StringField("bidding_strategy")
		if strategy == "" {
			strategy = "UNKNOWN"
		}
		if strategy == "MANUAL_CPC" {
			continue
		}

		res.AddFinding(r.ID(), plan.FindingError,
			fmt.Sprintf("branded campaign %q uses %s instead of MANUAL_CPC - manual intervention required",
				campaign.Name, strategy),
			campaign.Ref)

		if !cfg.AuthorizeBiddingCorrections {
			continue
		}

		op := plan.Operation{
			OpType:    plan.OpAdsUpdateBidStrategy,
			EntityRef: campaign.Ref,
			Entity:    entityMeta(campaign),
			Intent:    fmt.Sprintf("Restore MANUAL_CPC bidding on branded campaign %q", campaign.Name),
			Before:    map[string]any{"bidding_strategy": strategy},
			After:     map[string]any{"bidding_strategy": "MANUAL_CPC"},
			Preconditions: []plan.Precondition{
				{Path: "bidding_strategy", Op: plan.OpEquals, Value: strategy,
					Description: "Strategy must not have changed since the snapshot"},
			},
			Rollback: plan.RestoreBefore(map[string]any{"bidding_strategy": strategy},
				"Restore previous bidding strategy"),
			Risk: plan.NewRisk(plan.RiskHigh,
				[]string{"Bid strategy changes affect the whole campaign's auction behavior"},
				[]string{"Rollback restores the previous strategy"}),
			Evidence: []plan.Evidence{{
				SnapshotPath: campaign.SourcePath,
				Key:          "id",
				Value:        campaign.ID,
				FieldPath:    "bidding_strategy",
				Note:         fmt.Sprintf("Branded campaign bidding strategy is %s", strategy),
			}},
			CreatedFromRule: r.ID(),
		}
		res.Operations = append(res.Operations, op)
	}
	return res, nil
}

// Asset types whose text surfaces in ad copy.
var textAssetTypes = map[string]bool{
	"SITELINK":           true,
	"CALLOUT":            true,
	"STRUCTURED_SNIPPET": true,
	"HEADLINE":           true,
	"DESCRIPTION":        true,
}

// AssetBrandTextRule proposes rewriting branded-campaign asset text that
// mentions a manufacturer brand, replacing the mention with a generic term.
type AssetBrandTextRule struct{}

// ID returns the rule id.
func (r *AssetBrandTextRule) ID() types.RuleID { return RuleAssetBrandText }

// Generate emits one text-update operation per offending asset field.
func (r *AssetBrandTextRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result
	for _, asset := range snap.Assets() {
		if !r.linkedToBranded(asset, cfg) {
			continue
		}
		assetType := asset.StringField("type")
		if !textAssetTypes[assetType] {
			continue
		}

		for _, field := range []string{"text", "description", "description1", "description2", "headline"} {
			original := asset.StringField(field)
			if original == "" {
				continue
			}
			brand := cfg.ManufacturerBrandIn(original)
			if brand == "" {
				continue
			}

			replacement := cfg.genericReplace(original)
			if len(replacement) > len(original)+50 {
				res.AddFinding(r.ID(), plan.FindingWarning,
					fmt.Sprintf("asset contains manufacturer brand but replacement would be too different: %q", truncate(original, 50)),
					asset.Ref)
				continue
			}

			op := plan.Operation{
				OpType:    plan.OpAdsUpdateAssetText,
				EntityRef: asset.Ref,
				Entity:    entityMeta(asset),
				Intent:    "Remove manufacturer brand reference from branded campaign asset",
				Before: map[string]any{
					"asset_type": assetType,
					field:        original,
				},
				After: map[string]any{
					"asset_type": assetType,
					field:        replacement,
				},
				Preconditions: []plan.Precondition{
					{Path: field, Op: plan.OpContains, Value: brand,
						Description: "Asset must still contain the manufacturer brand"},
				},
				Rollback: plan.RestoreBefore(map[string]any{field: original}, "Restore original asset text"),
				Risk: plan.NewRisk(plan.RiskMedium,
					[]string{
						"Modifying asset text affects live ad copy",
						"Manufacturer brands must not appear in branded campaign assets",
					},
					[]string{
						"Rollback restores the original text",
						"Generic replacement keeps the ad readable",
					}),
				Evidence: []plan.Evidence{{
					SnapshotPath: asset.SourcePath,
					Key:          "id",
					Value:        asset.ID,
					FieldPath:    field,
					Note:         fmt.Sprintf("Asset %s contains manufacturer brand %q", field, brand),
				}},
				CreatedFromRule: r.ID(),
			}
			res.Operations = append(res.Operations, op)
		}
	}
	return res, nil
}

func (r *AssetBrandTextRule) linkedToBranded(asset *snapshot.Entity, cfg *Config) bool {
	for _, ref := range asset.ParentRefs {
		if ref.EntityType() == snapshot.TypeCampaign && cfg.IsBrandedCampaign(ref.EntityID()) {
			return true
		}
	}
	return false
}

// genericReplace substitutes every manufacturer brand mention with the
// configured generic term and collapses the resulting whitespace.
func (c *Config) genericReplace(text string) string {
	result := text
	for _, brand := range c.ManufacturerBrands {
		result = replaceFold(result, brand, c.GenericReplacement)
	}
	return strings.Join(strings.Fields(result), " ")
}

// replaceFold replaces every case-insensitive occurrence of old with new.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(old):]
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
