package planner

import (
	"fmt"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// MerchantDisapprovedRule proposes excluding disapproved Merchant Center
// products, but only for offers on the discontinued-SKU allowlist.
// Disapproval alone is never sufficient: a disapproved live product usually
// needs its feed fixed, not its listing removed.
type MerchantDisapprovedRule struct{}

// ID returns the rule id.
func (r *MerchantDisapprovedRule) ID() types.RuleID { return RuleMerchantDisapproved }

// Generate emits one exclusion operation per discontinued disapproved offer.
func (r *MerchantDisapprovedRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result
	disapproved := 0
	excluded := 0

	for _, product := range snap.Products() {
		if product.StringField("approval_status") != "DISAPPROVED" {
			continue
		}
		disapproved++

		offerID := product.StringField("offer_id")
		if !cfg.IsDiscontinuedSKU(offerID) {
			continue
		}
		excluded++

		title := truncate(product.StringField("title"), 80)
		op := plan.Operation{
			OpType:    plan.OpMerchantExcludeProduct,
			EntityRef: product.Ref,
			Entity:    entityMeta(product),
			Intent:    fmt.Sprintf("Exclude discontinued product %q from Shopping/PMax", title),
			Before: map[string]any{
				"offer_id":        offerID,
				"title":           title,
				"approval_status": "DISAPPROVED",
				"excluded":        false,
			},
			After: map[string]any{
				"offer_id":         offerID,
				"excluded":         true,
				"exclusion_reason": "DISCONTINUED_AND_DISAPPROVED",
			},
			Preconditions: []plan.Precondition{
				{Path: "offer_id", Op: plan.OpExists,
					Description: "Product must exist in Merchant Center"},
				{Path: "approval_status", Op: plan.OpEquals, Value: "DISAPPROVED",
					Description: "Product must still be disapproved"},
			},
			Rollback: plan.RestoreBefore(map[string]any{"excluded": false},
				"Remove exclusion from supplemental feed"),
			Risk: plan.NewRisk(plan.RiskMedium,
				[]string{
					"Excluding products reduces Shopping inventory",
					"Product is on the discontinued-SKU allowlist",
				},
				[]string{
					"Only excludes products explicitly listed as discontinued",
					"Rollback removes the exclusion",
				}),
			Evidence: []plan.Evidence{{
				SnapshotPath: product.SourcePath,
				Key:          "offer_id",
				Value:        offerID,
				Note:         "Product disapproved and on the discontinued-SKU allowlist",
			}},
			EvidenceQuery:   "products WHERE approval_status='DISAPPROVED' AND offer_id IN discontinued_skus",
			CreatedFromRule: r.ID(),
		}
		res.Operations = append(res.Operations, op)
	}

	if disapproved > 0 {
		res.AddFinding(r.ID(), plan.FindingInfo,
			fmt.Sprintf("%d disapproved products found; %d on discontinued list (proposed for exclusion)",
				disapproved, excluded), "")
	}
	return res, nil
}

// PMaxBrandExclusionsRule proposes installing a brand exclusion list on every
// enabled Performance Max campaign that does not already have one. PMax does
// not support standard negative keywords, so brand protection there works
// through exclusion lists instead.
type PMaxBrandExclusionsRule struct{}

// ID returns the rule id.
func (r *PMaxBrandExclusionsRule) ID() types.RuleID { return RulePMaxBrandExclusions }

// Generate emits one exclusion-list operation per unprotected PMax campaign.
func (r *PMaxBrandExclusionsRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result

	campaigns := snap.PMaxCampaigns()
	if len(campaigns) == 0 {
		res.AddFinding(r.ID(), plan.FindingInfo, "No PMax campaigns found", "")
		return res, nil
	}

	// Existing negative criteria per campaign, when the capture includes them.
	existing := make(map[string]int)
	for _, crit := range snap.Collection(snapshot.ColBrandExclusions) {
		if id := crit.StringField("campaign_id"); id != "" {
			existing[id]++
		}
	}

	safeTerms := cfg.SafeBrandTerms()

	for _, campaign := range campaigns {
		if campaign.StringField("status") != "ENABLED" {
			continue
		}
		if n := existing[campaign.ID]; n > 0 {
			res.AddFinding(r.ID(), plan.FindingInfo,
				fmt.Sprintf("PMax campaign %q already has %d negative criteria configured", campaign.Name, n), "")
			continue
		}
		if len(safeTerms) == 0 {
			res.AddFinding(r.ID(), plan.FindingWarning,
				fmt.Sprintf("no safe brand terms to exclude for %q (all terms contain manufacturer brands)", campaign.Name), "")
			continue
		}

		listName := fmt.Sprintf("Brand Exclusions - %s", campaign.Name)
		op := plan.Operation{
			OpType:    plan.OpAdsSetPMaxBrandExclusions,
			EntityRef: campaign.Ref,
			Entity:    entityMeta(campaign),
			Intent:    fmt.Sprintf("Set brand exclusions for PMax campaign %q to protect branded traffic", campaign.Name),
			Before: map[string]any{
				"brand_list_id": nil,
				"brands":        []string{},
			},
			After: map[string]any{
				"brand_list_id":   "auto",
				"brand_list_name": listName,
				"brands":          safeTerms,
			},
			Params: map[string]any{
				"campaign_id":     campaign.ID,
				"action":          "SET",
				"brand_list_name": listName,
				"brands":          safeTerms,
			},
			Preconditions: []plan.Precondition{
				{Path: "status", Op: plan.OpEquals, Value: "ENABLED",
					Description: "Campaign must be enabled"},
				{Path: "brand_list_id", Op: plan.OpNotExists,
					Description: "Campaign must not already have a brand exclusion list"},
			},
			Rollback: plan.RestoreBefore(map[string]any{"brands": []string{}},
				"Remove brand exclusion list from campaign"),
			Risk: plan.NewRisk(plan.RiskMedium,
				[]string{
					"Brand exclusions change which queries trigger PMax ads",
					"Reduces PMax reach for brand queries (the desired behavior)",
				},
				[]string{
					"Brand terms come from reviewed configuration",
					"Manufacturer brands are filtered from the exclusion set",
					"Rollback removes the exclusion list",
				}),
			Evidence: []plan.Evidence{
				{
					SnapshotPath: campaign.SourcePath,
					Key:          "id",
					Value:        campaign.ID,
					Note:         "PMax campaign without brand exclusions",
				},
				{
					SnapshotPath: cfg.Path,
					Key:          "brand_terms",
					Value:        safeTerms,
					Note:         "Brand terms to exclude (manufacturer brands filtered out)",
				},
			},
			EvidenceQuery:   "pmax_campaigns WHERE status='ENABLED' AND brand_exclusions IS NULL",
			CreatedFromRule: r.ID(),
		}
		res.Operations = append(res.Operations, op)
	}

	return res, nil
}
