package plan

import "fmt"

// OpType is the closed enumeration of mutations the engine can propose.
// Every switch over OpType must handle all fifteen values; an unknown value
// is an error, never a silent skip.
type OpType string

const (
	// OpAdsSetKeywordStatus enables or pauses a search keyword.
	OpAdsSetKeywordStatus OpType = "ADS_SET_KEYWORD_STATUS"
	// OpAdsRemoveKeyword removes a keyword from its ad group.
	OpAdsRemoveKeyword OpType = "ADS_REMOVE_KEYWORD"
	// OpAdsAddNegativeKeyword adds a campaign-level negative keyword.
	OpAdsAddNegativeKeyword OpType = "ADS_ADD_NEGATIVE_KEYWORD"
	// OpAdsRemoveNegativeKeyword removes a campaign-level negative keyword.
	OpAdsRemoveNegativeKeyword OpType = "ADS_REMOVE_NEGATIVE_KEYWORD"

	// OpAdsSetKeywordMatchType changes a keyword match type (EXACT/PHRASE/BROAD).
	OpAdsSetKeywordMatchType OpType = "ADS_SET_KEYWORD_MATCH_TYPE"
	// OpAdsSetKeywordBid changes a keyword-level manual bid.
	OpAdsSetKeywordBid OpType = "ADS_SET_KEYWORD_BID"
	// OpAdsUpdateAssetText rewrites the text of a sitelink/callout/headline asset.
	OpAdsUpdateAssetText OpType = "ADS_UPDATE_ASSET_TEXT"
	// OpAdsRemoveAsset unlinks an asset from its campaign.
	OpAdsRemoveAsset OpType = "ADS_REMOVE_ASSET"
	// OpAdsSetPMaxBrandExclusions attaches a brand exclusion list to a PMax campaign.
	OpAdsSetPMaxBrandExclusions OpType = "ADS_SET_PMAX_BRAND_EXCLUSIONS"

	// OpMerchantExcludeProduct excludes a product from Shopping/PMax feeds.
	OpMerchantExcludeProduct OpType = "MERCHANT_EXCLUDE_PRODUCT"
	// OpMerchantIncludeProduct re-includes a previously excluded product.
	OpMerchantIncludeProduct OpType = "MERCHANT_INCLUDE_PRODUCT"
	// OpMerchantUpdateProductAttribute updates a single product feed attribute.
	OpMerchantUpdateProductAttribute OpType = "MERCHANT_UPDATE_PRODUCT_ATTRIBUTE"

	// OpAdsSetCampaignStatus pauses or enables an entire campaign.
	OpAdsSetCampaignStatus OpType = "ADS_SET_CAMPAIGN_STATUS"
	// OpAdsUpdateBidStrategy changes a campaign bidding strategy.
	OpAdsUpdateBidStrategy OpType = "ADS_UPDATE_BID_STRATEGY"
	// OpAdsUpdateBudget changes a campaign budget.
	OpAdsUpdateBudget OpType = "ADS_UPDATE_BUDGET"
)

// AllOpTypes lists every operation type in declaration order.
var AllOpTypes = []OpType{
	OpAdsSetKeywordStatus,
	OpAdsRemoveKeyword,
	OpAdsAddNegativeKeyword,
	OpAdsRemoveNegativeKeyword,
	OpAdsSetKeywordMatchType,
	OpAdsSetKeywordBid,
	OpAdsUpdateAssetText,
	OpAdsRemoveAsset,
	OpAdsSetPMaxBrandExclusions,
	OpMerchantExcludeProduct,
	OpMerchantIncludeProduct,
	OpMerchantUpdateProductAttribute,
	OpAdsSetCampaignStatus,
	OpAdsUpdateBidStrategy,
	OpAdsUpdateBudget,
}

// IsValid reports whether t is one of the known operation types.
func (t OpType) IsValid() bool {
	switch t {
	case OpAdsSetKeywordStatus, OpAdsRemoveKeyword, OpAdsAddNegativeKeyword,
		OpAdsRemoveNegativeKeyword, OpAdsSetKeywordMatchType, OpAdsSetKeywordBid,
		OpAdsUpdateAssetText, OpAdsRemoveAsset, OpAdsSetPMaxBrandExclusions,
		OpMerchantExcludeProduct, OpMerchantIncludeProduct,
		OpMerchantUpdateProductAttribute, OpAdsSetCampaignStatus,
		OpAdsUpdateBidStrategy, OpAdsUpdateBudget:
		return true
	}
	return false
}

// String returns the wire representation of the operation type.
func (t OpType) String() string {
	return string(t)
}

// DefaultRisk returns the floor risk level for the operation type.
// Rules may raise the level of an individual operation, never lower it.
func (t OpType) DefaultRisk() RiskLevel {
	switch t {
	case OpAdsSetKeywordStatus, OpAdsRemoveKeyword,
		OpAdsAddNegativeKeyword, OpAdsRemoveNegativeKeyword:
		return RiskLow
	case OpAdsSetKeywordMatchType, OpAdsSetKeywordBid, OpAdsUpdateAssetText,
		OpAdsRemoveAsset, OpAdsSetPMaxBrandExclusions, OpMerchantExcludeProduct,
		OpMerchantIncludeProduct, OpMerchantUpdateProductAttribute:
		return RiskMedium
	case OpAdsSetCampaignStatus, OpAdsUpdateBidStrategy, OpAdsUpdateBudget:
		return RiskHigh
	}
	// Unknown op types are treated as maximally risky so they can never
	// slip under a guardrail ceiling.
	return RiskHigh
}

// ParseOpType converts the wire string into an OpType.
func ParseOpType(s string) (OpType, error) {
	t := OpType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown op_type %q", s)
	}
	return t, nil
}
