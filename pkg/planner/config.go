// Package planner generates change plans from snapshots: a fixed, ordered
// set of deterministic safety rules scans the loaded snapshot and emits
// candidate operations and findings, which the assembler aggregates into a
// reviewable plan.
package planner

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adsctl/adsctl/pkg/errors"
	"github.com/adsctl/adsctl/pkg/validation"
)

// CustomRule is a config-defined advisory rule evaluated with the expression
// engine. Custom rules can only surface findings, never operations: anything
// that mutates the account must come from a reviewed, compiled-in rule.
type CustomRule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	Collection  string `yaml:"collection"`
	When        string `yaml:"when"`
	Level       string `yaml:"level"`
	Message     string `yaml:"message"`
}

// Config is the rule configuration loaded from YAML. Brand terms are the
// load-bearing input: an empty list makes brand/non-brand classification
// meaningless, so validation treats it as fatal.
type Config struct {
	BrandTerms         []string `yaml:"brand_terms"`
	ManufacturerBrands []string `yaml:"manufacturer_brands"`
	DiscontinuedSKUs   []string `yaml:"discontinued_skus"`
	BrandedCampaignIDs []string `yaml:"branded_campaign_ids"`

	// GenericReplacement substitutes manufacturer brand mentions in asset
	// text proposals. Defaults to "Premium".
	GenericReplacement string `yaml:"generic_replacement"`

	// AuthorizeBiddingCorrections lets the bidding-strategy rule emit
	// corrective operations instead of findings only.
	AuthorizeBiddingCorrections bool `yaml:"authorize_bidding_corrections"`

	CustomRules []CustomRule `yaml:"custom_rules"`

	// Path records where the config was loaded from, for plan provenance.
	Path string `yaml:"-"`

	skuSet map[string]struct{}
}

// LoadConfig reads and validates a rule configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("rule config", err.Error())
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError("rule config", fmt.Sprintf("parsing %s: %v", path, err))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration invariants and fills defaults.
// An empty brand-term list is fatal: silently classifying every keyword as
// non-brand is exactly the failure this tool exists to prevent.
func (c *Config) Validate() error {
	if len(c.BrandTerms) == 0 {
		return errors.NewConfigError("brand_terms",
			"list is empty - cannot safely classify keywords as brand or non-brand")
	}
	for i, term := range c.BrandTerms {
		if strings.TrimSpace(term) == "" {
			return errors.NewConfigError("brand_terms", fmt.Sprintf("term %d is blank", i))
		}
	}
	if len(c.BrandedCampaignIDs) == 0 {
		return errors.NewConfigError("branded_campaign_ids",
			"list is empty - no campaign designated as branded")
	}
	for _, cr := range c.CustomRules {
		if cr.ID == "" || cr.Collection == "" || cr.When == "" {
			return errors.NewConfigError("custom_rules",
				fmt.Sprintf("rule %q needs id, collection, and when", cr.ID))
		}
		if !validation.IsValidRuleID(cr.ID) {
			return errors.NewConfigError("custom_rules",
				fmt.Sprintf("rule id %q is not a valid identifier", cr.ID))
		}
	}
	if c.GenericReplacement == "" {
		c.GenericReplacement = "Premium"
	}
	c.skuSet = make(map[string]struct{}, len(c.DiscontinuedSKUs))
	for _, sku := range c.DiscontinuedSKUs {
		sku = strings.TrimSpace(sku)
		if sku != "" && !strings.HasPrefix(sku, "#") {
			c.skuSet[sku] = struct{}{}
		}
	}
	return nil
}

// IsBrandTerm reports whether the text contains any configured brand term,
// case-insensitively.
func (c *Config) IsBrandTerm(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, term := range c.BrandTerms {
		if strings.Contains(t, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// ManufacturerBrandIn returns the first manufacturer brand the text contains,
// or "".
func (c *Config) ManufacturerBrandIn(text string) string {
	t := strings.ToLower(text)
	for _, brand := range c.ManufacturerBrands {
		if strings.Contains(t, strings.ToLower(brand)) {
			return brand
		}
	}
	return ""
}

// IsBrandedCampaign reports whether the campaign id is designated branded.
func (c *Config) IsBrandedCampaign(id string) bool {
	for _, b := range c.BrandedCampaignIDs {
		if b == id {
			return true
		}
	}
	return false
}

// IsDiscontinuedSKU reports whether the offer id is on the discontinued
// allowlist.
func (c *Config) IsDiscontinuedSKU(offerID string) bool {
	_, ok := c.skuSet[offerID]
	return ok
}

// SafeBrandTerms returns brand terms with any term containing a manufacturer
// brand filtered out. Only these may be placed on an exclusion list.
func (c *Config) SafeBrandTerms() []string {
	var out []string
	for _, term := range c.BrandTerms {
		if c.ManufacturerBrandIn(term) == "" {
			out = append(out, term)
		}
	}
	return out
}
