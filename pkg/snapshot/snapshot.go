package snapshot

import (
	"github.com/adsctl/adsctl/pkg/domain/types"
)

// Collection keys, matching the normalized file names on disk.
const (
	ColCampaigns       = "campaigns"
	ColPMaxCampaigns   = "pmax_campaigns"
	ColAdGroups        = "ad_groups"
	ColKeywords        = "keywords"
	ColNegatives       = "negatives"
	ColAds             = "ads"
	ColAssets          = "assets"
	ColAssetGroups     = "asset_groups"
	ColProducts        = "products"
	ColProductStatuses = "product_statuses"
	ColBrandExclusions = "brand_exclusions"
)

// Snapshot is one immutable capture of account state, indexed for lookup.
type Snapshot struct {
	ID       types.SnapshotID
	Version  string
	Dir      string
	Manifest *Manifest

	collections map[string][]*Entity
	byRef       map[types.EntityRef]*Entity
}

// Collection returns the entities of the named collection, in file order.
func (s *Snapshot) Collection(name string) []*Entity {
	return s.collections[name]
}

// Campaigns returns standard (non-PMax) campaigns.
func (s *Snapshot) Campaigns() []*Entity { return s.collections[ColCampaigns] }

// PMaxCampaigns returns Performance Max campaigns.
func (s *Snapshot) PMaxCampaigns() []*Entity { return s.collections[ColPMaxCampaigns] }

// AdGroups returns ad groups.
func (s *Snapshot) AdGroups() []*Entity { return s.collections[ColAdGroups] }

// Keywords returns positive keywords across all ad groups.
func (s *Snapshot) Keywords() []*Entity { return s.collections[ColKeywords] }

// Negatives returns campaign- and ad-group-level negative keywords.
func (s *Snapshot) Negatives() []*Entity { return s.collections[ColNegatives] }

// Ads returns ads.
func (s *Snapshot) Ads() []*Entity { return s.collections[ColAds] }

// Assets returns ad assets (sitelinks, callouts, snippets, calls).
func (s *Snapshot) Assets() []*Entity { return s.collections[ColAssets] }

// AssetGroups returns PMax asset groups.
func (s *Snapshot) AssetGroups() []*Entity { return s.collections[ColAssetGroups] }

// Products returns Merchant Center products with approval status folded in.
func (s *Snapshot) Products() []*Entity { return s.collections[ColProducts] }

// Resolve looks up an entity by its canonical ref.
func (s *Snapshot) Resolve(ref types.EntityRef) (*Entity, bool) {
	e, ok := s.byRef[ref]
	return e, ok
}

// Campaign returns the campaign (standard or PMax) with the given id.
func (s *Snapshot) Campaign(id string) (*Entity, bool) {
	if e, ok := s.Resolve(types.MakeEntityRef(types.DomainAds, TypeCampaign, id)); ok {
		return e, true
	}
	return nil, false
}

// CampaignName returns the campaign name for the given id, or "Unknown".
func (s *Snapshot) CampaignName(id string) string {
	if e, ok := s.Campaign(id); ok && e.Name != "" {
		return e.Name
	}
	return "Unknown"
}

// Parents resolves the entity's parent chain against this snapshot. Refs that
// do not resolve (e.g. a merchant account ref) are omitted.
func (s *Snapshot) Parents(e *Entity) []*Entity {
	var out []*Entity
	for _, ref := range e.ParentRefs {
		if p, ok := s.byRef[ref]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Snapshot) add(col string, e *Entity) {
	s.collections[col] = append(s.collections[col], e)
	if e.Ref != "" {
		if _, exists := s.byRef[e.Ref]; !exists {
			s.byRef[e.Ref] = e
		}
	}
}
