package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// Required files: a snapshot without these cannot feed the rule engine.
var requiredFiles = []string{
	"_manifest.json",
	"normalized/ads/campaigns.json",
	"normalized/ads/keywords.json",
}

// Collections whose extraction must have succeeded before any plan is
// generated or applied against the snapshot.
var requiredCollections = []string{"campaigns", "ad_groups", "keywords"}

// envelope is the on-disk shape of every normalized collection file.
type envelope struct {
	ExtractedAt string            `json:"extracted_at"`
	Count       int               `json:"count"`
	Records     []json.RawMessage `json:"records"`
}

// colSpec describes how one normalized file maps into the entity model.
type colSpec struct {
	relPath    string
	collection string
	domain     types.Domain
	entityType string
	optional   bool
}

var colSpecs = []colSpec{
	{"normalized/ads/campaigns.json", ColCampaigns, types.DomainAds, TypeCampaign, false},
	{"normalized/ads/ad_groups.json", ColAdGroups, types.DomainAds, TypeAdGroup, true},
	{"normalized/ads/keywords.json", ColKeywords, types.DomainAds, TypeKeyword, false},
	{"normalized/ads/negatives.json", ColNegatives, types.DomainAds, TypeNegativeKeyword, true},
	{"normalized/ads/ads.json", ColAds, types.DomainAds, TypeAd, true},
	{"normalized/ads/assets.json", ColAssets, types.DomainAds, TypeAsset, true},
	{"normalized/pmax/campaigns.json", ColPMaxCampaigns, types.DomainAds, TypeCampaign, true},
	{"normalized/pmax/asset_groups.json", ColAssetGroups, types.DomainAds, TypeAssetGroup, true},
	{"normalized/pmax/brand_exclusions.json", ColBrandExclusions, types.DomainAds, "brand_exclusion", true},
	{"normalized/merchant/products.json", ColProducts, types.DomainMerchant, TypeProduct, true},
	{"normalized/merchant/product_status.json", ColProductStatuses, types.DomainMerchant, TypeProductStatus, true},
}

// Load reads a snapshot directory into an indexed, immutable Snapshot.
// It refuses directories that are missing required files or whose manifest
// reports extraction errors for collections the rules depend on.
func Load(dir string) (*Snapshot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot path %s is not a directory", dir)
	}

	var missing []string
	for _, rel := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("snapshot %s is missing required files: %v", dir, missing)
	}

	manifest, err := loadManifest(filepath.Join(dir, "_manifest.json"))
	if err != nil {
		return nil, err
	}
	if err := manifest.RequireClean(requiredCollections...); err != nil {
		return nil, err
	}

	s := &Snapshot{
		ID:          types.SnapshotID(manifest.SnapshotID),
		Version:     manifest.SnapshotVersion,
		Dir:         dir,
		Manifest:    manifest,
		collections: make(map[string][]*Entity),
		byRef:       make(map[types.EntityRef]*Entity),
	}
	if s.ID == "" {
		s.ID = types.SnapshotID(filepath.Base(dir))
	}

	for _, spec := range colSpecs {
		path := filepath.Join(dir, spec.relPath)
		env, err := loadEnvelope(path)
		if err != nil {
			if os.IsNotExist(err) && spec.optional {
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", spec.relPath, err)
		}
		for _, raw := range env.Records {
			e, err := decodeEntity(raw, spec)
			if err != nil {
				return nil, fmt.Errorf("decoding record in %s: %w", spec.relPath, err)
			}
			s.add(spec.collection, e)
		}
	}

	return s, nil
}

// Latest returns the most recent snapshot directory under root, by directory
// name (capture ids are sortable timestamps).
func Latest(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading snapshot root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no snapshots found under %s", root)
	}
	sort.Strings(dirs)
	return filepath.Join(root, dirs[len(dirs)-1]), nil
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

func loadEnvelope(path string) (*envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &env, nil
}

func decodeEntity(raw json.RawMessage, spec colSpec) (*Entity, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	id := scalarString(fields["id"])
	if id == "" {
		// Merchant product statuses key on product_id rather than id.
		id = scalarString(fields["product_id"])
	}

	e := &Entity{
		Domain:     spec.domain,
		Type:       spec.entityType,
		ID:         id,
		Name:       nameField(fields),
		Fields:     fields,
		SourcePath: spec.relPath,
		raw:        append([]byte(nil), raw...),
	}
	if id != "" {
		e.Ref = types.MakeEntityRef(spec.domain, spec.entityType, id)
	}
	e.ParentRefs = parentRefs(spec, fields)
	return e, nil
}

// parentRefs derives the ordered parent chain from the normalized fields.
// Ordering is campaign first, then ad group, matching ref resolution order.
func parentRefs(spec colSpec, fields map[string]any) []types.EntityRef {
	var refs []types.EntityRef
	if id := scalarString(fields["campaign_id"]); id != "" {
		refs = append(refs, types.MakeEntityRef(types.DomainAds, TypeCampaign, id))
	}
	if id := scalarString(fields["ad_group_id"]); id != "" {
		refs = append(refs, types.MakeEntityRef(types.DomainAds, TypeAdGroup, id))
	}
	// Assets carry linked campaign ids rather than a single parent.
	if linked, ok := fields["linked_campaigns"].([]any); ok {
		for _, v := range linked {
			if id := scalarString(v); id != "" {
				refs = append(refs, types.MakeEntityRef(types.DomainAds, TypeCampaign, id))
			}
		}
	}
	return refs
}

func nameField(fields map[string]any) string {
	if s := scalarString(fields["name"]); s != "" {
		return s
	}
	if s := scalarString(fields["title"]); s != "" {
		return s
	}
	if s := scalarString(fields["text"]); s != "" {
		return s
	}
	return ""
}

// scalarString renders an id-like scalar as a string. Numeric ids arrive as
// JSON numbers and must not pick up a decimal point.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
