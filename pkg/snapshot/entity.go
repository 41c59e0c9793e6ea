// Package snapshot provides the typed, read-only view over a captured
// account state. A snapshot is loaded once from a timestamped directory and
// shared freely across the planner, validators, and executor; nothing in this
// package mutates it after Load returns.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// Entity type names used in entity refs and collection lookups.
const (
	TypeCampaign        = "campaign"
	TypeAdGroup         = "ad_group"
	TypeKeyword         = "keyword"
	TypeNegativeKeyword = "negative_keyword"
	TypeAd              = "ad"
	TypeAsset           = "asset"
	TypeAssetGroup      = "asset_group"
	TypeProduct         = "product"
	TypeProductStatus   = "product_status"
)

// Entity is one normalized record from a snapshot: a flat field mapping plus
// the raw JSON it was decoded from, so precondition paths can be resolved
// without re-encoding.
type Entity struct {
	Ref        types.EntityRef
	Domain     types.Domain
	Type       string
	ID         string
	Name       string
	Fields     map[string]any
	ParentRefs []types.EntityRef

	// SourcePath is the snapshot-relative file the record came from, kept
	// for evidence pointers.
	SourcePath string

	raw []byte
}

// NewEntity builds an Entity from a field mapping. Used by live-system
// adapters to present freshly fetched state in snapshot form; loaded
// snapshots construct entities directly from file records instead.
func NewEntity(domain types.Domain, entityType, id string, fields map[string]any) (*Entity, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding %s.%s:%s state: %w", domain, entityType, id, err)
	}
	return &Entity{
		Ref:    types.MakeEntityRef(domain, entityType, id),
		Domain: domain,
		Type:   entityType,
		ID:     id,
		Name:   "",
		Fields: fields,
		raw:    raw,
	}, nil
}

// Raw returns the record's raw JSON bytes.
func (e *Entity) Raw() []byte {
	return e.raw
}

// Get resolves a dot path against the record's raw JSON.
func (e *Entity) Get(path string) gjson.Result {
	return gjson.GetBytes(e.raw, path)
}

// Field returns the named top-level field, or nil when absent.
func (e *Entity) Field(name string) any {
	return e.Fields[name]
}

// StringField returns the named field as a string, or "" when absent or not
// a string.
func (e *Entity) StringField(name string) string {
	s, _ := e.Fields[name].(string)
	return s
}

// CampaignID returns the campaign id from the parent chain, or the entity's
// own id when the entity is itself a campaign.
func (e *Entity) CampaignID() string {
	if e.Type == TypeCampaign {
		return e.ID
	}
	for _, ref := range e.ParentRefs {
		if ref.EntityType() == TypeCampaign {
			return ref.EntityID()
		}
	}
	return ""
}
