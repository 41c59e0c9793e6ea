// Package types defines core domain identifiers shared across adsctl.
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PlanID is a unique identifier for a change plan.
type PlanID string

// OpID is a unique identifier for an operation within a plan.
type OpID string

// SnapshotID identifies an immutable account state capture.
type SnapshotID string

// RuleID identifies the planner rule that produced an operation or finding.
type RuleID string

// ApplyID is a unique identifier for one apply run of a plan.
type ApplyID string

// NewApplyID generates a new unique apply run ID.
func NewApplyID() ApplyID {
	return ApplyID(uuid.NewString())
}

// String returns the string representation of a PlanID.
func (id PlanID) String() string {
	return string(id)
}

// String returns the string representation of an OpID.
func (id OpID) String() string {
	return string(id)
}

// String returns the string representation of a SnapshotID.
func (id SnapshotID) String() string {
	return string(id)
}

// String returns the string representation of a RuleID.
func (id RuleID) String() string {
	return string(id)
}

// String returns the string representation of an ApplyID.
func (id ApplyID) String() string {
	return string(id)
}

// IsZero returns true if the ApplyID is the zero value.
func (id ApplyID) IsZero() bool {
	return id == ""
}

// Domain names the external system an entity belongs to.
type Domain string

const (
	// DomainAds is the search/PMax advertising account.
	DomainAds Domain = "ads"
	// DomainMerchant is the merchant product feed account.
	DomainMerchant Domain = "merchant"
)

// IsValid reports whether the domain is one of the known values.
func (d Domain) IsValid() bool {
	return d == DomainAds || d == DomainMerchant
}

// EntityRef is the canonical cross-component identity for an account entity,
// formatted as "<domain>.<entity_type>:<entity_id>". A raw numeric id is never
// used on its own.
type EntityRef string

// MakeEntityRef builds a canonical EntityRef from its parts.
func MakeEntityRef(domain Domain, entityType, entityID string) EntityRef {
	return EntityRef(fmt.Sprintf("%s.%s:%s", domain, strings.ToLower(entityType), entityID))
}

// String returns the string representation of an EntityRef.
func (r EntityRef) String() string {
	return string(r)
}

// Parse splits the ref into domain, entity type, and entity id.
// Returns an error if the ref does not follow the canonical format.
func (r EntityRef) Parse() (Domain, string, string, error) {
	head, id, ok := strings.Cut(string(r), ":")
	if !ok || id == "" {
		return "", "", "", fmt.Errorf("malformed entity ref %q: missing entity id", r)
	}
	domainPart, entityType, ok := strings.Cut(head, ".")
	if !ok || entityType == "" {
		return "", "", "", fmt.Errorf("malformed entity ref %q: missing entity type", r)
	}
	domain := Domain(domainPart)
	if !domain.IsValid() {
		return "", "", "", fmt.Errorf("malformed entity ref %q: unknown domain %q", r, domainPart)
	}
	return domain, entityType, id, nil
}

// Domain returns the domain component of the ref, or "" if malformed.
func (r EntityRef) Domain() Domain {
	d, _, _, err := r.Parse()
	if err != nil {
		return ""
	}
	return d
}

// EntityType returns the entity type component of the ref, or "" if malformed.
func (r EntityRef) EntityType() string {
	_, t, _, err := r.Parse()
	if err != nil {
		return ""
	}
	return t
}

// EntityID returns the entity id component of the ref, or "" if malformed.
func (r EntityRef) EntityID() string {
	_, _, id, err := r.Parse()
	if err != nil {
		return ""
	}
	return id
}
