package plan

import (
	"fmt"
	"reflect"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// EntityMetadata describes the entity an operation targets, including the
// ordered parent chain used for campaign-scoped guardrails and precondition
// resolution.
type EntityMetadata struct {
	Platform   string            `json:"platform"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	EntityName string            `json:"entity_name,omitempty"`
	ParentRefs []types.EntityRef `json:"parent_refs,omitempty"`
}

// CampaignID returns the campaign id from the parent chain, or "" when the
// entity is not campaign-scoped.
func (m EntityMetadata) CampaignID() string {
	if m.EntityType == "CAMPAIGN" {
		return m.EntityID
	}
	for _, ref := range m.ParentRefs {
		if ref.EntityType() == "campaign" {
			return ref.EntityID()
		}
	}
	return ""
}

// Evidence points back at the exact snapshot record(s) that justified an
// operation or finding.
type Evidence struct {
	SnapshotPath string `json:"snapshot_path"`
	Key          string `json:"key"`
	Value        any    `json:"value"`
	FieldPath    string `json:"field_path,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Operation is the atomic unit of change: one proposed mutation with its
// before/after diff, preconditions, risk grading, and rollback instruction.
type Operation struct {
	OpID            types.OpID      `json:"op_id"`
	OpType          OpType          `json:"op_type"`
	EntityRef       types.EntityRef `json:"entity_ref"`
	Entity          EntityMetadata  `json:"entity"`
	Intent          string          `json:"intent"`
	Before          map[string]any  `json:"before"`
	After           map[string]any  `json:"after"`
	Params          map[string]any  `json:"params,omitempty"`
	Preconditions   []Precondition  `json:"preconditions"`
	Rollback        Rollback        `json:"rollback"`
	Risk            Risk            `json:"risk"`
	Evidence        []Evidence      `json:"evidence"`
	EvidenceQuery   string          `json:"evidence_query,omitempty"`
	CreatedFromRule types.RuleID    `json:"created_from_rule"`
	Approved        bool            `json:"approved"`
	ApprovalNotes   string          `json:"approval_notes,omitempty"`
}

// Validate checks the operation invariants that the assembler enforces:
// a resolvable-format entity ref, a non-empty before/after diff that actually
// differs, non-empty preconditions, valid rollback, and at least one evidence
// pointer.
func (op *Operation) Validate() error {
	if op.OpID == "" {
		return fmt.Errorf("operation missing op_id")
	}
	if !op.OpType.IsValid() {
		return fmt.Errorf("operation %s: unknown op_type %q", op.OpID, op.OpType)
	}
	if _, _, _, err := op.EntityRef.Parse(); err != nil {
		return fmt.Errorf("operation %s: %w", op.OpID, err)
	}
	if len(op.Before) == 0 || len(op.After) == 0 {
		return fmt.Errorf("operation %s: before and after diffs cannot be empty", op.OpID)
	}
	if !op.Changes() {
		return fmt.Errorf("operation %s: before and after are identical (no-op)", op.OpID)
	}
	if len(op.Preconditions) == 0 {
		return fmt.Errorf("operation %s: at least one precondition is required", op.OpID)
	}
	for i, pc := range op.Preconditions {
		if err := pc.Validate(); err != nil {
			return fmt.Errorf("operation %s precondition %d: %w", op.OpID, i, err)
		}
	}
	if err := op.Rollback.Validate(); err != nil {
		return fmt.Errorf("operation %s: %w", op.OpID, err)
	}
	if !op.Risk.Level.IsValid() {
		return fmt.Errorf("operation %s: invalid risk level %q", op.OpID, op.Risk.Level)
	}
	if op.Risk.Level.Numeric() < op.OpType.DefaultRisk().Numeric() {
		return fmt.Errorf("operation %s: risk %s below the %s floor for %s",
			op.OpID, op.Risk.Level, op.OpType.DefaultRisk(), op.OpType)
	}
	if len(op.Evidence) == 0 {
		return fmt.Errorf("operation %s: at least one evidence pointer is required", op.OpID)
	}
	if op.CreatedFromRule == "" {
		return fmt.Errorf("operation %s: missing created_from_rule provenance", op.OpID)
	}
	return nil
}

// Changes reports whether before and after differ in at least one field.
func (op *Operation) Changes() bool {
	for k, after := range op.After {
		before, ok := op.Before[k]
		if !ok || !reflect.DeepEqual(before, after) {
			return true
		}
	}
	for k := range op.Before {
		if _, ok := op.After[k]; !ok {
			return true
		}
	}
	return false
}

// TextEditDelta returns the total character-size change across string fields,
// used against the max_text_edit_chars guardrail. Only string-valued fields
// participate.
func (op *Operation) TextEditDelta() int {
	delta := 0
	for k, after := range op.After {
		afterStr, ok := after.(string)
		if !ok {
			continue
		}
		beforeStr, _ := op.Before[k].(string)
		d := len(afterStr) - len(beforeStr)
		if d < 0 {
			d = -d
		}
		delta += d
	}
	return delta
}
