package plan

import (
	"fmt"

	"github.com/adsctl/adsctl/pkg/domain/types"
)

// RollbackType is the closed enumeration of undo strategies. Rollback is
// never executed by this engine; the instruction is recorded for a separate,
// explicitly invoked undo procedure.
type RollbackType string

const (
	// RollbackRestoreBefore restores the exact pre-image field values.
	RollbackRestoreBefore RollbackType = "RESTORE_BEFORE"
	// RollbackInverseOp undoes the change by applying the inverse operation.
	RollbackInverseOp RollbackType = "INVERSE_OP"
	// RollbackDeleteCreated deletes the entity the operation created.
	RollbackDeleteCreated RollbackType = "DELETE_CREATED"
	// RollbackManualRequired records enough context for a human to undo by hand.
	RollbackManualRequired RollbackType = "MANUAL_REQUIRED"
	// RollbackNone marks the operation as not undoable.
	RollbackNone RollbackType = "NO_ROLLBACK"
)

// IsValid reports whether the rollback type is one of the known values.
func (t RollbackType) IsValid() bool {
	switch t {
	case RollbackRestoreBefore, RollbackInverseOp, RollbackDeleteCreated,
		RollbackManualRequired, RollbackNone:
		return true
	}
	return false
}

// Rollback is a machine-usable undo instruction. Data must be sufficient to
// reconstruct the undo action without re-deriving it from the plan.
type Rollback struct {
	Type RollbackType `json:"type"`
	// Data carries the type-specific payload: pre-image fields for
	// RESTORE_BEFORE, the created EntityRef for DELETE_CREATED, original
	// context for MANUAL_REQUIRED.
	Data  map[string]any `json:"data,omitempty"`
	Notes string         `json:"notes,omitempty"`
}

// Validate checks that the payload matches the rollback type.
func (r Rollback) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("unknown rollback type %q", r.Type)
	}
	switch r.Type {
	case RollbackRestoreBefore:
		if len(r.Data) == 0 {
			return fmt.Errorf("rollback %s requires pre-image data", r.Type)
		}
	case RollbackDeleteCreated:
		ref, ok := r.Data["entity_ref"].(string)
		if !ok || ref == "" {
			return fmt.Errorf("rollback %s requires data.entity_ref", r.Type)
		}
		if _, _, _, err := types.EntityRef(ref).Parse(); err != nil {
			return fmt.Errorf("rollback %s: %w", r.Type, err)
		}
	case RollbackManualRequired:
		if len(r.Data) == 0 && r.Notes == "" {
			return fmt.Errorf("rollback %s requires context data or notes", r.Type)
		}
	case RollbackInverseOp, RollbackNone:
		// No payload requirements.
	}
	return nil
}

// RestoreBefore builds a RESTORE_BEFORE instruction carrying the exact
// pre-image values for the fields the operation changes.
func RestoreBefore(preImage map[string]any, notes string) Rollback {
	data := make(map[string]any, len(preImage))
	for k, v := range preImage {
		data[k] = v
	}
	return Rollback{Type: RollbackRestoreBefore, Data: data, Notes: notes}
}

// DeleteCreated builds a DELETE_CREATED instruction for the given ref.
func DeleteCreated(ref types.EntityRef, notes string) Rollback {
	return Rollback{
		Type:  RollbackDeleteCreated,
		Data:  map[string]any{"entity_ref": ref.String()},
		Notes: notes,
	}
}
