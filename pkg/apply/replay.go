package apply

import (
	"context"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// Replay is a LiveSystem that answers from a loaded snapshot and applies
// nothing. Running the executor against it exercises the full pipeline,
// precondition rechecks included, with zero side effects; it backs dry runs
// and the executor's own tests.
type Replay struct {
	snap *snapshot.Snapshot
}

// NewReplay wraps a snapshot as a read-only live system.
func NewReplay(snap *snapshot.Snapshot) *Replay {
	return &Replay{snap: snap}
}

// Fetch resolves the ref against the snapshot.
func (r *Replay) Fetch(_ context.Context, ref types.EntityRef) (*snapshot.Entity, error) {
	e, ok := r.snap.Resolve(ref)
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e, nil
}

// Mutate simulates the change by overlaying the after-image on the entity's
// current fields. The snapshot itself is never touched.
func (r *Replay) Mutate(_ context.Context, op plan.Operation) (MutationResult, error) {
	after := make(map[string]any)
	if e, ok := r.snap.Resolve(op.EntityRef); ok {
		for k, v := range e.Fields {
			after[k] = v
		}
	}
	for k, v := range op.After {
		after[k] = v
	}
	return MutationResult{After: after}, nil
}
