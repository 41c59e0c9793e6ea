// Package apply executes an approved plan against a live system. The executor
// owns the run state machine, per-operation precondition rechecks, timeouts,
// and the execution report; the live system itself is reached only through
// the LiveSystem port so dry runs and tests can substitute a replay adapter.
package apply

import (
	"context"
	"errors"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// ErrEntityNotFound is returned by LiveSystem.Fetch when the referenced
// entity does not exist in the live account.
var ErrEntityNotFound = errors.New("entity not found in live system")

// MutationResult is the observed state after a successful mutation.
type MutationResult struct {
	// After holds the entity fields as the live system reports them after
	// the change. May be nil when the backend does not echo state.
	After map[string]any
}

// LiveSystem is the outbound port to the advertising backends. Fetch returns
// current entity state in snapshot form so the precondition evaluator can run
// unchanged against live data.
type LiveSystem interface {
	Fetch(ctx context.Context, ref types.EntityRef) (*snapshot.Entity, error)
	Mutate(ctx context.Context, op plan.Operation) (MutationResult, error)
}
