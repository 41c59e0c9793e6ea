package apply

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adsctl/adsctl/pkg/approval"
	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/errors"
	"github.com/adsctl/adsctl/pkg/planner"
	"github.com/adsctl/adsctl/pkg/precond"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// DefaultOpTimeout bounds a single mutation dispatch.
const DefaultOpTimeout = 30 * time.Second

// Options tunes executor behavior. The zero value uses defaults.
type Options struct {
	// OpTimeout is the per-operation mutation deadline.
	OpTimeout time.Duration
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Executor runs one plan against a live system. It is single-use per Run;
// the same Executor may run several plans sequentially.
type Executor struct {
	sys  LiveSystem
	eval *precond.Evaluator
	opts Options
}

// NewExecutor creates an Executor over the given live system.
func NewExecutor(sys LiveSystem, opts Options) *Executor {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{sys: sys, eval: precond.NewEvaluator(), opts: opts}
}

// Run validates the plan and executes its operations in order. A report is
// always returned, also on refusal; the error is non-nil whenever the run did
// not complete cleanly.
func (x *Executor) Run(ctx context.Context, p *plan.Plan) (*Report, error) {
	report := &Report{
		ApplyID:    types.ApplyID("apply-" + uuid.NewString()),
		PlanID:     p.PlanID,
		SnapshotID: p.SnapshotID,
		Mode:       p.Mode,
		State:      StatePending,
		StartedUTC: x.opts.Now().UTC(),
		Counts:     make(map[Outcome]int),
	}

	report.State = StateValidating
	if err := x.validate(p); err != nil {
		return x.abort(report, p, 0, err.Error()),
			errors.NewOperationalError("validating plan before apply", p.PlanID, "", err)
	}

	report.State = StateExecuting
	for i := range p.Operations {
		op := p.Operations[i]

		// Cancellation checkpoint. An operation already dispatched is never
		// interrupted; the plan stops before the next one.
		select {
		case <-ctx.Done():
			return x.abort(report, p, i, ReasonCancelled),
				errors.NewOperationalError("executing plan", p.PlanID, op.OpID, ctx.Err())
		default:
		}

		res, abortReason := x.executeOne(ctx, p, op)
		report.record(res)
		if abortReason != "" {
			return x.abort(report, p, i+1, abortReason),
				errors.NewOperationalError("executing plan", p.PlanID, op.OpID,
					fmt.Errorf("run aborted: %s", abortReason))
		}
	}

	report.State = StateCompleted
	report.FinishedUTC = x.opts.Now().UTC()
	return report, nil
}

// validate is the last line of defense before any mutation: the approval
// gate must pass and the operations hash must match the one sealed into the
// plan at assembly time.
func (x *Executor) validate(p *plan.Plan) error {
	if d := approval.Check(p); !d.Allowed {
		return d.Error()
	}
	sum, err := planner.HashOperations(p.Operations)
	if err != nil {
		return fmt.Errorf("hashing operations: %w", err)
	}
	if p.Integrity.OperationsSHA256 == "" {
		return fmt.Errorf("plan %s carries no operations hash", p.PlanID)
	}
	if sum != p.Integrity.OperationsSHA256 {
		return fmt.Errorf("operations hash mismatch: plan records %s, recomputed %s",
			p.Integrity.OperationsSHA256, sum)
	}
	return nil
}

// executeOne runs a single operation and returns its result plus a non-empty
// abort reason when the failure must stop the whole run.
func (x *Executor) executeOne(ctx context.Context, p *plan.Plan, op plan.Operation) (ExecutionResult, string) {
	res := ExecutionResult{
		OpID:      op.OpID,
		OpType:    op.OpType,
		EntityRef: op.EntityRef,
		Timestamp: x.opts.Now().UTC(),
	}
	g := p.Guardrails

	entity, err := x.sys.Fetch(ctx, op.EntityRef)
	switch {
	case stderrors.Is(err, ErrEntityNotFound):
		// Creation targets do not exist yet; everything else missing is a
		// drift between snapshot and live state.
		if op.OpType != plan.OpAdsAddNegativeKeyword {
			res.Outcome = OutcomeFailed
			res.Reason = ReasonMissingEntity
			res.Error = err.Error()
			if g.AbortOnMissingEntity || g.AbortOnFirstError {
				return res, ReasonMissingEntity
			}
			return res, ""
		}
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Reason = ReasonFetchError
		res.Error = err.Error()
		if g.AbortOnFirstError {
			return res, ReasonFetchError
		}
		return res, ""
	}

	if entity != nil {
		res.LiveStateBefore = entity.Fields

		ok, mismatches, evalErr := x.eval.Evaluate(x.subject(ctx, entity), op.Preconditions)
		if evalErr != nil {
			res.Outcome = OutcomeFailed
			res.Reason = ReasonPreconditionError
			res.Error = evalErr.Error()
			if g.AbortOnFirstError {
				return res, ReasonPreconditionError
			}
			return res, ""
		}
		if !ok {
			res.Detail = mismatches
			if g.RequirePreconditionMatch {
				res.Outcome = OutcomeFailed
				res.Reason = ReasonPreconditionMismatch
				res.Error = "live state no longer matches the plan's preconditions"
				return res, ReasonPreconditionMismatch
			}
			res.Outcome = OutcomeSkipped
			res.Reason = ReasonPreconditionMismatch
			return res, ""
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, x.opts.OpTimeout)
	defer cancel()
	mut, err := x.sys.Mutate(opCtx, op)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		if stderrors.Is(err, context.DeadlineExceeded) {
			res.Reason = ReasonTimeout
		} else {
			res.Reason = ReasonMutationError
		}
		if g.AbortOnFirstError {
			return res, res.Reason
		}
		return res, ""
	}

	res.Outcome = OutcomeApplied
	res.LiveStateAfter = mut.After
	return res, ""
}

// subject builds the precondition subject for a live entity, refetching its
// parents so parent-relation paths keep resolving at apply time. A parent
// that vanished is left out and surfaces as an unresolvable path.
func (x *Executor) subject(ctx context.Context, e *snapshot.Entity) precond.Subject {
	s := precond.LiveSubject(e)
	for _, ref := range e.ParentRefs {
		parent, err := x.sys.Fetch(ctx, ref)
		if err != nil {
			continue
		}
		if _, seen := s.Parents[parent.Type]; !seen {
			s.Parents[parent.Type] = parent
		}
	}
	return s
}

// abort marks every not-yet-dispatched operation ABORTED and finalizes the
// report. from is the index of the first operation that never ran.
func (x *Executor) abort(report *Report, p *plan.Plan, from int, reason string) *Report {
	for i := from; i < len(p.Operations); i++ {
		report.record(ExecutionResult{
			OpID:      p.Operations[i].OpID,
			OpType:    p.Operations[i].OpType,
			EntityRef: p.Operations[i].EntityRef,
			Outcome:   OutcomeAborted,
			Reason:    ReasonPlanAborted,
			Timestamp: x.opts.Now().UTC(),
		})
	}
	report.State = StateAborted
	report.AbortReason = reason
	report.FinishedUTC = x.opts.Now().UTC()
	return report
}
