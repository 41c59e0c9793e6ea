package planner

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/errors"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// customRule evaluates a configured boolean expression against every entity
// in one snapshot collection and surfaces a finding per match. Custom rules
// are advisory only: the expression sandbox has no way to emit an operation.
type customRule struct {
	def     CustomRule
	program *vm.Program
}

func newCustomRule(def CustomRule) *customRule {
	return &customRule{def: def}
}

// ID returns the rule id, namespaced under custom/.
func (r *customRule) ID() types.RuleID {
	return types.RuleID("custom/" + r.def.ID)
}

// Generate compiles the expression once, then evaluates it per entity.
func (r *customRule) Generate(snap *snapshot.Snapshot, cfg *Config) (Result, error) {
	var res Result

	if r.program == nil {
		program, err := expr.Compile(r.def.When, expr.AsBool())
		if err != nil {
			return res, errors.NewConfigError(
				fmt.Sprintf("custom rule %s", r.def.ID),
				fmt.Sprintf("invalid expression %q: %v", r.def.When, err))
		}
		r.program = program
	}

	entities := snap.Collection(r.def.Collection)
	if entities == nil {
		res.AddFinding(r.ID(), plan.FindingWarning,
			fmt.Sprintf("collection %q not present in snapshot", r.def.Collection), "")
		return res, nil
	}

	level := plan.FindingLevel(r.def.Level)
	if !level.IsValid() {
		level = plan.FindingInfo
	}

	for _, e := range entities {
		env := map[string]any{
			"entity_ref": string(e.Ref),
			"id":         e.ID,
			"name":       e.Name,
		}
		for k, v := range e.Fields {
			env[k] = v
		}

		out, err := vm.Run(r.program, env)
		if err != nil {
			// Field sets vary per entity; an undefined name on one record
			// means the predicate does not hold there.
			continue
		}
		matched, ok := out.(bool)
		if !ok || !matched {
			continue
		}

		msg := r.def.Message
		if msg == "" {
			msg = fmt.Sprintf("matched %q", r.def.When)
		}
		res.AddFinding(r.ID(), level, fmt.Sprintf("%s (%s)", msg, e.Ref), e.Ref)
	}
	return res, nil
}
