// Package precond evaluates declarative preconditions against an entity and
// its resolved parent chain. Evaluation is pure: given a subject, the verdict
// depends on nothing else.
package precond

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/errors"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// Subject is an entity with its parent chain resolved, the only input the
// evaluator sees. Parents are keyed by entity type, so a path like
// "campaign.bidding_strategy" resolves against the campaign ancestor.
type Subject struct {
	Entity  *snapshot.Entity
	Parents map[string]*snapshot.Entity
}

// NewSubject resolves the entity's parents against the snapshot.
func NewSubject(s *snapshot.Snapshot, e *snapshot.Entity) Subject {
	parents := make(map[string]*snapshot.Entity)
	for _, p := range s.Parents(e) {
		if _, seen := parents[p.Type]; !seen {
			parents[p.Type] = p
		}
	}
	return Subject{Entity: e, Parents: parents}
}

// LiveSubject wraps a freshly fetched live entity with no parent chain, for
// apply-time rechecks where only the entity itself is refetched.
func LiveSubject(e *snapshot.Entity) Subject {
	return Subject{Entity: e, Parents: map[string]*snapshot.Entity{}}
}

// Evaluator evaluates precondition lists. The zero value is not usable; use
// NewEvaluator. Safe for concurrent use.
type Evaluator struct {
	mu         sync.RWMutex
	regexCache map[string]*regexp.Regexp
}

// NewEvaluator creates an Evaluator with an empty pattern cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{regexCache: make(map[string]*regexp.Regexp)}
}

// Evaluate applies every precondition to the subject, AND-combined. It
// returns the verdict plus one human-readable reason per failed predicate.
// A structural problem (unresolvable parent relation, a type the operator
// cannot work on) stops evaluation and is returned as an error, with the
// reasons collected up to that point.
func (ev *Evaluator) Evaluate(subject Subject, pcs []plan.Precondition) (bool, []string, error) {
	var reasons []string
	for i, pc := range pcs {
		ok, reason, err := ev.evaluateOne(subject, pc)
		if err != nil {
			return false, reasons, errors.NewStructuralError(
				fmt.Sprintf("precondition %d (%s %s)", i, pc.Path, pc.Op), err)
		}
		if !ok {
			reasons = append(reasons, reason)
		}
	}
	return len(reasons) == 0, reasons, nil
}

func (ev *Evaluator) evaluateOne(subject Subject, pc plan.Precondition) (bool, string, error) {
	actual, err := resolve(subject, pc.Path)
	if err != nil {
		return false, "", err
	}

	ok, err := ev.compare(actual, pc.Op, pc.Value)
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}

	desc := pc.Description
	if desc == "" {
		desc = "precondition failed"
	}
	return false, fmt.Sprintf("%s: %s %s %v, actual %s",
		desc, pc.Path, pc.Op, pc.Value, renderActual(actual)), nil
}

// resolve finds the value at the dot path, walking to a parent entity when
// the first segment names a parent relation.
func resolve(subject Subject, path string) (gjson.Result, error) {
	head, rest, cut := strings.Cut(path, ".")
	if cut {
		if parent, ok := subject.Parents[head]; ok {
			return parent.Get(rest), nil
		}
		// A path that names a parent relation the subject does not have is
		// unresolvable, which is distinct from a field that is merely absent.
		if isParentRelation(head) {
			return gjson.Result{}, fmt.Errorf("no %s parent in scope for path %q", head, path)
		}
	}
	return subject.Entity.Get(path), nil
}

func isParentRelation(name string) bool {
	switch name {
	case snapshot.TypeCampaign, snapshot.TypeAdGroup, snapshot.TypeAssetGroup:
		return true
	}
	return false
}

func (ev *Evaluator) compare(actual gjson.Result, op plan.Operator, expected any) (bool, error) {
	switch op {
	case plan.OpEquals:
		return coercedEqual(actual, expected), nil
	case plan.OpNotEquals:
		return !coercedEqual(actual, expected), nil

	case plan.OpIn, plan.OpNotIn:
		list, ok := asList(expected)
		if !ok {
			return false, fmt.Errorf("%s requires a list value, got %T", op, expected)
		}
		member := false
		for _, item := range list {
			if coercedEqual(actual, item) {
				member = true
				break
			}
		}
		if op == plan.OpIn {
			return member, nil
		}
		return !member, nil

	case plan.OpContains, plan.OpNotContains:
		needle, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("%s requires a string value, got %T", op, expected)
		}
		if !actual.Exists() || actual.Type == gjson.Null {
			// A missing field contains nothing.
			return op == plan.OpNotContains, nil
		}
		if actual.Type != gjson.String {
			return false, fmt.Errorf("%s requires a string field, got %s", op, actual.Type)
		}
		has := strings.Contains(strings.ToLower(actual.String()), strings.ToLower(needle))
		if op == plan.OpContains {
			return has, nil
		}
		return !has, nil

	case plan.OpExists:
		return actual.Exists() && actual.Type != gjson.Null, nil
	case plan.OpNotExists:
		return !actual.Exists() || actual.Type == gjson.Null, nil

	case plan.OpGT, plan.OpGTE, plan.OpLT, plan.OpLTE:
		lhs, err := asNumber(actual)
		if err != nil {
			return false, err
		}
		rhs, ok := toFloat(expected)
		if !ok {
			return false, fmt.Errorf("%s requires a numeric value, got %T", op, expected)
		}
		switch op {
		case plan.OpGT:
			return lhs > rhs, nil
		case plan.OpGTE:
			return lhs >= rhs, nil
		case plan.OpLT:
			return lhs < rhs, nil
		default:
			return lhs <= rhs, nil
		}

	case plan.OpMatches:
		pattern, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("MATCHES requires a string pattern, got %T", expected)
		}
		re, err := ev.pattern(pattern)
		if err != nil {
			return false, err
		}
		if !actual.Exists() || actual.Type == gjson.Null {
			return false, nil
		}
		return re.MatchString(actual.String()), nil
	}

	return false, fmt.Errorf("unknown operator %q", op)
}

// pattern compiles a regex once and caches it for reuse across operations.
func (ev *Evaluator) pattern(expr string) (*regexp.Regexp, error) {
	ev.mu.RLock()
	re, ok := ev.regexCache[expr]
	ev.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}

	ev.mu.Lock()
	ev.regexCache[expr] = re
	ev.mu.Unlock()
	return re, nil
}

// coercedEqual compares the resolved field against the expected value after
// coercing the field to the expected value's type.
func coercedEqual(actual gjson.Result, expected any) bool {
	if expected == nil {
		return !actual.Exists() || actual.Type == gjson.Null
	}
	if !actual.Exists() {
		return false
	}
	switch want := expected.(type) {
	case string:
		return actual.String() == want
	case bool:
		if !isBool(actual) {
			return false
		}
		return (actual.Type == gjson.True) == want
	default:
		if f, ok := toFloat(expected); ok {
			lhs, err := asNumber(actual)
			return err == nil && lhs == f
		}
		return actual.String() == fmt.Sprintf("%v", want)
	}
}

func isBool(r gjson.Result) bool {
	return r.Type == gjson.True || r.Type == gjson.False
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// asNumber extracts a numeric operand. Numeric strings count (micros arrive
// as strings from the upstream APIs); anything else is a type error.
func asNumber(r gjson.Result) (float64, error) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), nil
	case gjson.String:
		f, err := strconv.ParseFloat(r.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("field value %q is not numeric", r.String())
		}
		return f, nil
	}
	return 0, fmt.Errorf("field value is not numeric (%s)", r.Type)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func renderActual(r gjson.Result) string {
	if !r.Exists() {
		return "<absent>"
	}
	if r.Type == gjson.Null {
		return "null"
	}
	return r.String()
}
