package plan

import "fmt"

// Operator is the closed enumeration of precondition comparison operators.
type Operator string

const (
	// OpEquals matches exact value equality after type coercion.
	OpEquals Operator = "EQUALS"
	// OpNotEquals is the negation of OpEquals.
	OpNotEquals Operator = "NOT_EQUALS"
	// OpIn tests membership in a provided list.
	OpIn Operator = "IN"
	// OpNotIn is the negation of OpIn.
	OpNotIn Operator = "NOT_IN"
	// OpContains is a substring test on string-typed fields only.
	OpContains Operator = "CONTAINS"
	// OpNotContains is the negation of OpContains.
	OpNotContains Operator = "NOT_CONTAINS"
	// OpExists tests that the field is present and non-null.
	OpExists Operator = "EXISTS"
	// OpNotExists tests that the field is absent or null.
	OpNotExists Operator = "NOT_EXISTS"
	// OpGT is a strict numeric greater-than comparison.
	OpGT Operator = "GT"
	// OpGTE is a numeric greater-or-equal comparison.
	OpGTE Operator = "GTE"
	// OpLT is a strict numeric less-than comparison.
	OpLT Operator = "LT"
	// OpLTE is a numeric less-or-equal comparison.
	OpLTE Operator = "LTE"
	// OpMatches applies a regular expression to the string field.
	OpMatches Operator = "MATCHES"
)

// IsValid reports whether the operator is one of the known values.
func (o Operator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpNotContains,
		OpExists, OpNotExists, OpGT, OpGTE, OpLT, OpLTE, OpMatches:
		return true
	}
	return false
}

// Precondition is a pure predicate over an entity and its resolved parent
// chain. Path is dot-addressed; a first segment naming a known parent
// relation (e.g. "campaign.status") resolves against that ancestor. All
// preconditions on an operation are AND-combined.
type Precondition struct {
	Path        string   `json:"path"`
	Op          Operator `json:"op"`
	Value       any      `json:"value"`
	Description string   `json:"description,omitempty"`
}

// Validate checks the precondition is structurally sound.
func (p Precondition) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("precondition path cannot be empty")
	}
	if !p.Op.IsValid() {
		return fmt.Errorf("unknown precondition operator %q", p.Op)
	}
	switch p.Op {
	case OpIn, OpNotIn:
		if _, ok := p.Value.([]any); !ok {
			if _, ok := p.Value.([]string); !ok {
				return fmt.Errorf("operator %s requires a list value", p.Op)
			}
		}
	case OpExists, OpNotExists:
		// Value is ignored.
	default:
		if p.Value == nil {
			return fmt.Errorf("operator %s requires a value", p.Op)
		}
	}
	return nil
}
