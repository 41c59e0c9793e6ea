package plan

import "github.com/adsctl/adsctl/pkg/domain/types"

// FindingLevel grades advisory findings emitted by rules that surface a
// condition without proposing an operation.
type FindingLevel string

// Finding severity levels.
const (
	FindingInfo    FindingLevel = "INFO"
	FindingWarning FindingLevel = "WARNING"
	FindingError   FindingLevel = "ERROR"
)

// IsValid returns true if the level is a known finding level.
func (l FindingLevel) IsValid() bool {
	switch l {
	case FindingInfo, FindingWarning, FindingError:
		return true
	}
	return false
}

// Finding is a human-readable observation attached to the plan summary.
// Findings never mutate anything; they exist so the reviewer sees conditions
// the rules noticed but did not (or could not) act on.
type Finding struct {
	RuleID    types.RuleID    `json:"rule_id"`
	Level     FindingLevel    `json:"level"`
	Message   string          `json:"message"`
	EntityRef types.EntityRef `json:"entity_ref,omitempty"`
	Evidence  []Evidence      `json:"evidence,omitempty"`
}
