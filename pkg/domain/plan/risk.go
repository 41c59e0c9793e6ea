package plan

import "fmt"

// RiskLevel grades how dangerous an operation is to a live account.
// Ordering is strict: LOW(1) < MEDIUM(2) < HIGH(3).
type RiskLevel string

const (
	// RiskLow covers reversible keyword status and negative keyword changes.
	RiskLow RiskLevel = "LOW"
	// RiskMedium covers match-type, bid, asset, and product feed edits.
	RiskMedium RiskLevel = "MEDIUM"
	// RiskHigh covers campaign status, bid strategy, and budget changes.
	RiskHigh RiskLevel = "HIGH"
)

// Numeric returns the strict ordering value for the level (LOW=1 .. HIGH=3).
// Unknown levels return 0 and compare below every valid level.
func (l RiskLevel) Numeric() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// IsValid reports whether the level is one of the known values.
func (l RiskLevel) IsValid() bool {
	return l.Numeric() > 0
}

// Exceeds reports whether l is strictly riskier than other.
func (l RiskLevel) Exceeds(other RiskLevel) bool {
	return l.Numeric() > other.Numeric()
}

// ParseRiskLevel converts a wire string into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(s)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return l, nil
}

// Risk describes the hazard attached to a single operation: the graded level
// plus the human-readable reasons and mitigations shown to the reviewer.
type Risk struct {
	Level        RiskLevel `json:"level"`
	LevelNumeric int       `json:"level_numeric"`
	Reasons      []string  `json:"reasons"`
	Mitigations  []string  `json:"mitigations"`
}

// NewRisk builds a Risk at the given level with its numeric mirror populated.
func NewRisk(level RiskLevel, reasons, mitigations []string) Risk {
	return Risk{
		Level:        level,
		LevelNumeric: level.Numeric(),
		Reasons:      reasons,
		Mitigations:  mitigations,
	}
}

// Raise returns a copy of the risk escalated to at least the given level.
// Risk is never lowered; raising to a lower or equal level is a no-op.
func (r Risk) Raise(level RiskLevel, reason string) Risk {
	if !level.Exceeds(r.Level) {
		return r
	}
	out := r
	out.Level = level
	out.LevelNumeric = level.Numeric()
	if reason != "" {
		out.Reasons = append(append([]string{}, r.Reasons...), reason)
	}
	return out
}
