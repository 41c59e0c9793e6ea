package snapshot

import (
	"fmt"
)

// ExtractionError is one failed extraction recorded by the capture subsystem.
type ExtractionError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// RecordCounts mirrors the manifest's per-collection record counts.
type RecordCounts struct {
	Raw        map[string]int `json:"raw"`
	Normalized map[string]int `json:"normalized"`
}

// Manifest is the capture subsystem's description of one snapshot directory.
type Manifest struct {
	SnapshotID            string            `json:"snapshot_id"`
	SnapshotVersion       string            `json:"snapshot_version"`
	ExtractionStartedUTC  string            `json:"extraction_started_utc"`
	ExtractionFinishedUTC string            `json:"extraction_finished_utc"`
	DurationSeconds       float64           `json:"duration_seconds"`
	RecordCounts          RecordCounts      `json:"record_counts"`
	Errors                []ExtractionError `json:"errors"`
}

// ErrorsFor returns the extraction errors recorded against any of the named
// collections.
func (m *Manifest) ErrorsFor(collections ...string) []ExtractionError {
	var out []ExtractionError
	for _, e := range m.Errors {
		for _, c := range collections {
			if e.File == c {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// RequireClean returns an error when the manifest reports extraction errors
// for any of the named collections. Planning and apply refuse to run against
// partially extracted data the rules depend on.
func (m *Manifest) RequireClean(collections ...string) error {
	errs := m.ErrorsFor(collections...)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("snapshot %s has extraction errors for %s: %s",
		m.SnapshotID, errs[0].File, errs[0].Error)
}
