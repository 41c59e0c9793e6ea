package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/domain/types"
	"github.com/adsctl/adsctl/pkg/validation"
)

// planSchema is the JSON Schema every plan file must satisfy before it is
// trusted. Schema validation catches hand-edited or truncated files before
// any field-level checks run.
const planSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["plan_id", "plan_version", "mode", "snapshot_id", "guardrails", "operations", "approvals", "integrity"],
	"properties": {
		"plan_id": {"type": "string", "minLength": 1},
		"plan_version": {"type": "string", "minLength": 1},
		"mode": {"enum": ["DRY_RUN", "APPLY"]},
		"snapshot_id": {"type": "string", "minLength": 1},
		"revision": {"type": "integer", "minimum": 0},
		"operations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["op_id", "op_type", "entity_ref", "before", "after", "preconditions", "rollback", "risk", "created_from_rule"],
				"properties": {
					"op_id": {"type": "string", "minLength": 1},
					"op_type": {"type": "string", "minLength": 1},
					"entity_ref": {"type": "string", "pattern": "^(ads|merchant)\\.[a-z_]+:.+$"},
					"preconditions": {"type": "array", "minItems": 1}
				}
			}
		},
		"integrity": {
			"type": "object",
			"required": ["algorithm", "operations_sha256"]
		}
	}
}`

// PlanStore persists plans as JSON files, one per plan, under the plans
// directory. Files are written atomically so a crashed write never leaves a
// half plan behind.
type PlanStore struct {
	baseDir string
	schema  *gojsonschema.Schema
}

// NewPlanStore creates a store under ~/.adsctl/plans/.
func NewPlanStore() (*PlanStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewPlanStoreWithPath(filepath.Join(homeDir, ".adsctl"))
}

// NewPlanStoreWithPath creates a store with a custom base directory.
// Useful for testing or custom configurations.
func NewPlanStoreWithPath(baseDir string) (*PlanStore, error) {
	plansDir := filepath.Join(baseDir, "plans")

	if err := os.MkdirAll(plansDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plans directory: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile plan schema: %w", err)
	}

	return &PlanStore{
		baseDir: plansDir,
		schema:  schema,
	}, nil
}

// Save writes the plan to its file. The plan ID names the file.
func (s *PlanStore) Save(p *plan.Plan) error {
	if p == nil {
		return fmt.Errorf("cannot save nil plan")
	}
	if !validation.IsValidIdentifier(string(p.PlanID)) {
		return fmt.Errorf("invalid plan ID: %q", p.PlanID)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	data = append(data, '\n')

	// Write to a temp file, then rename into place.
	filePath := s.planPath(p.PlanID)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save plan file: %w", err)
	}

	return nil
}

// Load reads, schema-validates, and decodes one plan.
func (s *PlanStore) Load(id types.PlanID) (*plan.Plan, error) {
	// The ID becomes a filename, so reject anything outside the identifier
	// character set before building the path.
	if !validation.IsValidIdentifier(string(id)) {
		return nil, fmt.Errorf("invalid plan ID: %q", id)
	}

	filePath := s.planPath(id)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("plan not found: %s", id)
	}

	return s.LoadFile(filePath)
}

// LoadFile reads a plan from an arbitrary path, validating it against the
// plan schema first.
func (s *PlanStore) LoadFile(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to validate plan file: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("plan file %s fails schema validation: %s", path, strings.Join(msgs, "; "))
	}

	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if p.PlanVersion != plan.PlanVersion {
		return nil, fmt.Errorf("plan file %s has version %s, this build reads %s",
			path, p.PlanVersion, plan.PlanVersion)
	}

	return &p, nil
}

// Delete removes a plan file.
func (s *PlanStore) Delete(id types.PlanID) error {
	if !validation.IsValidIdentifier(string(id)) {
		return fmt.Errorf("invalid plan ID: %q", id)
	}

	filePath := s.planPath(id)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("plan not found: %s", id)
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete plan file: %w", err)
	}

	return nil
}

// List returns all stored plans. Files that fail to load are skipped.
func (s *PlanStore) List() ([]*plan.Plan, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans directory: %w", err)
	}

	plans := make([]*plan.Plan, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		p, err := s.LoadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		plans = append(plans, p)
	}

	return plans, nil
}

// planPath returns the full filesystem path for a plan ID.
func (s *PlanStore) planPath(id types.PlanID) string {
	return filepath.Join(s.baseDir, string(id)+".json")
}
