package planner

import (
	"fmt"

	"github.com/adsctl/adsctl/pkg/domain/plan"
	"github.com/adsctl/adsctl/pkg/snapshot"
)

// Planner wires the rule engine and the assembler into the single entry
// point the CLI uses: snapshot in, reviewable DRY_RUN plan out.
type Planner struct {
	cfg       *Config
	engine    *Engine
	assembler *Assembler
}

// New creates a Planner over a validated configuration.
func New(cfg *Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Planner{
		cfg:       cfg,
		engine:    NewEngine(cfg),
		assembler: NewAssembler(),
	}, nil
}

// BuildPlan runs every rule against the snapshot and assembles the result.
func (p *Planner) BuildPlan(snap *snapshot.Snapshot, guardrails plan.Guardrails) (*plan.Plan, error) {
	ops, findings, err := p.engine.Generate(snap, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("rule engine: %w", err)
	}

	planCtx := plan.PlanContext{
		BrandTerms:         p.cfg.BrandTerms,
		ManufacturerBrands: p.cfg.ManufacturerBrands,
		Notes:              fmt.Sprintf("Generated from snapshot %s with %d rules", snap.ID, len(p.engine.RuleIDs())),
	}
	sources := plan.Sources{
		SnapshotDir:    snap.Dir,
		RuleConfigPath: p.cfg.Path,
		RuleIDs:        p.engine.RuleIDs(),
	}

	return p.assembler.Assemble(snap, ops, findings, guardrails, planCtx, sources)
}
