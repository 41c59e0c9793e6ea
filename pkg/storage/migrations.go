package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 1

// InitializeDatabase creates the SQLite schema for apply-run history.
// Migration versions are tracked so future schema updates can build on it.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

// applyMigration1 creates the initial schema: one row per apply run, one row
// per operation result, and the full report body for faithful replay.
func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	applyRunsTable := `
	CREATE TABLE apply_runs (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		state TEXT NOT NULL,
		abort_reason TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		report TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := tx.Exec(applyRunsTable); err != nil {
		return fmt.Errorf("failed to create apply_runs table: %w", err)
	}

	applyRunsIndexes := []string{
		"CREATE INDEX idx_apply_runs_plan_id ON apply_runs(plan_id, started_at DESC);",
		"CREATE INDEX idx_apply_runs_state ON apply_runs(state, started_at DESC);",
		"CREATE INDEX idx_apply_runs_started_at ON apply_runs(started_at DESC);",
	}

	for _, idx := range applyRunsIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create apply run index: %w", err)
		}
	}

	operationResultsTable := `
	CREATE TABLE operation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		apply_id TEXT NOT NULL,
		op_id TEXT NOT NULL,
		op_type TEXT NOT NULL,
		entity_ref TEXT NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT,
		error TEXT,
		live_state_before TEXT,
		live_state_after TEXT,
		timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (apply_id) REFERENCES apply_runs(id) ON DELETE CASCADE
	);`

	if _, err := tx.Exec(operationResultsTable); err != nil {
		return fmt.Errorf("failed to create operation_results table: %w", err)
	}

	operationResultsIndexes := []string{
		"CREATE INDEX idx_operation_results_apply_id ON operation_results(apply_id, timestamp);",
		"CREATE INDEX idx_operation_results_outcome ON operation_results(outcome);",
		"CREATE INDEX idx_operation_results_entity_ref ON operation_results(entity_ref);",
	}

	for _, idx := range operationResultsIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create operation result index: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
