package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/adsctl/adsctl/pkg/apply"
	"github.com/adsctl/adsctl/pkg/domain/types"
)

// SQLiteApplyRepository persists apply-run history in SQLite. Every run is
// stored, aborted and refused runs included, so the audit trail is complete.
type SQLiteApplyRepository struct {
	db *sql.DB
}

// NewSQLiteApplyRepository opens the default database at ~/.adsctl/adsctl.db.
func NewSQLiteApplyRepository() (*SQLiteApplyRepository, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewSQLiteApplyRepositoryWithPath(filepath.Join(homeDir, ".adsctl", "adsctl.db"))
}

// NewSQLiteApplyRepositoryWithPath opens a repository at a custom database
// path. Useful for testing.
func NewSQLiteApplyRepositoryWithPath(dbPath string) (*SQLiteApplyRepository, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteApplyRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteApplyRepository) Close() error {
	return r.db.Close()
}

// Save persists an apply report. Saving the same apply ID again replaces the
// run's row and its operation results, so a report may be written mid-run and
// finalized later.
func (r *SQLiteApplyRepository) Save(report *apply.Report) error {
	if report == nil {
		return fmt.Errorf("cannot save nil report")
	}
	if report.ApplyID == "" {
		return fmt.Errorf("report must carry an apply ID")
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var finishedAt sql.NullTime
	if !report.FinishedUTC.IsZero() {
		finishedAt.Valid = true
		finishedAt.Time = report.FinishedUTC
	}
	var abortReason sql.NullString
	if report.AbortReason != "" {
		abortReason.Valid = true
		abortReason.String = report.AbortReason
	}

	query := `
		INSERT INTO apply_runs (
			id, plan_id, snapshot_id, mode, state, abort_reason,
			started_at, finished_at, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			abort_reason = excluded.abort_reason,
			finished_at = excluded.finished_at,
			report = excluded.report
	`

	_, err = tx.Exec(query,
		string(report.ApplyID),
		string(report.PlanID),
		string(report.SnapshotID),
		string(report.Mode),
		string(report.State),
		abortReason,
		report.StartedUTC,
		finishedAt,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to save apply run: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM operation_results WHERE apply_id = ?", string(report.ApplyID)); err != nil {
		return fmt.Errorf("failed to clear prior operation results: %w", err)
	}

	for _, res := range report.Results {
		if err := insertResult(tx, report.ApplyID, res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertResult(tx *sql.Tx, applyID types.ApplyID, res apply.ExecutionResult) error {
	var before, after, reason, errText sql.NullString
	if len(res.LiveStateBefore) > 0 {
		if data, err := json.Marshal(res.LiveStateBefore); err == nil {
			before.Valid = true
			before.String = string(data)
		}
	}
	if len(res.LiveStateAfter) > 0 {
		if data, err := json.Marshal(res.LiveStateAfter); err == nil {
			after.Valid = true
			after.String = string(data)
		}
	}
	if res.Reason != "" {
		reason.Valid = true
		reason.String = res.Reason
	}
	if res.Error != "" {
		errText.Valid = true
		errText.String = res.Error
	}

	query := `
		INSERT INTO operation_results (
			apply_id, op_id, op_type, entity_ref, outcome, reason, error,
			live_state_before, live_state_after, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		string(applyID),
		string(res.OpID),
		string(res.OpType),
		string(res.EntityRef),
		string(res.Outcome),
		reason,
		errText,
		before,
		after,
		res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save operation result: %w", err)
	}
	return nil
}

// Load retrieves a full apply report by its ID.
func (r *SQLiteApplyRepository) Load(id types.ApplyID) (*apply.Report, error) {
	if id == "" {
		return nil, fmt.Errorf("apply ID cannot be empty")
	}

	var body string
	err := r.db.QueryRow("SELECT report FROM apply_runs WHERE id = ?", string(id)).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("apply run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load apply run: %w", err)
	}

	var report apply.Report
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("failed to parse stored report: %w", err)
	}
	return &report, nil
}

// RunSummary is the list-view projection of one apply run.
type RunSummary struct {
	ApplyID     types.ApplyID
	PlanID      types.PlanID
	SnapshotID  types.SnapshotID
	State       string
	AbortReason string
	StartedUTC  time.Time
	FinishedUTC time.Time
}

// ListOptions filters and paginates apply-run listings. All filters combine.
type ListOptions struct {
	PlanID        *types.PlanID
	State         *string
	StartedAfter  *time.Time
	StartedBefore *time.Time
	Limit         int
	Offset        int
}

// ListResult is one page of apply runs plus the unpaginated total.
type ListResult struct {
	Runs       []RunSummary
	TotalCount int
	Limit      int
	Offset     int
}

// List returns apply runs, most recent first.
func (r *SQLiteApplyRepository) List(options ListOptions) (*ListResult, error) {
	if options.Limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %d", options.Limit)
	}
	if options.Offset < 0 {
		return nil, fmt.Errorf("offset cannot be negative: %d", options.Offset)
	}
	if options.StartedAfter != nil && options.StartedBefore != nil &&
		options.StartedAfter.After(*options.StartedBefore) {
		return nil, fmt.Errorf("StartedAfter cannot be after StartedBefore")
	}

	whereClause, args := buildWhereClause(options)

	countQuery := "SELECT COUNT(*) FROM apply_runs" + whereClause
	var totalCount int
	if err := r.db.QueryRow(countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count apply runs: %w", err)
	}

	dataQuery := `
		SELECT id, plan_id, snapshot_id, state, abort_reason, started_at, finished_at
		FROM apply_runs` + whereClause + `
		ORDER BY started_at DESC`

	if options.Limit > 0 {
		dataQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", options.Limit, options.Offset)
	}

	rows, err := r.db.Query(dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query apply runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var run RunSummary
		var abortReason sql.NullString
		var finishedAt sql.NullTime

		err := rows.Scan(
			&run.ApplyID,
			&run.PlanID,
			&run.SnapshotID,
			&run.State,
			&abortReason,
			&run.StartedUTC,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan apply run: %w", err)
		}
		if abortReason.Valid {
			run.AbortReason = abortReason.String
		}
		if finishedAt.Valid {
			run.FinishedUTC = finishedAt.Time
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating apply runs: %w", err)
	}

	return &ListResult{
		Runs:       runs,
		TotalCount: totalCount,
		Limit:      options.Limit,
		Offset:     options.Offset,
	}, nil
}

// ListByPlan returns all runs for one plan, most recent first.
func (r *SQLiteApplyRepository) ListByPlan(planID types.PlanID) ([]RunSummary, error) {
	result, err := r.List(ListOptions{PlanID: &planID})
	if err != nil {
		return nil, err
	}
	return result.Runs, nil
}

// buildWhereClause constructs the WHERE clause and argument list for filtering.
func buildWhereClause(options ListOptions) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if options.PlanID != nil {
		conditions = append(conditions, "plan_id = ?")
		args = append(args, string(*options.PlanID))
	}
	if options.State != nil {
		conditions = append(conditions, "state = ?")
		args = append(args, *options.State)
	}
	if options.StartedAfter != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, *options.StartedAfter)
	}
	if options.StartedBefore != nil {
		conditions = append(conditions, "started_at < ?")
		args = append(args, *options.StartedBefore)
	}

	if len(conditions) == 0 {
		return "", args
	}

	clause := " WHERE " + conditions[0]
	for _, condition := range conditions[1:] {
		clause += " AND " + condition
	}
	return clause, args
}

// Delete removes an apply run and its operation results.
func (r *SQLiteApplyRepository) Delete(id types.ApplyID) error {
	if id == "" {
		return fmt.Errorf("apply ID cannot be empty")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// SQLite does not enforce the foreign key cascade unless the
	// foreign_keys pragma is set on the connection, so the child rows are
	// removed explicitly.
	if _, err := tx.Exec("DELETE FROM operation_results WHERE apply_id = ?", string(id)); err != nil {
		return fmt.Errorf("failed to delete operation results: %w", err)
	}

	result, err := tx.Exec("DELETE FROM apply_runs WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete apply run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("apply run not found: %s", id)
	}

	return tx.Commit()
}
