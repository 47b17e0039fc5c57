package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// ExecutionRepository handles execution and occurrence database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , client_id
  , status
  , current_step_id
  , started_at
  , step_started_at
  , completed_at
  , updated_at
`

// Create inserts a new execution.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	query := `
		INSERT INTO workflow_executions
			(id, workflow_id, client_id, status, current_step_id, started_at, step_started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.ClientID,
		string(execution.Status),
		nullString(execution.CurrentStepID),
		execution.StartedAt,
		execution.StepStartedAt,
		execution.CompletedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution with its occurrence records.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := "SELECT " + executionColumns + " FROM workflow_executions WHERE id = $1"

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	err = r.loadOccurrences(ctx, execution)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

// Update persists the execution state and upserts its occurrence records in
// one transaction.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	query := `
		UPDATE workflow_executions SET
			status = $2,
			current_step_id = $3,
			step_started_at = $4,
			completed_at = $5,
			updated_at = $6
		WHERE id = $1
	`

	result, err := transaction.ExecContext(ctx, query,
		execution.ID,
		string(execution.Status),
		nullString(execution.CurrentStepID),
		execution.StepStartedAt,
		execution.CompletedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		_ = transaction.Rollback()

		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		_ = transaction.Rollback()

		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	for stepID, occurrence := range execution.Occurrences {
		_, err = transaction.ExecContext(ctx, `
			INSERT INTO step_occurrences (execution_id, step_id, fired_count, last_fired_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (execution_id, step_id) DO UPDATE SET
				fired_count = EXCLUDED.fired_count,
				last_fired_at = EXCLUDED.last_fired_at
		`, execution.ID, stepID, occurrence.FiredCount, occurrence.LastFiredAt)
		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewExecutionError("Update", execution.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	return nil
}

// List returns executions matching the filter, newest first.
func (r *ExecutionRepository) List(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.WorkflowExecution, error) {
	query := `
		SELECT
			e.id
		  , e.workflow_id
		  , e.client_id
		  , e.status
		  , e.current_step_id
		  , e.started_at
		  , e.step_started_at
		  , e.completed_at
		  , e.updated_at
		FROM workflow_executions e
		JOIN workflows w ON w.id = e.workflow_id
		WHERE 1 = 1
	`

	args := make([]any, 0, 3)

	if filter.CoachID != "" {
		args = append(args, filter.CoachID)
		query += " AND w.coach_id = $" + strconv.Itoa(len(args))
	}

	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		query += " AND e.workflow_id = $" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += " AND e.status = $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY e.started_at DESC"

	return r.queryExecutions(ctx, query, args...)
}

// ListActive returns all active executions, optionally for one workflow.
func (r *ExecutionRepository) ListActive(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := "SELECT " + executionColumns + " FROM workflow_executions WHERE status = 'active'"
	args := make([]any, 0, 1)

	if workflowID != "" {
		args = append(args, workflowID)
		query += " AND workflow_id = $1"
	}

	query += " ORDER BY started_at ASC"

	return r.queryExecutions(ctx, query, args...)
}

// FindActive returns the non-terminal execution for a (workflow, client)
// pair, or ErrExecutionNotFound.
func (r *ExecutionRepository) FindActive(ctx context.Context, workflowID, clientID string) (*models.WorkflowExecution, error) {
	query := "SELECT " + executionColumns + ` FROM workflow_executions
		WHERE workflow_id = $1 AND client_id = $2 AND status IN ('active', 'paused')
		ORDER BY started_at DESC
		LIMIT 1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, workflowID, clientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to find active execution: %w", err)
	}

	err = r.loadOccurrences(ctx, execution)
	if err != nil {
		return nil, persistence.NewExecutionError("FindActive", execution.ID, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	for _, execution := range executions {
		err = r.loadOccurrences(ctx, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to load occurrences: %w", err)
		}
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution     models.WorkflowExecution
		currentStepID sql.NullString
		completedAt   sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.ClientID,
		&execution.Status,
		&currentStepID,
		&execution.StartedAt,
		&execution.StepStartedAt,
		&completedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentStepID.Valid {
		execution.CurrentStepID = currentStepID.String
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	execution.Occurrences = make(map[string]*models.StepOccurrence)

	return &execution, nil
}

func (r *ExecutionRepository) loadOccurrences(ctx context.Context, execution *models.WorkflowExecution) error {
	query := `
		SELECT step_id, fired_count, last_fired_at
		FROM step_occurrences
		WHERE execution_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, execution.ID)
	if err != nil {
		return fmt.Errorf("failed to query occurrences: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			stepID      string
			occurrence  models.StepOccurrence
			lastFiredAt sql.NullTime
		)

		err = rows.Scan(&stepID, &occurrence.FiredCount, &lastFiredAt)
		if err != nil {
			return fmt.Errorf("failed to scan occurrence: %w", err)
		}

		if lastFiredAt.Valid {
			occurrence.LastFiredAt = &lastFiredAt.Time
		}

		execution.Occurrences[stepID] = &occurrence
	}

	return rows.Err()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
