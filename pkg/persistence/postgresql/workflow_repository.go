package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// List returns all workflows belonging to a coach, newest first.
func (r *WorkflowRepository) List(ctx context.Context, coachID string) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , coach_id
		  , name
		  , description
		  , is_active
		  , created_at
		  , updated_at
		  , deleted_at
		FROM workflows
		WHERE coach_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		err = r.loadSteps(ctx, workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow steps: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// GetByID returns a workflow with its ordered steps.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , coach_id
		  , name
		  , description
		  , is_active
		  , created_at
		  , updated_at
		  , deleted_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	err = r.loadSteps(ctx, workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow and replaces its steps in a single transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (id, coach_id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = transaction.ExecContext(ctx, query,
		workflow.ID,
		workflow.CoachID,
		workflow.Name,
		workflow.Description,
		workflow.IsActive,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		_ = transaction.Rollback()

		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	_, err = transaction.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		_ = transaction.Rollback()

		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	for _, step := range workflow.Steps {
		config, err := json.Marshal(step.Config)
		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal step config: %w", err))
		}

		_, err = transaction.ExecContext(ctx, `
			INSERT INTO workflow_steps (workflow_id, id, step_type, step_order, config)
			VALUES ($1, $2, $3, $4, $5)
		`, workflow.ID, step.ID, string(step.Type), step.Order, config)
		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewWorkflowError("Save", workflow.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete soft deletes a workflow by setting its deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now().UTC(), id,
	)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow  models.Workflow
		deletedAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.CoachID,
		&workflow.Name,
		&workflow.Description,
		&workflow.IsActive,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		workflow.DeletedAt = &deletedAt.Time
	}

	return &workflow, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.Workflow) error {
	query := `
		SELECT id, step_type, step_order, config
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflow.Steps = make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step      models.WorkflowStep
			rawConfig json.RawMessage
		)

		err = rows.Scan(&step.ID, &step.Type, &step.Order, &rawConfig)
		if err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}

		step.Config, err = models.DecodeStepConfig(step.Type, rawConfig)
		if err != nil {
			return fmt.Errorf("failed to decode config for step %s: %w", step.ID, err)
		}

		workflow.Steps = append(workflow.Steps, &step)
	}

	return rows.Err()
}
