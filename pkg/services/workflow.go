package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves the workflows belonging to a coach.
func (w *Workflow) List(ctx context.Context, coachID string) ([]*models.Workflow, error) {
	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return nil, NewValidationError("List", "EMPTY_COACH_ID", "coach_id is required", ErrEmptyCoachID)
	}

	workflows, err := w.persistence.WorkflowRepository().List(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create adds a new workflow to the repository. Step IDs are assigned here
// so edits can be correlated to executions later.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	for i := range workflow.Steps {
		if workflow.Steps[i].ID == "" {
			workflow.Steps[i].ID = uuid.New().String()
		}
	}

	if err := workflow.Validate(); err != nil {
		return nil, NewValidationError("Create", "INVALID_WORKFLOW", err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	err := w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces an existing workflow definition. Steps keeping their IDs
// keep their occurrence history; executions pick the new definition up on
// their next evaluation.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.Workflow,
) (*models.Workflow, error) {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrWorkflowNotFound
	}

	workflow.ID = workflowID
	workflow.CoachID = existing.CoachID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	for i := range workflow.Steps {
		if workflow.Steps[i].ID == "" {
			workflow.Steps[i].ID = uuid.New().String()
		}
	}

	if err := workflow.Validate(); err != nil {
		return nil, NewValidationError("Update", "INVALID_WORKFLOW", err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete soft-deletes a workflow. In-flight executions stall on their next
// evaluation instead of failing.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrWorkflowNotFound
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}
