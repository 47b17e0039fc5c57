package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

var (
	// ErrExecutionNotFound is returned when an execution is not found.
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
)

// Ticker runs a scheduler pass on demand.
type Ticker interface {
	Tick(ctx context.Context, workflowID string) error
}

// Execution exposes the control surface over running executions: listing,
// pause/resume/cancel and on-demand evaluation.
type Execution struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	ticker      Ticker
}

func NewExecution(persistence persistence.Persistence, eng *engine.Engine, ticker Ticker) *Execution {
	return &Execution{
		persistence: persistence,
		engine:      eng,
		ticker:      ticker,
	}
}

// ListExecutionsRequest contains options for listing executions.
type ListExecutionsRequest struct {
	CoachID    string
	WorkflowID string
	Status     string
}

// List retrieves executions filtered by coach, workflow and status.
func (s *Execution) List(ctx context.Context, req ListExecutionsRequest) ([]*models.WorkflowExecution, error) {
	filter := persistence.ExecutionFilter{
		CoachID:    strings.TrimSpace(req.CoachID),
		WorkflowID: strings.TrimSpace(req.WorkflowID),
	}

	if req.Status != "" {
		status := models.ExecutionStatus(req.Status)
		if !status.Valid() {
			return nil, NewValidationError(
				"List",
				"INVALID_STATUS",
				fmt.Sprintf("invalid status '%s'", req.Status),
				ErrInvalidStatus,
			)
		}

		filter.Status = status
	}

	executions, err := s.persistence.ExecutionRepository().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return executions, nil
}

// FetchByID retrieves an execution by its ID.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, ErrExecutionNotFound
	}

	return execution, nil
}

// controllableStatuses are the statuses a caller may set directly. Completed
// is reached only by the engine finishing the last step.
var controllableStatuses = []models.ExecutionStatus{
	models.ExecutionStatusActive,
	models.ExecutionStatusPaused,
	models.ExecutionStatusCancelled,
}

// SetStatus pauses, resumes or cancels an execution.
func (s *Execution) SetStatus(ctx context.Context, executionID, status string) (*models.WorkflowExecution, error) {
	target := models.ExecutionStatus(status)
	if !slices.Contains(controllableStatuses, target) {
		return nil, NewValidationError(
			"SetStatus",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status '%s', allowed: active, paused, cancelled", status),
			ErrInvalidStatus,
		)
	}

	return s.engine.SetStatus(ctx, executionID, target)
}

// RunNow evaluates all active executions immediately instead of waiting for
// the next scheduled tick. WorkflowID narrows the pass to one workflow.
func (s *Execution) RunNow(ctx context.Context, workflowID string) error {
	if s.ticker == nil {
		return fmt.Errorf("%w: no scheduler attached", ErrInvalidRequest)
	}

	return s.ticker.Tick(ctx, strings.TrimSpace(workflowID))
}
