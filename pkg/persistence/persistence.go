// Package persistence provides the data storage abstraction for workflows,
// executions and the read-only client roster.
package persistence

import (
	"context"

	"github.com/coachflow/coachflow/pkg/models"
)

// Persistence bundles the repositories backing the engine.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	RosterRepository() RosterRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions and their ordered steps.
type WorkflowRepository interface {
	List(ctx context.Context, coachID string) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionFilter narrows execution listings.
type ExecutionFilter struct {
	CoachID    string
	WorkflowID string
	Status     models.ExecutionStatus
}

// ExecutionRepository stores workflow executions together with their
// per-step occurrence records.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	// Update persists the execution state and occurrence records as one
	// atomic write.
	Update(ctx context.Context, execution *models.WorkflowExecution) error
	List(ctx context.Context, filter ExecutionFilter) ([]*models.WorkflowExecution, error)
	// ListActive returns all non-terminal, non-paused executions,
	// optionally restricted to one workflow.
	ListActive(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
	// FindActive returns the active or paused execution of a workflow for
	// a client, or ErrExecutionNotFound.
	FindActive(ctx context.Context, workflowID, clientID string) (*models.WorkflowExecution, error)
}

// RosterRepository reads the client/package/subscription roster and form
// submissions maintained by the surrounding platform. The engine never
// writes through this interface.
type RosterRepository interface {
	ClientByID(ctx context.Context, id string) (*models.Client, error)
	ClientsByCoach(ctx context.Context, coachID string) ([]*models.Client, error)
	ClientsByPackages(ctx context.Context, coachID string, packageIDs []string) ([]*models.Client, error)
	ClientsByIDs(ctx context.Context, ids []string) ([]*models.Client, error)
	// LatestSubmission returns the most recent submission of a form by a
	// client, or ErrSubmissionNotFound when the client never submitted it.
	LatestSubmission(ctx context.Context, clientID, formID string) (*models.FormSubmission, error)
}
