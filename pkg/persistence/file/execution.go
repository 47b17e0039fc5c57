package file

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// ExecutionRepository stores one JSON file per execution, occurrence records
// embedded, under <root>/executions.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex

	// coach scoping for List needs the owning workflow; resolved lazily
	// through the sibling workflow repository.
	workflows *WorkflowRepository
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{
		root:      root,
		workflows: NewWorkflowRepository(root),
	}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

// Create writes a new execution document.
func (er *ExecutionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	err := writeJSON(er.dir(), execution.ID, execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	execution, err := er.read(id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	if execution == nil {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return execution, nil
}

// Update rewrites the execution document, occurrences included.
func (er *ExecutionRepository) Update(_ context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	err := writeJSON(er.dir(), execution.ID, execution)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	return nil
}

// List returns executions matching the filter, newest first.
func (er *ExecutionRepository) List(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.WorkflowExecution, error) {
	executions, err := er.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowExecution, 0, len(executions))

	for _, execution := range executions {
		if filter.WorkflowID != "" && execution.WorkflowID != filter.WorkflowID {
			continue
		}

		if filter.Status != "" && execution.Status != filter.Status {
			continue
		}

		if filter.CoachID != "" {
			workflow, err := er.workflows.GetByID(ctx, execution.WorkflowID)
			if err != nil || workflow.CoachID != filter.CoachID {
				continue
			}
		}

		filtered = append(filtered, execution)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})

	return filtered, nil
}

// ListActive returns all active executions, optionally for one workflow.
func (er *ExecutionRepository) ListActive(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	executions, err := er.all()
	if err != nil {
		return nil, err
	}

	active := make([]*models.WorkflowExecution, 0, len(executions))

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusActive {
			continue
		}

		if workflowID != "" && execution.WorkflowID != workflowID {
			continue
		}

		active = append(active, execution)
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartedAt.Before(active[j].StartedAt)
	})

	return active, nil
}

// FindActive returns the non-terminal execution for a (workflow, client)
// pair, or ErrExecutionNotFound.
func (er *ExecutionRepository) FindActive(_ context.Context, workflowID, clientID string) (*models.WorkflowExecution, error) {
	executions, err := er.all()
	if err != nil {
		return nil, err
	}

	for _, execution := range executions {
		if execution.WorkflowID != workflowID || execution.ClientID != clientID {
			continue
		}

		if execution.Status == models.ExecutionStatusActive || execution.Status == models.ExecutionStatusPaused {
			return execution, nil
		}
	}

	return nil, persistence.ErrExecutionNotFound
}

func (er *ExecutionRepository) all() ([]*models.WorkflowExecution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	ids, err := listJSON(er.dir())
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := er.read(id)
		if err != nil {
			return nil, err
		}

		if execution != nil {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (er *ExecutionRepository) read(id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	found, err := readJSON(er.dir(), id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	if execution.Occurrences == nil {
		execution.Occurrences = make(map[string]*models.StepOccurrence)
	}

	return &execution, nil
}
