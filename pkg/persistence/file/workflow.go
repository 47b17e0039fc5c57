package file

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// WorkflowRepository stores one JSON file per workflow under
// <root>/workflows.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// List returns all workflows belonging to a coach, newest first.
func (wr *WorkflowRepository) List(_ context.Context, coachID string) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	ids, err := listJSON(wr.dir())
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.read(id)
		if err != nil {
			return nil, err
		}

		if workflow == nil || workflow.DeletedAt != nil {
			continue
		}

		if coachID != "" && workflow.CoachID != coachID {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID returns a workflow by its ID.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	workflow, err := wr.read(id)
	if err != nil {
		return nil, err
	}

	if workflow == nil || workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Save writes the workflow document.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := writeJSON(wr.dir(), workflow.ID, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete soft deletes a workflow by stamping deleted_at in its document.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if workflow == nil || workflow.DeletedAt != nil {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now
	workflow.UpdatedAt = now

	err = writeJSON(wr.dir(), id, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func (wr *WorkflowRepository) read(id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := readJSON(wr.dir(), id, &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &workflow, nil
}
