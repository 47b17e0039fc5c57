// Package file provides file-based persistence for development and tests.
// One JSON document per aggregate, stored under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coachflow/coachflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	rosterRepo    *RosterRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is tolerated.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
		rosterRepo:    NewRosterRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// WorkflowRepository returns the workflow repository.
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// ExecutionRepository returns the execution repository.
func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

// RosterRepository returns the roster repository.
func (fp *Persistence) RosterRepository() persistence.RosterRepository {
	return fp.rosterRepo
}

// Roster returns the concrete roster repository, exposing the seeding
// helpers used by tests and local development.
func (fp *Persistence) Roster() *RosterRepository {
	return fp.rosterRepo
}

func writeJSON(dir, name string, value any) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	err = os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

func readJSON(dir, name string, value any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}

	return true, nil
}

func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}

	return ids, nil
}
