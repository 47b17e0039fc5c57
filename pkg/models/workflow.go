// Package models defines the core domain models for the client-journey workflow engine.
package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSteps indicates a workflow without steps was asked to launch.
	ErrNoSteps = errors.New("workflow has no steps")

	// ErrWorkflowInactive indicates a deactivated workflow was asked to launch.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrNoAudienceStep indicates a workflow without a leading audience step was asked to launch.
	ErrNoAudienceStep = errors.New("workflow must start with an audience step")
)

// Workflow is a reusable, ordered client journey owned by a single coach.
type Workflow struct {
	ID          string          `json:"id"`
	CoachID     string          `json:"coach_id"    validate:"required"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	IsActive    bool            `json:"is_active"`
	Steps       []*WorkflowStep `json:"steps"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// Validate checks the structural invariants of a workflow definition:
// step orders form a dense 1..N sequence, every step config matches its
// step type, and an audience step may only appear in first position.
func (w *Workflow) Validate() error {
	seen := make(map[int]bool, len(w.Steps))

	for i, step := range w.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		if step.Order < 1 || step.Order > len(w.Steps) {
			return fmt.Errorf("step %d: order %d outside 1..%d", i+1, step.Order, len(w.Steps))
		}

		if seen[step.Order] {
			return fmt.Errorf("step %d: duplicate order %d", i+1, step.Order)
		}

		seen[step.Order] = true

		if step.Type == StepTypeAudience && step.Order != 1 {
			return fmt.Errorf("step %d: audience step must be the first step", i+1)
		}
	}

	return nil
}

// Launchable reports whether the workflow can be started for its audience.
func (w *Workflow) Launchable() error {
	if !w.IsActive {
		return ErrWorkflowInactive
	}

	if len(w.Steps) == 0 {
		return ErrNoSteps
	}

	first := w.StepAtOrder(1)
	if first == nil || first.Type != StepTypeAudience {
		return ErrNoAudienceStep
	}

	return nil
}

// StepByID returns the step with the given ID, or nil.
func (w *Workflow) StepByID(stepID string) *WorkflowStep {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// StepAtOrder returns the step with the given order, or nil.
func (w *Workflow) StepAtOrder(order int) *WorkflowStep {
	for _, step := range w.Steps {
		if step.Order == order {
			return step
		}
	}

	return nil
}

// NextStep returns the step following the given one in order, or nil when it
// is the last step.
func (w *Workflow) NextStep(after *WorkflowStep) *WorkflowStep {
	var next *WorkflowStep

	for _, step := range w.Steps {
		if step.Order <= after.Order {
			continue
		}

		if next == nil || step.Order < next.Order {
			next = step
		}
	}

	return next
}

// FirstActionableStep returns the step a new execution should start at: the
// first step by order, skipping a leading audience step when more steps
// follow (the audience step only establishes scope, it performs no action).
func (w *Workflow) FirstActionableStep() *WorkflowStep {
	first := w.StepAtOrder(1)
	if first == nil {
		return nil
	}

	if first.Type == StepTypeAudience {
		if next := w.NextStep(first); next != nil {
			return next
		}
	}

	return first
}

// AudienceStep returns the workflow's audience step, or nil.
func (w *Workflow) AudienceStep() *WorkflowStep {
	for _, step := range w.Steps {
		if step.Type == StepTypeAudience {
			return step
		}
	}

	return nil
}
