package models

import "time"

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusActive, ExecutionStatusPaused, ExecutionStatusCompleted, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status accepts no further mutation.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusCancelled
}

// CanTransitionTo reports whether the state machine permits moving to next:
// active -> paused/completed/cancelled, paused -> active/cancelled.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusActive:
		return next == ExecutionStatusPaused || next == ExecutionStatusCompleted || next == ExecutionStatusCancelled
	case ExecutionStatusPaused:
		return next == ExecutionStatusActive || next == ExecutionStatusCancelled
	default:
		return false
	}
}

// StepOccurrence is the per-(execution, step) firing bookkeeping used to
// enforce repeat policies and at-most-once firing per eligibility window.
type StepOccurrence struct {
	FiredCount  int        `json:"fired_count"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
}

// WorkflowExecution is one running instance of a workflow bound to a single
// client. It references its workflow by ID; the engine always reads the
// current definition when deciding future firings.
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	ClientID      string          `json:"client_id"`
	Status        ExecutionStatus `json:"status"`
	CurrentStepID string          `json:"current_step_id,omitempty"`

	StartedAt time.Time `json:"started_at"`
	// StepStartedAt is when the current step became current; timing rules
	// anchored on "since the step became current" measure from here.
	StepStartedAt time.Time  `json:"step_started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Occurrences map[string]*StepOccurrence `json:"occurrences,omitempty"`
}

// NewWorkflowExecution creates an active execution positioned at the given
// step.
func NewWorkflowExecution(id, workflowID, clientID, currentStepID string, now time.Time) *WorkflowExecution {
	return &WorkflowExecution{
		ID:            id,
		WorkflowID:    workflowID,
		ClientID:      clientID,
		Status:        ExecutionStatusActive,
		CurrentStepID: currentStepID,
		StartedAt:     now,
		StepStartedAt: now,
		UpdatedAt:     now,
		Occurrences:   make(map[string]*StepOccurrence),
	}
}

// Occurrence returns the occurrence record for a step, creating it when the
// step has never fired.
func (e *WorkflowExecution) Occurrence(stepID string) *StepOccurrence {
	if e.Occurrences == nil {
		e.Occurrences = make(map[string]*StepOccurrence)
	}

	occurrence, ok := e.Occurrences[stepID]
	if !ok {
		occurrence = &StepOccurrence{}
		e.Occurrences[stepID] = occurrence
	}

	return occurrence
}

// RecordFiring marks one attempted firing of the current step. It is called
// before the delivery outcome is known so a failed delivery can never cause
// re-firing.
func (e *WorkflowExecution) RecordFiring(stepID string, now time.Time) {
	occurrence := e.Occurrence(stepID)
	occurrence.FiredCount++
	firedAt := now
	occurrence.LastFiredAt = &firedAt
	e.UpdatedAt = now
}

// AdvanceTo moves the execution to the given step and restarts the
// step-became-current anchor.
func (e *WorkflowExecution) AdvanceTo(stepID string, now time.Time) {
	e.CurrentStepID = stepID
	e.StepStartedAt = now
	e.UpdatedAt = now
}

// Complete marks the execution finished after its last step.
func (e *WorkflowExecution) Complete(now time.Time) {
	e.Status = ExecutionStatusCompleted
	e.CurrentStepID = ""
	completedAt := now
	e.CompletedAt = &completedAt
	e.UpdatedAt = now
}
