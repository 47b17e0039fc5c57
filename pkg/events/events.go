// Package events defines event types for execution lifecycle notifications.
package events

import "time"

type EventType string

// Topic carries all engine lifecycle events.
const Topic = "coachflow.events"

const EventTypeMetadataKey = "event_type"

const (
	WorkflowLaunchedEvent EventType = "workflow.launched"

	ExecutionStartedEvent       EventType = "execution.started"
	ExecutionCompletedEvent     EventType = "execution.completed"
	ExecutionPausedEvent        EventType = "execution.paused"
	ExecutionResumedEvent       EventType = "execution.resumed"
	ExecutionCancelledEvent     EventType = "execution.cancelled"
	StepFiredEvent              EventType = "execution.step.fired"
	StepDeliveryFailedEvent     EventType = "execution.step.delivery_failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

// WorkflowLaunched is emitted once per start-for-audience call.
type WorkflowLaunched struct {
	BaseEvent

	CoachID      string `json:"coach_id"`
	StartedCount int    `json:"started_count"`
}

func (e WorkflowLaunched) GetType() EventType {
	return WorkflowLaunchedEvent
}

// ExecutionStarted is emitted when an execution is created for a client.
type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ClientID    string `json:"client_id"`
	StepID      string `json:"step_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionCompleted is emitted when an execution finishes its last step.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	ClientID    string        `json:"client_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionStatusChanged covers pause, resume and cancel control calls.
type ExecutionStatusChanged struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ClientID    string `json:"client_id"`
	Status      string `json:"status"`
}

func (e ExecutionStatusChanged) GetType() EventType {
	switch e.Status {
	case "paused":
		return ExecutionPausedEvent
	case "active":
		return ExecutionResumedEvent
	default:
		return ExecutionCancelledEvent
	}
}

// StepFired is emitted on every attempted firing of a step, delivered or not.
type StepFired struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ClientID    string `json:"client_id"`
	StepID      string `json:"step_id"`
	StepType    string `json:"step_type"`
	FiredCount  int    `json:"fired_count"`
	Delivered   bool   `json:"delivered"`
	Error       string `json:"error,omitempty"`
}

func (e StepFired) GetType() EventType {
	if !e.Delivered {
		return StepDeliveryFailedEvent
	}

	return StepFiredEvent
}
