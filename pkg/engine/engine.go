// Package engine advances workflow executions: it evaluates the current
// step's timing and repeat rules against the clock and the roster, fires
// side effects through the delivery dispatcher and performs exactly one
// state transition per evaluation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/coachflow/coachflow/pkg/dispatch"
	"github.com/coachflow/coachflow/pkg/eventbus"
	"github.com/coachflow/coachflow/pkg/events"
	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

var (
	// ErrExecutionTerminal indicates a control call targeted a completed or
	// cancelled execution.
	ErrExecutionTerminal = errors.New("execution is terminal")

	// ErrInvalidTransition indicates a status change the state machine
	// forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Engine drives executions forward one transition at a time.
type Engine struct {
	persistence persistence.Persistence
	dispatcher  dispatch.Dispatcher
	eventBus    eventbus.EventBus
	clock       clockwork.Clock
	logger      *slog.Logger
	locks       *executionLocks
}

// New creates an engine. Pass a fake clock in tests to control timing.
func New(
	persistence persistence.Persistence,
	dispatcher dispatch.Dispatcher,
	eventBus eventbus.EventBus,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: persistence,
		dispatcher:  dispatcher,
		eventBus:    eventBus,
		clock:       clock,
		logger:      logger.With("module", "engine"),
		locks:       newExecutionLocks(),
	}
}

func (e *Engine) executions() persistence.ExecutionRepository {
	return e.persistence.ExecutionRepository()
}

func (e *Engine) workflows() persistence.WorkflowRepository {
	return e.persistence.WorkflowRepository()
}

func (e *Engine) roster() persistence.RosterRepository {
	return e.persistence.RosterRepository()
}

// Advance evaluates one execution and performs at most one state
// transition. The whole read-decide-write cycle runs under the execution's
// lock so overlapping ticks fire a given occurrence at most once.
func (e *Engine) Advance(ctx context.Context, executionID string) error {
	unlock := e.locks.Lock(executionID)
	defer unlock()

	execution, err := e.executions().GetByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	if execution.Status != models.ExecutionStatusActive {
		// Paused executions are frozen; terminal ones are immutable.
		return nil
	}

	logger := e.logger.With(
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"client_id", execution.ClientID,
	)

	workflow, err := e.workflows().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			logger.WarnContext(ctx, "Execution references a deleted workflow, stalled")

			return nil
		}

		return fmt.Errorf("failed to load workflow %s: %w", execution.WorkflowID, err)
	}

	// The current definition is always re-read; steps not yet reached
	// follow the edited step list.
	step := workflow.StepByID(execution.CurrentStepID)
	if step == nil {
		logger.WarnContext(ctx, "Current step no longer exists in workflow definition, stalled",
			"step_id", execution.CurrentStepID,
			"stalled_since", execution.StepStartedAt,
		)

		return nil
	}

	logger = logger.With("step_id", step.ID, "step_type", step.Type, "step_order", step.Order)

	// Audience steps only establish scope; they never fire.
	if step.Type == models.StepTypeAudience {
		return e.advancePast(ctx, logger, workflow, execution, step)
	}

	if err := step.Validate(); err != nil {
		logger.WarnContext(ctx, "Step config is invalid, execution stalled",
			"error", err,
			"stalled_since", execution.StepStartedAt,
		)

		return nil
	}

	rule, err := ruleFor(step)
	if err != nil {
		logger.WarnContext(ctx, "Step has no evaluable rule, execution stalled", "error", err)

		return nil
	}

	client, err := e.roster().ClientByID(ctx, execution.ClientID)
	if err != nil {
		if errors.Is(err, persistence.ErrClientNotFound) {
			logger.WarnContext(ctx, "Client no longer exists in roster, execution stalled")

			return nil
		}

		return fmt.Errorf("failed to load client %s: %w", execution.ClientID, err)
	}

	now := e.clock.Now()
	occurrence := execution.Occurrence(step.ID)

	if rule.suppressed(client, occurrence, now) {
		// Repeat budget exhausted or subscription ended: move on without
		// firing.
		return e.advancePast(ctx, logger, workflow, execution, step)
	}

	ok, err := e.eligible(ctx, rule, execution, client, occurrence, now)
	if err != nil {
		if errors.Is(err, errNeverEligible) {
			logger.WarnContext(ctx, "Step can never become eligible, execution stalled",
				"stalled_since", execution.StepStartedAt,
			)

			return nil
		}

		return fmt.Errorf("failed to evaluate step %s: %w", step.ID, err)
	}

	if !ok {
		return nil
	}

	// The firing is recorded before the delivery outcome is known, so a
	// failed delivery can never cause re-firing.
	execution.RecordFiring(step.ID, now)

	deliveryErr := e.deliver(ctx, step, execution.ClientID)
	if deliveryErr != nil {
		logger.ErrorContext(ctx, "Delivery failed, firing still counted", "error", deliveryErr)
	}

	e.publishStepFired(ctx, execution, step, occurrence.FiredCount, deliveryErr)

	if rule.singleShot() {
		return e.advancePast(ctx, logger, workflow, execution, step)
	}

	// Repeating step stays current; it may fire again per its timing rule.
	err = e.executions().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist firing: %w", err)
	}

	logger.InfoContext(ctx, "Step fired", "fired_count", occurrence.FiredCount)

	return nil
}

// advancePast moves the execution to the step after the given one, or
// completes it when no step follows.
func (e *Engine) advancePast(
	ctx context.Context,
	logger *slog.Logger,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	step *models.WorkflowStep,
) error {
	now := e.clock.Now()

	next := workflow.NextStep(step)
	if next == nil {
		execution.Complete(now)
	} else {
		execution.AdvanceTo(next.ID, now)
	}

	err := e.executions().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to persist advance: %w", err)
	}

	if next == nil {
		logger.InfoContext(ctx, "Execution completed")
		e.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			ClientID:    execution.ClientID,
			Duration:    now.Sub(execution.StartedAt),
		})
	} else {
		logger.InfoContext(ctx, "Execution advanced", "next_step_id", next.ID, "next_step_order", next.Order)
	}

	return nil
}

// deliver dispatches the step's side effect. Wait steps have none.
func (e *Engine) deliver(ctx context.Context, step *models.WorkflowStep, clientID string) error {
	switch config := step.Config.(type) {
	case *models.FormConfig:
		return e.dispatcher.AssignForm(ctx, clientID, config.FormID, config.Message)
	case *models.NotificationConfig:
		return e.dispatcher.SendNotification(ctx, clientID, config.Title, config.Message)
	default:
		return nil
	}
}

// SetStatus applies a pause/resume/cancel control call. It shares the
// execution's lock with Advance so a control write and a tick can never
// interleave on the same execution.
func (e *Engine) SetStatus(ctx context.Context, executionID string, status models.ExecutionStatus) (*models.WorkflowExecution, error) {
	unlock := e.locks.Lock(executionID)
	defer unlock()

	execution, err := e.executions().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionTerminal, executionID, execution.Status)
	}

	if execution.Status == status {
		return execution, nil
	}

	if !execution.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, execution.Status, status)
	}

	now := e.clock.Now()
	execution.Status = status
	execution.UpdatedAt = now

	if status == models.ExecutionStatusCancelled {
		completedAt := now
		execution.CompletedAt = &completedAt
	}

	err = e.executions().Update(ctx, execution)
	if err != nil {
		return nil, err
	}

	event := events.ExecutionStatusChanged{
		ExecutionID: execution.ID,
		ClientID:    execution.ClientID,
		Status:      string(status),
	}
	event.BaseEvent = e.baseEvent(event.GetType(), execution.WorkflowID)
	e.publish(ctx, execution.ID, event)

	e.logger.InfoContext(ctx, "Execution status changed",
		"execution_id", execution.ID,
		"status", status,
	)

	return execution, nil
}

// Clock exposes the engine clock so launchers stamp executions coherently.
func (e *Engine) Clock() clockwork.Clock {
	return e.clock
}

func (e *Engine) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  e.clock.Now(),
		WorkflowID: workflowID,
	}
}

func (e *Engine) publishStepFired(
	ctx context.Context,
	execution *models.WorkflowExecution,
	step *models.WorkflowStep,
	firedCount int,
	deliveryErr error,
) {
	event := events.StepFired{
		BaseEvent:   events.BaseEvent{},
		ExecutionID: execution.ID,
		ClientID:    execution.ClientID,
		StepID:      step.ID,
		StepType:    string(step.Type),
		FiredCount:  firedCount,
		Delivered:   deliveryErr == nil,
	}

	if deliveryErr != nil {
		event.Error = deliveryErr.Error()
	}

	event.BaseEvent = e.baseEvent(event.GetType(), execution.WorkflowID)

	e.publish(ctx, execution.ID, event)
}

// publish emits an event without letting bus failures disturb the engine.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
