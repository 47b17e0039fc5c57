package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/coachflow/coachflow/pkg/audience"
	"github.com/coachflow/coachflow/pkg/eventbus"
	"github.com/coachflow/coachflow/pkg/events"
	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// Launcher starts workflow executions for clients. It resolves the
// workflow's audience, skips clients already enrolled and creates one
// execution per remaining client.
type Launcher struct {
	persistence persistence.Persistence
	resolver    *audience.Resolver
	eventBus    eventbus.EventBus
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewLauncher(
	persistence persistence.Persistence,
	resolver *audience.Resolver,
	eventBus eventbus.EventBus,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Launcher {
	return &Launcher{
		persistence: persistence,
		resolver:    resolver,
		eventBus:    eventBus,
		clock:       clock,
		logger:      logger.With("module", "launcher"),
	}
}

// StartForAudienceResult reports what a launch actually did.
type StartForAudienceResult struct {
	StartedCount int      `json:"started_count"`
	SkippedCount int      `json:"skipped_count"`
	ClientIDs    []string `json:"client_ids"`
}

// StartForAudience resolves the workflow's audience step and starts an
// execution for every matching client not already enrolled. Partial
// success is possible; the result counts what actually started.
func (l *Launcher) StartForAudience(ctx context.Context, workflowID string) (*StartForAudienceResult, error) {
	workflow, err := l.launchableWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	audienceStep := workflow.AudienceStep()

	config, ok := audienceStep.Config.(*models.AudienceConfig)
	if !ok {
		return nil, fmt.Errorf("%w: audience step %s has no audience config", ErrWorkflowNotLaunchable, audienceStep.ID)
	}

	clientIDs, err := l.resolver.Resolve(ctx, workflow.CoachID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}

	result := &StartForAudienceResult{ClientIDs: make([]string, 0, len(clientIDs))}

	for _, clientID := range clientIDs {
		execution, err := l.startExecution(ctx, workflow, clientID)
		if err != nil {
			if errors.Is(err, ErrClientAlreadyEnrolled) {
				result.SkippedCount++

				continue
			}

			l.logger.ErrorContext(ctx, "Failed to start execution",
				"workflow_id", workflow.ID,
				"client_id", clientID,
				"error", err,
			)

			return result, fmt.Errorf("failed to start execution for client %s: %w", clientID, err)
		}

		result.StartedCount++
		result.ClientIDs = append(result.ClientIDs, execution.ClientID)
	}

	l.publish(ctx, workflow.ID, events.WorkflowLaunched{
		BaseEvent:    l.baseEvent(events.WorkflowLaunchedEvent, workflow.ID),
		CoachID:      workflow.CoachID,
		StartedCount: result.StartedCount,
	})

	l.logger.InfoContext(ctx, "Workflow launched",
		"workflow_id", workflow.ID,
		"started_count", result.StartedCount,
		"skipped_count", result.SkippedCount,
	)

	return result, nil
}

// StartForClient enrolls a single client, bypassing the audience filter.
// The client must still belong to the workflow's coach.
func (l *Launcher) StartForClient(ctx context.Context, workflowID, clientID string) (*models.WorkflowExecution, error) {
	workflow, err := l.launchableWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	client, err := l.persistence.RosterRepository().ClientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if client.CoachID != workflow.CoachID {
		return nil, fmt.Errorf("%w: client %s does not belong to coach %s", ErrInvalidRequest, clientID, workflow.CoachID)
	}

	return l.startExecution(ctx, workflow, clientID)
}

func (l *Launcher) launchableWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := l.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	if err := workflow.Launchable(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkflowNotLaunchable, err)
	}

	return workflow, nil
}

// startExecution creates one execution positioned at the first step after
// the audience step. A client with an active or paused execution for the
// same workflow is not enrolled twice.
func (l *Launcher) startExecution(ctx context.Context, workflow *models.Workflow, clientID string) (*models.WorkflowExecution, error) {
	executions := l.persistence.ExecutionRepository()

	existing, err := executions.FindActive(ctx, workflow.ID, clientID)
	if err != nil && !persistence.IsExecutionNotFound(err) {
		return nil, err
	}

	if existing != nil {
		return nil, fmt.Errorf("%w: execution %s", ErrClientAlreadyEnrolled, existing.ID)
	}

	first := workflow.FirstActionableStep()
	if first == nil {
		return nil, fmt.Errorf("%w: workflow has no actionable steps", ErrWorkflowNotLaunchable)
	}

	now := l.clock.Now()
	execution := models.NewWorkflowExecution(
		uuid.New().String(),
		workflow.ID,
		clientID,
		first.ID,
		now,
	)

	if err := executions.Create(ctx, execution); err != nil {
		return nil, err
	}

	l.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   l.baseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID: execution.ID,
		ClientID:    clientID,
		StepID:      first.ID,
	})

	return execution, nil
}

func (l *Launcher) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  l.clock.Now(),
		WorkflowID: workflowID,
	}
}

func (l *Launcher) publish(ctx context.Context, key string, event eventbus.Event) {
	if l.eventBus == nil {
		return
	}

	err := l.eventBus.Publish(ctx, key, event)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
