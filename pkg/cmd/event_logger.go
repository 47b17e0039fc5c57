package cmd

import (
	"context"
	"log/slog"

	"github.com/coachflow/coachflow/pkg/events"
	"github.com/coachflow/coachflow/pkg/eventbus"
)

// RegisterEventLogger subscribes a structured-log handler for every
// lifecycle event type, surfacing engine activity to operators.
func RegisterEventLogger(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	eventLogger := logger.With("module", "events")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowLaunchedEvent: func(ctx context.Context, event any) error {
			if e, ok := event.(*events.WorkflowLaunched); ok {
				eventLogger.InfoContext(ctx, "Workflow launched",
					"workflow_id", e.WorkflowID, "coach_id", e.CoachID, "started_count", e.StartedCount)
			}

			return nil
		},
		events.ExecutionStartedEvent: func(ctx context.Context, event any) error {
			if e, ok := event.(*events.ExecutionStarted); ok {
				eventLogger.InfoContext(ctx, "Execution started",
					"execution_id", e.ExecutionID, "workflow_id", e.WorkflowID, "client_id", e.ClientID)
			}

			return nil
		},
		events.ExecutionCompletedEvent: func(ctx context.Context, event any) error {
			if e, ok := event.(*events.ExecutionCompleted); ok {
				eventLogger.InfoContext(ctx, "Execution completed",
					"execution_id", e.ExecutionID, "workflow_id", e.WorkflowID, "duration", e.Duration)
			}

			return nil
		},
		events.StepFiredEvent: func(ctx context.Context, event any) error {
			if e, ok := event.(*events.StepFired); ok {
				eventLogger.InfoContext(ctx, "Step fired",
					"execution_id", e.ExecutionID, "step_id", e.StepID, "fired_count", e.FiredCount)
			}

			return nil
		},
		events.StepDeliveryFailedEvent: func(ctx context.Context, event any) error {
			if e, ok := event.(*events.StepFired); ok {
				eventLogger.WarnContext(ctx, "Step delivery failed",
					"execution_id", e.ExecutionID, "step_id", e.StepID, "error", e.Error)
			}

			return nil
		},
	}

	statusHandler := func(ctx context.Context, event any) error {
		if e, ok := event.(*events.ExecutionStatusChanged); ok {
			eventLogger.InfoContext(ctx, "Execution status changed",
				"execution_id", e.ExecutionID, "status", e.Status)
		}

		return nil
	}
	handlers[events.ExecutionPausedEvent] = statusHandler
	handlers[events.ExecutionResumedEvent] = statusHandler
	handlers[events.ExecutionCancelledEvent] = statusHandler

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
