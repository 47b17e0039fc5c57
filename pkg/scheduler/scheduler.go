// Package scheduler drives the tick loop: on a cron cadence it collects
// every active execution and hands each one to the engine for evaluation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/persistence"
)

const DefaultWorkerCount = 8

// DefaultTickSchedule evaluates every execution once a minute. Step timing
// granularity is days and times of day, so a minute tick is more than
// enough resolution.
const DefaultTickSchedule = "* * * * *"

type Scheduler struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	logger      *slog.Logger
	schedule    string
	workers     int
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewScheduler(
	eng *engine.Engine,
	persistence persistence.Persistence,
	logger *slog.Logger,
	schedule string,
	workers int,
) *Scheduler {
	if schedule == "" {
		schedule = DefaultTickSchedule
	}

	if workers <= 0 {
		workers = DefaultWorkerCount
	}

	return &Scheduler{
		engine:      eng,
		persistence: persistence,
		logger:      logger.With("module", "scheduler"),
		schedule:    schedule,
		workers:     workers,
	}
}

func (s *Scheduler) Validate() error {
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid tick schedule '%s': %w", s.schedule, err)
	}

	return nil
}

// Start registers the tick job and launches the cron loop. Overlapping
// ticks are skipped rather than queued.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Tick(s.ctx, ""); err != nil {
			s.logger.Error("Tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register tick job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "schedule", s.schedule, "workers", s.workers)

	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")

	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()

		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Tick evaluates all active executions, optionally restricted to one
// workflow. Each execution is advanced independently; one failing
// execution never blocks the rest.
func (s *Scheduler) Tick(ctx context.Context, workflowID string) error {
	executions, err := s.persistence.ExecutionRepository().ListActive(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to list active executions: %w", err)
	}

	if len(executions) == 0 {
		return nil
	}

	s.logger.Debug("Tick started", "executions_count", len(executions))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)

	sem := make(chan struct{}, s.workers)

	for _, execution := range executions {
		select {
		case <-ctx.Done():
			wg.Wait()

			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)

		go func(executionID string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.engine.Advance(ctx, executionID); err != nil {
				s.logger.Error("Failed to advance execution", "execution_id", executionID, "error", err)

				mu.Lock()
				failures = append(failures, fmt.Errorf("execution %s: %w", executionID, err))
				mu.Unlock()
			}
		}(execution.ID)
	}

	wg.Wait()

	if len(failures) > 0 {
		return fmt.Errorf("tick finished with %d failed executions: %w", len(failures), errors.Join(failures...))
	}

	return nil
}
