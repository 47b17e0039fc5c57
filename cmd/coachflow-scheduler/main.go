// Package main provides the CoachFlow scheduler service. It runs the
// periodic tick loop that evaluates every active execution.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"

	"github.com/coachflow/coachflow/pkg/cmd"
	"github.com/coachflow/coachflow/pkg/dispatch"
	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/log"
	"github.com/coachflow/coachflow/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "coachflow-scheduler",
		Usage:                 "Run the workflow execution tick loop",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "delivery-url",
				Usage:   "Base URL of the delivery service (logs deliveries when unset)",
				Sources: cli.EnvVars("DELIVERY_URL"),
			},
			&cli.StringFlag{
				Name:    "tick-schedule",
				Usage:   "Cron expression for the evaluation tick",
				Value:   scheduler.DefaultTickSchedule,
				Sources: cli.EnvVars("TICK_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of concurrent execution evaluations per tick",
				Value:   scheduler.DefaultWorkerCount,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing CoachFlow Scheduler")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(logger)
			if err := cmd.RegisterEventLogger(ctx, eventBus, logger); err != nil {
				logger.ErrorContext(ctx, "Failed to subscribe event logger", "error", err)
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var dispatcher dispatch.Dispatcher
			if deliveryURL := command.String("delivery-url"); deliveryURL != "" {
				dispatcher = dispatch.NewHTTPDispatcher(deliveryURL)
			} else {
				dispatcher = dispatch.NewLogDispatcher(logger)
			}

			eng := engine.New(persistence, dispatcher, eventBus, clockwork.NewRealClock(), logger)

			sched := scheduler.NewScheduler(
				eng,
				persistence,
				logger,
				command.String("tick-schedule"),
				command.Int("workers"),
			)

			if err := sched.Start(ctx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.Info("Shutting down scheduler...")

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return sched.Stop(stopCtx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
