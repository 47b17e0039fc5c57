package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/coachflow/coachflow/pkg/cmd"
	"github.com/coachflow/coachflow/pkg/dispatch"
	"github.com/coachflow/coachflow/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "coachflow-api",
		Usage:                 "Create and manage coaching workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing CoachFlow API")

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

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				dispatcher,
			)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
