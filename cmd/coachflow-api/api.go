// Package main provides the CoachFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jonboulle/clockwork"

	"github.com/coachflow/coachflow/pkg/audience"
	"github.com/coachflow/coachflow/pkg/dispatch"
	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/eventbus"
	"github.com/coachflow/coachflow/pkg/persistence"
	"github.com/coachflow/coachflow/pkg/scheduler"
	"github.com/coachflow/coachflow/pkg/services"
	"github.com/coachflow/coachflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	dispatcher  dispatch.Dispatcher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	dispatcher dispatch.Dispatcher,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		dispatcher:  dispatcher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	clock := clockwork.NewRealClock()

	eng := engine.New(a.persistence, a.dispatcher, a.eventBus, clock, a.logger)
	resolver := audience.NewResolver(a.persistence.RosterRepository(), a.logger)

	// Unstarted scheduler backing the on-demand process endpoint; the
	// periodic tick loop runs in coachflow-scheduler.
	ticker := scheduler.NewScheduler(eng, a.persistence, a.logger, "", 0)

	workflowService := services.NewWorkflow(a.persistence)
	launcher := services.NewLauncher(a.persistence, resolver, a.eventBus, clock, a.logger)
	executionService := services.NewExecution(a.persistence, eng, ticker)

	handlers := web.NewAPIHandlers(workflowService, launcher, executionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("CoachFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/start", handlers.StartWorkflow)
	w.Post("/:id/start-for-audience", handlers.StartWorkflowForAudience)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Post("/process", handlers.ProcessExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Patch("/:id/status", handlers.SetExecutionStatus)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
