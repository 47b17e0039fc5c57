package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachflow/coachflow/pkg/audience"
	"github.com/coachflow/coachflow/pkg/dispatch"
	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/models"
	persist "github.com/coachflow/coachflow/pkg/persistence"
	"github.com/coachflow/coachflow/pkg/persistence/file"
	"github.com/coachflow/coachflow/pkg/scheduler"
	"github.com/coachflow/coachflow/pkg/services"
	"github.com/coachflow/coachflow/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	dispatcher := dispatch.NewLogDispatcher(logger)

	eng := engine.New(persistence, dispatcher, nil, clock, logger)
	resolver := audience.NewResolver(persistence.RosterRepository(), logger)
	ticker := scheduler.NewScheduler(eng, persistence, logger, "", 0)

	workflowService := services.NewWorkflow(persistence)
	launcher := services.NewLauncher(persistence, resolver, nil, clock, logger)
	executionService := services.NewExecution(persistence, eng, ticker)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(workflowService, launcher, executionService, validate)

	app := fiber.New()

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

	return app, persistence
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var buffer bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buffer).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buffer)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var value T

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &value))

	return value
}

func onboardingRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		CoachID:  "coach-1",
		Name:     "Client Onboarding",
		IsActive: true,
		Steps: []web.StepRequest{
			{
				Type:   "audience",
				Order:  1,
				Config: json.RawMessage(`{"audience_type": "all"}`),
			},
			{
				Type:   "form",
				Order:  2,
				Config: json.RawMessage(`{"form_id": "intake", "send_timing": {"kind": "immediate"}}`),
			},
		},
	}
}

func createWorkflow(t *testing.T, app *fiber.App) models.Workflow {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", onboardingRequest()))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return decodeBody[models.Workflow](t, resp)
}

func seedClient(t *testing.T, persistence *file.Persistence, id string) {
	t.Helper()
	require.NoError(t, persistence.Roster().SaveClient(&models.Client{ID: id, CoachID: "coach-1"}))
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		app, _ := setupTestApp(t)
		workflow := createWorkflow(t, app)

		assert.NotEmpty(t, workflow.ID)
		assert.Equal(t, "Client Onboarding", workflow.Name)
		require.Len(t, workflow.Steps, 2)
		assert.NotEmpty(t, workflow.Steps[0].ID)
	})

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()

		app, _ := setupTestApp(t)

		body := onboardingRequest()
		body.Name = ""

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("config failing the step schema", func(t *testing.T) {
		t.Parallel()

		app, _ := setupTestApp(t)

		body := onboardingRequest()
		body.Steps[1].Config = json.RawMessage(`{"send_timing": {"kind": "immediate"}}`)

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("audience step out of position", func(t *testing.T) {
		t.Parallel()

		app, _ := setupTestApp(t)

		body := onboardingRequest()
		body.Steps[0].Order = 2
		body.Steps[1].Order = 1

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows", body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPIHandlers_GetWorkflows(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	createWorkflow(t, app)

	t.Run("requires coach_id", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lists the coach's workflows", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/?coach_id=coach-1", nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := decodeBody[map[string]json.RawMessage](t, resp)
		assert.Contains(t, result, "workflows")
	})
}

func TestAPIHandlers_WorkflowLifecycle(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	workflow := createWorkflow(t, app)

	t.Run("get", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+workflow.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("patch name", func(t *testing.T) {
		name := "Renamed Onboarding"

		resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+workflow.ID, web.UpdateWorkflowRequest{Name: &name}))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		updated := decodeBody[models.Workflow](t, resp)
		assert.Equal(t, "Renamed Onboarding", updated.Name)
		assert.Len(t, updated.Steps, 2)
	})

	t.Run("delete", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+workflow.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+workflow.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAPIHandlers_StartWorkflow(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	workflow := createWorkflow(t, app)
	seedClient(t, persistence, "client-1")

	t.Run("starts a single client", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/start", web.StartWorkflowRequest{ClientID: "client-1"}))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		execution := decodeBody[models.WorkflowExecution](t, resp)
		assert.Equal(t, "client-1", execution.ClientID)
		assert.Equal(t, models.ExecutionStatusActive, execution.Status)
	})

	t.Run("duplicate enrollment conflicts", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/start", web.StartWorkflowRequest{ClientID: "client-1"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("missing client id", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/start", web.StartWorkflowRequest{}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPIHandlers_StartForAudienceAndProcess(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	workflow := createWorkflow(t, app)
	seedClient(t, persistence, "client-1")
	seedClient(t, persistence, "client-2")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/start-for-audience", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := decodeBody[services.StartForAudienceResult](t, resp)
	assert.Equal(t, 2, result.StartedCount)

	// An immediate process pass fires the intake form and completes both
	// executions.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/executions/process?workflow_id="+workflow.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	executions, err := persistence.ExecutionRepository().List(context.Background(), persist.ExecutionFilter{WorkflowID: workflow.ID})
	require.NoError(t, err)
	require.Len(t, executions, 2)

	for _, execution := range executions {
		assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	}
}

func TestAPIHandlers_Executions(t *testing.T) {
	t.Parallel()

	app, persistence := setupTestApp(t)
	workflow := createWorkflow(t, app)
	seedClient(t, persistence, "client-1")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/start", web.StartWorkflowRequest{ClientID: "client-1"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	started := decodeBody[models.WorkflowExecution](t, resp)

	t.Run("list", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/?workflow_id="+workflow.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("list with invalid status", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/?status=running", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("get by id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+started.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("pause and resume", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/executions/"+started.ID+"/status", web.SetExecutionStatusRequest{Status: "paused"}))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		paused := decodeBody[models.WorkflowExecution](t, resp)
		assert.Equal(t, models.ExecutionStatusPaused, paused.Status)

		resp, err = app.Test(jsonRequest(t, http.MethodPatch, "/executions/"+started.ID+"/status", web.SetExecutionStatusRequest{Status: "active"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("status outside the allowed set", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/executions/"+started.ID+"/status", web.SetExecutionStatusRequest{Status: "completed"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown execution", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/executions/missing/status", web.SetExecutionStatusRequest{Status: "paused"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
