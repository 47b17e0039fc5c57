// Package web provides HTTP handlers and REST API endpoints for workflow
// and execution management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
	"github.com/coachflow/coachflow/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	launcher         *services.Launcher
	executionService *services.Execution
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	launcher *services.Launcher,
	executionService *services.Execution,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		launcher:         launcher,
		executionService: executionService,
		validator:        validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "CoachFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "CoachFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	coachID := c.Query("coach_id")
	if coachID == "" {
		return badRequest(c, "coach_id query parameter is required")
	}

	workflows, err := h.workflowService.List(c.Context(), coachID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	steps, err := decodeSteps(req.Steps)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		CoachID:     req.CoachID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Steps:       steps,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Get existing workflow and merge changes
	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if req.Steps != nil {
		steps, err := decodeSteps(req.Steps)
		if err != nil {
			return badRequest(c, err.Error())
		}

		existing.Steps = steps
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Delete(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// StartWorkflow starts an execution for a single client.
func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req StartWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.launcher.StartForClient(c.Context(), id, req.ClientID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

// StartWorkflowForAudience starts executions for every client matching the
// workflow's audience step.
func (h *APIHandlers) StartWorkflowForAudience(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	result, err := h.launcher.StartForAudience(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	req := services.ListExecutionsRequest{
		CoachID:    c.Query("coach_id"),
		WorkflowID: c.Query("workflow_id"),
		Status:     c.Query("status"),
	}

	executions, err := h.executionService.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(execution)
}

// SetExecutionStatus pauses, resumes or cancels an execution.
func (h *APIHandlers) SetExecutionStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req SetExecutionStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executionService.SetStatus(c.Context(), id, req.Status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// ProcessExecutions runs a scheduler pass immediately instead of waiting
// for the next tick.
func (h *APIHandlers) ProcessExecutions(c fiber.Ctx) error {
	err := h.executionService.RunNow(c.Context(), c.Query("workflow_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
