// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"encoding/json"
	"fmt"

	"github.com/coachflow/coachflow/pkg/models"
)

// StepRequest carries one workflow step with its config still raw; the
// config shape is checked against the step type's JSON schema before it is
// decoded into a typed config.
type StepRequest struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"   validate:"required,oneof=audience form wait notification"`
	Order  int             `json:"order"  validate:"min=1"`
	Config json.RawMessage `json:"config" validate:"required"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	CoachID     string        `json:"coach_id"    validate:"required"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	IsActive    bool          `json:"is_active"`
	Steps       []StepRequest `json:"steps"       validate:"required,min=1,dive"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates; a steps list,
// when present, replaces the whole step sequence.
type UpdateWorkflowRequest struct {
	Name        *string       `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string       `json:"description,omitempty"`
	IsActive    *bool         `json:"is_active,omitempty"`
	Steps       []StepRequest `json:"steps,omitempty"       validate:"omitempty,min=1,dive"`
}

// StartWorkflowRequest starts an execution for one named client.
type StartWorkflowRequest struct {
	ClientID string `json:"client_id" validate:"required"`
}

// SetExecutionStatusRequest represents the request body for pausing,
// resuming or cancelling an execution.
type SetExecutionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused cancelled"`
}

// decodeSteps schema-validates each raw step config and turns the request
// steps into model steps.
func decodeSteps(steps []StepRequest) ([]*models.WorkflowStep, error) {
	decoded := make([]*models.WorkflowStep, 0, len(steps))

	for _, step := range steps {
		stepType := models.StepType(step.Type)

		if err := models.ValidateStepConfigPayload(stepType, step.Config); err != nil {
			return nil, fmt.Errorf("step at order %d: %w", step.Order, err)
		}

		config, err := models.DecodeStepConfig(stepType, step.Config)
		if err != nil {
			return nil, fmt.Errorf("step at order %d: %w", step.Order, err)
		}

		decoded = append(decoded, &models.WorkflowStep{
			ID:     step.ID,
			Type:   stepType,
			Order:  step.Order,
			Config: config,
		})
	}

	return decoded, nil
}
