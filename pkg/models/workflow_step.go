package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StepType identifies the kind of work a workflow step performs.
type StepType string

const (
	StepTypeAudience     StepType = "audience"
	StepTypeForm         StepType = "form"
	StepTypeWait         StepType = "wait"
	StepTypeNotification StepType = "notification"
)

var ErrUnknownStepType = errors.New("unknown step type")

// WorkflowStep is one unit of a workflow. Its config is a tagged union whose
// concrete shape depends on Type.
type WorkflowStep struct {
	ID     string     `json:"id"`
	Type   StepType   `json:"type"  validate:"required"`
	Order  int        `json:"order" validate:"min=1"`
	Config StepConfig `json:"config"`
}

// Validate checks that the step carries a config matching its type.
func (s *WorkflowStep) Validate() error {
	if s.Config == nil {
		return fmt.Errorf("step %s: config is required", s.ID)
	}

	if s.Config.StepType() != s.Type {
		return fmt.Errorf("step %s: %s config on %s step", s.ID, s.Config.StepType(), s.Type)
	}

	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("step %s: %w", s.ID, err)
	}

	return nil
}

// stepEnvelope is the wire form of a step; config stays raw until the step
// type is known.
type stepEnvelope struct {
	ID     string          `json:"id"`
	Type   StepType        `json:"type"`
	Order  int             `json:"order"`
	Config json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the step and its config union based on the step type.
func (s *WorkflowStep) UnmarshalJSON(data []byte) error {
	var envelope stepEnvelope

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return err
	}

	s.ID = envelope.ID
	s.Type = envelope.Type
	s.Order = envelope.Order

	if len(envelope.Config) == 0 {
		return nil
	}

	config, err := DecodeStepConfig(envelope.Type, envelope.Config)
	if err != nil {
		return err
	}

	s.Config = config

	return nil
}

// DecodeStepConfig decodes a raw config payload into the concrete config
// variant for the given step type.
func DecodeStepConfig(stepType StepType, raw json.RawMessage) (StepConfig, error) {
	var config StepConfig

	switch stepType {
	case StepTypeAudience:
		config = &AudienceConfig{}
	case StepTypeForm:
		config = &FormConfig{}
	case StepTypeWait:
		config = &WaitConfig{}
	case StepTypeNotification:
		config = &NotificationConfig{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, stepType)
	}

	err := json.Unmarshal(raw, config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", stepType, err)
	}

	return config, nil
}
