package models

import (
	"errors"
	"fmt"
)

// StepConfig is the tagged union of per-step-type configuration. Each
// variant reports its step type so evaluator dispatch stays exhaustive.
type StepConfig interface {
	StepType() StepType
	Validate() error
}

// AudienceType selects how an audience step resolves to clients.
type AudienceType string

const (
	AudienceAll      AudienceType = "all"
	AudiencePackages AudienceType = "packages"
	AudienceClients  AudienceType = "clients"
)

// AudienceConfig scopes a workflow launch to a set of clients.
type AudienceConfig struct {
	AudienceType AudienceType `json:"audience_type"`
	PackageIDs   []string     `json:"package_ids,omitempty"`
	ClientIDs    []string     `json:"client_ids,omitempty"`
}

func (c *AudienceConfig) StepType() StepType { return StepTypeAudience }

func (c *AudienceConfig) Validate() error {
	switch c.AudienceType {
	case AudienceAll:
		return nil
	case AudiencePackages:
		if len(c.PackageIDs) == 0 {
			return errors.New("package audience requires at least one package id")
		}

		return nil
	case AudienceClients:
		if len(c.ClientIDs) == 0 {
			return errors.New("client audience requires at least one client id")
		}

		return nil
	default:
		return fmt.Errorf("unknown audience type %q", c.AudienceType)
	}
}

// FormConfig assigns a check-in form to the client when the step fires.
type FormConfig struct {
	FormID  string       `json:"form_id"`
	Message string       `json:"message,omitempty"`
	Timing  SendTiming   `json:"send_timing"`
	Repeat  RepeatPolicy `json:"repeat"`
}

func (c *FormConfig) StepType() StepType { return StepTypeForm }

func (c *FormConfig) Validate() error {
	if c.FormID == "" {
		return errors.New("form step requires a form id")
	}

	if err := c.Timing.Validate(); err != nil {
		return err
	}

	return c.Repeat.Validate()
}

// WaitConfig holds the execution at the step until the given number of days
// has elapsed. It has no delivery side effect.
type WaitConfig struct {
	Days    int          `json:"days"`
	Message string       `json:"message,omitempty"`
	Repeat  RepeatPolicy `json:"repeat"`
}

func (c *WaitConfig) StepType() StepType { return StepTypeWait }

func (c *WaitConfig) Validate() error {
	if c.Days < 0 {
		return errors.New("wait days must not be negative")
	}

	return c.Repeat.Validate()
}

// NotificationConfig sends a notification to the client when the step fires.
type NotificationConfig struct {
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Timing  SendTiming   `json:"send_timing"`
	Repeat  RepeatPolicy `json:"repeat"`
}

func (c *NotificationConfig) StepType() StepType { return StepTypeNotification }

func (c *NotificationConfig) Validate() error {
	if c.Title == "" && c.Message == "" {
		return errors.New("notification step requires a title or message")
	}

	if err := c.Timing.Validate(); err != nil {
		return err
	}

	return c.Repeat.Validate()
}
