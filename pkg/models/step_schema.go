package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// stepConfigSchemas holds the JSON Schema for each step type's config
// payload. Raw API payloads are validated against these before the tagged
// union decode, so shape errors surface as data-entry errors with field
// paths instead of decode failures.
var stepConfigSchemas = map[StepType]map[string]any{
	StepTypeAudience: {
		"type":     "object",
		"required": []string{"audience_type"},
		"properties": map[string]any{
			"audience_type": map[string]any{
				"type": "string",
				"enum": []string{"all", "packages", "clients"},
			},
			"package_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"client_ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	},
	StepTypeForm: {
		"type":     "object",
		"required": []string{"form_id"},
		"properties": map[string]any{
			"form_id":     map[string]any{"type": "string", "minLength": 1},
			"message":     map[string]any{"type": "string"},
			"send_timing": sendTimingSchema,
			"repeat":      repeatPolicySchema,
		},
	},
	StepTypeWait: {
		"type":     "object",
		"required": []string{"days"},
		"properties": map[string]any{
			"days":    map[string]any{"type": "integer", "minimum": 0},
			"message": map[string]any{"type": "string"},
			"repeat":  repeatPolicySchema,
		},
	},
	StepTypeNotification: {
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"message":     map[string]any{"type": "string"},
			"send_timing": sendTimingSchema,
			"repeat":      repeatPolicySchema,
		},
	},
}

var sendTimingSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []string{
				"immediate", "delay_days", "after_form_submission",
				"before_subscription_end", "specific_day_of_week", "specific_time_of_day",
			},
		},
		"delay_days":                  map[string]any{"type": "integer", "minimum": 0},
		"trigger_form_id":             map[string]any{"type": "string"},
		"delay_days_after_submission": map[string]any{"type": "integer", "minimum": 0},
		"days_before":                 map[string]any{"type": "integer", "minimum": 0},
		"weekday":                     map[string]any{"type": "integer", "minimum": 0, "maximum": 6},
		"time_of_day":                 map[string]any{"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
	},
}

var repeatPolicySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []string{"once", "until_subscription_ends", "custom"},
		},
		"count": map[string]any{"type": "integer", "minimum": 1},
	},
}

// ValidateStepConfigPayload validates a raw step config document against the
// schema for the given step type.
func ValidateStepConfigPayload(stepType StepType, raw json.RawMessage) error {
	schema, ok := stepConfigSchemas[stepType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStepType, stepType)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s config: %w", stepType, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid %s config: %s", stepType, strings.Join(descriptions, "; "))
	}

	return nil
}
