package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachflow/coachflow/pkg/models"
)

func TestValidateStepConfigPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stepType models.StepType
		payload  string
		wantErr  bool
	}{
		{
			name:     "audience all",
			stepType: models.StepTypeAudience,
			payload:  `{"audience_type": "all"}`,
		},
		{
			name:     "audience with unknown type",
			stepType: models.StepTypeAudience,
			payload:  `{"audience_type": "everyone"}`,
			wantErr:  true,
		},
		{
			name:     "audience missing type",
			stepType: models.StepTypeAudience,
			payload:  `{"package_ids": ["p1"]}`,
			wantErr:  true,
		},
		{
			name:     "form with weekly timing",
			stepType: models.StepTypeForm,
			payload:  `{"form_id": "f1", "send_timing": {"kind": "specific_day_of_week", "weekday": 1}}`,
		},
		{
			name:     "form missing form id",
			stepType: models.StepTypeForm,
			payload:  `{"send_timing": {"kind": "immediate"}}`,
			wantErr:  true,
		},
		{
			name:     "form with out-of-range weekday",
			stepType: models.StepTypeForm,
			payload:  `{"form_id": "f1", "send_timing": {"kind": "specific_day_of_week", "weekday": 7}}`,
			wantErr:  true,
		},
		{
			name:     "wait",
			stepType: models.StepTypeWait,
			payload:  `{"days": 7}`,
		},
		{
			name:     "wait with non-integer days",
			stepType: models.StepTypeWait,
			payload:  `{"days": "seven"}`,
			wantErr:  true,
		},
		{
			name:     "notification with time of day",
			stepType: models.StepTypeNotification,
			payload:  `{"title": "Hi", "send_timing": {"kind": "specific_time_of_day", "time_of_day": "08:30"}}`,
		},
		{
			name:     "notification with malformed time of day",
			stepType: models.StepTypeNotification,
			payload:  `{"title": "Hi", "send_timing": {"kind": "specific_time_of_day", "time_of_day": "24:30"}}`,
			wantErr:  true,
		},
		{
			name:     "custom repeat below minimum",
			stepType: models.StepTypeNotification,
			payload:  `{"title": "Hi", "repeat": {"kind": "custom", "count": 0}}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := models.ValidateStepConfigPayload(tt.stepType, json.RawMessage(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("unknown step type", func(t *testing.T) {
		t.Parallel()

		err := models.ValidateStepConfigPayload("sms", json.RawMessage(`{}`))
		require.ErrorIs(t, err, models.ErrUnknownStepType)
	})
}
