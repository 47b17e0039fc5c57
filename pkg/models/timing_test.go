package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachflow/coachflow/pkg/models"
)

func TestSendTiming_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timing  models.SendTiming
		wantErr bool
	}{
		{name: "zero value defaults to immediate", timing: models.SendTiming{}},
		{name: "immediate", timing: models.SendTiming{Kind: models.SendImmediate}},
		{name: "delay days", timing: models.SendTiming{Kind: models.SendDelayDays, DelayDays: 3}},
		{
			name:    "negative delay days",
			timing:  models.SendTiming{Kind: models.SendDelayDays, DelayDays: -1},
			wantErr: true,
		},
		{
			name:   "after form submission",
			timing: models.SendTiming{Kind: models.SendAfterFormSubmission, TriggerFormID: "f1", DelayDaysAfterSubmission: 2},
		},
		{
			name:    "after form submission without form",
			timing:  models.SendTiming{Kind: models.SendAfterFormSubmission},
			wantErr: true,
		},
		{
			name:   "before subscription end",
			timing: models.SendTiming{Kind: models.SendBeforeSubscriptionEnd, DaysBefore: 7},
		},
		{
			name:   "specific day of week",
			timing: models.SendTiming{Kind: models.SendSpecificDayOfWeek, Weekday: time.Monday},
		},
		{
			name:    "weekday out of range",
			timing:  models.SendTiming{Kind: models.SendSpecificDayOfWeek, Weekday: 9},
			wantErr: true,
		},
		{
			name:   "specific time of day",
			timing: models.SendTiming{Kind: models.SendSpecificTimeOfDay, TimeOfDay: "08:30"},
		},
		{
			name:    "malformed time of day",
			timing:  models.SendTiming{Kind: models.SendSpecificTimeOfDay, TimeOfDay: "25:99"},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			timing:  models.SendTiming{Kind: "someday"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.timing.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSendTiming_SingleShot(t *testing.T) {
	t.Parallel()

	assert.True(t, models.SendTiming{}.SingleShot())
	assert.True(t, models.SendTiming{Kind: models.SendDelayDays, DelayDays: 2}.SingleShot())
	assert.True(t, models.SendTiming{Kind: models.SendBeforeSubscriptionEnd, DaysBefore: 3}.SingleShot())

	assert.False(t, models.SendTiming{Kind: models.SendAfterFormSubmission, TriggerFormID: "f1"}.SingleShot())
	assert.False(t, models.SendTiming{Kind: models.SendSpecificDayOfWeek, Weekday: time.Friday}.SingleShot())
	assert.False(t, models.SendTiming{Kind: models.SendSpecificTimeOfDay, TimeOfDay: "07:00"}.SingleShot())
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	offset, err := models.ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, offset)

	_, err = models.ParseTimeOfDay("8am")
	require.Error(t, err)
}

func TestRepeatPolicy_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, models.RepeatPolicy{}.Validate())
	require.NoError(t, models.RepeatPolicy{Kind: models.RepeatOnce}.Validate())
	require.NoError(t, models.RepeatPolicy{Kind: models.RepeatUntilSubscriptionEnds}.Validate())
	require.NoError(t, models.RepeatPolicy{Kind: models.RepeatCustom, Count: 3}.Validate())

	require.Error(t, models.RepeatPolicy{Kind: models.RepeatCustom}.Validate())
	require.Error(t, models.RepeatPolicy{Kind: "forever"}.Validate())
}

func TestExecutionStatus_Transitions(t *testing.T) {
	t.Parallel()

	assert.True(t, models.ExecutionStatusActive.CanTransitionTo(models.ExecutionStatusPaused))
	assert.True(t, models.ExecutionStatusActive.CanTransitionTo(models.ExecutionStatusCancelled))
	assert.True(t, models.ExecutionStatusActive.CanTransitionTo(models.ExecutionStatusCompleted))
	assert.True(t, models.ExecutionStatusPaused.CanTransitionTo(models.ExecutionStatusActive))
	assert.True(t, models.ExecutionStatusPaused.CanTransitionTo(models.ExecutionStatusCancelled))

	assert.False(t, models.ExecutionStatusPaused.CanTransitionTo(models.ExecutionStatusCompleted))
	assert.False(t, models.ExecutionStatusCompleted.CanTransitionTo(models.ExecutionStatusActive))
	assert.False(t, models.ExecutionStatusCancelled.CanTransitionTo(models.ExecutionStatusActive))

	assert.True(t, models.ExecutionStatusCompleted.Terminal())
	assert.True(t, models.ExecutionStatusCancelled.Terminal())
	assert.False(t, models.ExecutionStatusActive.Terminal())
	assert.False(t, models.ExecutionStatusPaused.Terminal())
}

func TestWorkflowExecution_Lifecycle(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	execution := models.NewWorkflowExecution("ex-1", "wf-1", "client-1", "step-1", start)

	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
	assert.Equal(t, "step-1", execution.CurrentStepID)
	assert.Equal(t, start, execution.StepStartedAt)

	firedAt := start.Add(time.Hour)
	execution.RecordFiring("step-1", firedAt)
	execution.RecordFiring("step-1", firedAt.Add(time.Hour))

	occurrence := execution.Occurrence("step-1")
	assert.Equal(t, 2, occurrence.FiredCount)
	require.NotNil(t, occurrence.LastFiredAt)
	assert.Equal(t, firedAt.Add(time.Hour), *occurrence.LastFiredAt)

	advancedAt := start.Add(2 * time.Hour)
	execution.AdvanceTo("step-2", advancedAt)
	assert.Equal(t, "step-2", execution.CurrentStepID)
	assert.Equal(t, advancedAt, execution.StepStartedAt)

	// The previous step's history survives the advance.
	assert.Equal(t, 2, execution.Occurrence("step-1").FiredCount)

	doneAt := start.Add(3 * time.Hour)
	execution.Complete(doneAt)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, execution.CurrentStepID)
	require.NotNil(t, execution.CompletedAt)
	assert.Equal(t, doneAt, *execution.CompletedAt)
}
