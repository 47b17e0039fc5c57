package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
	"github.com/coachflow/coachflow/pkg/persistence/file"
)

var anchor = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func storedWorkflow(id, coachID string) *models.Workflow {
	return &models.Workflow{
		ID:       id,
		CoachID:  coachID,
		Name:     "Onboarding",
		IsActive: true,
		Steps: []*models.WorkflowStep{
			{
				ID:     id + "-audience",
				Type:   models.StepTypeAudience,
				Order:  1,
				Config: &models.AudienceConfig{AudienceType: models.AudienceAll},
			},
			{
				ID:    id + "-notify",
				Type:  models.StepTypeNotification,
				Order: 2,
				Config: &models.NotificationConfig{
					Title:   "Welcome",
					Message: "Glad to have you",
					Timing:  models.SendTiming{Kind: models.SendImmediate},
				},
			},
		},
		CreatedAt: anchor,
		UpdatedAt: anchor,
	}
}

func TestWorkflowRepository_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()

	require.NoError(t, repo.Save(ctx, storedWorkflow("wf-1", "coach-1")))

	loaded, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", loaded.Name)
	require.Len(t, loaded.Steps, 2)

	// Step config unions survive the JSON round trip with their concrete
	// types intact.
	notification, ok := loaded.Steps[1].Config.(*models.NotificationConfig)
	require.True(t, ok)
	assert.Equal(t, "Welcome", notification.Title)
	assert.Equal(t, models.SendImmediate, notification.Timing.Kind)
}

func TestWorkflowRepository_ListScopesByCoach(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()

	require.NoError(t, repo.Save(ctx, storedWorkflow("wf-1", "coach-1")))
	require.NoError(t, repo.Save(ctx, storedWorkflow("wf-2", "coach-1")))
	require.NoError(t, repo.Save(ctx, storedWorkflow("wf-3", "coach-2")))

	workflows, err := repo.List(ctx, "coach-1")
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}

func TestWorkflowRepository_SoftDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()

	require.NoError(t, repo.Save(ctx, storedWorkflow("wf-1", "coach-1")))
	require.NoError(t, repo.Delete(ctx, "wf-1"))

	_, err := repo.GetByID(ctx, "wf-1")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	workflows, err := repo.List(ctx, "coach-1")
	require.NoError(t, err)
	assert.Empty(t, workflows)

	assert.ErrorIs(t, repo.Delete(ctx, "wf-1"), persistence.ErrWorkflowNotFound)
}

func TestExecutionRepository_OccurrenceRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()

	execution := models.NewWorkflowExecution("ex-1", "wf-1", "client-1", "step-1", anchor)
	execution.RecordFiring("step-1", anchor)
	execution.RecordFiring("step-1", anchor.Add(24*time.Hour))
	require.NoError(t, repo.Create(ctx, execution))

	loaded, err := repo.GetByID(ctx, "ex-1")
	require.NoError(t, err)

	occurrence := loaded.Occurrence("step-1")
	assert.Equal(t, 2, occurrence.FiredCount)
	require.NotNil(t, occurrence.LastFiredAt)
	assert.True(t, occurrence.LastFiredAt.Equal(anchor.Add(24*time.Hour)))

	loaded.AdvanceTo("step-2", anchor.Add(48*time.Hour))
	require.NoError(t, repo.Update(ctx, loaded))

	reloaded, err := repo.GetByID(ctx, "ex-1")
	require.NoError(t, err)
	assert.Equal(t, "step-2", reloaded.CurrentStepID)
	assert.Equal(t, 2, reloaded.Occurrence("step-1").FiredCount)
}

func TestExecutionRepository_ListFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.WorkflowRepository().Save(ctx, storedWorkflow("wf-1", "coach-1")))
	require.NoError(t, store.WorkflowRepository().Save(ctx, storedWorkflow("wf-2", "coach-2")))

	repo := store.ExecutionRepository()
	require.NoError(t, repo.Create(ctx, models.NewWorkflowExecution("ex-1", "wf-1", "client-1", "s", anchor)))
	require.NoError(t, repo.Create(ctx, models.NewWorkflowExecution("ex-2", "wf-2", "client-2", "s", anchor.Add(time.Hour))))

	paused := models.NewWorkflowExecution("ex-3", "wf-1", "client-3", "s", anchor.Add(2*time.Hour))
	paused.Status = models.ExecutionStatusPaused
	require.NoError(t, repo.Create(ctx, paused))

	byWorkflow, err := repo.List(ctx, persistence.ExecutionFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 2)

	byStatus, err := repo.List(ctx, persistence.ExecutionFilter{Status: models.ExecutionStatusPaused})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "ex-3", byStatus[0].ID)

	byCoach, err := repo.List(ctx, persistence.ExecutionFilter{CoachID: "coach-2"})
	require.NoError(t, err)
	require.Len(t, byCoach, 1)
	assert.Equal(t, "ex-2", byCoach[0].ID)
}

func TestExecutionRepository_FindActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()

	cancelled := models.NewWorkflowExecution("ex-1", "wf-1", "client-1", "s", anchor)
	cancelled.Status = models.ExecutionStatusCancelled
	require.NoError(t, repo.Create(ctx, cancelled))

	_, err := repo.FindActive(ctx, "wf-1", "client-1")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	// Paused executions still count as enrolled.
	paused := models.NewWorkflowExecution("ex-2", "wf-1", "client-1", "s", anchor)
	paused.Status = models.ExecutionStatusPaused
	require.NoError(t, repo.Create(ctx, paused))

	found, err := repo.FindActive(ctx, "wf-1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "ex-2", found.ID)
}

func TestRosterRepository_LatestSubmission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	roster := store.Roster()

	require.NoError(t, roster.SaveClient(&models.Client{ID: "client-1", CoachID: "coach-1"}))

	_, err := roster.LatestSubmission(ctx, "client-1", "intake")
	assert.ErrorIs(t, err, persistence.ErrSubmissionNotFound)

	require.NoError(t, roster.AddSubmission(&models.FormSubmission{
		ClientID: "client-1", FormID: "intake", SubmittedAt: anchor,
	}))
	require.NoError(t, roster.AddSubmission(&models.FormSubmission{
		ClientID: "client-1", FormID: "intake", SubmittedAt: anchor.Add(48 * time.Hour),
	}))
	require.NoError(t, roster.AddSubmission(&models.FormSubmission{
		ClientID: "client-1", FormID: "checkin", SubmittedAt: anchor.Add(72 * time.Hour),
	}))

	latest, err := roster.LatestSubmission(ctx, "client-1", "intake")
	require.NoError(t, err)
	assert.True(t, latest.SubmittedAt.Equal(anchor.Add(48 * time.Hour)))
}
