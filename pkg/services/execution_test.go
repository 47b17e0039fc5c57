package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/mocks"
	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence/file"
	"github.com/coachflow/coachflow/pkg/services"
)

type executionFixture struct {
	service     *services.Execution
	persistence *file.Persistence
}

// tickCounter satisfies services.Ticker for RunNow tests.
type tickCounter struct {
	workflowIDs []string
}

func (tc *tickCounter) Tick(_ context.Context, workflowID string) error {
	tc.workflowIDs = append(tc.workflowIDs, workflowID)

	return nil
}

func setupExecutionService(t *testing.T, ticker services.Ticker) *executionFixture {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	eng := engine.New(persistence, &mocks.MockDispatcher{}, nil, clock, testLogger())

	return &executionFixture{
		service:     services.NewExecution(persistence, eng, ticker),
		persistence: persistence,
	}
}

func (f *executionFixture) seedExecution(t *testing.T, id string, status models.ExecutionStatus) {
	t.Helper()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	execution := models.NewWorkflowExecution(id, "wf-1", "client-"+id, "step-1", now)
	execution.Status = status

	require.NoError(t, f.persistence.ExecutionRepository().Create(context.Background(), execution))
}

func TestExecutionService_List(t *testing.T) {
	t.Parallel()

	fixture := setupExecutionService(t, nil)
	fixture.seedExecution(t, "ex-1", models.ExecutionStatusActive)
	fixture.seedExecution(t, "ex-2", models.ExecutionStatusPaused)
	fixture.seedExecution(t, "ex-3", models.ExecutionStatusCompleted)

	t.Run("all", func(t *testing.T) {
		t.Parallel()

		executions, err := fixture.service.List(context.Background(), services.ListExecutionsRequest{})
		require.NoError(t, err)
		assert.Len(t, executions, 3)
	})

	t.Run("filtered by status", func(t *testing.T) {
		t.Parallel()

		executions, err := fixture.service.List(context.Background(), services.ListExecutionsRequest{Status: "paused"})
		require.NoError(t, err)
		require.Len(t, executions, 1)
		assert.Equal(t, "ex-2", executions[0].ID)
	})

	t.Run("invalid status", func(t *testing.T) {
		t.Parallel()

		_, err := fixture.service.List(context.Background(), services.ListExecutionsRequest{Status: "running"})
		require.ErrorIs(t, err, services.ErrInvalidStatus)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestExecutionService_SetStatus(t *testing.T) {
	t.Parallel()

	t.Run("pauses an active execution", func(t *testing.T) {
		t.Parallel()

		fixture := setupExecutionService(t, nil)
		fixture.seedExecution(t, "ex-1", models.ExecutionStatusActive)

		execution, err := fixture.service.SetStatus(context.Background(), "ex-1", "paused")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	})

	t.Run("completed is not a controllable status", func(t *testing.T) {
		t.Parallel()

		fixture := setupExecutionService(t, nil)
		fixture.seedExecution(t, "ex-1", models.ExecutionStatusActive)

		_, err := fixture.service.SetStatus(context.Background(), "ex-1", "completed")
		require.ErrorIs(t, err, services.ErrInvalidStatus)
	})

	t.Run("terminal executions are immutable", func(t *testing.T) {
		t.Parallel()

		fixture := setupExecutionService(t, nil)
		fixture.seedExecution(t, "ex-1", models.ExecutionStatusCancelled)

		_, err := fixture.service.SetStatus(context.Background(), "ex-1", "active")
		require.ErrorIs(t, err, engine.ErrExecutionTerminal)
		assert.True(t, services.IsConflictError(err))
	})

	t.Run("unknown execution", func(t *testing.T) {
		t.Parallel()

		fixture := setupExecutionService(t, nil)

		_, err := fixture.service.SetStatus(context.Background(), "missing", "paused")
		require.ErrorIs(t, err, services.ErrExecutionNotFound)
	})
}

func TestExecutionService_RunNow(t *testing.T) {
	t.Parallel()

	t.Run("delegates to the ticker", func(t *testing.T) {
		t.Parallel()

		counter := &tickCounter{}
		fixture := setupExecutionService(t, counter)

		require.NoError(t, fixture.service.RunNow(context.Background(), " wf-1 "))
		assert.Equal(t, []string{"wf-1"}, counter.workflowIDs)
	})

	t.Run("fails without a ticker", func(t *testing.T) {
		t.Parallel()

		fixture := setupExecutionService(t, nil)

		err := fixture.service.RunNow(context.Background(), "")
		require.ErrorIs(t, err, services.ErrInvalidRequest)
	})
}
