package audience_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachflow/coachflow/pkg/audience"
	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence/file"
)

func setupResolver(t *testing.T) *audience.Resolver {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	roster := persistence.Roster()

	clients := []*models.Client{
		{ID: "client-1", CoachID: "coach-1", PackageID: "basic"},
		{ID: "client-2", CoachID: "coach-1", PackageID: "premium"},
		{ID: "client-3", CoachID: "coach-1", PackageID: "premium"},
		{ID: "client-4", CoachID: "coach-2", PackageID: "premium"},
	}
	for _, client := range clients {
		require.NoError(t, roster.SaveClient(client))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return audience.NewResolver(persistence.RosterRepository(), logger)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	resolver := setupResolver(t)

	t.Run("all clients of the coach", func(t *testing.T) {
		t.Parallel()

		ids, err := resolver.Resolve(context.Background(), "coach-1", &models.AudienceConfig{
			AudienceType: models.AudienceAll,
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"client-1", "client-2", "client-3"}, ids)
	})

	t.Run("by packages, scoped to the coach", func(t *testing.T) {
		t.Parallel()

		ids, err := resolver.Resolve(context.Background(), "coach-1", &models.AudienceConfig{
			AudienceType: models.AudiencePackages,
			PackageIDs:   []string{"premium"},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"client-2", "client-3"}, ids)
	})

	t.Run("explicit client list skips unknown ids", func(t *testing.T) {
		t.Parallel()

		ids, err := resolver.Resolve(context.Background(), "coach-1", &models.AudienceConfig{
			AudienceType: models.AudienceClients,
			ClientIDs:    []string{"client-1", "client-3", "client-gone"},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"client-1", "client-3"}, ids)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		t.Parallel()

		ids, err := resolver.Resolve(context.Background(), "coach-3", &models.AudienceConfig{
			AudienceType: models.AudienceAll,
		})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("unknown audience type", func(t *testing.T) {
		t.Parallel()

		_, err := resolver.Resolve(context.Background(), "coach-1", &models.AudienceConfig{
			AudienceType: "everyone",
		})
		require.Error(t, err)
	})
}
