// Package audience resolves an audience step config into a concrete set
// of client ids at launch time. The resolved membership is frozen into the
// executions the launch creates; later roster changes never retroactively
// add or remove executions.
package audience

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// Resolver turns an AudienceConfig into client ids using the roster.
type Resolver struct {
	roster persistence.RosterRepository
	logger *slog.Logger
}

// NewResolver creates an audience resolver.
func NewResolver(roster persistence.RosterRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		roster: roster,
		logger: logger.With("module", "audience_resolver"),
	}
}

// Resolve returns the deduplicated client ids the config selects for the
// coach. An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, coachID string, config *models.AudienceConfig) ([]string, error) {
	var (
		clients []*models.Client
		err     error
	)

	switch config.AudienceType {
	case models.AudienceAll:
		clients, err = r.roster.ClientsByCoach(ctx, coachID)
	case models.AudiencePackages:
		clients, err = r.roster.ClientsByPackages(ctx, coachID, config.PackageIDs)
	case models.AudienceClients:
		// Explicit lists are filtered to clients that still exist.
		clients, err = r.roster.ClientsByIDs(ctx, config.ClientIDs)
	default:
		return nil, fmt.Errorf("unknown audience type %q", config.AudienceType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s audience: %w", config.AudienceType, err)
	}

	seen := make(map[string]bool, len(clients))
	ids := make([]string, 0, len(clients))

	for _, client := range clients {
		if seen[client.ID] {
			continue
		}

		seen[client.ID] = true
		ids = append(ids, client.ID)
	}

	r.logger.DebugContext(ctx, "Resolved audience",
		"coach_id", coachID,
		"audience_type", config.AudienceType,
		"count", len(ids),
	)

	return ids, nil
}
