// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/coachflow/coachflow/pkg/persistence"
	"github.com/coachflow/coachflow/pkg/persistence/file"
	"github.com/coachflow/coachflow/pkg/persistence/postgresql"
)

// NewPersistence picks the persistence provider from the URL scheme.
// postgres:// connects to PostgreSQL; anything else falls back to the
// file-based store, which is meant for development and tests.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
