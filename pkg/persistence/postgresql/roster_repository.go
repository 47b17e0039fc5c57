package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// RosterRepository reads the platform's client, subscription and form
// submission tables. All queries resolve a client's current subscription as
// the latest non-canceled one, matching how the platform renders it.
type RosterRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRosterRepository creates a new roster repository.
func NewRosterRepository(db *sql.DB, logger *slog.Logger) *RosterRepository {
	return &RosterRepository{db: db, logger: logger}
}

const clientQuery = `
	SELECT
		c.id
	  , c.coach_id
	  , s.package_id
	  , s.ends_at
	FROM clients c
	LEFT JOIN LATERAL (
		SELECT package_id, ends_at
		FROM subscriptions
		WHERE client_id = c.id AND NOT canceled
		ORDER BY ends_at DESC NULLS LAST
		LIMIT 1
	) s ON true
`

// ClientByID returns a single roster client.
func (r *RosterRepository) ClientByID(ctx context.Context, id string) (*models.Client, error) {
	client, err := scanClient(r.db.QueryRowContext(ctx, clientQuery+" WHERE c.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrClientNotFound
		}

		return nil, fmt.Errorf("failed to query client %s: %w", id, err)
	}

	return client, nil
}

// ClientsByCoach returns every client belonging to a coach.
func (r *RosterRepository) ClientsByCoach(ctx context.Context, coachID string) ([]*models.Client, error) {
	return r.queryClients(ctx, clientQuery+" WHERE c.coach_id = $1", coachID)
}

// ClientsByPackages returns the coach's clients whose current subscription
// is in one of the given packages.
func (r *RosterRepository) ClientsByPackages(ctx context.Context, coachID string, packageIDs []string) ([]*models.Client, error) {
	query := clientQuery + " WHERE c.coach_id = $1 AND s.package_id = ANY($2)"

	return r.queryClients(ctx, query, coachID, pq.Array(packageIDs))
}

// ClientsByIDs returns the clients with the given ids, silently skipping ids
// that no longer exist.
func (r *RosterRepository) ClientsByIDs(ctx context.Context, ids []string) ([]*models.Client, error) {
	return r.queryClients(ctx, clientQuery+" WHERE c.id = ANY($1)", pq.Array(ids))
}

// LatestSubmission returns the most recent submission of a form by a client.
func (r *RosterRepository) LatestSubmission(ctx context.Context, clientID, formID string) (*models.FormSubmission, error) {
	query := `
		SELECT client_id, form_id, submitted_at
		FROM form_submissions
		WHERE client_id = $1 AND form_id = $2
		ORDER BY submitted_at DESC
		LIMIT 1
	`

	var submission models.FormSubmission

	err := r.db.QueryRowContext(ctx, query, clientID, formID).
		Scan(&submission.ClientID, &submission.FormID, &submission.SubmittedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSubmissionNotFound
		}

		return nil, fmt.Errorf("failed to query submission: %w", err)
	}

	return &submission, nil
}

func (r *RosterRepository) queryClients(ctx context.Context, query string, args ...any) ([]*models.Client, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	clients := make([]*models.Client, 0)

	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}

		clients = append(clients, client)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

func scanClient(row rowScanner) (*models.Client, error) {
	var (
		client    models.Client
		packageID sql.NullString
		endsAt    sql.NullTime
	)

	err := row.Scan(&client.ID, &client.CoachID, &packageID, &endsAt)
	if err != nil {
		return nil, err
	}

	if packageID.Valid {
		client.PackageID = packageID.String
	}

	if endsAt.Valid {
		client.SubscriptionEndsAt = &endsAt.Time
	}

	return &client, nil
}
