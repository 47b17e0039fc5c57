package file

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

// RosterRepository is a file-backed roster read model. In production the
// roster belongs to the platform database; this implementation exists for
// local development and tests, which seed it through SaveClient and
// AddSubmission.
type RosterRepository struct {
	root string
	mu   sync.RWMutex
}

// NewRosterRepository creates a new roster repository.
func NewRosterRepository(root string) *RosterRepository {
	return &RosterRepository{root: root}
}

func (rr *RosterRepository) clientsDir() string {
	return filepath.Join(rr.root, "roster", "clients")
}

func (rr *RosterRepository) submissionsDir(clientID string) string {
	return filepath.Join(rr.root, "roster", "submissions", clientID)
}

// SaveClient seeds or updates a roster client.
func (rr *RosterRepository) SaveClient(client *models.Client) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	return writeJSON(rr.clientsDir(), client.ID, client)
}

// AddSubmission seeds a form submission for a client. Submissions are keyed
// by form and timestamp so repeated submissions of the same form coexist.
func (rr *RosterRepository) AddSubmission(submission *models.FormSubmission) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	name := submission.FormID + "-" + submission.SubmittedAt.UTC().Format("20060102T150405.000000000")

	return writeJSON(rr.submissionsDir(submission.ClientID), name, submission)
}

// ClientByID returns a single roster client.
func (rr *RosterRepository) ClientByID(_ context.Context, id string) (*models.Client, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	var client models.Client

	found, err := readJSON(rr.clientsDir(), id, &client)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrClientNotFound
	}

	return &client, nil
}

// ClientsByCoach returns every client belonging to a coach.
func (rr *RosterRepository) ClientsByCoach(ctx context.Context, coachID string) ([]*models.Client, error) {
	return rr.filterClients(func(client *models.Client) bool {
		return client.CoachID == coachID
	})
}

// ClientsByPackages returns the coach's clients subscribed to one of the
// given packages.
func (rr *RosterRepository) ClientsByPackages(ctx context.Context, coachID string, packageIDs []string) ([]*models.Client, error) {
	wanted := make(map[string]bool, len(packageIDs))
	for _, id := range packageIDs {
		wanted[id] = true
	}

	return rr.filterClients(func(client *models.Client) bool {
		return client.CoachID == coachID && wanted[client.PackageID]
	})
}

// ClientsByIDs returns the clients with the given ids, skipping ids that no
// longer exist.
func (rr *RosterRepository) ClientsByIDs(ctx context.Context, ids []string) ([]*models.Client, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	return rr.filterClients(func(client *models.Client) bool {
		return wanted[client.ID]
	})
}

// LatestSubmission returns the most recent submission of a form by a client.
func (rr *RosterRepository) LatestSubmission(_ context.Context, clientID, formID string) (*models.FormSubmission, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	names, err := listJSON(rr.submissionsDir(clientID))
	if err != nil {
		return nil, err
	}

	var latest *models.FormSubmission

	for _, name := range names {
		var submission models.FormSubmission

		found, err := readJSON(rr.submissionsDir(clientID), name, &submission)
		if err != nil {
			return nil, err
		}

		if !found || submission.FormID != formID {
			continue
		}

		if latest == nil || submission.SubmittedAt.After(latest.SubmittedAt) {
			submissionCopy := submission
			latest = &submissionCopy
		}
	}

	if latest == nil {
		return nil, persistence.ErrSubmissionNotFound
	}

	return latest, nil
}

func (rr *RosterRepository) filterClients(keep func(*models.Client) bool) ([]*models.Client, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	ids, err := listJSON(rr.clientsDir())
	if err != nil {
		return nil, err
	}

	clients := make([]*models.Client, 0, len(ids))

	for _, id := range ids {
		var client models.Client

		found, err := readJSON(rr.clientsDir(), id, &client)
		if err != nil {
			return nil, err
		}

		if found && keep(&client) {
			clientCopy := client
			clients = append(clients, &clientCopy)
		}
	}

	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })

	return clients, nil
}
