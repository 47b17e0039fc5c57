package models

import "time"

// Client is the read model of a coach's client as consumed from the roster
// collaborator: identity, package membership and subscription end date. The
// engine never sees more of the client record than this.
type Client struct {
	ID        string `json:"id"`
	CoachID   string `json:"coach_id"`
	PackageID string `json:"package_id,omitempty"`
	// SubscriptionEndsAt is nil when the client has no current subscription;
	// subscription-anchored timing rules then never become eligible.
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
}

// SubscriptionEnded reports whether the client's subscription end date has
// strictly passed. Clients without a subscription are never "ended"; the
// rules reading this treat them as never satisfied instead.
func (c *Client) SubscriptionEnded(now time.Time) bool {
	return c.SubscriptionEndsAt != nil && now.After(*c.SubscriptionEndsAt)
}

// FormSubmission is the read model of a client's check-in form submission,
// consumed as input to after-form-submission timing rules.
type FormSubmission struct {
	ClientID    string    `json:"client_id"`
	FormID      string    `json:"form_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
