package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const dispatchTimeout = 30 * time.Second

// HTTPDispatcher posts deliveries to the platform's notification and
// check-in collaborators. One POST per firing, no internal retries: a
// failed call is reported back to the engine as a failed-but-attempted
// firing.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDispatcher creates a dispatcher targeting the collaborator base URL.
func NewHTTPDispatcher(baseURL string) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: dispatchTimeout},
	}
}

type notificationPayload struct {
	ClientID string `json:"client_id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

type formAssignmentPayload struct {
	ClientID string `json:"client_id"`
	FormID   string `json:"form_id"`
	Message  string `json:"message"`
}

func (d *HTTPDispatcher) SendNotification(ctx context.Context, clientID, title, message string) error {
	payload := notificationPayload{
		ClientID: clientID,
		Title:    title,
		Message:  message,
		Type:     "workflow",
	}

	return d.post(ctx, "/notifications", payload)
}

func (d *HTTPDispatcher) AssignForm(ctx context.Context, clientID, formID, message string) error {
	payload := formAssignmentPayload{
		ClientID: clientID,
		FormID:   formID,
		Message:  message,
	}

	return d.post(ctx, "/form-assignments", payload)
}

func (d *HTTPDispatcher) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collaborator returned status %d for %s", resp.StatusCode, path)
	}

	return nil
}
