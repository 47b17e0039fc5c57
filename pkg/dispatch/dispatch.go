// Package dispatch is the engine's delivery boundary: it hands notification
// and form-assignment effects to external collaborators. The engine treats
// every call as fire-and-forget with an error outcome; retries, rendering
// and transport belong to the collaborators.
package dispatch

import "context"

// Dispatcher delivers step side effects to external collaborators.
type Dispatcher interface {
	SendNotification(ctx context.Context, clientID, title, message string) error
	AssignForm(ctx context.Context, clientID, formID, message string) error
}
