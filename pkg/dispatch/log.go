package dispatch

import (
	"context"
	"log/slog"
)

// LogDispatcher logs deliveries instead of sending them. Used in local
// development and as the default when no collaborator is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a logging dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("module", "log_dispatcher")}
}

func (d *LogDispatcher) SendNotification(ctx context.Context, clientID, title, message string) error {
	d.logger.InfoContext(ctx, "Would send notification",
		"client_id", clientID,
		"title", title,
		"message", message,
	)

	return nil
}

func (d *LogDispatcher) AssignForm(ctx context.Context, clientID, formID, message string) error {
	d.logger.InfoContext(ctx, "Would assign form",
		"client_id", clientID,
		"form_id", formID,
		"message", message,
	)

	return nil
}
