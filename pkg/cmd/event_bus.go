package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/coachflow/coachflow/pkg/channels/gochannel"
	"github.com/coachflow/coachflow/pkg/eventbus"
)

// NewEventBus creates the in-process event bus carrying execution
// lifecycle events.
func NewEventBus(logger *slog.Logger) eventbus.EventBus {
	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	if err != nil {
		panic(fmt.Errorf("failed to create pub/sub channel: %w", err))
	}

	return eventbus.NewWatermillEventBus(pub, sub)
}
