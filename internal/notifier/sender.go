package notifier

import (
	"context"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/formatter"
)

// Sender is the interface for notification channels. The watch loop only
// depends on this, so a stricter delivery policy can be swapped in.
type Sender interface {
	// Name returns the sender's identifier (e.g., "webhook", "async").
	Name() string

	// Send delivers a notification payload. Implementations decide whether
	// a rejected delivery counts as an error.
	Send(ctx context.Context, p formatter.Payload) error
}
