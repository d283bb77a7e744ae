package channel

import (
	"context"

	"github.com/stellarlinkco/daypost/internal/bus"
)

// Channel is a chat transport: it publishes inbound messages on the bus and
// delivers outbound ones.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// Connector is implemented by channels that can send without receiving,
// for one-shot deliveries from the CLI.
type Connector interface {
	Connect() error
}

type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]bool
}

// NewBaseChannel builds the shared part of a channel. An empty allowFrom
// admits every sender.
func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	allow := make(map[string]bool, len(allowFrom))
	for _, id := range allowFrom {
		if id != "" {
			allow[id] = true
		}
	}
	return BaseChannel{name: name, bus: b, allowFrom: allow}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	return c.allowFrom[senderID]
}
