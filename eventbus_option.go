package chatweave

import "github.com/ZanzyTHEbar/chatweave-genkit/internal/eventbus"

// WithEventBus sets the event bus component.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(c *ChatWeave) {
		c.eventBus = bus
	}
}
