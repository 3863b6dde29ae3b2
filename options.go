package harmony

import "log/slog"

type Option func(c *Controller)

// WithMaxWaiting bounds each color's admission queue. Zero means unbounded.
func WithMaxWaiting(n int) Option {
	return func(c *Controller) {
		c.maxWaiting = n
	}
}

// WithEventHandler registers a callback for every actor transition. It is called
// after the controller lock is released, in the goroutine that caused the transition.
func WithEventHandler(h func(Event)) Option {
	return func(c *Controller) {
		c.eventHandlers = append(c.eventHandlers, h)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}
