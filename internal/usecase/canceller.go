package usecase

import (
	"context"
	"sync"
)

// Canceller tracks the one user action that may be in flight. Starting a new
// action cancels the previous one.
type Canceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	id     uint64
}

// Start derives a context for a new action and returns a release func that
// must be called when the action ends.
func (c *Canceller) Start(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.id++
	id := c.id
	c.cancel = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if c.id == id {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}
}

// Stop cancels the current action, if any. It reports whether one was running.
func (c *Canceller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	return true
}
