// Package system holds the simulation systems run by the game loop. Each one
// implements coresys.System[*world.State] for its per-frame work and Handler
// for the bus events it subscribes to.
package system

import (
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/world"
)

// Handler receives bus events during a drain.
type Handler interface {
	HandleEvent(w *world.State, ev event.Event) error
}

// cycles counts periodic work owed on tick boundaries. Ticks arrive one event
// at a time, so a frame that completes several ticks still runs every cycle.
type cycles struct {
	interval uint64
	pending  int
}

func (c *cycles) observe(tick uint64) {
	if c.interval > 0 && tick%c.interval == 0 {
		c.pending++
	}
}

func (c *cycles) take() int {
	n := c.pending
	c.pending = 0
	return n
}

// restore sets the cycles owed, as recorded in a snapshot.
func (c *cycles) restore(n int) {
	c.pending = max(n, 0)
}
