package system

import (
	"time"

	"github.com/stellardominion/engine/internal/core/event"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput        Phase = iota // 0: drain submitted commands
	PhasePhysics                   // 1: arrivals, orbital cache
	PhaseResources                 // 2: production and consumption
	PhasePopulation                // 3: growth and starvation
	PhaseConstruction              // 4: build queues
	PhaseCombat                    // 5: pending battles
	PhaseTime                      // 6: advance the clock, emit ticks
)

// System is the interface every simulation system implements. W is the
// world context handed to each call; systems keep no reference to it.
type System[W any] interface {
	ID() event.SystemID
	Phase() Phase
	Update(w W, dt time.Duration, bus *event.Bus) error
}
