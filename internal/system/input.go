package system

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

// CommandSource produces commands for the current tick. Sources are polled
// once per frame in registration order.
type CommandSource interface {
	Commands(w *world.State, tick uint64) []event.Event
}

// Selection is what the player currently has selected.
type Selection struct {
	Planet    component.PlanetID
	HasPlanet bool
	Ship      component.ShipID
	HasShip   bool
}

// InputSystem moves submitted and sourced commands onto the bus at the start
// of a frame. Submit is throttled by a token bucket that refills on the
// simulated clock, so replays are deterministic. Phase 0 (Input).
type InputSystem struct {
	limiter   *rate.Limiter
	sources   []CommandSource
	submitted []event.Event
	tick      uint64
	selection Selection
	log       *zap.Logger
}

// NewInputSystem allows perSecond commands per simulated second with the
// given burst. perSecond <= 0 disables throttling.
func NewInputSystem(perSecond float64, burst int, log *zap.Logger) *InputSystem {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &InputSystem{
		limiter: rate.NewLimiter(limit, max(burst, 1)),
		log:     log,
	}
}

func (s *InputSystem) ID() event.SystemID   { return event.SystemInput }
func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// simEpoch anchors the simulated clock handed to the limiter.
var simEpoch = time.Unix(0, 0).UTC()

func (s *InputSystem) now() time.Time {
	if s.tick > uint64(math.MaxInt64/int64(TickDuration)) {
		return simEpoch.Add(math.MaxInt64)
	}
	return simEpoch.Add(time.Duration(s.tick) * TickDuration)
}

// Submit accepts a player command for the next frame.
func (s *InputSystem) Submit(ev event.Event) error {
	if ev == nil || ev.Family() != event.FamilyPlayerCommand {
		return fmt.Errorf("submit %v: not a player command: %w", ev, simerr.ErrValidation)
	}
	if !s.limiter.AllowN(s.now(), 1) {
		return fmt.Errorf("submit %s at tick %d: %w", ev.Name(), s.tick, simerr.ErrRateLimited)
	}
	s.submitted = append(s.submitted, ev)
	return nil
}

// AddSource registers a command source.
func (s *InputSystem) AddSource(src CommandSource) {
	s.sources = append(s.sources, src)
}

func (s *InputSystem) Update(w *world.State, _ time.Duration, bus *event.Bus) error {
	for _, ev := range s.submitted {
		bus.Queue(ev)
	}
	s.submitted = s.submitted[:0]
	for _, src := range s.sources {
		for _, ev := range src.Commands(w, s.tick) {
			if ev.Family() != event.FamilyPlayerCommand {
				s.log.Warn("command source produced non-command", zap.String("event", ev.Name()))
				continue
			}
			bus.Queue(ev)
		}
	}
	return nil
}

// HandleEvent tracks the clock and the selection.
func (s *InputSystem) HandleEvent(w *world.State, ev event.Event) error {
	switch e := ev.(type) {
	case event.TickCompleted:
		s.tick = e.Tick
	case event.SelectPlanet:
		if !w.Planets.Has(e.Planet) {
			return fmt.Errorf("select planet %d: %w", e.Planet, simerr.ErrNotFound)
		}
		s.selection.Planet, s.selection.HasPlanet = e.Planet, true
	case event.SelectShip:
		if !w.Ships.Has(e.Ship) {
			return fmt.Errorf("select ship %d: %w", e.Ship, simerr.ErrNotFound)
		}
		s.selection.Ship, s.selection.HasShip = e.Ship, true
	case event.CombatResolved:
		s.deselect(e.Destroyed)
	case event.PlanetConquered:
		if e.Settlers > 0 {
			s.deselect(e.Ship)
		}
	}
	return nil
}

func (s *InputSystem) deselect(ship component.ShipID) {
	if s.selection.HasShip && s.selection.Ship == ship {
		s.selection.Ship, s.selection.HasShip = 0, false
	}
}

func (s *InputSystem) Selection() Selection { return s.selection }

// Reset clears pending input and the selection and moves to tick.
func (s *InputSystem) Reset(tick uint64) {
	s.tick = tick
	s.submitted = s.submitted[:0]
	s.selection = Selection{}
}

// ScriptSource replays a command script.
type ScriptSource struct {
	Script *data.CommandScript
}

func (s ScriptSource) Commands(_ *world.State, tick uint64) []event.Event {
	return s.Script.Due(tick)
}
