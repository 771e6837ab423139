package system

import (
	"fmt"
	"math"
	"time"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

const (
	// MaxTravelDistance bounds a single MoveShip order.
	MaxTravelDistance = 1000.0
	// MinFuelCost is the cheapest flight.
	MinFuelCost = 0.1
	// DockingRange is how close a ship must sit to a planet to trade with it.
	DockingRange = 0.5

	// TransferCheckInterval is how often, in ticks, planet alignments are
	// checked.
	TransferCheckInterval = 25
	// TransferWindowTicks is how long one aligned check keeps a window open.
	TransferWindowTicks = 30
	// transferAlignment is the widest angle between two planets, seen from
	// the star, that still opens a window.
	transferAlignment = math.Pi / 4
)

// OrbitalPosition returns where a planet on orbit sits at tick.
func OrbitalPosition(orbit component.OrbitalElements, tick uint64) component.Vector2 {
	return orbit.PositionAt(tick)
}

// aligned reports whether two orbits sit within transferAlignment of each
// other at tick.
func aligned(a, b component.OrbitalElements, tick uint64) bool {
	pa, pb := a.PositionAt(tick), b.PositionAt(tick)
	d := math.Abs(math.Atan2(pa.Y, pa.X) - math.Atan2(pb.Y, pb.X))
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d < transferAlignment
}

// TransferWindowOpen reports whether a transfer window between two orbits is
// open at tick. A window opens on every check tick at which the orbits are
// aligned and stays open for TransferWindowTicks. Positions are a pure
// function of the tick, so the answer needs no stored state.
func TransferWindowOpen(a, b component.OrbitalElements, tick uint64) bool {
	for c := tick - tick%TransferCheckInterval; c > 0 && tick-c < TransferWindowTicks; c -= TransferCheckInterval {
		if aligned(a, b, c) {
			return true
		}
	}
	return false
}

// PhysicsEngine plots ship trajectories, lands arrivals, announces transfer
// windows and keeps the planet position cache for the current tick.
// Phase 1 (Physics).
type PhysicsEngine struct {
	ships   *data.ShipTable
	tick    uint64
	windows cycles

	planetPos  map[component.PlanetID]component.Vector2
	cachedTick uint64
	cacheValid bool
}

func NewPhysicsEngine(ships *data.ShipTable) *PhysicsEngine {
	return &PhysicsEngine{
		ships:     ships,
		windows:   cycles{interval: TransferCheckInterval},
		planetPos: make(map[component.PlanetID]component.Vector2),
	}
}

func (p *PhysicsEngine) ID() event.SystemID   { return event.SystemPhysics }
func (p *PhysicsEngine) Phase() coresys.Phase { return coresys.PhasePhysics }

// Update advances in-flight ships to the current tick and lands the ones that
// arrived, in ship id order.
func (p *PhysicsEngine) Update(w *world.State, _ time.Duration, bus *event.Bus) error {
	var first error
	for _, s := range w.Ships.InFlight() {
		t := s.Trajectory
		if t.ArrivalTick > p.tick {
			if err := w.Ships.SetPosition(s.ID, t.PositionAt(p.tick)); err != nil && first == nil {
				first = err
			}
			continue
		}
		if err := w.Ships.SetPosition(s.ID, t.Destination); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		if err := w.Ships.ClearTrajectory(s.ID); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		bus.Queue(event.ShipArrived{Ship: s.ID, Destination: t.Destination})
	}
	p.refreshPlanets(w)
	p.announceWindows(w, bus)
	return first
}

// announceWindows runs the alignment checks owed since the last frame. Owed
// checks are consecutive multiples of TransferCheckInterval ending at the
// latest one, oldest first. A pair already inside an open window is not
// announced again.
func (p *PhysicsEngine) announceWindows(w *world.State, bus *event.Bus) {
	n := p.windows.take()
	if n == 0 {
		return
	}
	latest := p.tick - p.tick%TransferCheckInterval
	planets := w.Planets.All()
	for i := n - 1; i >= 0; i-- {
		c := latest - uint64(i)*TransferCheckInterval
		if c == 0 {
			continue
		}
		for a := range planets {
			for b := a + 1; b < len(planets); b++ {
				from, to := planets[a].Orbit, planets[b].Orbit
				if aligned(from, to, c) && !TransferWindowOpen(from, to, c-1) {
					bus.Queue(event.TransferWindowOpen{From: planets[a].ID, To: planets[b].ID})
				}
			}
		}
	}
}

// PendingWindowChecks is the number of alignment checks owed to the next
// frame.
func (p *PhysicsEngine) PendingWindowChecks() int { return p.windows.pending }

func (p *PhysicsEngine) refreshPlanets(w *world.State) {
	if p.cacheValid && p.cachedTick == p.tick && len(p.planetPos) == w.Planets.Len() {
		return
	}
	clear(p.planetPos)
	for _, pl := range w.Planets.All() {
		p.planetPos[pl.ID] = OrbitalPosition(pl.Orbit, p.tick)
	}
	p.cachedTick = p.tick
	p.cacheValid = true
}

// HandleEvent records ticks and plots MoveShip orders.
func (p *PhysicsEngine) HandleEvent(w *world.State, ev event.Event) error {
	switch e := ev.(type) {
	case event.TickCompleted:
		p.tick = e.Tick
		p.windows.observe(e.Tick)
	case event.MoveShip:
		_, err := p.Plot(w, e.Ship, e.Target)
		return err
	}
	return nil
}

// Plot computes and attaches a trajectory from the ship's current position
// to target, replacing any flight in progress.
func (p *PhysicsEngine) Plot(w *world.State, id component.ShipID, target component.Vector2) (component.Trajectory, error) {
	s, err := w.Ships.Get(id)
	if err != nil {
		return component.Trajectory{}, err
	}
	if !target.IsFinite() {
		return component.Trajectory{}, fmt.Errorf("ship %d target %v: %w", id, target, simerr.ErrValidation)
	}
	info := p.ships.Get(s.Class)
	if info == nil {
		return component.Trajectory{}, fmt.Errorf("ship %d class %s: %w", id, s.Class, simerr.ErrNotFound)
	}
	origin := p.ShipPosition(&s, p.tick)
	dist := origin.DistanceTo(target)
	if dist == 0 || dist > MaxTravelDistance {
		return component.Trajectory{}, fmt.Errorf("ship %d travel distance %.3f outside (0, %g]: %w",
			id, dist, MaxTravelDistance, simerr.ErrValidation)
	}
	travel := uint64(math.Max(1, math.Ceil(dist/info.Speed)))
	t := component.Trajectory{
		Origin:        origin,
		Destination:   target,
		DepartureTick: p.tick,
		ArrivalTick:   p.tick + travel,
		FuelCost:      p.FuelCost(w, info, origin, target),
	}
	if err := w.Ships.ConsumeFuel(id, t.FuelCost); err != nil {
		return component.Trajectory{}, err
	}
	if err := w.Ships.SetPosition(id, origin); err != nil {
		return component.Trajectory{}, err
	}
	if err := w.Ships.SetTrajectory(id, t); err != nil {
		return component.Trajectory{}, err
	}
	return t, nil
}

// FuelCost is distance times the class fuel factor over 100, never below
// MinFuelCost. A flight from one docked planet to another through an open
// transfer window costs half.
func (p *PhysicsEngine) FuelCost(w *world.State, info *data.ShipClassInfo, origin, target component.Vector2) float64 {
	cost := origin.DistanceTo(target) * info.FuelFactor / 100
	if p.throughWindow(w, origin, target) {
		cost /= 2
	}
	return math.Max(cost, MinFuelCost)
}

func (p *PhysicsEngine) throughWindow(w *world.State, origin, target component.Vector2) bool {
	planets := w.Planets.All()
	for _, from := range planets {
		if OrbitalPosition(from.Orbit, p.tick).DistanceTo(origin) > DockingRange {
			continue
		}
		for _, to := range planets {
			if to.ID == from.ID || OrbitalPosition(to.Orbit, p.tick).DistanceTo(target) > DockingRange {
				continue
			}
			if TransferWindowOpen(from.Orbit, to.Orbit, p.tick) {
				return true
			}
		}
	}
	return false
}

// docked returns the ship and planet when the ship is parked within
// DockingRange of the planet at tick.
func docked(w *world.State, ship component.ShipID, planet component.PlanetID, tick uint64) (component.Ship, component.Planet, error) {
	s, err := w.Ships.Get(ship)
	if err != nil {
		return s, component.Planet{}, err
	}
	pl, err := w.Planets.Get(planet)
	if err != nil {
		return s, pl, err
	}
	if s.InFlight() {
		return s, pl, fmt.Errorf("ship %d is in flight: %w", ship, simerr.ErrValidation)
	}
	if d := s.Position.DistanceTo(OrbitalPosition(pl.Orbit, tick)); d > DockingRange {
		return s, pl, fmt.Errorf("ship %d is %.2f from planet %d, docking range is %g: %w",
			ship, d, planet, DockingRange, simerr.ErrValidation)
	}
	return s, pl, nil
}

// ShipPosition interpolates an in-flight ship along its trajectory.
func (p *PhysicsEngine) ShipPosition(s *component.Ship, tick uint64) component.Vector2 {
	if s.Trajectory == nil {
		return s.Position
	}
	return s.Trajectory.PositionAt(tick)
}

// PlanetPosition returns the cached position of a planet at the current
// tick, computing it when the cache has not seen the planet yet.
func (p *PhysicsEngine) PlanetPosition(w *world.State, id component.PlanetID) (component.Vector2, error) {
	if p.cacheValid && p.cachedTick == p.tick {
		if pos, ok := p.planetPos[id]; ok {
			return pos, nil
		}
	}
	pl, err := w.Planets.Get(id)
	if err != nil {
		return component.Vector2{}, err
	}
	return OrbitalPosition(pl.Orbit, p.tick), nil
}

// Reset moves the engine to tick, drops the position cache and sets the
// alignment checks owed to the next frame (after a load).
func (p *PhysicsEngine) Reset(tick uint64, windowChecks int) {
	p.tick = tick
	p.windows.restore(windowChecks)
	p.cacheValid = false
	clear(p.planetPos)
}

func (p *PhysicsEngine) CurrentTick() uint64 { return p.tick }
