package system

import (
	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/scripting"
	"github.com/stellardominion/engine/internal/world"
)

// Planner decides orders for one AI faction.
type Planner interface {
	AIOrders(ctx scripting.AIContext) []event.Event
}

// AISource asks the planner for orders once per tick for every non-player
// faction. Orders that touch planets or ships the faction does not hold are
// dropped, as are commands an AI has no business issuing.
type AISource struct {
	planner  Planner
	lastTick uint64
	polled   bool
}

func NewAISource(p Planner) *AISource {
	return &AISource{planner: p}
}

func (a *AISource) Commands(w *world.State, tick uint64) []event.Event {
	if a.polled && tick == a.lastTick {
		return nil
	}
	a.lastTick, a.polled = tick, true

	var out []event.Event
	for _, f := range w.Factions.All() {
		if f.IsPlayer {
			continue
		}
		ctx := AIView(w, f, tick)
		for _, ev := range a.planner.AIOrders(ctx) {
			if permitted(w, f.ID, ev) {
				out = append(out, ev)
			}
		}
	}
	return out
}

// AIView builds the planner's read-only view for faction f.
func AIView(w *world.State, f component.Faction, tick uint64) scripting.AIContext {
	ctx := scripting.AIContext{Tick: tick, Faction: f.ID, Personality: f.Personality}
	for _, p := range w.Planets.ByController(f.ID) {
		ctx.Planets = append(ctx.Planets, scripting.AIPlanet{
			ID:         p.ID,
			Position:   OrbitalPosition(p.Orbit, tick),
			Resources:  p.Resources,
			Population: p.Population,
			FreeSlots:  int(p.BuildingSlots()) - len(p.Buildings),
		})
	}
	for _, s := range w.Ships.ByOwner(f.ID) {
		ctx.Ships = append(ctx.Ships, aiShip(&s))
	}
	for _, s := range w.Ships.All() {
		if s.Owner != f.ID {
			ctx.Enemies = append(ctx.Enemies, aiShip(&s))
		}
	}
	for _, p := range w.Planets.All() {
		if !p.Controller.Valid {
			ctx.Neutral = append(ctx.Neutral, scripting.AIPlanet{
				ID:       p.ID,
				Position: OrbitalPosition(p.Orbit, tick),
			})
		}
	}
	return ctx
}

func aiShip(s *component.Ship) scripting.AIShip {
	return scripting.AIShip{
		ID:       s.ID,
		Class:    s.Class,
		Owner:    s.Owner,
		Position: s.Position,
		InFlight: s.InFlight(),
		Fuel:     s.Fuel,
	}
}

func permitted(w *world.State, f component.FactionID, ev event.Event) bool {
	ownsPlanet := func(id component.PlanetID) bool {
		p, err := w.Planets.Get(id)
		return err == nil && p.Controller.Is(f)
	}
	ownsShip := func(id component.ShipID) bool {
		s, err := w.Ships.Get(id)
		return err == nil && s.Owner == f
	}
	switch e := ev.(type) {
	case event.BuildStructure:
		return ownsPlanet(e.Planet)
	case event.ConstructShip:
		return ownsPlanet(e.Planet)
	case event.AllocateWorkers:
		return ownsPlanet(e.Planet)
	case event.TransferResources:
		return ownsPlanet(e.From) && ownsPlanet(e.To)
	case event.MoveShip:
		return ownsShip(e.Ship)
	case event.AttackTarget:
		return ownsShip(e.Attacker)
	case event.ColonizePlanet:
		return ownsShip(e.Ship)
	case event.LoadShipCargo:
		return ownsShip(e.Ship) && ownsPlanet(e.Planet)
	case event.UnloadShipCargo:
		return ownsShip(e.Ship) && ownsPlanet(e.Planet)
	case event.RefuelShip:
		return ownsShip(e.Ship) && ownsPlanet(e.Planet)
	}
	return false
}
