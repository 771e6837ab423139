package system

import (
	"testing"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

type tables struct {
	buildings *data.BuildingTable
	ships     *data.ShipTable
	econ      *data.Economy
}

func loadTables(t *testing.T) tables {
	t.Helper()
	b, err := data.LoadBuildingTable("")
	if err != nil {
		t.Fatal(err)
	}
	s, err := data.LoadShipTable("")
	if err != nil {
		t.Fatal(err)
	}
	e, err := data.LoadEconomy("")
	if err != nil {
		t.Fatal(err)
	}
	return tables{buildings: b, ships: s, econ: e}
}

// twoFactions returns an empty world holding a balanced player faction and an
// aggressive AI faction.
func twoFactions(t *testing.T) (*world.State, component.FactionID, component.FactionID) {
	t.Helper()
	w := world.NewState()
	player := faction(t, w, "Player", true, component.Balanced)
	ai := faction(t, w, "Rival", false, component.Aggressive)
	return w, player, ai
}

func faction(t *testing.T, w *world.State, name string, isPlayer bool, p component.Personality) component.FactionID {
	t.Helper()
	id, err := w.Factions.Create(name, isPlayer, p)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// addPlanet adds an empty planet on orbit.
func addPlanet(t *testing.T, w *world.State, orbit component.OrbitalElements, controller component.NullFactionID) component.PlanetID {
	t.Helper()
	id, err := w.Planets.Create(orbit, controller)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// colony adds a planet controlled by owner with the given stock and
// population, all workers idle.
func colony(t *testing.T, w *world.State, owner component.FactionID, res component.ResourceBundle, pop int32) component.PlanetID {
	t.Helper()
	id := addPlanet(t, w, component.DefaultOrbit(), component.ControlledBy(owner))
	if err := w.Planets.AddResources(id, res); err != nil {
		t.Fatal(err)
	}
	if err := w.Planets.UpdatePopulation(id, pop); err != nil {
		t.Fatal(err)
	}
	return id
}

func spawn(t *testing.T, w *world.State, class component.ShipClass, pos component.Vector2, owner component.FactionID) component.ShipID {
	t.Helper()
	id, err := w.SpawnShip(class, pos, owner)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// drain processes the bus with no handlers and returns what was queued.
func drain(t *testing.T, bus *event.Bus) []event.Event {
	t.Helper()
	before := len(bus.History())
	if err := bus.ProcessEvents(func(event.SystemID, event.Event) error { return nil }); err != nil {
		t.Fatal(err)
	}
	return bus.History()[before:]
}

func ticks(evs []event.Event) []uint64 {
	var out []uint64
	for _, ev := range evs {
		if tc, ok := ev.(event.TickCompleted); ok {
			out = append(out, tc.Tick)
		}
	}
	return out
}

func planet(t *testing.T, w *world.State, id component.PlanetID) component.Planet {
	t.Helper()
	p, err := w.Planets.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
