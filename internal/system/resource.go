package system

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

// ResourceSystem runs a production cycle every ProductionInterval ticks and
// executes resource transfers, cargo runs and refuelling. Phase 2
// (Resources).
type ResourceSystem struct {
	buildings *data.BuildingTable
	econ      *data.Economy
	cycles    cycles
	tick      uint64
	log       *zap.Logger
}

func NewResourceSystem(buildings *data.BuildingTable, econ *data.Economy, log *zap.Logger) *ResourceSystem {
	return &ResourceSystem{
		buildings: buildings,
		econ:      econ,
		cycles:    cycles{interval: econ.ProductionInterval},
		log:       log,
	}
}

func (s *ResourceSystem) ID() event.SystemID   { return event.SystemResource }
func (s *ResourceSystem) Phase() coresys.Phase { return coresys.PhaseResources }

func (s *ResourceSystem) HandleEvent(w *world.State, ev event.Event) error {
	switch e := ev.(type) {
	case event.TickCompleted:
		s.tick = e.Tick
		s.cycles.observe(e.Tick)
	case event.TransferResources:
		return s.Transfer(w, e.From, e.To, e.Resources)
	case event.LoadShipCargo:
		return s.LoadCargo(w, e.Ship, e.Planet, e.Resources)
	case event.UnloadShipCargo:
		_, err := s.UnloadCargo(w, e.Ship, e.Planet)
		return err
	case event.RefuelShip:
		_, err := s.Refuel(w, e.Ship, e.Planet)
		return err
	}
	return nil
}

// Owed is the number of production cycles observed but not yet run.
func (s *ResourceSystem) Owed() int { return s.cycles.pending }

// Restore moves the system to tick with n production cycles owed (after a
// load).
func (s *ResourceSystem) Restore(tick uint64, n int) {
	s.tick = tick
	s.cycles.restore(n)
}

// atOwnPlanet returns the ship and planet when the ship is docked at a planet
// its faction controls.
func (s *ResourceSystem) atOwnPlanet(w *world.State, ship component.ShipID, planet component.PlanetID) (component.Ship, component.Planet, error) {
	sh, pl, err := docked(w, ship, planet, s.tick)
	if err != nil {
		return sh, pl, err
	}
	if !pl.Controller.Is(sh.Owner) {
		return sh, pl, fmt.Errorf("planet %d is not held by ship %d's faction %d: %w", planet, ship, sh.Owner, simerr.ErrValidation)
	}
	return sh, pl, nil
}

// LoadCargo moves b from the planet into a docked transport's hold.
func (s *ResourceSystem) LoadCargo(w *world.State, ship component.ShipID, planet component.PlanetID, b component.ResourceBundle) error {
	sh, _, err := s.atOwnPlanet(w, ship, planet)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if b.IsZero() {
		return fmt.Errorf("load ship %d: empty cargo: %w", ship, simerr.ErrValidation)
	}
	if sh.Class.CargoCapacity() == 0 {
		return fmt.Errorf("ship %d (%s) has no cargo hold: %w", ship, sh.Class, simerr.ErrValidation)
	}
	if b.Total() > sh.FreeHold() {
		return fmt.Errorf("ship %d hold has room for %d, asked to load %d: %w", ship, sh.FreeHold(), b.Total(), simerr.ErrCapacity)
	}
	if err := w.Planets.RemoveResources(planet, b); err != nil {
		return err
	}
	return w.Ships.LoadCargo(ship, b)
}

// UnloadCargo empties the hold into the planet as far as its storage allows
// and returns what was unloaded. Whatever does not fit stays aboard.
func (s *ResourceSystem) UnloadCargo(w *world.State, ship component.ShipID, planet component.PlanetID) (component.ResourceBundle, error) {
	sh, pl, err := s.atOwnPlanet(w, ship, planet)
	if err != nil {
		return component.ResourceBundle{}, err
	}
	var out component.ResourceBundle
	for _, k := range component.ResourceKinds {
		room := pl.Capacity.Get(k) - pl.Resources.Get(k)
		out.Set(k, max(min(sh.Cargo.Get(k), room), 0))
	}
	if out.IsZero() {
		if sh.Cargo.IsZero() {
			return out, nil
		}
		return out, fmt.Errorf("planet %d has no room for ship %d's cargo: %w", planet, ship, simerr.ErrCapacity)
	}
	if err := w.Ships.UnloadCargo(ship, out); err != nil {
		return component.ResourceBundle{}, err
	}
	if err := w.Planets.AddResources(planet, out); err != nil {
		return component.ResourceBundle{}, err
	}
	return out, nil
}

// Refuel fills a docked ship's tank from the planet's fuel stock, one unit of
// stock per point of fuel, and returns the stock spent.
func (s *ResourceSystem) Refuel(w *world.State, ship component.ShipID, planet component.PlanetID) (int32, error) {
	sh, pl, err := s.atOwnPlanet(w, ship, planet)
	if err != nil {
		return 0, err
	}
	need := int32(math.Ceil(component.FuelTank - sh.Fuel))
	if need <= 0 {
		return 0, nil
	}
	units := min(need, pl.Resources.Fuel)
	if units == 0 {
		return 0, fmt.Errorf("planet %d has no fuel for ship %d: %w", planet, ship, simerr.ErrInsufficient)
	}
	if err := w.Planets.RemoveResources(planet, component.ResourceBundle{Fuel: units}); err != nil {
		return 0, err
	}
	if _, err := w.Ships.Refuel(ship, float64(units)); err != nil {
		return 0, err
	}
	return units, nil
}

// Transfer moves resources between two planets held by the same faction.
func (s *ResourceSystem) Transfer(w *world.State, from, to component.PlanetID, b component.ResourceBundle) error {
	src, err := w.Planets.Get(from)
	if err != nil {
		return err
	}
	dst, err := w.Planets.Get(to)
	if err != nil {
		return err
	}
	if !src.Controller.Valid || src.Controller != dst.Controller {
		return fmt.Errorf("transfer %d -> %d: controllers %s and %s differ: %w",
			from, to, src.Controller, dst.Controller, simerr.ErrValidation)
	}
	return w.Planets.Transfer(from, to, b)
}

// Update runs every production cycle owed since the last frame.
func (s *ResourceSystem) Update(w *world.State, _ time.Duration, bus *event.Bus) error {
	var first error
	for n := s.cycles.take(); n > 0; n-- {
		if err := s.produce(w, bus); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Production returns the planet's gross output for one cycle, before storage
// limits. Negative fields are net consumption.
func (s *ResourceSystem) Production(p *component.Planet) [len(component.ResourceKinds)]int64 {
	var net [len(component.ResourceKinds)]int64
	add := func(rate component.ResourceBundle, n int64) {
		if n == 0 {
			return
		}
		for i, k := range component.ResourceKinds {
			net[i] += int64(rate.Get(k)) * n
		}
	}
	out := s.econ.WorkerOutput
	add(out.Agriculture, int64(p.Workers.Agriculture))
	add(out.Mining, int64(p.Workers.Mining))
	add(out.Industry, int64(p.Workers.Industry))
	add(out.Research, int64(p.Workers.Research))
	add(out.Military, int64(p.Workers.Military))
	for _, b := range p.Buildings {
		if !b.Operational {
			continue
		}
		if info := s.buildings.Get(b.Type); info != nil {
			add(info.Output, int64(b.Tier))
		}
	}
	return net
}

func (s *ResourceSystem) produce(w *world.State, bus *event.Bus) error {
	var first error
	for _, p := range w.Planets.All() {
		net := s.Production(&p)
		var gain, loss, applied component.ResourceBundle
		var shortages []event.ResourceShortage
		for i, k := range component.ResourceKinds {
			cur := int64(p.Resources.Get(k))
			next := cur + net[i]
			if next < 0 {
				shortages = append(shortages, event.ResourceShortage{
					Planet:   p.ID,
					Resource: k,
					Deficit:  int32(min(-next, math.MaxInt32)),
				})
				next = 0
			}
			next = min(next, int64(p.Capacity.Get(k)))
			delta := next - cur
			applied.Set(k, int32(delta))
			if delta > 0 {
				gain.Set(k, int32(delta))
			} else if delta < 0 {
				loss.Set(k, int32(-delta))
			}
		}
		if err := w.Planets.RemoveResources(p.ID, loss); err != nil {
			first = keepFirst(first, err)
			continue
		}
		if err := w.Planets.AddResources(p.ID, gain); err != nil {
			first = keepFirst(first, err)
			continue
		}
		for _, sh := range shortages {
			bus.Queue(sh)
		}
		if !applied.IsZero() {
			bus.Queue(event.ResourcesProduced{Planet: p.ID, Resources: applied})
		}
	}
	if first != nil {
		s.log.Warn("生產週期部分失敗", zap.Error(first))
	}
	return first
}

func keepFirst(first, err error) error {
	if first == nil {
		return err
	}
	return first
}
