package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/world"
)

type (
	BuildOrder = component.BuildOrder
	ShipOrder  = component.ShipOrder
)

// ConstructionSystem runs the building and shipyard queues. Costs are charged
// when an order is accepted; completion happens on the first frame at or
// after the completion tick, in FIFO order. Phase 4 (Construction).
type ConstructionSystem struct {
	buildings *data.BuildingTable
	ships     *data.ShipTable
	log       *zap.Logger

	tick   uint64
	builds []BuildOrder
	hulls  []ShipOrder
}

func NewConstructionSystem(buildings *data.BuildingTable, ships *data.ShipTable, log *zap.Logger) *ConstructionSystem {
	return &ConstructionSystem{buildings: buildings, ships: ships, log: log}
}

func (s *ConstructionSystem) ID() event.SystemID   { return event.SystemConstruction }
func (s *ConstructionSystem) Phase() coresys.Phase { return coresys.PhaseConstruction }

func (s *ConstructionSystem) HandleEvent(w *world.State, ev event.Event) error {
	switch e := ev.(type) {
	case event.TickCompleted:
		s.tick = e.Tick
	case event.BuildStructure:
		_, err := s.QueueBuilding(w, e.Planet, e.Building)
		return err
	case event.ConstructShip:
		_, err := s.QueueShip(w, e.Planet, e.Class)
		return err
	}
	return nil
}

// controlled returns the planet if a faction holds it.
func controlled(w *world.State, id component.PlanetID) (component.Planet, error) {
	p, err := w.Planets.Get(id)
	if err != nil {
		return p, err
	}
	if !p.Controller.Valid {
		return p, fmt.Errorf("planet %d is uncontrolled: %w", id, simerr.ErrValidation)
	}
	return p, nil
}

// QueueBuilding charges the building cost and queues it. Queued orders hold
// their slot, so a planet never finishes more buildings than it has slots.
func (s *ConstructionSystem) QueueBuilding(w *world.State, id component.PlanetID, bt component.BuildingType) (BuildOrder, error) {
	p, err := controlled(w, id)
	if err != nil {
		return BuildOrder{}, err
	}
	info := s.buildings.Get(bt)
	if info == nil {
		return BuildOrder{}, fmt.Errorf("building %s: %w", bt, simerr.ErrValidation)
	}
	free := int(p.BuildingSlots()) - len(p.Buildings) - s.queuedOn(id)
	if free <= 0 {
		return BuildOrder{}, fmt.Errorf("planet %d has no free building slot: %w", id, simerr.ErrCapacity)
	}
	if err := w.Planets.RemoveResources(id, info.Cost); err != nil {
		return BuildOrder{}, err
	}
	o := BuildOrder{Planet: id, Building: bt, Start: s.tick, Complete: s.tick + info.BuildTicks}
	s.builds = append(s.builds, o)
	return o, nil
}

// QueueShip charges the hull cost and queues it.
func (s *ConstructionSystem) QueueShip(w *world.State, id component.PlanetID, class component.ShipClass) (ShipOrder, error) {
	if _, err := controlled(w, id); err != nil {
		return ShipOrder{}, err
	}
	info := s.ships.Get(class)
	if info == nil {
		return ShipOrder{}, fmt.Errorf("ship class %s: %w", class, simerr.ErrValidation)
	}
	if err := w.Planets.RemoveResources(id, info.Cost); err != nil {
		return ShipOrder{}, err
	}
	o := ShipOrder{Planet: id, Class: class, Start: s.tick, Complete: s.tick + info.BuildTicks}
	s.hulls = append(s.hulls, o)
	return o, nil
}

func (s *ConstructionSystem) queuedOn(id component.PlanetID) int {
	n := 0
	for _, o := range s.builds {
		if o.Planet == id {
			n++
		}
	}
	return n
}

// Update completes every due order. A failed completion drops the order and
// keeps going.
func (s *ConstructionSystem) Update(w *world.State, _ time.Duration, bus *event.Bus) error {
	var first error

	builds := s.builds[:0]
	for _, o := range s.builds {
		if o.Complete > s.tick {
			builds = append(builds, o)
			continue
		}
		if err := s.finishBuilding(w, o); err != nil {
			s.log.Warn("建造失敗", zap.Uint32("planet", uint32(o.Planet)), zap.Stringer("building", o.Building), zap.Error(err))
			first = keepFirst(first, err)
			continue
		}
		bus.Queue(event.ConstructionCompleted{Planet: o.Planet, Building: o.Building})
	}
	s.builds = builds

	hulls := s.hulls[:0]
	for _, o := range s.hulls {
		if o.Complete > s.tick {
			hulls = append(hulls, o)
			continue
		}
		ship, err := s.launch(w, o)
		if err != nil {
			s.log.Warn("造艦失敗", zap.Uint32("planet", uint32(o.Planet)), zap.Stringer("class", o.Class), zap.Error(err))
			first = keepFirst(first, err)
			continue
		}
		bus.Queue(event.ShipCompleted{Planet: o.Planet, Ship: ship})
	}
	s.hulls = hulls

	return first
}

func (s *ConstructionSystem) finishBuilding(w *world.State, o BuildOrder) error {
	var bonus component.ResourceBundle
	if info := s.buildings.Get(o.Building); info != nil {
		bonus = info.StorageBonus
	}
	return w.Planets.CompleteBuilding(o.Planet, o.Building, bonus)
}

// launch spawns the hull at the planet's position for its current
// controller.
func (s *ConstructionSystem) launch(w *world.State, o ShipOrder) (component.ShipID, error) {
	p, err := controlled(w, o.Planet)
	if err != nil {
		return 0, err
	}
	return w.SpawnShip(o.Class, OrbitalPosition(p.Orbit, s.tick), p.Controller.ID)
}

// Builds returns the pending building orders in queue order.
func (s *ConstructionSystem) Builds() []BuildOrder { return append([]BuildOrder(nil), s.builds...) }

// Ships returns the pending hull orders in queue order.
func (s *ConstructionSystem) Ships() []ShipOrder { return append([]ShipOrder(nil), s.hulls...) }

// Restore replaces both queues with orders read from a snapshot and moves to
// tick. The orders were paid for when they were queued.
func (s *ConstructionSystem) Restore(tick uint64, builds []BuildOrder, hulls []ShipOrder) {
	s.tick = tick
	s.builds = append([]BuildOrder(nil), builds...)
	s.hulls = append([]ShipOrder(nil), hulls...)
}
