package world

import (
	"fmt"
	"math"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/core/store"
)

// ShipManager is the authoritative ship store. Destroyed ship ids are
// retired for good.
type ShipManager struct {
	ships *store.Ordered[component.ShipID, component.Ship]
	seq   store.Sequence[component.ShipID]
}

func NewShipManager() *ShipManager {
	return &ShipManager{ships: store.NewOrdered[component.ShipID, component.Ship]()}
}

// Create adds a docked ship at pos with a full tank and an empty hold.
func (m *ShipManager) Create(class component.ShipClass, pos component.Vector2, owner component.FactionID) (component.ShipID, error) {
	if !pos.IsFinite() {
		return 0, fmt.Errorf("ship position %v: %w", pos, simerr.ErrValidation)
	}
	id, err := m.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("new ship: %w", err)
	}
	m.ships.Set(id, &component.Ship{ID: id, Class: class, Position: pos, Owner: owner, Fuel: component.FuelTank})
	return id, nil
}

func (m *ShipManager) get(id component.ShipID) (*component.Ship, error) {
	s, ok := m.ships.Get(id)
	if !ok {
		return nil, fmt.Errorf("ship %d: %w", id, simerr.ErrNotFound)
	}
	return s, nil
}

func (m *ShipManager) Get(id component.ShipID) (component.Ship, error) {
	s, err := m.get(id)
	if err != nil {
		return component.Ship{}, err
	}
	return s.Clone(), nil
}

// All returns copies of every ship in id order.
func (m *ShipManager) All() []component.Ship {
	out := make([]component.Ship, 0, m.ships.Len())
	m.ships.Each(func(_ component.ShipID, s *component.Ship) {
		out = append(out, s.Clone())
	})
	return out
}

func (m *ShipManager) ByOwner(f component.FactionID) []component.Ship {
	var out []component.Ship
	m.ships.Each(func(_ component.ShipID, s *component.Ship) {
		if s.Owner == f {
			out = append(out, s.Clone())
		}
	})
	return out
}

// InFlight returns copies of the ships carrying a trajectory, in id order.
func (m *ShipManager) InFlight() []component.Ship {
	var out []component.Ship
	m.ships.Each(func(_ component.ShipID, s *component.Ship) {
		if s.InFlight() {
			out = append(out, s.Clone())
		}
	})
	return out
}

func (m *ShipManager) Has(id component.ShipID) bool { return m.ships.Has(id) }
func (m *ShipManager) Len() int                     { return m.ships.Len() }
func (m *ShipManager) NextID() component.ShipID     { return m.seq.Peek() }

func (m *ShipManager) SetPosition(id component.ShipID, pos component.Vector2) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	if !pos.IsFinite() {
		return fmt.Errorf("ship %d position %v: %w", id, pos, simerr.ErrValidation)
	}
	s.Position = pos
	return nil
}

// SetTrajectory attaches t, replacing any flight already in progress.
func (m *ShipManager) SetTrajectory(id component.ShipID, t component.Trajectory) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	if t.ArrivalTick < t.DepartureTick {
		return fmt.Errorf("ship %d arrives before departing: %w", id, simerr.ErrValidation)
	}
	s.Trajectory = &t
	return nil
}

func (m *ShipManager) ClearTrajectory(id component.ShipID) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.Trajectory = nil
	return nil
}

// ConsumeFuel burns amount from the tank. A short tank fails with
// ErrInsufficient and burns nothing.
func (m *ShipManager) ConsumeFuel(id component.ShipID, amount float64) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return fmt.Errorf("ship %d fuel burn %v: %w", id, amount, simerr.ErrValidation)
	}
	if s.Fuel < amount {
		return fmt.Errorf("ship %d has %.2f fuel, needs %.2f: %w", id, s.Fuel, amount, simerr.ErrInsufficient)
	}
	s.Fuel -= amount
	return nil
}

// Refuel adds up to amount, stopping at a full tank, and returns what was
// taken on.
func (m *ShipManager) Refuel(id component.ShipID, amount float64) (float64, error) {
	s, err := m.get(id)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, fmt.Errorf("ship %d refuel %v: %w", id, amount, simerr.ErrValidation)
	}
	taken := math.Min(amount, component.FuelTank-s.Fuel)
	s.Fuel += taken
	return taken, nil
}

// LoadCargo puts b in the hold. Only transports carry cargo, and the hold
// total may not exceed the class capacity.
func (m *ShipManager) LoadCargo(id component.ShipID, b component.ResourceBundle) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if s.Class.CargoCapacity() == 0 {
		return fmt.Errorf("ship %d (%s) has no cargo hold: %w", id, s.Class, simerr.ErrValidation)
	}
	if b.Total() > s.FreeHold() {
		return fmt.Errorf("ship %d hold has room for %d, asked to load %d: %w",
			id, s.FreeHold(), b.Total(), simerr.ErrCapacity)
	}
	sum := s.Cargo.Plus(b)
	for i, k := range component.ResourceKinds {
		s.Cargo.Set(k, int32(sum[i]))
	}
	return nil
}

// UnloadCargo takes b out of the hold. Every field must be aboard.
func (m *ShipManager) UnloadCargo(id component.ShipID, b component.ResourceBundle) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if !s.Cargo.Covers(b) {
		return fmt.Errorf("ship %d hold %+v does not cover %+v: %w", id, s.Cargo, b, simerr.ErrInsufficient)
	}
	for _, k := range component.ResourceKinds {
		s.Cargo.Set(k, s.Cargo.Get(k)-b.Get(k))
	}
	return nil
}

// Destroy removes the ship. Its id is never handed out again.
func (m *ShipManager) Destroy(id component.ShipID) error {
	if _, err := m.get(id); err != nil {
		return err
	}
	m.ships.Remove(id)
	return nil
}

// HandleEvent removes ships lost in battle and colony ships spent on a
// settlement.
func (m *ShipManager) HandleEvent(ev event.Event) error {
	switch e := ev.(type) {
	case event.CombatResolved:
		return m.Destroy(e.Destroyed)
	case event.PlanetConquered:
		if e.Settlers > 0 {
			return m.Destroy(e.Ship)
		}
	}
	return nil
}

func validateShip(s *component.Ship) error {
	if !s.Position.IsFinite() {
		return fmt.Errorf("ship %d position not finite: %w", s.ID, simerr.ErrValidation)
	}
	if math.IsNaN(s.Fuel) || s.Fuel < 0 || s.Fuel > component.FuelTank {
		return fmt.Errorf("ship %d fuel %v outside [0, %g]: %w", s.ID, s.Fuel, component.FuelTank, simerr.ErrValidation)
	}
	if err := s.Cargo.Validate(); err != nil {
		return fmt.Errorf("ship %d cargo: %w", s.ID, err)
	}
	if s.FreeHold() < 0 {
		return fmt.Errorf("ship %d carries %d, hold is %d: %w", s.ID, s.Cargo.Total(), s.Class.CargoCapacity(), simerr.ErrValidation)
	}
	if t := s.Trajectory; t != nil {
		if !t.Origin.IsFinite() || !t.Destination.IsFinite() || t.ArrivalTick < t.DepartureTick {
			return fmt.Errorf("ship %d trajectory malformed: %w", s.ID, simerr.ErrValidation)
		}
	}
	return nil
}

// Load replaces every ship with records, keeping their ids.
func (m *ShipManager) Load(records []component.Ship, next component.ShipID) error {
	if err := validateShips(records); err != nil {
		return err
	}
	m.replace(records, next)
	return nil
}

func validateShips(records []component.Ship) error {
	seen := make(map[component.ShipID]struct{}, len(records))
	for i := range records {
		if _, dup := seen[records[i].ID]; dup {
			return fmt.Errorf("duplicate ship id %d: %w", records[i].ID, simerr.ErrValidation)
		}
		seen[records[i].ID] = struct{}{}
		if err := validateShip(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *ShipManager) replace(records []component.Ship, next component.ShipID) {
	m.ships.Reset()
	live := make([]component.ShipID, 0, len(records))
	for i := range records {
		s := records[i].Clone()
		m.ships.Set(s.ID, &s)
		live = append(live, s.ID)
	}
	m.seq.Reset(next, live)
}
