package world

import (
	"fmt"
	"math"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/core/store"
)

// PlanetManager is the authoritative planet store. Every mutation validates
// fully before touching state, so a failed call leaves the planet unchanged.
type PlanetManager struct {
	planets *store.Ordered[component.PlanetID, component.Planet]
	seq     store.Sequence[component.PlanetID]
}

func NewPlanetManager() *PlanetManager {
	return &PlanetManager{planets: store.NewOrdered[component.PlanetID, component.Planet]()}
}

// Create adds an unpopulated planet with default storage capacity. It fails
// with ErrOverflow once every planet id has been used.
func (m *PlanetManager) Create(orbit component.OrbitalElements, controller component.NullFactionID) (component.PlanetID, error) {
	id, err := m.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("new planet: %w", err)
	}
	m.planets.Set(id, &component.Planet{
		ID:         id,
		Orbit:      orbit,
		Controller: controller,
		Capacity:   component.UniformBundle(component.DefaultStorageCapacity),
	})
	return id, nil
}

func (m *PlanetManager) get(id component.PlanetID) (*component.Planet, error) {
	p, ok := m.planets.Get(id)
	if !ok {
		return nil, fmt.Errorf("planet %d: %w", id, simerr.ErrNotFound)
	}
	return p, nil
}

// Get returns a copy of the planet.
func (m *PlanetManager) Get(id component.PlanetID) (component.Planet, error) {
	p, err := m.get(id)
	if err != nil {
		return component.Planet{}, err
	}
	return p.Clone(), nil
}

// All returns copies of every planet in id order.
func (m *PlanetManager) All() []component.Planet {
	out := make([]component.Planet, 0, m.planets.Len())
	m.planets.Each(func(_ component.PlanetID, p *component.Planet) {
		out = append(out, p.Clone())
	})
	return out
}

// ByController returns copies of the planets controlled by f, in id order.
func (m *PlanetManager) ByController(f component.FactionID) []component.Planet {
	var out []component.Planet
	m.planets.Each(func(_ component.PlanetID, p *component.Planet) {
		if p.Controller.Is(f) {
			out = append(out, p.Clone())
		}
	})
	return out
}

func (m *PlanetManager) Len() int { return m.planets.Len() }
func (m *PlanetManager) Has(id component.PlanetID) bool {
	return m.planets.Has(id)
}

// NextID returns the id the next Create will assign.
func (m *PlanetManager) NextID() component.PlanetID { return m.seq.Peek() }

// AddResources credits b to the planet's ledger.
func (m *PlanetManager) AddResources(id component.PlanetID, b component.ResourceBundle) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	sum := p.Resources.Plus(b)
	for i, k := range component.ResourceKinds {
		if sum[i] > int64(p.Capacity.Get(k)) {
			return fmt.Errorf("planet %d %s: %d exceeds capacity %d: %w",
				id, k, sum[i], p.Capacity.Get(k), simerr.ErrCapacity)
		}
	}
	for i, k := range component.ResourceKinds {
		p.Resources.Set(k, int32(sum[i]))
	}
	return nil
}

// RemoveResources debits b from the planet's ledger.
func (m *PlanetManager) RemoveResources(id component.PlanetID, b component.ResourceBundle) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if !p.Resources.Covers(b) {
		return fmt.Errorf("planet %d: %w", id, simerr.ErrInsufficient)
	}
	for _, k := range component.ResourceKinds {
		p.Resources.Set(k, p.Resources.Get(k)-b.Get(k))
	}
	return nil
}

// Transfer moves b from one planet to another. Either both ledgers change or
// neither does.
func (m *PlanetManager) Transfer(from, to component.PlanetID, b component.ResourceBundle) error {
	if from == to {
		return fmt.Errorf("transfer from planet %d to itself: %w", from, simerr.ErrValidation)
	}
	src, err := m.get(from)
	if err != nil {
		return err
	}
	dst, err := m.get(to)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if !src.Resources.Covers(b) {
		return fmt.Errorf("planet %d: %w", from, simerr.ErrInsufficient)
	}
	sum := dst.Resources.Plus(b)
	for i, k := range component.ResourceKinds {
		if sum[i] > int64(dst.Capacity.Get(k)) {
			return fmt.Errorf("planet %d %s: %w", to, k, simerr.ErrCapacity)
		}
	}
	for i, k := range component.ResourceKinds {
		src.Resources.Set(k, src.Resources.Get(k)-b.Get(k))
		dst.Resources.Set(k, int32(sum[i]))
	}
	return nil
}

// UpdatePopulation adds delta (which may be negative) to the population.
// Results above math.MaxInt32 fail with ErrOverflow rather than clamping.
// Workers follow the change as described on WorkerAllocation.Resized.
func (m *PlanetManager) UpdatePopulation(id component.PlanetID, delta int32) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	next := int64(p.Population) + int64(delta)
	if next > math.MaxInt32 {
		return fmt.Errorf("planet %d population %d%+d: %w", id, p.Population, delta, simerr.ErrOverflow)
	}
	if next < 0 {
		return fmt.Errorf("planet %d population %d%+d would be negative: %w", id, p.Population, delta, simerr.ErrValidation)
	}
	p.Workers = p.Workers.Resized(int32(next))
	p.Population = int32(next)
	return nil
}

// SetWorkerAllocation replaces the labor split. The buckets must sum to the
// population and leave at least a tenth of it unassigned.
func (m *PlanetManager) SetWorkerAllocation(id component.PlanetID, a component.WorkerAllocation) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	if err := checkAllocation(a, p.Population); err != nil {
		return fmt.Errorf("planet %d: %w", id, err)
	}
	p.Workers = a
	return nil
}

func checkAllocation(a component.WorkerAllocation, pop int32) error {
	if a.HasNegative() {
		return fmt.Errorf("negative worker bucket: %w", simerr.ErrValidation)
	}
	if a.Sum() != int64(pop) {
		return fmt.Errorf("workers sum to %d, population is %d: %w", a.Sum(), pop, simerr.ErrAllocation)
	}
	if !a.ReserveHeld(pop) {
		return fmt.Errorf("%d unassigned, need at least %d: %w", a.Unassigned, component.MinUnassigned(pop), simerr.ErrAllocation)
	}
	return nil
}

// BuildingSlots returns 10 plus one slot per 10 000 population.
func (m *PlanetManager) BuildingSlots(id component.PlanetID) (uint32, error) {
	p, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return p.BuildingSlots(), nil
}

// AvailableBuildingSlots returns the slots not taken by existing buildings.
// It can be negative after the population shrinks.
func (m *PlanetManager) AvailableBuildingSlots(id component.PlanetID) (int, error) {
	p, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return int(p.BuildingSlots()) - len(p.Buildings), nil
}

// BuildingCount counts the planet's buildings of type bt.
func (m *PlanetManager) BuildingCount(id component.PlanetID, bt component.BuildingType) (int, error) {
	p, err := m.get(id)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range p.Buildings {
		if b.Type == bt {
			n++
		}
	}
	return n, nil
}

// AddBuilding places an operational tier-1 building.
func (m *PlanetManager) AddBuilding(id component.PlanetID, bt component.BuildingType) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	if len(p.Buildings) >= int(p.BuildingSlots()) {
		return fmt.Errorf("planet %d has no free building slot (%d/%d): %w",
			id, len(p.Buildings), p.BuildingSlots(), simerr.ErrCapacity)
	}
	p.Buildings = append(p.Buildings, component.Building{Type: bt, Tier: 1, Operational: true})
	return nil
}

// CompleteBuilding places an operational tier-1 building and raises storage
// by bonus in one step. Both checks run first, so a failure changes nothing.
func (m *PlanetManager) CompleteBuilding(id component.PlanetID, bt component.BuildingType, bonus component.ResourceBundle) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	if len(p.Buildings) >= int(p.BuildingSlots()) {
		return fmt.Errorf("planet %d has no free building slot (%d/%d): %w",
			id, len(p.Buildings), p.BuildingSlots(), simerr.ErrCapacity)
	}
	capacity, err := raisedCapacity(p, bonus)
	if err != nil {
		return err
	}
	p.Buildings = append(p.Buildings, component.Building{Type: bt, Tier: 1, Operational: true})
	p.Capacity = capacity
	return nil
}

// ChangeController hands the planet to c. The null controller leaves it
// neutral.
func (m *PlanetManager) ChangeController(id component.PlanetID, c component.NullFactionID) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	p.Controller = c
	return nil
}

// UpgradeStorage raises every capacity by the matching field of extra.
func (m *PlanetManager) UpgradeStorage(id component.PlanetID, extra component.ResourceBundle) error {
	p, err := m.get(id)
	if err != nil {
		return err
	}
	capacity, err := raisedCapacity(p, extra)
	if err != nil {
		return err
	}
	p.Capacity = capacity
	return nil
}

func raisedCapacity(p *component.Planet, extra component.ResourceBundle) (component.ResourceBundle, error) {
	if err := extra.Validate(); err != nil {
		return component.ResourceBundle{}, err
	}
	out := p.Capacity
	sum := p.Capacity.Plus(extra)
	for i, k := range component.ResourceKinds {
		if sum[i] > math.MaxInt32 {
			return component.ResourceBundle{}, fmt.Errorf("planet %d %s capacity: %w", p.ID, k, simerr.ErrOverflow)
		}
		out.Set(k, int32(sum[i]))
	}
	return out, nil
}

// HandleEvent applies worker reallocation commands and hands conquered
// planets to their new owner, landing any settlers first.
func (m *PlanetManager) HandleEvent(ev event.Event) error {
	switch e := ev.(type) {
	case event.AllocateWorkers:
		return m.SetWorkerAllocation(e.Planet, e.Workers)
	case event.PlanetConquered:
		if e.Settlers > 0 {
			if err := m.UpdatePopulation(e.Planet, e.Settlers); err != nil {
				return err
			}
		}
		return m.ChangeController(e.Planet, component.ControlledBy(e.NewOwner))
	}
	return nil
}

// ValidatePlanet checks a planet record against every ledger and allocation
// invariant.
func ValidatePlanet(p *component.Planet) error {
	if err := p.Capacity.Validate(); err != nil {
		return fmt.Errorf("planet %d capacity: %w", p.ID, err)
	}
	if err := p.Resources.Validate(); err != nil {
		return fmt.Errorf("planet %d resources: %w", p.ID, err)
	}
	for _, k := range component.ResourceKinds {
		if p.Resources.Get(k) > p.Capacity.Get(k) {
			return fmt.Errorf("planet %d %s above capacity: %w", p.ID, k, simerr.ErrCapacity)
		}
	}
	if p.Population < 0 {
		return fmt.Errorf("planet %d negative population: %w", p.ID, simerr.ErrValidation)
	}
	if err := checkAllocation(p.Workers, p.Population); err != nil {
		return fmt.Errorf("planet %d: %w", p.ID, err)
	}
	o := p.Orbit
	if math.IsNaN(o.SemiMajorAxis) || math.IsNaN(o.Period) || math.IsNaN(o.Phase) ||
		math.IsInf(o.SemiMajorAxis, 0) || math.IsInf(o.Period, 0) || math.IsInf(o.Phase, 0) {
		return fmt.Errorf("planet %d orbit not finite: %w", p.ID, simerr.ErrValidation)
	}
	return nil
}

// Load replaces every planet with records, keeping their ids. Nothing is
// replaced unless every record passes ValidatePlanet and ids are unique. The
// next id is the larger of next and one past the highest loaded id.
func (m *PlanetManager) Load(records []component.Planet, next component.PlanetID) error {
	if err := validatePlanets(records); err != nil {
		return err
	}
	m.replace(records, next)
	return nil
}

func validatePlanets(records []component.Planet) error {
	seen := make(map[component.PlanetID]struct{}, len(records))
	for i := range records {
		if _, dup := seen[records[i].ID]; dup {
			return fmt.Errorf("duplicate planet id %d: %w", records[i].ID, simerr.ErrValidation)
		}
		seen[records[i].ID] = struct{}{}
		if err := ValidatePlanet(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

// replace swaps in already validated records.
func (m *PlanetManager) replace(records []component.Planet, next component.PlanetID) {
	m.planets.Reset()
	live := make([]component.PlanetID, 0, len(records))
	for i := range records {
		p := records[i].Clone()
		m.planets.Set(p.ID, &p)
		live = append(live, p.ID)
	}
	m.seq.Reset(next, live)
}
