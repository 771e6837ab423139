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

// PopulationSystem feeds every populated planet once per PopulationInterval
// ticks. Well-fed planets grow, starving ones shrink. Phase 3 (Population).
type PopulationSystem struct {
	econ   *data.Economy
	cycles cycles
	log    *zap.Logger
}

func NewPopulationSystem(econ *data.Economy, log *zap.Logger) *PopulationSystem {
	return &PopulationSystem{
		econ:   econ,
		cycles: cycles{interval: econ.PopulationInterval},
		log:    log,
	}
}

func (s *PopulationSystem) ID() event.SystemID   { return event.SystemPopulation }
func (s *PopulationSystem) Phase() coresys.Phase { return coresys.PhasePopulation }

func (s *PopulationSystem) HandleEvent(_ *world.State, ev event.Event) error {
	if e, ok := ev.(event.TickCompleted); ok {
		s.cycles.observe(e.Tick)
	}
	return nil
}

// Owed is the number of growth cycles observed but not yet run.
func (s *PopulationSystem) Owed() int { return s.cycles.pending }

// Restore sets the growth cycles owed (after a load).
func (s *PopulationSystem) Restore(n int) { s.cycles.restore(n) }

func (s *PopulationSystem) Update(w *world.State, _ time.Duration, bus *event.Bus) error {
	var first error
	for n := s.cycles.take(); n > 0; n-- {
		for _, p := range w.Planets.All() {
			if err := s.feed(w, &p, bus); err != nil {
				first = keepFirst(first, err)
			}
		}
	}
	return first
}

// feed charges one cycle of food and applies growth or starvation.
func (s *PopulationSystem) feed(w *world.State, p *component.Planet, bus *event.Bus) error {
	if p.Population <= 0 {
		return nil
	}
	demand := s.econ.FoodDemand(p.Population)
	food := p.Resources.Food

	if food < demand {
		if err := w.Planets.RemoveResources(p.ID, component.ResourceBundle{Food: food}); err != nil {
			return err
		}
		bus.Queue(event.ResourceShortage{Planet: p.ID, Resource: component.Food, Deficit: demand - food})
		loss := int32(math.Ceil(float64(p.Population) * s.econ.StarvationRate))
		if loss <= 0 {
			return nil
		}
		if err := w.Planets.UpdatePopulation(p.ID, -loss); err != nil {
			return err
		}
		s.log.Debug("星球饑荒", zap.Uint32("planet", uint32(p.ID)), zap.Int32("loss", loss))
		bus.Queue(event.PopulationGrowth{Planet: p.ID, Amount: -loss})
		return nil
	}

	var growth int32
	if ratio := float64(food-demand) / float64(demand); ratio > s.econ.GrowthSurplusRatio {
		growth = int32(math.Min(math.Floor(float64(p.Population)*s.econ.GrowthRate), math.MaxInt32))
	}
	if int64(p.Population)+int64(growth) > math.MaxInt32 {
		return fmt.Errorf("planet %d population %d%+d: %w", p.ID, p.Population, growth, simerr.ErrOverflow)
	}
	if err := w.Planets.RemoveResources(p.ID, component.ResourceBundle{Food: demand}); err != nil {
		return err
	}
	if growth <= 0 {
		return nil
	}
	if err := w.Planets.UpdatePopulation(p.ID, growth); err != nil {
		return err
	}
	bus.Queue(event.PopulationGrowth{Planet: p.ID, Amount: growth})
	return nil
}
