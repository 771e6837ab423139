package world

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/data"
)

// Generate builds the opening position of a new game from a scenario. The
// same scenario (seed included) always yields the same state.
//
// Faction 0 is the player; AI factions follow. Planet i is controlled by
// faction i while factions remain, the rest start neutral. Every controlled
// planet receives the starting population, resources and one starting ship.
func Generate(sc *data.Scenario) (*State, error) {
	s := NewState()

	player, err := s.Factions.Create(sc.PlayerName, true, component.Balanced)
	if err != nil {
		return nil, err
	}
	factions := []component.FactionID{player}
	for i := 0; i < sc.AIOpponents; i++ {
		ai, err := s.Factions.Create(sc.AIName(i), false, sc.AIPersonality(i))
		if err != nil {
			return nil, err
		}
		factions = append(factions, ai)
	}

	// Independent noise layers for radius and phase jitter.
	radiusNoise := opensimplex.NewNormalized(sc.Seed)
	phaseNoise := opensimplex.NewNormalized(sc.Seed + 1)

	for i := 0; i < sc.PlanetCount; i++ {
		orbit := orbitFor(i, sc, radiusNoise, phaseNoise)
		var controller component.NullFactionID
		if i < len(factions) {
			controller = component.ControlledBy(factions[i])
		}
		id, err := s.Planets.Create(orbit, controller)
		if err != nil {
			return nil, err
		}
		if !controller.Valid {
			continue
		}
		if err := seedPlanet(s, id, sc); err != nil {
			return nil, err
		}
		class := sc.AIShip
		if controller.ID == player {
			class = sc.PlayerShip
		}
		if _, err := s.SpawnShip(class, orbit.PositionAt(0), controller.ID); err != nil {
			return nil, fmt.Errorf("starting ship for planet %d: %w", id, err)
		}
	}
	return s, nil
}

func orbitFor(i int, sc *data.Scenario, radiusNoise, phaseNoise opensimplex.Noise) component.OrbitalElements {
	fi := float64(i)
	radius := 1 + fi*sc.RadiusStep + (radiusNoise.Eval2(fi*0.618, 0)-0.5)*0.6
	radius = math.Max(radius, 0.5)
	// Roughly Kepler: period grows with a^1.5.
	period := math.Max(math.Pow(radius, 1.5)*100, 50)
	phase := fi*2*math.Pi/float64(sc.PlanetCount) + (phaseNoise.Eval2(fi*2.718, 0) - 0.5)
	return component.OrbitalElements{SemiMajorAxis: radius, Period: period, Phase: phase}
}

// seedPlanet applies starting resources, population and the opening labor
// split: a quarter each to agriculture and mining, a sixth each to industry
// and research, a tenth to the military, the remainder idle.
func seedPlanet(s *State, id component.PlanetID, sc *data.Scenario) error {
	if err := s.Planets.AddResources(id, sc.StartingResources); err != nil {
		return fmt.Errorf("starting resources for planet %d: %w", id, err)
	}
	pop := sc.StartingPopulation
	if err := s.Planets.UpdatePopulation(id, pop); err != nil {
		return fmt.Errorf("starting population for planet %d: %w", id, err)
	}
	assignable := pop - pop/10
	a := component.WorkerAllocation{
		Agriculture: assignable / 4,
		Mining:      assignable / 4,
		Industry:    assignable / 6,
		Research:    assignable / 6,
		Military:    assignable / 10,
	}
	a.Unassigned = pop - int32(a.Sum())
	if err := s.Planets.SetWorkerAllocation(id, a); err != nil {
		return fmt.Errorf("starting workers for planet %d: %w", id, err)
	}
	return nil
}
