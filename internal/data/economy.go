package data

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/stellardominion/engine/internal/component"
)

// WorkerOutput is what one worker in each labor bucket yields per
// production cycle.
type WorkerOutput struct {
	Agriculture component.ResourceBundle `yaml:"agriculture"`
	Mining      component.ResourceBundle `yaml:"mining"`
	Industry    component.ResourceBundle `yaml:"industry"`
	Research    component.ResourceBundle `yaml:"research"`
	Military    component.ResourceBundle `yaml:"military"`
}

// Economy holds the tuning constants of production, growth and combat.
type Economy struct {
	ProductionInterval uint64       `yaml:"production_interval"`
	PopulationInterval uint64       `yaml:"population_interval"`
	WorkerOutput       WorkerOutput `yaml:"worker_output"`
	PeoplePerFood      int32        `yaml:"people_per_food"`
	GrowthRate         float64      `yaml:"growth_rate"`
	GrowthSurplusRatio float64      `yaml:"growth_surplus_ratio"`
	StarvationRate     float64      `yaml:"starvation_rate"`

	RawPersonalityStrength map[string]float64 `yaml:"personality_strength"`

	personality map[component.Personality]float64
}

// LoadEconomy loads the economy table; an empty path loads the built-in one.
func LoadEconomy(path string) (*Economy, error) {
	raw, err := readTable(path, "economy.yaml")
	if err != nil {
		return nil, err
	}
	var e Economy
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("parse economy: %w", err)
	}
	if e.ProductionInterval == 0 || e.PopulationInterval == 0 {
		return nil, fmt.Errorf("parse economy: intervals must be positive")
	}
	if e.PeoplePerFood <= 0 {
		return nil, fmt.Errorf("parse economy: people_per_food must be positive")
	}
	if e.GrowthRate < 0 || e.StarvationRate < 0 || e.StarvationRate > 1 {
		return nil, fmt.Errorf("parse economy: rates out of range")
	}
	e.personality = make(map[component.Personality]float64, len(e.RawPersonalityStrength))
	for name, v := range e.RawPersonalityStrength {
		p, err := component.ParsePersonality(name)
		if err != nil {
			return nil, fmt.Errorf("parse economy: %w", err)
		}
		e.personality[p] = v
	}
	return &e, nil
}

// PersonalityStrength returns the combat multiplier for p (1 when unset).
func (e *Economy) PersonalityStrength(p component.Personality) float64 {
	if v, ok := e.personality[p]; ok {
		return v
	}
	return 1
}

// FoodDemand is the food a population of pop eats per growth cycle.
func (e *Economy) FoodDemand(pop int32) int32 {
	if pop <= 0 {
		return 0
	}
	return int32((int64(pop) + int64(e.PeoplePerFood) - 1) / int64(e.PeoplePerFood))
}
