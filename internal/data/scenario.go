package data

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/stellardominion/engine/internal/component"
)

// Scenario parameterizes a new game.
type Scenario struct {
	Seed               int64                    `yaml:"seed"`
	PlayerName         string                   `yaml:"player_name"`
	AIOpponents        int                      `yaml:"ai_opponents"`
	AINames            []string                 `yaml:"ai_names"`
	RawPersonalities   []string                 `yaml:"personalities"`
	PlanetCount        int                      `yaml:"planet_count"`
	RadiusStep         float64                  `yaml:"radius_step"`
	StartingPopulation int32                    `yaml:"starting_population"`
	StartingResources  component.ResourceBundle `yaml:"starting_resources"`
	RawPlayerShip      string                   `yaml:"player_ship"`
	RawAIShip          string                   `yaml:"ai_ship"`

	Personalities []component.Personality `yaml:"-"`
	PlayerShip    component.ShipClass     `yaml:"-"`
	AIShip        component.ShipClass     `yaml:"-"`
}

// LoadScenario loads a scenario; an empty path loads the built-in one.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := readTable(path, "scenario.yaml")
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.resolve(); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) resolve() error {
	if s.PlayerName == "" {
		s.PlayerName = "Player Empire"
	}
	if s.AIOpponents < 0 {
		return fmt.Errorf("ai_opponents must not be negative")
	}
	if s.PlanetCount < 1+s.AIOpponents {
		return fmt.Errorf("planet_count %d cannot host %d factions", s.PlanetCount, 1+s.AIOpponents)
	}
	if s.RadiusStep <= 0 {
		s.RadiusStep = 0.6
	}
	if s.StartingPopulation < 0 {
		return fmt.Errorf("starting_population must not be negative")
	}
	if err := s.StartingResources.Validate(); err != nil {
		return fmt.Errorf("starting_resources: %w", err)
	}
	s.Personalities = s.Personalities[:0]
	for _, name := range s.RawPersonalities {
		p, err := component.ParsePersonality(name)
		if err != nil {
			return err
		}
		s.Personalities = append(s.Personalities, p)
	}
	if len(s.Personalities) == 0 {
		s.Personalities = []component.Personality{component.Aggressive, component.Economic, component.Balanced}
	}
	var err error
	if s.PlayerShip, err = parseShipOr(s.RawPlayerShip, component.Scout); err != nil {
		return err
	}
	if s.AIShip, err = parseShipOr(s.RawAIShip, component.Warship); err != nil {
		return err
	}
	return nil
}

func parseShipOr(raw string, def component.ShipClass) (component.ShipClass, error) {
	if raw == "" {
		return def, nil
	}
	return component.ParseShipClass(raw)
}

// AIName returns the display name of the i-th AI opponent.
func (s *Scenario) AIName(i int) string {
	if i < len(s.AINames) {
		return s.AINames[i]
	}
	return fmt.Sprintf("AI Empire %d", i+1)
}

// AIPersonality returns the personality of the i-th AI opponent, rotating
// through the configured list.
func (s *Scenario) AIPersonality(i int) component.Personality {
	return s.Personalities[i%len(s.Personalities)]
}
