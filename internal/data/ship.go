package data

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/stellardominion/engine/internal/component"
)

// ShipClassInfo is the static definition of one hull class.
type ShipClassInfo struct {
	Class      component.ShipClass
	Speed      float64 // distance units per tick
	FuelFactor float64
	Strength   float64
	Cost       component.ResourceBundle
	BuildTicks uint64
}

type shipYAMLEntry struct {
	Class      string                   `yaml:"class"`
	Speed      float64                  `yaml:"speed"`
	FuelFactor float64                  `yaml:"fuel_factor"`
	Strength   float64                  `yaml:"strength"`
	Cost       component.ResourceBundle `yaml:"cost"`
	BuildTicks uint64                   `yaml:"build_ticks"`
}

type ShipTable struct {
	byClass map[component.ShipClass]*ShipClassInfo
}

// LoadShipTable loads hull definitions; an empty path loads the built-in
// table.
func LoadShipTable(path string) (*ShipTable, error) {
	raw, err := readTable(path, "ships.yaml")
	if err != nil {
		return nil, err
	}
	var entries []shipYAMLEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse ships: %w", err)
	}
	t := &ShipTable{byClass: make(map[component.ShipClass]*ShipClassInfo, len(entries))}
	for _, e := range entries {
		c, err := component.ParseShipClass(e.Class)
		if err != nil {
			return nil, fmt.Errorf("parse ships: %w", err)
		}
		if e.Speed <= 0 {
			return nil, fmt.Errorf("parse ships: %s speed must be positive", c)
		}
		if e.FuelFactor < 0 || e.Strength < 0 {
			return nil, fmt.Errorf("parse ships: %s has negative fuel factor or strength", c)
		}
		if err := e.Cost.Validate(); err != nil {
			return nil, fmt.Errorf("parse ships: %s cost: %w", c, err)
		}
		if e.BuildTicks == 0 {
			e.BuildTicks = 1
		}
		t.byClass[c] = &ShipClassInfo{
			Class:      c,
			Speed:      e.Speed,
			FuelFactor: e.FuelFactor,
			Strength:   e.Strength,
			Cost:       e.Cost,
			BuildTicks: e.BuildTicks,
		}
	}
	return t, nil
}

// Get returns the definition for c, or nil.
func (t *ShipTable) Get(c component.ShipClass) *ShipClassInfo {
	return t.byClass[c]
}

func (t *ShipTable) Count() int {
	return len(t.byClass)
}
