package data

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/stellardominion/engine/internal/component"
)

// BuildingInfo is the static definition of one building type.
type BuildingInfo struct {
	Type         component.BuildingType
	Cost         component.ResourceBundle
	BuildTicks   uint64
	Output       component.ResourceBundle // per production cycle and tier, may be negative
	StorageBonus component.ResourceBundle
}

type buildingYAMLEntry struct {
	Type         string                   `yaml:"type"`
	Cost         component.ResourceBundle `yaml:"cost"`
	BuildTicks   uint64                   `yaml:"build_ticks"`
	Output       component.ResourceBundle `yaml:"output"`
	StorageBonus component.ResourceBundle `yaml:"storage_bonus"`
}

// BuildingTable indexes building definitions by type.
type BuildingTable struct {
	byType map[component.BuildingType]*BuildingInfo
}

// LoadBuildingTable loads building definitions; an empty path loads the
// built-in table.
func LoadBuildingTable(path string) (*BuildingTable, error) {
	raw, err := readTable(path, "buildings.yaml")
	if err != nil {
		return nil, err
	}
	var entries []buildingYAMLEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse buildings: %w", err)
	}
	t := &BuildingTable{byType: make(map[component.BuildingType]*BuildingInfo, len(entries))}
	for _, e := range entries {
		bt, err := component.ParseBuildingType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("parse buildings: %w", err)
		}
		if _, dup := t.byType[bt]; dup {
			return nil, fmt.Errorf("parse buildings: duplicate entry for %s", bt)
		}
		if err := e.Cost.Validate(); err != nil {
			return nil, fmt.Errorf("parse buildings: %s cost: %w", bt, err)
		}
		if err := e.StorageBonus.Validate(); err != nil {
			return nil, fmt.Errorf("parse buildings: %s storage bonus: %w", bt, err)
		}
		if e.BuildTicks == 0 {
			e.BuildTicks = 1
		}
		t.byType[bt] = &BuildingInfo{
			Type:         bt,
			Cost:         e.Cost,
			BuildTicks:   e.BuildTicks,
			Output:       e.Output,
			StorageBonus: e.StorageBonus,
		}
	}
	return t, nil
}

// Get returns the definition for bt, or nil if the table has none.
func (t *BuildingTable) Get(bt component.BuildingType) *BuildingInfo {
	return t.byType[bt]
}

// Count returns the number of building types loaded.
func (t *BuildingTable) Count() int {
	return len(t.byType)
}
