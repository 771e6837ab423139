package component

import (
	"fmt"
	"strings"
)

// BaseBuildingSlots is the slot count of an empty planet.
const BaseBuildingSlots = 10

// PopulationPerSlot is how many people unlock one extra building slot.
const PopulationPerSlot = 10_000

type BuildingType uint8

const (
	Mine BuildingType = iota
	Farm
	PowerPlant
	Factory
	ResearchLab
	Spaceport
	DefensePlatform
	StorageFacility
	Habitat
)

var buildingNames = [...]string{
	"mine", "farm", "power_plant", "factory", "research_lab",
	"spaceport", "defense_platform", "storage_facility", "habitat",
}

func (t BuildingType) String() string {
	if int(t) < len(buildingNames) {
		return buildingNames[t]
	}
	return fmt.Sprintf("building(%d)", uint8(t))
}

// ParseBuildingType accepts the snake_case name used in data files.
func ParseBuildingType(s string) (BuildingType, error) {
	for i, n := range buildingNames {
		if strings.EqualFold(n, s) {
			return BuildingType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown building type %q", s)
}

func (t BuildingType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *BuildingType) UnmarshalText(b []byte) error {
	v, err := ParseBuildingType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Building struct {
	Type        BuildingType `json:"type"`
	Tier        uint8        `json:"tier"`
	Operational bool         `json:"operational"`
}

// Planet is the authoritative record kept by the planet manager. Values
// handed out by the manager are copies.
type Planet struct {
	ID         PlanetID         `json:"id"`
	Orbit      OrbitalElements  `json:"orbital_elements"`
	Controller NullFactionID    `json:"controller"`
	Resources  ResourceBundle   `json:"resources"`
	Capacity   ResourceBundle   `json:"capacity"`
	Population int32            `json:"population"`
	Workers    WorkerAllocation `json:"worker_allocation"`
	Buildings  []Building       `json:"buildings,omitempty"`
}

// BuildingSlots returns the total slot count for the planet's population.
func (p *Planet) BuildingSlots() uint32 {
	return BaseBuildingSlots + uint32(p.Population/PopulationPerSlot)
}

// Clone returns a deep copy.
func (p Planet) Clone() Planet {
	if p.Buildings != nil {
		p.Buildings = append([]Building(nil), p.Buildings...)
	}
	return p
}
