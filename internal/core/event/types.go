package event

import (
	"fmt"

	"github.com/stellardominion/engine/internal/component"
)

// Family groups events for subscription purposes.
type Family uint8

const (
	FamilyPlayerCommand Family = iota
	FamilySimulation
	FamilyStateChanged
)

func (f Family) String() string {
	switch f {
	case FamilyPlayerCommand:
		return "player_command"
	case FamilySimulation:
		return "simulation"
	case FamilyStateChanged:
		return "state_changed"
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// SystemID names every component that may subscribe to the bus.
type SystemID uint8

const (
	SystemInput SystemID = iota
	SystemPhysics
	SystemResource
	SystemPopulation
	SystemConstruction
	SystemCombat
	SystemTime
	SystemPlanetManager
	SystemShipManager
	SystemFactionManager
	SystemSave
)

var systemNames = [...]string{
	"input", "physics", "resource", "population", "construction", "combat",
	"time", "planet_manager", "ship_manager", "faction_manager", "save",
}

func (s SystemID) String() string {
	if int(s) < len(systemNames) {
		return systemNames[s]
	}
	return fmt.Sprintf("system(%d)", uint8(s))
}

// Event is the closed set of messages carried by the bus. Only types in this
// package implement it.
type Event interface {
	Family() Family
	Name() string
	sealed()
}

type command struct{}

func (command) Family() Family { return FamilyPlayerCommand }
func (command) sealed()        {}

type simulation struct{}

func (simulation) Family() Family { return FamilySimulation }
func (simulation) sealed()        {}

type stateChanged struct{}

func (stateChanged) Family() Family { return FamilyStateChanged }
func (stateChanged) sealed()        {}

// ---------------------------------------------------------------------------
// Player commands

type SelectPlanet struct {
	command
	Planet component.PlanetID
}

type SelectShip struct {
	command
	Ship component.ShipID
}

type PauseGame struct {
	command
	Paused bool
}

type SetGameSpeed struct {
	command
	Multiplier float32
}

type MoveShip struct {
	command
	Ship   component.ShipID
	Target component.Vector2
}

type SaveGame struct {
	command
	Slot string
}

type LoadGame struct {
	command
	Slot string // empty loads the most recent snapshot
}

type BuildStructure struct {
	command
	Planet   component.PlanetID
	Building component.BuildingType
}

type ConstructShip struct {
	command
	Planet component.PlanetID
	Class  component.ShipClass
}

type AllocateWorkers struct {
	command
	Planet  component.PlanetID
	Workers component.WorkerAllocation
}

type TransferResources struct {
	command
	From      component.PlanetID
	To        component.PlanetID
	Resources component.ResourceBundle
}

type AttackTarget struct {
	command
	Attacker component.ShipID
	Target   component.ShipID
}

// LoadShipCargo moves resources from a planet into a docked transport.
type LoadShipCargo struct {
	command
	Ship      component.ShipID
	Planet    component.PlanetID
	Resources component.ResourceBundle
}

// UnloadShipCargo empties a docked ship's hold into the planet, as far as
// storage allows.
type UnloadShipCargo struct {
	command
	Ship   component.ShipID
	Planet component.PlanetID
}

// RefuelShip tops up a docked ship from the planet's fuel stock.
type RefuelShip struct {
	command
	Ship   component.ShipID
	Planet component.PlanetID
}

// ColonizePlanet lands a colony ship on a neutral planet or a warship on a
// hostile one.
type ColonizePlanet struct {
	command
	Ship   component.ShipID
	Planet component.PlanetID
}

func (SelectPlanet) Name() string      { return "select_planet" }
func (SelectShip) Name() string        { return "select_ship" }
func (PauseGame) Name() string         { return "pause_game" }
func (SetGameSpeed) Name() string      { return "set_game_speed" }
func (MoveShip) Name() string          { return "move_ship" }
func (SaveGame) Name() string          { return "save_game" }
func (LoadGame) Name() string          { return "load_game" }
func (BuildStructure) Name() string    { return "build_structure" }
func (ConstructShip) Name() string     { return "construct_ship" }
func (AllocateWorkers) Name() string   { return "allocate_workers" }
func (TransferResources) Name() string { return "transfer_resources" }
func (AttackTarget) Name() string      { return "attack_target" }
func (LoadShipCargo) Name() string     { return "load_ship_cargo" }
func (UnloadShipCargo) Name() string   { return "unload_ship_cargo" }
func (RefuelShip) Name() string        { return "refuel_ship" }
func (ColonizePlanet) Name() string    { return "colonize_planet" }

// ---------------------------------------------------------------------------
// Simulation events

type TickCompleted struct {
	simulation
	Tick uint64
}

type ResourcesProduced struct {
	simulation
	Planet    component.PlanetID
	Resources component.ResourceBundle
}

type ResourceShortage struct {
	simulation
	Planet   component.PlanetID
	Resource component.ResourceKind
	Deficit  int32
}

type PopulationGrowth struct {
	simulation
	Planet component.PlanetID
	Amount int32
}

type ConstructionCompleted struct {
	simulation
	Planet   component.PlanetID
	Building component.BuildingType
}

type ShipCompleted struct {
	simulation
	Planet component.PlanetID
	Ship   component.ShipID
}

type ShipArrived struct {
	simulation
	Ship        component.ShipID
	Destination component.Vector2
}

type CombatResolved struct {
	simulation
	Attacker  component.ShipID
	Defender  component.ShipID
	Winner    component.FactionID
	Destroyed component.ShipID
}

// PlanetConquered hands a planet to NewOwner. Settlers is the population a
// colony ship brought down; when it is positive the ship was spent.
type PlanetConquered struct {
	simulation
	Planet   component.PlanetID
	NewOwner component.FactionID
	Ship     component.ShipID
	Settlers int32
}

// TransferWindowOpen announces that two planets are aligned closely enough
// for a cheap transfer.
type TransferWindowOpen struct {
	simulation
	From component.PlanetID
	To   component.PlanetID
}

func (TickCompleted) Name() string         { return "tick_completed" }
func (ResourcesProduced) Name() string     { return "resources_produced" }
func (ResourceShortage) Name() string      { return "resource_shortage" }
func (PopulationGrowth) Name() string      { return "population_growth" }
func (ConstructionCompleted) Name() string { return "construction_completed" }
func (ShipCompleted) Name() string         { return "ship_completed" }
func (ShipArrived) Name() string           { return "ship_arrived" }
func (CombatResolved) Name() string        { return "combat_resolved" }
func (PlanetConquered) Name() string       { return "planet_conquered" }
func (TransferWindowOpen) Name() string    { return "transfer_window_open" }

// ---------------------------------------------------------------------------
// State changes

type GameSaved struct {
	stateChanged
	Slot string
	Tick uint64
}

type GameLoaded struct {
	stateChanged
	Slot string
	Tick uint64
}

func (GameSaved) Name() string  { return "game_saved" }
func (GameLoaded) Name() string { return "game_loaded" }
