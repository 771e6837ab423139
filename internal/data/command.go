package data

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
)

// ScriptedCommand is one player command scheduled for a tick.
type ScriptedCommand struct {
	Tick       uint64                     `yaml:"tick"`
	Command    string                     `yaml:"command"`
	Planet     component.PlanetID         `yaml:"planet"`
	Ship       component.ShipID           `yaml:"ship"`
	Target     component.ShipID           `yaml:"target"`
	From       component.PlanetID         `yaml:"from"`
	To         component.PlanetID         `yaml:"to"`
	X          float64                    `yaml:"x"`
	Y          float64                    `yaml:"y"`
	Building   string                     `yaml:"building"`
	Class      string                     `yaml:"class"`
	Multiplier float32                    `yaml:"multiplier"`
	Paused     bool                       `yaml:"paused"`
	Slot       string                     `yaml:"slot"`
	Workers    component.WorkerAllocation `yaml:"workers"`
	Resources  component.ResourceBundle   `yaml:"resources"`
}

// Event converts the entry into a bus command.
func (c *ScriptedCommand) Event() (event.Event, error) {
	switch c.Command {
	case "select_planet":
		return event.SelectPlanet{Planet: c.Planet}, nil
	case "select_ship":
		return event.SelectShip{Ship: c.Ship}, nil
	case "pause_game":
		return event.PauseGame{Paused: c.Paused}, nil
	case "set_game_speed":
		return event.SetGameSpeed{Multiplier: c.Multiplier}, nil
	case "move_ship":
		return event.MoveShip{Ship: c.Ship, Target: component.Vector2{X: c.X, Y: c.Y}}, nil
	case "save_game":
		return event.SaveGame{Slot: c.Slot}, nil
	case "load_game":
		return event.LoadGame{Slot: c.Slot}, nil
	case "build_structure":
		bt, err := component.ParseBuildingType(c.Building)
		if err != nil {
			return nil, err
		}
		return event.BuildStructure{Planet: c.Planet, Building: bt}, nil
	case "construct_ship":
		sc, err := component.ParseShipClass(c.Class)
		if err != nil {
			return nil, err
		}
		return event.ConstructShip{Planet: c.Planet, Class: sc}, nil
	case "allocate_workers":
		return event.AllocateWorkers{Planet: c.Planet, Workers: c.Workers}, nil
	case "transfer_resources":
		return event.TransferResources{From: c.From, To: c.To, Resources: c.Resources}, nil
	case "attack_target":
		return event.AttackTarget{Attacker: c.Ship, Target: c.Target}, nil
	case "load_ship_cargo":
		return event.LoadShipCargo{Ship: c.Ship, Planet: c.Planet, Resources: c.Resources}, nil
	case "unload_ship_cargo":
		return event.UnloadShipCargo{Ship: c.Ship, Planet: c.Planet}, nil
	case "refuel_ship":
		return event.RefuelShip{Ship: c.Ship, Planet: c.Planet}, nil
	case "colonize_planet":
		return event.ColonizePlanet{Ship: c.Ship, Planet: c.Planet}, nil
	}
	return nil, fmt.Errorf("unknown command %q", c.Command)
}

type scheduled struct {
	tick uint64
	ev   event.Event
}

// CommandScript replays scripted commands in tick order.
type CommandScript struct {
	entries []scheduled
	cursor  int
}

// LoadCommandScript parses a command script file. Entries are validated up
// front so a typo fails at startup, not mid-game.
func LoadCommandScript(path string) (*CommandScript, error) {
	raw, err := readTable(path, "commands.yaml")
	if err != nil {
		return nil, err
	}
	return ParseCommandScript(raw)
}

// ParseCommandScript parses a command script from raw YAML.
func ParseCommandScript(raw []byte) (*CommandScript, error) {
	var entries []ScriptedCommand
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse command script: %w", err)
	}
	s := &CommandScript{entries: make([]scheduled, 0, len(entries))}
	for i := range entries {
		ev, err := entries[i].Event()
		if err != nil {
			return nil, fmt.Errorf("parse command script: entry %d: %w", i, err)
		}
		s.entries = append(s.entries, scheduled{tick: entries[i].Tick, ev: ev})
	}
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].tick < s.entries[j].tick })
	return s, nil
}

// Due returns the commands scheduled at or before tick that have not been
// returned yet.
func (s *CommandScript) Due(tick uint64) []event.Event {
	var out []event.Event
	for s.cursor < len(s.entries) && s.entries[s.cursor].tick <= tick {
		out = append(out, s.entries[s.cursor].ev)
		s.cursor++
	}
	return out
}

// Remaining returns how many commands are still scheduled.
func (s *CommandScript) Remaining() int {
	return len(s.entries) - s.cursor
}
