package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
)

func TestBuiltinTablesLoad(t *testing.T) {
	t.Parallel()
	bt, err := LoadBuildingTable("")
	if err != nil {
		t.Fatalf("buildings: %v", err)
	}
	if bt.Count() != 9 {
		t.Errorf("building count = %d, want 9", bt.Count())
	}
	mine := bt.Get(component.Mine)
	if mine == nil || mine.Cost.Minerals != 100 || mine.BuildTicks != 10 {
		t.Errorf("mine = %+v", mine)
	}

	st, err := LoadShipTable("")
	if err != nil {
		t.Fatalf("ships: %v", err)
	}
	if w := st.Get(component.Warship); w == nil || w.Strength != 5 {
		t.Errorf("warship = %+v", w)
	}

	eco, err := LoadEconomy("")
	if err != nil {
		t.Fatalf("economy: %v", err)
	}
	if eco.PersonalityStrength(component.Aggressive) != 1.2 {
		t.Errorf("aggressive multiplier = %v", eco.PersonalityStrength(component.Aggressive))
	}
	if got := eco.FoodDemand(1001); got != 101 {
		t.Errorf("FoodDemand(1001) = %d, want 101", got)
	}

	sc, err := LoadScenario("")
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	if sc.AIName(0) != "Stellar Federation" || sc.AIPersonality(1) != component.Economic {
		t.Errorf("scenario ai = %q %s", sc.AIName(0), sc.AIPersonality(1))
	}
	if sc.AIName(20) != "AI Empire 21" {
		t.Errorf("fallback name = %q", sc.AIName(20))
	}
}

func TestLoadBuildingTableRejectsUnknownType(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "buildings.yaml")
	if err := os.WriteFile(path, []byte("- type: castle\n  build_ticks: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBuildingTable(path); err == nil {
		t.Fatal("expected error for unknown building type")
	}
}

func TestLoadScenarioRejectsTooFewPlanets(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte("ai_opponents: 3\nplanet_count: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(path); err == nil {
		t.Fatal("expected error when factions outnumber planets")
	}
}

func TestCommandScriptDueInTickOrder(t *testing.T) {
	t.Parallel()
	s, err := ParseCommandScript([]byte(`
- {tick: 7, command: pause_game, paused: true}
- {tick: 2, command: move_ship, ship: 3, x: 1, y: 2}
- {tick: 2, command: build_structure, planet: 1, building: farm}
`))
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Due(1); len(got) != 0 {
		t.Fatalf("Due(1) = %v", got)
	}
	got := s.Due(5)
	if len(got) != 2 {
		t.Fatalf("Due(5) len = %d, want 2", len(got))
	}
	if mv, ok := got[0].(event.MoveShip); !ok || mv.Ship != 3 || mv.Target.Y != 2 {
		t.Errorf("first = %#v", got[0])
	}
	if bs, ok := got[1].(event.BuildStructure); !ok || bs.Building != component.Farm {
		t.Errorf("second = %#v", got[1])
	}
	if s.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", s.Remaining())
	}
}

func TestCommandScriptRejectsUnknownCommand(t *testing.T) {
	t.Parallel()
	if _, err := ParseCommandScript([]byte("- {tick: 1, command: warp}")); err == nil {
		t.Fatal("expected error")
	}
}
