package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
)

func writeScript(t *testing.T, dir, sub, name, body string) {
	t.Helper()
	p := filepath.Join(dir, sub)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestShipStrength(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScript(t, dir, "combat", "strength.lua", `
function ship_strength(class, base)
  if class == "warship" then return base * 2 end
  return base
end`)
	e := newTestEngine(t, dir)

	got, ok := e.ShipStrength("warship", 5)
	if !ok || got != 10 {
		t.Errorf("warship = %v, %v; want 10, true", got, ok)
	}
	got, ok = e.ShipStrength("scout", 1)
	if !ok || got != 1 {
		t.Errorf("scout = %v, %v; want 1, true", got, ok)
	}
}

func TestShipStrengthFallback(t *testing.T) {
	t.Parallel()

	t.Run("missing hook", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, t.TempDir())
		if got, ok := e.ShipStrength("scout", 3); ok || got != 3 {
			t.Errorf("got %v, %v; want 3, false", got, ok)
		}
	})

	t.Run("runtime error", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeScript(t, dir, "combat", "strength.lua", `function ship_strength(c, b) error("boom") end`)
		e := newTestEngine(t, dir)
		if got, ok := e.ShipStrength("scout", 3); ok || got != 3 {
			t.Errorf("got %v, %v; want 3, false", got, ok)
		}
	})

	t.Run("negative result", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeScript(t, dir, "combat", "strength.lua", `function ship_strength(c, b) return -1 end`)
		e := newTestEngine(t, dir)
		if got, ok := e.ShipStrength("scout", 3); ok || got != 3 {
			t.Errorf("got %v, %v; want 3, false", got, ok)
		}
	})
}

func TestNewEngineSyntaxError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScript(t, dir, "ai", "broken.lua", `function ai_orders(ctx`)
	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestReloadKeepsRunningVMOnError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScript(t, dir, "combat", "strength.lua", `function ship_strength(c, b) return 7 end`)
	e := newTestEngine(t, dir)

	writeScript(t, dir, "combat", "strength.lua", `function ship_strength(c, b) return 9 end`)
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got, _ := e.ShipStrength("scout", 1); got != 9 {
		t.Fatalf("after reload = %v, want 9", got)
	}

	writeScript(t, dir, "combat", "strength.lua", `function ship_strength(`)
	if err := e.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got, _ := e.ShipStrength("scout", 1); got != 9 {
		t.Errorf("after failed reload = %v, want 9", got)
	}
	if e.Reloads() != 1 {
		t.Errorf("Reloads = %d, want 1", e.Reloads())
	}
}

func TestAIOrders(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScript(t, dir, "ai", "orders.lua", `
function ai_orders(ctx)
  local out = {}
  for _, p in ipairs(ctx.planets) do
    if p.resources.minerals >= 100 then
      table.insert(out, { command = "build_structure", planet = p.id, building = "mine" })
    end
  end
  local e = ctx.enemies[1]
  if e ~= nil then
    table.insert(out, { command = "move_ship", ship = ctx.ships[1].id, x = e.x, y = e.y })
  end
  table.insert(out, { command = "warp_drive" })
  return out
end`)
	e := newTestEngine(t, dir)

	ctx := AIContext{
		Tick:        50,
		Faction:     1,
		Personality: component.Aggressive,
		Planets: []AIPlanet{
			{ID: 1, Resources: component.ResourceBundle{Minerals: 500}, FreeSlots: 3},
			{ID: 2, Resources: component.ResourceBundle{Minerals: 10}, FreeSlots: 3},
		},
		Ships:   []AIShip{{ID: 4, Class: component.Warship, Owner: 1}},
		Enemies: []AIShip{{ID: 0, Class: component.Scout, Position: component.Vector2{X: 2, Y: 3}}},
	}
	got := e.AIOrders(ctx)
	want := []event.Event{
		event.BuildStructure{Planet: 1, Building: component.Mine},
		event.MoveShip{Ship: 4, Target: component.Vector2{X: 2, Y: 3}},
	}
	if len(got) != len(want) {
		t.Fatalf("orders = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestAIOrdersWithoutHook(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, t.TempDir())
	if got := e.AIOrders(AIContext{Tick: 50}); got != nil {
		t.Errorf("orders = %v, want nil", got)
	}
}

func TestBundledScripts(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, filepath.Join("..", "..", "scripts"))

	if _, ok := e.ShipStrength("warship", 5); !ok {
		t.Error("bundled ship_strength missing")
	}
	orders := e.AIOrders(AIContext{
		Tick:        50,
		Faction:     1,
		Personality: component.Balanced,
		Planets:     []AIPlanet{{ID: 1, Resources: component.ResourceBundle{Minerals: 1000}, FreeSlots: 10}},
	})
	if len(orders) != 1 {
		t.Fatalf("orders = %v, want one build order", orders)
	}
	if _, ok := orders[0].(event.BuildStructure); !ok {
		t.Errorf("order = %T, want BuildStructure", orders[0])
	}
}

func TestBundledScriptsSettleNeutralWorlds(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, filepath.Join("..", "..", "scripts"))
	orders := e.AIOrders(AIContext{
		Tick:        100,
		Faction:     1,
		Personality: component.Economic,
		Ships: []AIShip{
			{ID: 5, Class: component.Colony, Owner: 1, Position: component.Vector2{X: 3, Y: 4.2}, Fuel: 80},
			{ID: 6, Class: component.Colony, Owner: 1, Position: component.Vector2{X: -9}, Fuel: 80},
		},
		Neutral: []AIPlanet{{ID: 7, Position: component.Vector2{X: 3, Y: 4}}},
	})
	want := []event.Event{
		event.ColonizePlanet{Ship: 5, Planet: 7},
		event.MoveShip{Ship: 6, Target: component.Vector2{X: 3, Y: 4}},
	}
	if len(orders) != len(want) {
		t.Fatalf("orders = %v, want %v", orders, want)
	}
	for i := range want {
		if orders[i] != want[i] {
			t.Errorf("order %d = %#v, want %#v", i, orders[i], want[i])
		}
	}
}

func TestAIOrdersReadCargo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeScript(t, dir, "ai", "orders.lua", `
function ai_orders(ctx)
  local ship = ctx.ships[1]
  local home = ctx.planets[1]
  return {
    { command = "load_ship_cargo", ship = ship.id, planet = home.id, resources = { minerals = 40, fuel = ship.fuel } },
    { command = "refuel_ship", ship = ship.id, planet = home.id },
  }
end`)
	e := newTestEngine(t, dir)
	got := e.AIOrders(AIContext{
		Tick:    50,
		Faction: 1,
		Planets: []AIPlanet{{ID: 2}},
		Ships:   []AIShip{{ID: 9, Class: component.Transport, Owner: 1, Fuel: 12}},
	})
	want := []event.Event{
		event.LoadShipCargo{Ship: 9, Planet: 2, Resources: component.ResourceBundle{Minerals: 40, Fuel: 12}},
		event.RefuelShip{Ship: 9, Planet: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("orders = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestWatcherSignalsOnScriptChange(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "combat", "strength.lua", `-- v1`)

	w, err := NewWatcher(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeScript(t, dir, "combat", "notes.txt", "ignored")
	writeScript(t, dir, "combat", "strength.lua", `-- v2`)

	select {
	case <-w.Changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}
}

func TestIsScript(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"scripts/ai/orders.lua":  true,
		"scripts/ai/orders.lua~": false,
		"scripts/ai/README.md":   false,
		"scripts/combat/x.lua":   true,
		"scripts/combat/.x.swp":  false,
		"scripts/combat/lua":     false,
	}
	for name, want := range cases {
		if got := isScript(name); got != want {
			t.Errorf("isScript(%q) = %v, want %v", name, got, want)
		}
	}
}
