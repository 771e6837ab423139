package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/data"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// scriptDirs are loaded in order. Missing directories are skipped.
var scriptDirs = []string{"core", "combat", "ai"}

// Engine wraps a single gopher-lua VM for game logic hooks.
// Single-goroutine access only (game loop). Reload swaps in a fresh VM.
type Engine struct {
	dir     string
	vm      *lua.LState
	log     *zap.Logger
	reloads int
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{dir: scriptsDir, log: log}
	vm, err := e.boot()
	if err != nil {
		return nil, err
	}
	e.vm = vm
	return e, nil
}

// boot builds a VM with every script directory loaded.
func (e *Engine) boot() (*lua.LState, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))

	for _, sub := range scriptDirs {
		if err := e.loadDir(vm, filepath.Join(e.dir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return vm, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(vm *lua.LState, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Reload rebuilds the VM from disk. On failure the running VM is kept.
func (e *Engine) Reload() error {
	vm, err := e.boot()
	if err != nil {
		return err
	}
	e.vm.Close()
	e.vm = vm
	e.reloads++
	e.log.Info("lua scripts reloaded", zap.Int("reloads", e.reloads))
	return nil
}

// Reloads reports how many successful reloads happened.
func (e *Engine) Reloads() int {
	return e.reloads
}

// Dir is the scripts root.
func (e *Engine) Dir() string {
	return e.dir
}

// ShipStrength calls Lua ship_strength(class, base). The second result is
// false when the hook is missing or fails, in which case base is returned.
func (e *Engine) ShipStrength(class string, base float64) (float64, bool) {
	fn := e.vm.GetGlobal("ship_strength")
	if fn == lua.LNil {
		return base, false
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(class), lua.LNumber(base)); err != nil {
		e.log.Error("lua ship_strength error", zap.Error(err), zap.String("class", class))
		return base, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok || float64(n) < 0 {
		e.log.Error("lua ship_strength returned invalid value", zap.String("value", result.String()))
		return base, false
	}
	return float64(n), true
}

// AIPlanet is a planet as seen by the AI hook.
type AIPlanet struct {
	ID         component.PlanetID
	Position   component.Vector2
	Resources  component.ResourceBundle
	Population int32
	FreeSlots  int
}

// AIShip is a ship as seen by the AI hook.
type AIShip struct {
	ID       component.ShipID
	Class    component.ShipClass
	Owner    component.FactionID
	Position component.Vector2
	InFlight bool
	Fuel     float64
}

// AIContext is the read-only view passed to ai_orders.
type AIContext struct {
	Tick        uint64
	Faction     component.FactionID
	Personality component.Personality
	Planets     []AIPlanet
	Ships       []AIShip
	Enemies     []AIShip
	Neutral     []AIPlanet // uncontrolled planets, open to colony ships
}

// AIOrders calls Lua ai_orders(ctx) and converts the returned command rows
// into bus commands. Malformed rows are logged and skipped.
func (e *Engine) AIOrders(ctx AIContext) []event.Event {
	fn := e.vm.GetGlobal("ai_orders")
	if fn == lua.LNil {
		return nil
	}

	t := e.vm.NewTable()
	t.RawSetString("tick", lua.LNumber(ctx.Tick))
	t.RawSetString("faction", lua.LNumber(ctx.Faction))
	t.RawSetString("personality", lua.LString(ctx.Personality.String()))

	t.RawSetString("planets", e.planetTable(ctx.Planets))
	t.RawSetString("neutral", e.planetTable(ctx.Neutral))
	t.RawSetString("ships", e.shipTable(ctx.Ships))
	t.RawSetString("enemies", e.shipTable(ctx.Enemies))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua ai_orders error", zap.Error(err), zap.Uint32("faction", uint32(ctx.Faction)))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	var out []event.Event
	rt.ForEach(func(_, v lua.LValue) {
		row, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		cmd := commandRow(row)
		ev, err := cmd.Event()
		if err != nil {
			e.log.Warn("lua ai_orders returned bad command", zap.Error(err))
			return
		}
		out = append(out, ev)
	})
	return out
}

func (e *Engine) planetTable(planets []AIPlanet) *lua.LTable {
	tbl := e.vm.NewTable()
	for i, p := range planets {
		row := e.vm.NewTable()
		row.RawSetString("id", lua.LNumber(p.ID))
		row.RawSetString("x", lua.LNumber(p.Position.X))
		row.RawSetString("y", lua.LNumber(p.Position.Y))
		row.RawSetString("population", lua.LNumber(p.Population))
		row.RawSetString("free_slots", lua.LNumber(p.FreeSlots))
		res := e.vm.NewTable()
		for _, k := range component.ResourceKinds {
			res.RawSetString(k.String(), lua.LNumber(p.Resources.Get(k)))
		}
		row.RawSetString("resources", res)
		tbl.RawSetInt(i+1, row)
	}
	return tbl
}

func (e *Engine) shipTable(ships []AIShip) *lua.LTable {
	tbl := e.vm.NewTable()
	for i, s := range ships {
		row := e.vm.NewTable()
		row.RawSetString("id", lua.LNumber(s.ID))
		row.RawSetString("class", lua.LString(s.Class.String()))
		row.RawSetString("owner", lua.LNumber(s.Owner))
		row.RawSetString("x", lua.LNumber(s.Position.X))
		row.RawSetString("y", lua.LNumber(s.Position.Y))
		row.RawSetString("in_flight", lua.LBool(s.InFlight))
		row.RawSetString("fuel", lua.LNumber(s.Fuel))
		tbl.RawSetInt(i+1, row)
	}
	return tbl
}

// commandRow reads a command table using the same field names as command
// script files.
func commandRow(row *lua.LTable) data.ScriptedCommand {
	return data.ScriptedCommand{
		Command:    lStr(row, "command"),
		Planet:     component.PlanetID(lInt(row, "planet")),
		Ship:       component.ShipID(lInt(row, "ship")),
		Target:     component.ShipID(lInt(row, "target")),
		From:       component.PlanetID(lInt(row, "from")),
		To:         component.PlanetID(lInt(row, "to")),
		X:          lNum(row, "x"),
		Y:          lNum(row, "y"),
		Building:   lStr(row, "building"),
		Class:      lStr(row, "class"),
		Multiplier: float32(lNum(row, "multiplier")),
		Slot:       lStr(row, "slot"),
		Resources:  lBundle(row, "resources"),
	}
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lNum reads a float field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// lBundle reads a resource table keyed by resource name. Missing keys are
// zero.
func lBundle(t *lua.LTable, key string) component.ResourceBundle {
	var b component.ResourceBundle
	res, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return b
	}
	for _, k := range component.ResourceKinds {
		b.Set(k, int32(lua.LVAsNumber(res.RawGetString(k.String()))))
	}
	return b
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
