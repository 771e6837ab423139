// Package game owns one running simulation: the world, the event bus and
// every system, stepped one fixed tick at a time.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	coresys "github.com/stellardominion/engine/internal/core/system"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/persist"
	"github.com/stellardominion/engine/internal/scripting"
	"github.com/stellardominion/engine/internal/system"
	"github.com/stellardominion/engine/internal/world"
)

// Tables bundles the static game data.
type Tables struct {
	Buildings *data.BuildingTable
	Ships     *data.ShipTable
	Economy   *data.Economy
}

// LoadTables loads the three tables; empty paths use the built-in ones.
func LoadTables(buildings, ships, economy string) (Tables, error) {
	var t Tables
	var err error
	if t.Buildings, err = data.LoadBuildingTable(buildings); err != nil {
		return Tables{}, fmt.Errorf("load buildings: %w", err)
	}
	if t.Ships, err = data.LoadShipTable(ships); err != nil {
		return Tables{}, fmt.Errorf("load ships: %w", err)
	}
	if t.Economy, err = data.LoadEconomy(economy); err != nil {
		return Tables{}, fmt.Errorf("load economy: %w", err)
	}
	return t, nil
}

// Options wires a game. Store and Tables are required, everything else is
// optional.
type Options struct {
	Tables Tables
	Store  persist.Store
	Save   system.SaveConfig

	// Scripts supplies the combat strength hook and AI orders. Nil runs
	// combat on table values and leaves AI factions idle.
	Scripts *scripting.Engine
	// Commands is replayed into the input adapter at the scheduled ticks.
	Commands *data.CommandScript

	CommandsPerSecond float64 // simulated seconds; <= 0 disables the limit
	CommandBurst      int
	HistoryLimit      int           // 0 keeps every event
	SaveTimeout       time.Duration // bound on one save or load; 0 means 5s
}

// GameState is the orchestrator. Single goroutine only; the owner calls
// FixedUpdate and the read surface from the same goroutine.
type GameState struct {
	world  *world.State
	bus    *event.Bus
	runner *coresys.Runner[*world.State]

	input        *system.InputSystem
	physics      *system.PhysicsEngine
	resources    *system.ResourceSystem
	population   *system.PopulationSystem
	construction *system.ConstructionSystem
	combat       *system.CombatSystem
	clock        *system.TimeManager
	saves        *system.SaveSystem

	// Save and load requests seen during a drain run once the drain is over,
	// so a snapshot never observes half a batch.
	requests []event.Event

	timeout time.Duration
	log     *zap.Logger
}

// NewGame generates the opening position from sc and wires every system.
func NewGame(sc *data.Scenario, opts Options, log *zap.Logger) (*GameState, error) {
	w, err := world.Generate(sc)
	if err != nil {
		return nil, fmt.Errorf("generate galaxy: %w", err)
	}
	return New(w, opts, log)
}

// New wires a game around an existing world at tick 0.
func New(w *world.State, opts Options, log *zap.Logger) (*GameState, error) {
	t := opts.Tables
	if t.Buildings == nil || t.Ships == nil || t.Economy == nil {
		return nil, fmt.Errorf("game tables incomplete: %w", simerr.ErrValidation)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("game snapshot store missing: %w", simerr.ErrValidation)
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}

	var strength system.StrengthScript
	if opts.Scripts != nil {
		strength = opts.Scripts
	}

	g := &GameState{
		world:        w,
		bus:          event.NewBus(opts.HistoryLimit),
		runner:       coresys.NewRunner[*world.State](),
		input:        system.NewInputSystem(opts.CommandsPerSecond, opts.CommandBurst, log),
		physics:      system.NewPhysicsEngine(t.Ships),
		resources:    system.NewResourceSystem(t.Buildings, t.Economy, log),
		population:   system.NewPopulationSystem(t.Economy, log),
		construction: system.NewConstructionSystem(t.Buildings, t.Ships, log),
		combat:       system.NewCombatSystem(t.Ships, t.Economy, strength, log),
		clock:        system.NewTimeManager(),
		saves:        system.NewSaveSystem(opts.Store, opts.Save, log),
		timeout:      opts.SaveTimeout,
		log:          log,
	}

	if opts.Commands != nil {
		g.input.AddSource(system.ScriptSource{Script: opts.Commands})
	}
	if opts.Scripts != nil {
		g.input.AddSource(system.NewAISource(opts.Scripts))
	}

	// Execution order comes from the phases; registration order breaks ties.
	g.runner.Register(g.input)
	g.runner.Register(g.physics)
	g.runner.Register(g.resources)
	g.runner.Register(g.population)
	g.runner.Register(g.construction)
	g.runner.Register(g.combat)
	g.runner.Register(g.clock)

	g.subscribe()
	return g, nil
}

// subscribe fixes the dispatch order. Input clears a selected ship before the
// ship manager removes it; Save sees TickCompleted last.
func (g *GameState) subscribe() {
	b := g.bus
	b.Subscribe(event.SystemInput, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemInput, event.FamilySimulation)
	b.Subscribe(event.SystemPhysics, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemPhysics, event.FamilySimulation)
	b.Subscribe(event.SystemResource, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemResource, event.FamilySimulation)
	b.Subscribe(event.SystemPopulation, event.FamilySimulation)
	b.Subscribe(event.SystemConstruction, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemConstruction, event.FamilySimulation)
	b.Subscribe(event.SystemCombat, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemCombat, event.FamilySimulation)
	b.Subscribe(event.SystemTime, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemPlanetManager, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemPlanetManager, event.FamilySimulation)
	b.Subscribe(event.SystemShipManager, event.FamilySimulation)
	b.Subscribe(event.SystemSave, event.FamilyPlayerCommand)
	b.Subscribe(event.SystemSave, event.FamilySimulation)
}

// FixedUpdate advances the simulation by one fixed step: every system in
// phase order, then one drain of the bus. Failures are logged and the first
// one is returned; the step always runs to the end.
func (g *GameState) FixedUpdate(dt time.Duration) error {
	var first error

	if err := g.runner.Tick(g.world, dt, g.bus); err != nil {
		for _, e := range g.runner.Errors() {
			g.log.Warn("系統更新失敗", zap.Error(e), zap.Uint64("tick", g.clock.CurrentTick()))
		}
		first = err
	}

	g.saves.QueueAutosave(g.bus)

	if err := g.ProcessQueuedEvents(); err != nil && first == nil {
		first = err
	}
	return first
}

// ProcessQueuedEvents drains the bus once and then carries out any save or
// load requested during the drain.
func (g *GameState) ProcessQueuedEvents() error {
	var first error
	if err := g.bus.ProcessEvents(g.dispatch); err != nil {
		for _, e := range g.bus.LastErrors() {
			g.log.Warn("事件處理失敗", zap.Error(e), zap.Uint64("tick", g.clock.CurrentTick()))
		}
		first = err
	}

	requests := g.requests
	g.requests = nil
	for _, ev := range requests {
		var err error
		switch e := ev.(type) {
		case event.SaveGame:
			err = g.Save(e.Slot)
		case event.LoadGame:
			err = g.Load(e.Slot)
		}
		if err != nil {
			g.log.Error("存讀檔失敗", zap.String("command", ev.Name()), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (g *GameState) dispatch(id event.SystemID, ev event.Event) error {
	switch id {
	case event.SystemInput:
		return g.input.HandleEvent(g.world, ev)
	case event.SystemPhysics:
		return g.physics.HandleEvent(g.world, ev)
	case event.SystemResource:
		return g.resources.HandleEvent(g.world, ev)
	case event.SystemPopulation:
		return g.population.HandleEvent(g.world, ev)
	case event.SystemConstruction:
		return g.construction.HandleEvent(g.world, ev)
	case event.SystemCombat:
		return g.combat.HandleEvent(g.world, ev)
	case event.SystemTime:
		return g.clock.HandleEvent(g.world, ev)
	case event.SystemPlanetManager:
		return g.world.Planets.HandleEvent(ev)
	case event.SystemShipManager:
		return g.world.Ships.HandleEvent(ev)
	case event.SystemSave:
		switch e := ev.(type) {
		case event.TickCompleted:
			g.saves.ObserveTick(e.Tick)
		case event.SaveGame, event.LoadGame:
			g.requests = append(g.requests, ev)
		}
	}
	return nil
}

// Save writes the current state to slot ("" = default slot) and queues
// GameSaved.
func (g *GameState) Save(slot string) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	tick := g.clock.CurrentTick()
	d, err := g.saves.Save(ctx, slot, tick, g.world.Snapshot(), g.pending())
	if err != nil {
		return err
	}
	g.bus.Queue(event.GameSaved{Slot: d.Slot, Tick: tick})
	return nil
}

// pending collects what the systems hold outside the world.
func (g *GameState) pending() persist.Pending {
	return persist.Pending{
		ProductionCycles: g.resources.Owed(),
		GrowthCycles:     g.population.Owed(),
		WindowChecks:     g.physics.PendingWindowChecks(),
		Builds:           g.construction.Builds(),
		Hulls:            g.construction.Ships(),
		Battles:          g.combat.Battles(),
		Landings:         g.combat.Landings(),
		Paused:           g.clock.IsPaused(),
		Speed:            g.clock.SpeedMultiplier(),
	}
}

// Load replaces the running state with the snapshot in slot ("" = most
// recent) and queues GameLoaded. On error nothing changes. Owed cycles,
// build queues, battles, landings and the clock settings come back with the
// world, so the loaded game steps like the one that saved it. The selection,
// queued input and autosave count start fresh.
func (g *GameState) Load(slot string) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	d, err := g.saves.Load(ctx, slot)
	if err != nil {
		return err
	}
	if d.Tick > system.MaxSafeTick {
		return fmt.Errorf("snapshot %q tick %d: %w", d.Slot, d.Tick, simerr.ErrOverflow)
	}
	// Version 1 snapshots predate the pending section and ship tanks.
	restorePending := d.Version >= 2
	if restorePending {
		if err := system.CheckSpeed(d.Pending.Speed); err != nil {
			return fmt.Errorf("snapshot %q: %w", d.Slot, err)
		}
	} else {
		for i := range d.Ships {
			d.Ships[i].Fuel = component.FuelTank
		}
	}
	if err := g.world.Restore(d.Records); err != nil {
		return fmt.Errorf("restore %q: %w", d.Slot, err)
	}
	if err := g.clock.SetTick(d.Tick); err != nil {
		return err
	}
	var p persist.Pending
	if restorePending {
		p = d.Pending
		_ = g.clock.SetSpeed(p.Speed)
		g.clock.SetPaused(p.Paused)
	}
	g.physics.Reset(d.Tick, p.WindowChecks)
	g.resources.Restore(d.Tick, p.ProductionCycles)
	g.population.Restore(p.GrowthCycles)
	g.construction.Restore(d.Tick, p.Builds, p.Hulls)
	g.combat.Restore(d.Tick, p.Battles, p.Landings)
	g.input.Reset(d.Tick)

	g.bus.Queue(event.GameLoaded{Slot: d.Slot, Tick: d.Tick})
	return nil
}

// Submit hands a player command to the input adapter. It reaches the bus on
// the next FixedUpdate.
func (g *GameState) Submit(cmd event.Event) error {
	return g.input.Submit(cmd)
}

// QueueEvent puts ev straight on the bus, bypassing input throttling.
func (g *GameState) QueueEvent(ev event.Event) {
	g.bus.Queue(ev)
}

// --- read surface ---

func (g *GameState) Planet(id component.PlanetID) (component.Planet, error) {
	return g.world.Planets.Get(id)
}

func (g *GameState) Ship(id component.ShipID) (component.Ship, error) {
	return g.world.Ships.Get(id)
}

func (g *GameState) Faction(id component.FactionID) (component.Faction, error) {
	return g.world.Factions.Get(id)
}

func (g *GameState) Planets() []component.Planet   { return g.world.Planets.All() }
func (g *GameState) Ships() []component.Ship       { return g.world.Ships.All() }
func (g *GameState) Factions() []component.Faction { return g.world.Factions.All() }

// Player is the human faction, if the scenario has one.
func (g *GameState) Player() (component.Faction, bool) { return g.world.Factions.Player() }

func (g *GameState) CurrentTick() uint64         { return g.clock.CurrentTick() }
func (g *GameState) SpeedMultiplier() float32    { return g.clock.SpeedMultiplier() }
func (g *GameState) IsPaused() bool              { return g.clock.IsPaused() }
func (g *GameState) History() []event.Event      { return g.bus.History() }
func (g *GameState) Selection() system.Selection { return g.input.Selection() }
func (g *GameState) CurrentSlot() string         { return g.saves.CurrentSlot() }

// Order returns the systems in the order they run each tick.
func (g *GameState) Order() []event.SystemID { return g.runner.Order() }

// Digest fingerprints the world and clock. Equal inputs give equal digests.
func (g *GameState) Digest() [32]byte {
	return g.world.Digest(g.clock.CurrentTick())
}

// PlanetPosition is the planet's position at the current tick.
func (g *GameState) PlanetPosition(id component.PlanetID) (component.Vector2, error) {
	return g.physics.PlanetPosition(g.world, id)
}

// Slots lists stored snapshots, most recent first.
func (g *GameState) Slots() ([]persist.SlotInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	return g.saves.List(ctx)
}

// DeleteSlot removes a stored snapshot.
func (g *GameState) DeleteSlot(slot string) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	return g.saves.Delete(ctx, slot)
}

// IsMissingSave reports whether err means no snapshot exists.
func IsMissingSave(err error) bool {
	return errors.Is(err, simerr.ErrNotFound)
}
