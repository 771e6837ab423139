package system

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
	"github.com/stellardominion/engine/internal/data"
	"github.com/stellardominion/engine/internal/scripting"
)

func TestSubmitAcceptsOnlyCommands(t *testing.T) {
	t.Parallel()
	in := NewInputSystem(0, 1, zaptest.NewLogger(t))
	if err := in.Submit(event.TickCompleted{Tick: 1}); !errors.Is(err, simerr.ErrValidation) {
		t.Errorf("simulation event err = %v, want ErrValidation", err)
	}
	if err := in.Submit(nil); !errors.Is(err, simerr.ErrValidation) {
		t.Errorf("nil err = %v, want ErrValidation", err)
	}
	for i := 0; i < 100; i++ {
		if err := in.Submit(event.PauseGame{Paused: true}); err != nil {
			t.Fatalf("unthrottled submit %d: %v", i, err)
		}
	}
}

func TestSubmitRateLimitFollowsSimulatedClock(t *testing.T) {
	t.Parallel()
	w, _, _ := twoFactions(t)
	in := NewInputSystem(1, 2, zaptest.NewLogger(t))
	cmd := event.SetGameSpeed{Multiplier: 1}

	for i := 0; i < 2; i++ {
		if err := in.Submit(cmd); err != nil {
			t.Fatalf("burst submit %d: %v", i, err)
		}
	}
	if err := in.Submit(cmd); !errors.Is(err, simerr.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}

	// One simulated second later one more token is available.
	_ = in.HandleEvent(w, event.TickCompleted{Tick: 10})
	if err := in.Submit(cmd); err != nil {
		t.Fatalf("after refill: %v", err)
	}
	if err := in.Submit(cmd); !errors.Is(err, simerr.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestInputUpdateOrder(t *testing.T) {
	t.Parallel()
	w, _, _ := twoFactions(t)
	script, err := data.ParseCommandScript([]byte(`
- {tick: 0, command: pause_game, paused: true}
- {tick: 3, command: set_game_speed, multiplier: 2}
`))
	if err != nil {
		t.Fatal(err)
	}
	in := NewInputSystem(0, 1, zaptest.NewLogger(t))
	in.AddSource(ScriptSource{Script: script})
	bus := event.NewBus(0)

	_ = in.Submit(event.SelectPlanet{Planet: 0})
	if err := in.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	evs := drain(t, bus)
	if len(evs) != 2 || evs[0] != (event.SelectPlanet{Planet: 0}) || evs[1] != (event.PauseGame{Paused: true}) {
		t.Fatalf("events = %v", evs)
	}

	_ = in.HandleEvent(w, event.TickCompleted{Tick: 3})
	if err := in.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	evs = drain(t, bus)
	if len(evs) != 1 || evs[0] != (event.SetGameSpeed{Multiplier: 2}) {
		t.Errorf("events = %v", evs)
	}
	if script.Remaining() != 0 {
		t.Errorf("remaining = %d", script.Remaining())
	}
}

func TestSelection(t *testing.T) {
	t.Parallel()
	w, player, ai := twoFactions(t)
	p := colony(t, w, player, component.ResourceBundle{}, 0)
	s := spawn(t, w, component.Scout, component.Vector2{}, player)
	enemy := spawn(t, w, component.Warship, component.Vector2{}, ai)
	in := NewInputSystem(0, 1, zaptest.NewLogger(t))

	if err := in.HandleEvent(w, event.SelectPlanet{Planet: 9}); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("unknown planet err = %v", err)
	}
	if err := in.HandleEvent(w, event.SelectShip{Ship: 9}); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("unknown ship err = %v", err)
	}
	_ = in.HandleEvent(w, event.SelectPlanet{Planet: p})
	_ = in.HandleEvent(w, event.SelectShip{Ship: s})
	if got := in.Selection(); got != (Selection{Planet: p, HasPlanet: true, Ship: s, HasShip: true}) {
		t.Errorf("selection = %+v", got)
	}

	_ = in.HandleEvent(w, event.CombatResolved{Attacker: s, Defender: enemy, Winner: ai, Destroyed: s})
	if in.Selection().HasShip {
		t.Error("destroyed ship still selected")
	}
}

type fakePlanner struct {
	calls []scripting.AIContext
	order func(ctx scripting.AIContext) []event.Event
}

func (f *fakePlanner) AIOrders(ctx scripting.AIContext) []event.Event {
	f.calls = append(f.calls, ctx)
	return f.order(ctx)
}

func TestAISourceFiltersForeignOrders(t *testing.T) {
	t.Parallel()
	w, player, ai := twoFactions(t)
	home := colony(t, w, player, component.ResourceBundle{}, 0)
	base := colony(t, w, ai, component.ResourceBundle{Minerals: 500}, 0)
	open := addPlanet(t, w, component.DefaultOrbit(), component.NullFactionID{})
	scout := spawn(t, w, component.Scout, component.Vector2{}, player)
	warship := spawn(t, w, component.Warship, component.Vector2{}, ai)

	planner := &fakePlanner{order: func(scripting.AIContext) []event.Event {
		return []event.Event{
			event.BuildStructure{Planet: base, Building: component.Mine},
			event.BuildStructure{Planet: home, Building: component.Mine},
			event.AttackTarget{Attacker: warship, Target: scout},
			event.MoveShip{Ship: scout, Target: component.Vector2{X: 1}},
			event.SaveGame{Slot: "ai"},
			event.ColonizePlanet{Ship: warship, Planet: home},
			event.ColonizePlanet{Ship: scout, Planet: open},
			event.RefuelShip{Ship: warship, Planet: base},
			event.RefuelShip{Ship: warship, Planet: home},
			event.LoadShipCargo{Ship: scout, Planet: base, Resources: component.ResourceBundle{Minerals: 1}},
		}
	}}
	src := NewAISource(planner)

	got := src.Commands(w, 50)
	want := []event.Event{
		event.BuildStructure{Planet: base, Building: component.Mine},
		event.AttackTarget{Attacker: warship, Target: scout},
		event.ColonizePlanet{Ship: warship, Planet: home},
		event.RefuelShip{Ship: warship, Planet: base},
	}
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %#v, want %#v", i, got[i], want[i])
		}
	}

	if len(planner.calls) != 1 {
		t.Fatalf("planner called %d times, want once (AI faction only)", len(planner.calls))
	}
	ctx := planner.calls[0]
	if ctx.Faction != ai || len(ctx.Planets) != 1 || ctx.Planets[0].FreeSlots != 10 {
		t.Errorf("context = %+v", ctx)
	}
	if len(ctx.Ships) != 1 || len(ctx.Enemies) != 1 || ctx.Enemies[0].ID != scout {
		t.Errorf("ships %+v enemies %+v", ctx.Ships, ctx.Enemies)
	}
	if len(ctx.Neutral) != 1 || ctx.Neutral[0].ID != open || ctx.Ships[0].Fuel != component.FuelTank {
		t.Errorf("neutral %+v ships %+v", ctx.Neutral, ctx.Ships)
	}

	if again := src.Commands(w, 50); again != nil {
		t.Errorf("polled twice in one tick: %v", again)
	}
}
