package system

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/stellardominion/engine/internal/component"
	"github.com/stellardominion/engine/internal/core/event"
	"github.com/stellardominion/engine/internal/core/simerr"
)

type scoutBoost struct{}

func (scoutBoost) ShipStrength(class string, base float64) (float64, bool) {
	if class == "scout" {
		return base * 10, true
	}
	return base, true
}

func TestEngageValidation(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, ai := twoFactions(t)
	a := spawn(t, w, component.Scout, component.Vector2{}, player)
	b := spawn(t, w, component.Scout, component.Vector2{}, player)
	c := spawn(t, w, component.Warship, component.Vector2{}, ai)
	d := spawn(t, w, component.Warship, component.Vector2{}, ai)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))

	cases := []struct {
		name     string
		attacker component.ShipID
		target   component.ShipID
		want     error
	}{
		{"self", a, a, simerr.ErrValidation},
		{"same faction", a, b, simerr.ErrValidation},
		{"unknown target", a, 99, simerr.ErrNotFound},
		{"unknown attacker", 99, c, simerr.ErrNotFound},
		{"valid", a, c, nil},
		{"attacker busy", a, d, simerr.ErrValidation},
		{"target busy", b, c, simerr.ErrValidation},
	}
	for _, tc := range cases {
		err := s.HandleEvent(w, event.AttackTarget{Attacker: tc.attacker, Target: tc.target})
		if tc.want == nil && err != nil || tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if n := len(s.Battles()); n != 1 {
		t.Errorf("battles = %d, want 1", n)
	}
}

func TestBattleResolvesOnNextTick(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, ai := twoFactions(t)
	scout := spawn(t, w, component.Scout, component.Vector2{}, player)
	warship := spawn(t, w, component.Warship, component.Vector2{}, ai)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	bus := event.NewBus(0)

	_ = s.HandleEvent(w, event.TickCompleted{Tick: 3})
	if err := s.HandleEvent(w, event.AttackTarget{Attacker: scout, Target: warship}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	if bus.Pending() != 0 {
		t.Fatal("resolved in the starting tick")
	}

	_ = s.HandleEvent(w, event.TickCompleted{Tick: 4})
	if err := s.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	evs := drain(t, bus)
	want := event.CombatResolved{Attacker: scout, Defender: warship, Winner: ai, Destroyed: scout}
	if len(evs) != 1 || evs[0] != want {
		t.Fatalf("events = %v, want %v", evs, want)
	}
	if len(s.Battles()) != 0 {
		t.Error("battle still pending")
	}
}

func TestCombatStrength(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, ai := twoFactions(t)
	scout := spawn(t, w, component.Scout, component.Vector2{}, player)
	warship := spawn(t, w, component.Warship, component.Vector2{}, ai)

	plain := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	sh, _ := w.Ships.Get(warship)
	if got, err := plain.Strength(w, &sh); err != nil || math.Abs(got-6) > 1e-9 {
		t.Errorf("aggressive warship strength = %v, %v; want 6", got, err)
	}

	scripted := NewCombatSystem(tb.ships, tb.econ, scoutBoost{}, zaptest.NewLogger(t))
	bus := event.NewBus(0)
	_ = scripted.Engage(w, scout, warship)
	_ = scripted.HandleEvent(w, event.TickCompleted{Tick: 1})
	if err := scripted.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	evs := drain(t, bus)
	if len(evs) != 1 || evs[0].(event.CombatResolved).Destroyed != warship {
		t.Errorf("events = %v, want the warship destroyed", evs)
	}
}

func TestCombatTieGoesToLowerID(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, _ := twoFactions(t)
	other := faction(t, w, "Neighbour", false, component.Balanced)
	low := spawn(t, w, component.Scout, component.Vector2{}, player)
	high := spawn(t, w, component.Scout, component.Vector2{}, other)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	bus := event.NewBus(0)

	if err := s.Engage(w, high, low); err != nil {
		t.Fatal(err)
	}
	_ = s.HandleEvent(w, event.TickCompleted{Tick: 1})
	if err := s.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	evs := drain(t, bus)
	want := event.CombatResolved{Attacker: high, Defender: low, Winner: player, Destroyed: high}
	if len(evs) != 1 || evs[0] != want {
		t.Errorf("events = %v, want %v", evs, want)
	}
}

func TestBattleWithVanishedShipFails(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, ai := twoFactions(t)
	a := spawn(t, w, component.Scout, component.Vector2{}, player)
	b := spawn(t, w, component.Scout, component.Vector2{}, ai)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	_ = s.Engage(w, a, b)
	_ = w.Ships.Destroy(b)

	_ = s.HandleEvent(w, event.TickCompleted{Tick: 1})
	if err := s.Update(w, 0, event.NewBus(0)); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if len(s.Battles()) != 0 {
		t.Error("broken battle kept")
	}
}

func TestLandingRules(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, ai := twoFactions(t)
	neutral := addPlanet(t, w, component.DefaultOrbit(), component.NullFactionID{})
	home := colony(t, w, player, component.ResourceBundle{}, 0)
	hostile := colony(t, w, ai, component.ResourceBundle{}, 0)
	fortified := colony(t, w, ai, component.ResourceBundle{}, 0)
	if err := w.Planets.AddBuilding(fortified, component.DefensePlatform); err != nil {
		t.Fatal(err)
	}
	dock := OrbitalPosition(component.DefaultOrbit(), 0)
	settlers := spawn(t, w, component.Colony, dock, player)
	warship := spawn(t, w, component.Warship, dock, player)
	scout := spawn(t, w, component.Scout, dock, player)
	distant := spawn(t, w, component.Warship, component.Vector2{X: -30}, player)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))

	cases := []struct {
		name   string
		ship   component.ShipID
		planet component.PlanetID
		want   error
	}{
		{"colony ship on held planet", settlers, hostile, simerr.ErrValidation},
		{"warship on neutral planet", warship, neutral, simerr.ErrValidation},
		{"own planet", warship, home, simerr.ErrValidation},
		{"scout", scout, hostile, simerr.ErrValidation},
		{"defense platform", warship, fortified, simerr.ErrValidation},
		{"not docked", distant, hostile, simerr.ErrValidation},
		{"unknown planet", warship, 99, simerr.ErrNotFound},
		{"settle", settlers, neutral, nil},
		{"invade", warship, hostile, nil},
		{"already landing", warship, hostile, simerr.ErrValidation},
	}
	for _, tc := range cases {
		err := s.HandleEvent(w, event.ColonizePlanet{Ship: tc.ship, Planet: tc.planet})
		if tc.want == nil && err != nil || tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if n := len(s.Landings()); n != 2 {
		t.Errorf("landings = %d, want 2", n)
	}
}

func TestLandingResolvesOnNextTick(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, _ := twoFactions(t)
	neutral := addPlanet(t, w, component.DefaultOrbit(), component.NullFactionID{})
	settlers := spawn(t, w, component.Colony, OrbitalPosition(component.DefaultOrbit(), 0), player)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	bus := event.NewBus(0)

	if err := s.HandleEvent(w, event.ColonizePlanet{Ship: settlers, Planet: neutral}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	if bus.Pending() != 0 {
		t.Fatal("landed in the starting tick")
	}

	// A restored system finishes the same landing.
	restored := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	restored.Restore(0, nil, s.Landings())
	_ = restored.HandleEvent(w, event.TickCompleted{Tick: 1})
	if err := restored.Update(w, 0, bus); err != nil {
		t.Fatal(err)
	}
	want := event.PlanetConquered{Planet: neutral, NewOwner: player, Ship: settlers, Settlers: ColonySettlers}
	if evs := drain(t, bus); len(evs) != 1 || evs[0] != want {
		t.Fatalf("events = %v, want %+v", evs, want)
	}
	if len(restored.Landings()) != 0 {
		t.Error("landing kept after it resolved")
	}
}

func TestLandingFailsOnceGuarded(t *testing.T) {
	t.Parallel()
	tb := loadTables(t)
	w, player, ai := twoFactions(t)
	hostile := colony(t, w, ai, component.ResourceBundle{}, 0)
	dock := OrbitalPosition(component.DefaultOrbit(), 0)
	warship := spawn(t, w, component.Warship, dock, player)
	s := NewCombatSystem(tb.ships, tb.econ, nil, zaptest.NewLogger(t))
	bus := event.NewBus(0)

	if err := s.HandleEvent(w, event.ColonizePlanet{Ship: warship, Planet: hostile}); err != nil {
		t.Fatal(err)
	}
	spawn(t, w, component.Scout, dock, ai)
	_ = s.HandleEvent(w, event.TickCompleted{Tick: 1})
	if err := s.Update(w, 0, bus); !errors.Is(err, simerr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if bus.Pending() != 0 || len(s.Landings()) != 0 {
		t.Errorf("guarded landing produced %d events, %d landings left", bus.Pending(), len(s.Landings()))
	}
}
