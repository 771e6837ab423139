package event

import (
	"errors"
	"testing"
)

type delivery struct {
	sys  SystemID
	name string
}

func TestProcessEventsOrdersByEventThenSubscriber(t *testing.T) {
	t.Parallel()
	b := NewBus(0)
	b.Subscribe(SystemTime, FamilyPlayerCommand)
	b.Subscribe(SystemPhysics, FamilySimulation)
	b.Subscribe(SystemResource, FamilySimulation)
	b.Subscribe(SystemTime, FamilySimulation) // keeps its first position

	b.Queue(TickCompleted{Tick: 1})
	b.Queue(PauseGame{Paused: true})
	b.Queue(TickCompleted{Tick: 2})

	var got []delivery
	if err := b.ProcessEvents(func(id SystemID, ev Event) error {
		got = append(got, delivery{id, ev.Name()})
		return nil
	}); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}

	want := []delivery{
		{SystemTime, "tick_completed"}, {SystemPhysics, "tick_completed"}, {SystemResource, "tick_completed"},
		{SystemTime, "pause_game"},
		{SystemTime, "tick_completed"}, {SystemPhysics, "tick_completed"}, {SystemResource, "tick_completed"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d deliveries, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %v, want %v", i, got[i], want[i])
		}
	}
	if h := b.History(); len(h) != 3 {
		t.Errorf("history len = %d, want 3", len(h))
	}
}

func TestProcessEventsDefersEventsQueuedDuringDrain(t *testing.T) {
	t.Parallel()
	b := NewBus(0)
	b.Subscribe(SystemPhysics, FamilySimulation)

	b.Queue(TickCompleted{Tick: 1})
	calls := 0
	dispatch := func(_ SystemID, ev Event) error {
		calls++
		if tc, ok := ev.(TickCompleted); ok && tc.Tick == 1 {
			b.Queue(ShipArrived{Ship: 7})
		}
		return nil
	}
	if err := b.ProcessEvents(dispatch); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("first drain dispatched %d events, want 1", calls)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", b.Pending())
	}
	if err := b.ProcessEvents(dispatch); err != nil {
		t.Fatal(err)
	}
	if calls != 2 || b.Pending() != 0 {
		t.Fatalf("second drain: calls=%d pending=%d", calls, b.Pending())
	}
}

func TestProcessEventsCollectsAllErrorsReturnsFirst(t *testing.T) {
	t.Parallel()
	b := NewBus(0)
	b.Subscribe(SystemPhysics, FamilySimulation)
	b.Subscribe(SystemCombat, FamilySimulation)

	errA := errors.New("a")
	errB := errors.New("b")
	b.Queue(TickCompleted{Tick: 1})
	b.Queue(TickCompleted{Tick: 2})

	delivered := 0
	err := b.ProcessEvents(func(id SystemID, ev Event) error {
		delivered++
		if id == SystemPhysics {
			return errA
		}
		if ev.(TickCompleted).Tick == 2 {
			return errB
		}
		return nil
	})
	if !errors.Is(err, errA) {
		t.Fatalf("first error = %v, want %v", err, errA)
	}
	if delivered != 4 {
		t.Errorf("delivered = %d, want 4", delivered)
	}
	errs := b.LastErrors()
	if len(errs) != 3 {
		t.Fatalf("LastErrors len = %d, want 3", len(errs))
	}
	var de *DispatchError
	if !errors.As(errs[2], &de) || de.System != SystemCombat || !errors.Is(de, errB) {
		t.Errorf("third error = %v", errs[2])
	}
	if len(b.History()) != 2 {
		t.Errorf("failed events must still be recorded in history")
	}
}

func TestHistoryLimitDropsOldest(t *testing.T) {
	t.Parallel()
	b := NewBus(2)
	for i := uint64(1); i <= 5; i++ {
		b.Queue(TickCompleted{Tick: i})
	}
	if err := b.ProcessEvents(func(SystemID, Event) error { return nil }); err != nil {
		t.Fatal(err)
	}
	h := b.History()
	if len(h) != 2 {
		t.Fatalf("history len = %d, want 2", len(h))
	}
	if h[0].(TickCompleted).Tick != 4 || h[1].(TickCompleted).Tick != 5 {
		t.Errorf("history = %v, want ticks 4 and 5", h)
	}
}

func TestEventFamilies(t *testing.T) {
	t.Parallel()
	cases := []struct {
		ev   Event
		want Family
	}{
		{MoveShip{}, FamilyPlayerCommand},
		{AttackTarget{}, FamilyPlayerCommand},
		{ResourceShortage{}, FamilySimulation},
		{CombatResolved{}, FamilySimulation},
		{GameLoaded{}, FamilyStateChanged},
	}
	for _, c := range cases {
		if got := c.ev.Family(); got != c.want {
			t.Errorf("%s family = %s, want %s", c.ev.Name(), got, c.want)
		}
	}
}
