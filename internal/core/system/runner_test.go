package system

import (
	"errors"
	"testing"
	"time"

	"github.com/stellardominion/engine/internal/core/event"
)

type trace struct{ calls []event.SystemID }

type stub struct {
	id    event.SystemID
	phase Phase
	err   error
}

func (s stub) ID() event.SystemID { return s.id }
func (s stub) Phase() Phase       { return s.phase }
func (s stub) Update(w *trace, _ time.Duration, _ *event.Bus) error {
	w.calls = append(w.calls, s.id)
	return s.err
}

func TestRunnerOrdersByPhaseStable(t *testing.T) {
	t.Parallel()
	r := NewRunner[*trace]()
	r.Register(stub{id: event.SystemTime, phase: PhaseTime})
	r.Register(stub{id: event.SystemCombat, phase: PhaseCombat})
	r.Register(stub{id: event.SystemInput, phase: PhaseInput})
	r.Register(stub{id: event.SystemPhysics, phase: PhasePhysics})
	r.Register(stub{id: event.SystemSave, phase: PhaseTime})

	w := &trace{}
	if err := r.Tick(w, 100*time.Millisecond, event.NewBus(0)); err != nil {
		t.Fatal(err)
	}
	want := []event.SystemID{event.SystemInput, event.SystemPhysics, event.SystemCombat, event.SystemTime, event.SystemSave}
	for i, id := range want {
		if w.calls[i] != id {
			t.Fatalf("call order = %v, want %v", w.calls, want)
		}
	}
}

func TestRunnerContinuesAfterFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := NewRunner[*trace]()
	r.Register(stub{id: event.SystemPhysics, phase: PhasePhysics, err: boom})
	r.Register(stub{id: event.SystemTime, phase: PhaseTime})

	w := &trace{}
	err := r.Tick(w, 0, event.NewBus(0))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var ue *UpdateError
	if !errors.As(err, &ue) || ue.System != event.SystemPhysics {
		t.Errorf("err = %#v, want UpdateError from physics", err)
	}
	if len(w.calls) != 2 {
		t.Errorf("calls = %v, time system must still run", w.calls)
	}
}
