package system

import (
	"sort"
	"time"

	"github.com/stellardominion/engine/internal/core/event"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner[W any] struct {
	systems []System[W]
	sorted  bool
	errs    []error
}

func NewRunner[W any]() *Runner[W] {
	return &Runner[W]{
		systems: make([]System[W], 0, 16),
	}
}

func (r *Runner[W]) Register(s System[W]) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once. A failing system does not stop the ones after
// it; the first error is returned and Errors reports all of them.
func (r *Runner[W]) Tick(w W, dt time.Duration, bus *event.Bus) error {
	r.ensureSorted()
	r.errs = r.errs[:0]
	for _, s := range r.systems {
		if err := s.Update(w, dt, bus); err != nil {
			r.errs = append(r.errs, &UpdateError{System: s.ID(), Err: err})
		}
	}
	if len(r.errs) > 0 {
		return r.errs[0]
	}
	return nil
}

// Errors returns the update errors of the most recent Tick.
func (r *Runner[W]) Errors() []error {
	return append([]error(nil), r.errs...)
}

// Order returns the system ids in execution order.
func (r *Runner[W]) Order() []event.SystemID {
	r.ensureSorted()
	ids := make([]event.SystemID, len(r.systems))
	for i, s := range r.systems {
		ids[i] = s.ID()
	}
	return ids
}

func (r *Runner[W]) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}

// UpdateError wraps a failure returned from System.Update.
type UpdateError struct {
	System event.SystemID
	Err    error
}

func (e *UpdateError) Error() string { return e.System.String() + " update: " + e.Err.Error() }
func (e *UpdateError) Unwrap() error { return e.Err }
