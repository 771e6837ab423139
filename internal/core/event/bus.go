package event

import "fmt"

// DispatchError records one failed handler invocation.
type DispatchError struct {
	System SystemID
	Event  Event
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s handling %s: %v", e.System, e.Event.Name(), e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// DispatchFunc delivers one event to one subscribed system.
type DispatchFunc func(SystemID, Event) error

type subscriber struct {
	id       SystemID
	families [3]bool
}

// Bus is a two-phase event bus. Queue only appends; ProcessEvents drains the
// batch that was pending when it was called. Events queued while a batch is
// being dispatched wait for the next drain. Not safe for concurrent use; the
// game goroutine owns it.
type Bus struct {
	pending      []Event
	subscribers  []subscriber
	history      []Event
	historyLimit int
	lastErrors   []error
}

// NewBus creates a bus whose history keeps at most historyLimit events.
// Zero keeps everything.
func NewBus(historyLimit int) *Bus {
	return &Bus{
		pending:      make([]Event, 0, 256),
		subscribers:  make([]subscriber, 0, 16),
		historyLimit: historyLimit,
	}
}

// Subscribe registers interest of system id in family fam. The first call for
// a system fixes its dispatch position.
func (b *Bus) Subscribe(id SystemID, fam Family) {
	for i := range b.subscribers {
		if b.subscribers[i].id == id {
			b.subscribers[i].families[fam] = true
			return
		}
	}
	s := subscriber{id: id}
	s.families[fam] = true
	b.subscribers = append(b.subscribers, s)
}

// Subscribers returns the subscribed systems in dispatch order.
func (b *Bus) Subscribers() []SystemID {
	out := make([]SystemID, len(b.subscribers))
	for i, s := range b.subscribers {
		out[i] = s.id
	}
	return out
}

// Queue appends ev to the pending queue.
func (b *Bus) Queue(ev Event) {
	b.pending = append(b.pending, ev)
}

// Pending returns the number of queued events not yet drained.
func (b *Bus) Pending() int { return len(b.pending) }

// ProcessEvents drains the pending batch. Every event goes to every system
// subscribed to its family, events in FIFO order and systems in registration
// order. A failing handler does not stop the rest of the batch. All drained
// events are appended to the history afterwards. The first error is returned;
// LastErrors reports all of them.
func (b *Bus) ProcessEvents(dispatch DispatchFunc) error {
	batch := b.pending
	b.pending = make([]Event, 0, cap(batch))
	b.lastErrors = b.lastErrors[:0]

	for _, ev := range batch {
		fam := ev.Family()
		for _, s := range b.subscribers {
			if !s.families[fam] {
				continue
			}
			if err := dispatch(s.id, ev); err != nil {
				b.lastErrors = append(b.lastErrors, &DispatchError{System: s.id, Event: ev, Err: err})
			}
		}
	}

	b.history = append(b.history, batch...)
	if b.historyLimit > 0 && len(b.history) > b.historyLimit {
		drop := len(b.history) - b.historyLimit
		b.history = append(b.history[:0], b.history[drop:]...)
	}

	if len(b.lastErrors) > 0 {
		return b.lastErrors[0]
	}
	return nil
}

// LastErrors returns the handler errors of the most recent drain.
func (b *Bus) LastErrors() []error {
	return append([]error(nil), b.lastErrors...)
}

// History returns a copy of the processed events, oldest first.
func (b *Bus) History() []Event {
	return append([]Event(nil), b.history...)
}

// Reset discards pending events and history. Subscriptions survive.
func (b *Bus) Reset() {
	b.pending = b.pending[:0]
	b.history = b.history[:0]
	b.lastErrors = b.lastErrors[:0]
}
