package store

import (
	"fmt"

	"github.com/stellardominion/engine/internal/core/simerr"
)

// Sequence hands out monotonically increasing ids. Unlike a generational
// pool there is no free list: an id handed out once is never handed out again,
// even after the entity behind it is removed. Once the largest id has been
// handed out, Next fails with simerr.ErrOverflow instead of wrapping.
type Sequence[K ~uint32] struct {
	next  K
	spent bool
}

// Next returns the next id and advances the sequence.
func (s *Sequence[K]) Next() (K, error) {
	if s.spent {
		return 0, fmt.Errorf("id sequence exhausted: %w", simerr.ErrOverflow)
	}
	id := s.next
	if id == ^K(0) {
		s.spent = true
	} else {
		s.next++
	}
	return id, nil
}

// Peek returns the id the next call to Next will hand out.
func (s *Sequence[K]) Peek() K { return s.next }

// Exhausted reports whether every id has been handed out.
func (s *Sequence[K]) Exhausted() bool { return s.spent }

// Reset positions the sequence so that Next returns at least floor and never
// an id at or below any of the given live ids.
func (s *Sequence[K]) Reset(floor K, live []K) {
	next, spent := floor, false
	for _, id := range live {
		if id < next {
			continue
		}
		if id == ^K(0) {
			next, spent = id, true
			break
		}
		next = id + 1
	}
	s.next, s.spent = next, spent
}
