package store

import "sort"

// Ordered is a typed id→value store whose iteration order is ascending id.
// Map iteration order is randomized in Go, so every simulation walk goes
// through Each/Values to stay deterministic.
type Ordered[K ~uint32, V any] struct {
	data map[K]*V
	keys []K // ascending
}

func NewOrdered[K ~uint32, V any]() *Ordered[K, V] {
	return &Ordered[K, V]{
		data: make(map[K]*V, 64),
		keys: make([]K, 0, 64),
	}
}

// Set inserts or replaces the value stored under id.
func (s *Ordered[K, V]) Set(id K, v *V) {
	if _, ok := s.data[id]; !ok {
		i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= id })
		s.keys = append(s.keys, 0)
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = id
	}
	s.data[id] = v
}

func (s *Ordered[K, V]) Get(id K) (*V, bool) {
	v, ok := s.data[id]
	return v, ok
}

func (s *Ordered[K, V]) Has(id K) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Ordered[K, V]) Remove(id K) {
	if _, ok := s.data[id]; !ok {
		return
	}
	delete(s.data, id)
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= id })
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
}

func (s *Ordered[K, V]) Len() int {
	return len(s.keys)
}

// Keys returns a copy of the ids in ascending order.
func (s *Ordered[K, V]) Keys() []K {
	out := make([]K, len(s.keys))
	copy(out, s.keys)
	return out
}

// Each visits every entry in ascending id order. fn must not add or remove
// entries.
func (s *Ordered[K, V]) Each(fn func(K, *V)) {
	for _, id := range s.keys {
		fn(id, s.data[id])
	}
}

// Reset drops every entry.
func (s *Ordered[K, V]) Reset() {
	s.data = make(map[K]*V, 64)
	s.keys = s.keys[:0]
}
