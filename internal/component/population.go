package component

// WorkerAllocation partitions a planet's population into labor buckets.
// The buckets always sum to the population, and Unassigned holds at least a
// tenth of it (rounded up: 1000 people need 100 idle, 999 need 100 too).
type WorkerAllocation struct {
	Agriculture int32 `json:"agriculture" yaml:"agriculture"`
	Mining      int32 `json:"mining" yaml:"mining"`
	Industry    int32 `json:"industry" yaml:"industry"`
	Research    int32 `json:"research" yaml:"research"`
	Military    int32 `json:"military" yaml:"military"`
	Unassigned  int32 `json:"unassigned" yaml:"unassigned"`
}

// Sum returns the bucket total widened to int64.
func (a WorkerAllocation) Sum() int64 {
	return int64(a.Agriculture) + int64(a.Mining) + int64(a.Industry) +
		int64(a.Research) + int64(a.Military) + int64(a.Unassigned)
}

// HasNegative reports whether any bucket is below zero.
func (a WorkerAllocation) HasNegative() bool {
	return a.Agriculture < 0 || a.Mining < 0 || a.Industry < 0 ||
		a.Research < 0 || a.Military < 0 || a.Unassigned < 0
}

// MinUnassigned returns the idle reserve a population of p requires.
func MinUnassigned(p int32) int32 {
	return int32((int64(p) + 9) / 10)
}

// ReserveHeld reports whether Unassigned meets the reserve for population p.
func (a WorkerAllocation) ReserveHeld(p int32) bool {
	return int64(a.Unassigned)*10 >= int64(p)
}

// assignedBuckets returns pointers to the assigned buckets in the order
// workers are drawn from when a population shrinks.
func (a *WorkerAllocation) assignedBuckets() [5]*int32 {
	return [5]*int32{&a.Military, &a.Research, &a.Industry, &a.Mining, &a.Agriculture}
}

// Resized returns the allocation adjusted to a new population p. Growth joins
// Unassigned. Shrinkage is drawn from Unassigned first, then from the
// assigned buckets (military, research, industry, mining, agriculture). The
// idle reserve is then restored by moving workers back to Unassigned in the
// same bucket order. The receiver must already sum to its old population.
func (a WorkerAllocation) Resized(p int32) WorkerAllocation {
	out := a
	diff := int64(p) - a.Sum()
	if diff >= 0 {
		out.Unassigned += int32(diff)
	} else {
		need := -diff
		take := min(need, int64(out.Unassigned))
		out.Unassigned -= int32(take)
		need -= take
		for _, b := range out.assignedBuckets() {
			if need == 0 {
				break
			}
			take := min(need, int64(*b))
			*b -= int32(take)
			need -= take
		}
	}
	short := int64(MinUnassigned(p)) - int64(out.Unassigned)
	for _, b := range out.assignedBuckets() {
		if short <= 0 {
			break
		}
		take := min(short, int64(*b))
		*b -= int32(take)
		out.Unassigned += int32(take)
		short -= take
	}
	return out
}
