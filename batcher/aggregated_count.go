package batcher

import "clipshare/models"

// AggregatedCount maps short codes to hits not yet written to the store.
type AggregatedCount map[models.ShortCode]uint64

func (a AggregatedCount) Add(code models.ShortCode, delta uint64) {
	if delta == 0 {
		return
	}
	a[code] += delta
}

// Merge adds every delta of other into a. Existing keys are summed, never replaced.
func (a AggregatedCount) Merge(other AggregatedCount) {
	for code, delta := range other {
		a.Add(code, delta)
	}
}

// Total is the number of hits across all codes.
func (a AggregatedCount) Total() uint64 {
	var n uint64
	for _, delta := range a {
		n += delta
	}
	return n
}

func (a AggregatedCount) Clone() AggregatedCount {
	out := make(AggregatedCount, len(a))
	for code, delta := range a {
		out[code] = delta
	}
	return out
}
