package pipeline

import (
	"sort"
	"sync"
)

// PairCount is how often a SPENT/RECEIVED symbol pair was swapped.
type PairCount struct {
	Pair  string
	Count int
}

// PairTracker counts swapped symbol pairs for the process lifetime.
type PairTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPairTracker() *PairTracker {
	return &PairTracker{counts: make(map[string]int)}
}

// Record counts one swap from spent into received.
func (t *PairTracker) Record(spent, received string) {
	t.mu.Lock()
	t.counts[spent+"/"+received]++
	t.mu.Unlock()
}

// Top returns the n most frequent pairs, ties broken by name.
func (t *PairTracker) Top(n int) []PairCount {
	if n <= 0 {
		return nil
	}
	t.mu.Lock()
	out := make([]PairCount, 0, len(t.counts))
	for pair, count := range t.counts {
		out = append(out, PairCount{Pair: pair, Count: count})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pair < out[j].Pair
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
