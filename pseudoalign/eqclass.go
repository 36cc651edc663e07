package pseudoalign

import (
	"sort"
	"sync"

	farm "github.com/dgryski/go-farm"
)

// EqClassId is a dense id assigned to a distinct, sorted, duplicate-free
// color set (spec.md Data Model, "Equivalence class").
type EqClassId uint32

const nEqClassShard = 256

// Summarizer interns color sets into dense EqClassIds. It is the single
// shared mutable structure during shard assembly (spec.md 5, "Shared mutable
// state"): intern must be linearizable. It is implemented as a striped map,
// the same sharding idea as the teacher's kmerIndex (256-way, hashed), traded
// here for a plain sync.Mutex per shard since eq-class cardinality is orders
// of magnitude smaller than the kmer count the teacher's index holds.
type Summarizer struct {
	mu        [nEqClassShard]sync.Mutex
	byKey     [nEqClassShard]map[string]EqClassId
	classes   []Colors // indexed by EqClassId; guarded by classesMu
	classesMu sync.Mutex
}

// NewSummarizer creates an empty Summarizer.
func NewSummarizer() *Summarizer {
	s := &Summarizer{}
	for i := range s.byKey {
		s.byKey[i] = map[string]EqClassId{}
	}
	return s
}

func shardOf(key string) int {
	return int(farm.Hash64([]byte(key)) % nEqClassShard)
}

// Intern returns the dense EqClassId for the given color set, sorting and
// deduplicating it first. The same input (by value) always maps to the same
// id; concurrent calls are safe per spec.md 5.
func (s *Summarizer) Intern(ids []uint32, width ColorWidth) EqClassId {
	sorted := append([]uint32(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := 0
	for i, v := range sorted {
		if i == 0 || sorted[n-1] != v {
			sorted[n] = v
			n++
		}
	}
	sorted = sorted[:n]
	c := Colors{Width: width, IDs: sorted}
	key := c.key()

	shard := shardOf(key)
	s.mu[shard].Lock()
	if id, ok := s.byKey[shard][key]; ok {
		s.mu[shard].Unlock()
		return id
	}
	s.mu[shard].Unlock()

	// Slow path: assign a new dense id under the global classes lock. Two
	// goroutines can race to this point for the same key; the byKey
	// check-and-set below after acquiring the shard lock resolves the race
	// without ever handing out two ids for one key.
	s.mu[shard].Lock()
	defer s.mu[shard].Unlock()
	if id, ok := s.byKey[shard][key]; ok {
		return id
	}
	s.classesMu.Lock()
	id := EqClassId(len(s.classes))
	s.classes = append(s.classes, c)
	s.classesMu.Unlock()
	s.byKey[shard][key] = id
	return id
}

// Colors returns the color set for a previously interned EqClassId.
func (s *Summarizer) Colors(id EqClassId) Colors {
	s.classesMu.Lock()
	defer s.classesMu.Unlock()
	return s.classes[id]
}

// Len returns the number of distinct eq-classes interned so far.
func (s *Summarizer) Len() int {
	s.classesMu.Lock()
	defer s.classesMu.Unlock()
	return len(s.classes)
}

// All returns every interned color set, indexed by EqClassId. Used by
// persist.go to serialize eq_classes.bin.
func (s *Summarizer) All() []Colors {
	s.classesMu.Lock()
	defer s.classesMu.Unlock()
	out := make([]Colors, len(s.classes))
	copy(out, s.classes)
	return out
}
