package id

import (
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULID strings. The timestamp part comes from the
// caller (simulation time, not wall time). The entropy is the issue count
// followed by bytes drawn from a PRNG seeded with seed^count, so each id
// depends only on (seed, count, t): a run replayed or resumed from State
// yields the same ids.
//
// The leading count keeps ids issued within the same millisecond
// lexicographically increasing.
type Generator struct {
	mu    sync.Mutex
	seed  int64
	count int64
}

func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed}
}

// New returns a ULID stamped with t. Times before the Unix epoch or past
// the ULID range are clamped to its bounds.
func (g *Generator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var entropy [10]byte
	binary.BigEndian.PutUint64(entropy[:8], uint64(g.count))
	rand.New(rand.NewSource(g.seed ^ g.count)).Read(entropy[8:])

	var id ulid.ULID
	_ = id.SetTime(timestamp(t))
	_ = id.SetEntropy(entropy[:])
	g.count++
	return id.String()
}

func timestamp(t time.Time) uint64 {
	if t.Before(time.Unix(0, 0)) {
		return 0
	}
	if ms := ulid.Timestamp(t); ms <= ulid.MaxTime() {
		return ms
	}
	return ulid.MaxTime()
}

// Reset rewinds the generator to its seed.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
}

// State is the serialized form of a Generator.
type State struct {
	Seed  int64 `json:"seed"`
	Count int64 `json:"count"`
}

func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{Seed: g.seed, Count: g.count}
}

// FromState resumes a generator exactly where State left it.
func FromState(s State) *Generator {
	return &Generator{seed: s.Seed, count: s.Count}
}
