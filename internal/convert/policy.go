// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"math/rand/v2"
	"sync"
	"time"
)

// FaultFunc decides, before a chunk is processed, whether the conversion
// should fail with a data error. chunk is the zero-based chunk index.
type FaultFunc func(chunk int) bool

// DelayFunc returns how long to wait before processing a chunk.
type DelayFunc func(chunk int) time.Duration

// NewRand returns a random source for the random policies. A zero seed
// seeds from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// lockedRand serializes access to a *rand.Rand, which is not safe for
// concurrent use. Policies built from one source may be shared by
// conversions running in parallel.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) uint64n(n uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Uint64N(n)
}

func (l *lockedRand) int64n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

// RandomFault fails each chunk with probability 1/oneIn. oneIn of zero
// never fails.
func RandomFault(r *rand.Rand, oneIn uint64) FaultFunc {
	if oneIn == 0 {
		return NoFault
	}
	lr := &lockedRand{r: r}
	return func(int) bool {
		return lr.uint64n(oneIn) == 0
	}
}

// RandomDelay waits a uniformly random duration in [lo, hi] before
// each chunk.
func RandomDelay(r *rand.Rand, lo, hi time.Duration) DelayFunc {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi <= 0 {
		return NoDelay
	}
	if lo == hi {
		return func(int) time.Duration { return lo }
	}
	lr := &lockedRand{r: r}
	span := int64(hi-lo) + 1
	return func(int) time.Duration {
		return lo + time.Duration(lr.int64n(span))
	}
}

// NoFault never injects a fault.
func NoFault(int) bool { return false }

// NoDelay never waits.
func NoDelay(int) time.Duration { return 0 }

// FaultAt fails exactly when the chunk index equals n.
func FaultAt(n int) FaultFunc {
	return func(chunk int) bool { return chunk == n }
}
