// Package rng supplies the library's pseudo-random draws. The source is
// seeded exactly once, at process start. It is not cryptographically secure;
// its job is uniformity, in particular for 96-bit STUN transaction IDs.
package rng

import (
	"math/rand"
	"sync"
	"time"
)

var (
	mu     sync.Mutex
	source = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Uint64 returns a uniform sample from the closed interval [lo, hi].
func Uint64(lo, hi uint64) uint64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := hi - lo + 1
	mu.Lock()
	defer mu.Unlock()
	if span == 0 {
		// Full range requested.
		return source.Uint64()
	}
	// Reject draws from the incomplete top slice of the range so that every
	// value in [lo, hi] is equally likely.
	max := (^uint64(0)/span)*span - 1
	for {
		v := source.Uint64()
		if v <= max {
			return lo + v%span
		}
	}
}

// Uint32 returns a uniform sample from the closed interval [lo, hi].
func Uint32(lo, hi uint32) uint32 {
	return uint32(Uint64(uint64(lo), uint64(hi)))
}

// Uint16 returns a uniform sample from the closed interval [lo, hi].
func Uint16(lo, hi uint16) uint16 {
	return uint16(Uint64(uint64(lo), uint64(hi)))
}

// Fill overwrites p with uniformly random bytes.
func Fill(p []byte) {
	mu.Lock()
	defer mu.Unlock()
	for i := range p {
		p[i] = byte(source.Intn(256))
	}
}
