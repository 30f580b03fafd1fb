// Package randutil centralises how the engine derives its random number
// generators so that every call site gets reproducible sequences from a
// single int64 seed.
package randutil

import (
	"hash/fnv"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by
// rand/v2 so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Salted returns a generator derived from seed and a string salt. Scripted
// decision providers use this to give each player an independent stream that
// still replays exactly for a given game seed.
func Salted(seed int64, salt string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(salt))
	u := uint64(seed) ^ h.Sum64()
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Pick returns a uniformly chosen element of items. It panics on an empty
// slice, mirroring how rand.IntN treats a non-positive bound.
func Pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
