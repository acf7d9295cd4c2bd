// Package rng provides the deterministic pseudo-random generator behind every
// stochastic draw in a simulation run. One seeded instance per run; reusing
// the seed reproduces the run bit for bit.
package rng

import "math"

// Rand is an xorshift64* generator with 64 bits of state. Not safe for
// concurrent use; the coordinator serializes all access.
type Rand struct {
	state uint64
	spare float64 // cached second Box-Muller variate
	has   bool
}

// New returns a generator seeded with seed. A zero seed is remapped to a fixed
// non-zero constant, since xorshift cannot leave the zero state.
func New(seed uint64) *Rand {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &Rand{state: seed}
}

// Uint64 returns the next raw 64-bit value.
func (r *Rand) Uint64() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// Float64 returns a uniform draw in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint64()>>11) / float64(1<<53)
}

// IntN returns a uniform draw in [0, n). n must be positive.
func (r *Rand) IntN(n int64) int64 {
	return int64(r.Float64() * float64(n))
}

// Range returns a uniform draw in [lo, hi].
func (r *Rand) Range(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// Norm returns a standard normal draw via Box-Muller. Each transform yields a
// pair; the second variate is cached so draws stay in lockstep with the state.
func (r *Rand) Norm() float64 {
	if r.has {
		r.has = false
		return r.spare
	}
	var u1 float64
	for u1 = r.Float64(); u1 == 0; u1 = r.Float64() {
	}
	u2 := r.Float64()
	mag := math.Sqrt(-2 * math.Log(u1))
	r.spare = mag * math.Sin(2*math.Pi*u2)
	r.has = true
	return mag * math.Cos(2*math.Pi*u2)
}
