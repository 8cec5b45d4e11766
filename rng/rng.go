// Package rng implements the xorshift generator and multinomial sampler
// used to draw tokens from a model's output distribution during
// generation.
package rng

// State is an explicit, mutable xorshift64* generator state. Callers own
// the seed; there is no global/shared state.
type State uint64

// NewState seeds a generator. A zero seed is valid input but produces a
// degenerate (all-zero) stream, same as the reference xorshift; callers
// should pick a nonzero seed.
func NewState(seed uint64) *State {
	s := State(seed)
	return &s
}

// Uint32 advances the generator and returns the next 32-bit draw.
func (s *State) Uint32() uint32 {
	x := uint64(*s)
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	*s = State(x)
	return uint32((x * 0x2545F4914F6CDD1D) >> 32)
}

// Float32 returns a draw uniform on [0,1).
func (s *State) Float32() float32 {
	return float32(s.Uint32()>>8) / 16777216.0
}

// SampleMultinomial draws an index from probs (which must sum to ~1)
// using coin, a uniform draw on [0,1) — typically from Float32. Walks
// the CDF and falls back to the last index if rounding error makes the
// CDF overrun before coin is consumed, so it always returns a valid
// index.
func SampleMultinomial(probs []float32, coin float32) int {
	var cdf float32
	for i, p := range probs {
		cdf += p
		if coin < cdf {
			return i
		}
	}
	return len(probs) - 1
}
