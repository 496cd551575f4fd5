package explore

import (
	"math"
)

// Rate-factor domain and cache-key precision. The key multiplier fixes
// the probe resolution at 0.1 parameter units: two parameters at least
// one step apart always map to different keys, while closer ones may
// collide and deduplicate near-identical probes.
const (
	KeyMultiplier = 10.0
	MaxParamValue = 63.0
	MaxKey        = Key(630)
)

// Step sizes shared by the search primitives, from coarsest to finest.
const (
	StepCoarse = 2.0
	StepMedium = 1.0
	StepFine   = 0.5
	StepMicro  = 0.25
	MinStep    = 0.1
)

// Key is a quantized rate factor used for cache lookups.
type Key int

// Quantize maps a rate factor to its cache key, rounding to the nearest
// step to avoid boundary bias. NaN, infinities, negative values and
// values above the domain ceiling are rejected, never clamped.
func Quantize(p float64) (Key, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, WrapErrorf(ErrInvalidParameter, "non-finite rate factor %v", p).
			WithOperation("Quantize")
	}
	if p < 0 {
		return 0, WrapErrorf(ErrInvalidParameter, "negative rate factor %.3f", p).
			WithOperation("Quantize")
	}
	k := Key(math.Round(p * KeyMultiplier))
	if k > MaxKey {
		return 0, WrapErrorf(ErrInvalidParameter, "rate factor %.3f above domain ceiling %.0f", p, MaxParamValue).
			WithOperation("Quantize")
	}
	return k, nil
}

// Param converts a key back into a rate factor at key precision.
func (k Key) Param() float64 {
	return float64(k) / KeyMultiplier
}

func clampParam(p, lo, hi float64) float64 {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}
