package twostage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/crfsearch/internal/calibrate"
	"github.com/copyleftdev/crfsearch/internal/explore"
)

func TestSearchTwoStage(t *testing.T) {
	// Full pipeline: the fast backend finds its compression boundary,
	// one sampled anchor with size ratio 0.60 translates it by the
	// widest calibration band, and the precise backend's wall walk
	// settles on its own boundary near 18.
	in := explore.Input{Path: "in.mkv", Size: 1000}

	fast := &curveEncoder{prefix: "fast", sizeFor: func(p float64) int64 {
		if p <= 30 {
			return 600
		}
		return 1100
	}}
	precise := &curveEncoder{prefix: "out", sizeFor: func(p float64) int64 {
		if p >= 18 {
			return 900
		}
		return 1100
	}}
	// Coarse quality reads poor, which widens the fine range downward
	// to the configured floor; precise quality is high.
	meter := &prefixMeter{byPrefix: map[string]float64{"fast": 0.85, "out": 0.99}}

	opts := Options{
		Fast:           fast,
		FastSampler:    fixedSampler{size: 1000},
		PreciseSampler: fixedSampler{size: 600},
		StaticOffset:   calibrate.Offset{Offset: 3.8, Tolerance: 0.5},
	}
	cfg := explore.PreciseQualityMatchCompressConfig(18)

	res, err := Search(context.Background(), opts, cfg, in, precise, meter, nil)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Pass)
	assert.Less(t, res.OutputSize, res.InputSize)
	assert.GreaterOrEqual(t, res.OptimalParam, 17.9)
	assert.LessOrEqual(t, res.OptimalParam, 19.0)

	// The confidence's prediction component is the calibration
	// confidence of a single-anchor mapping.
	assert.InDelta(t, 0.75, res.Breakdown.Prediction, 1e-9)
	assert.Greater(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)

	// The fine-phase counters ride on the result so callers can
	// record them without reaching into the context.
	assert.Greater(t, res.Encodes, 0)
	assert.Greater(t, res.Iterations, 0)
}

func TestSearchWithoutFastBackend(t *testing.T) {
	// No fast encoder: the coarse phase is skipped and the fine search
	// runs over the full configured range from the predicted start.
	in := explore.Input{Path: "in.mkv", Size: 1000}
	precise := &curveEncoder{prefix: "out", sizeFor: func(p float64) int64 {
		if p >= 18 {
			return 900
		}
		return 1100
	}}
	meter := &prefixMeter{byPrefix: map[string]float64{"out": 0.99}}

	res, err := Search(context.Background(), Options{}, explore.PreciseQualityMatchCompressConfig(34), in, precise, meter, nil)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Pass)
	assert.Less(t, res.OutputSize, res.InputSize)
	// Static fallback confidence when nothing calibrated.
	assert.InDelta(t, 0.5, res.Breakdown.Prediction, 1e-9)
}

func TestSearchCoarseResultAdjustsStartWithoutAnchors(t *testing.T) {
	// Samplers are absent, so the only calibration signal is how well
	// the coarse phase compressed: ratio 0.60 pushes the start up by
	// one and keeps the derived confidence.
	in := explore.Input{Path: "in.mkv", Size: 1000}
	fast := &curveEncoder{prefix: "fast", sizeFor: func(p float64) int64 {
		if p <= 30 {
			return 600
		}
		return 1100
	}}
	precise := &curveEncoder{prefix: "out", sizeFor: func(p float64) int64 {
		if p >= 18 {
			return 900
		}
		return 1100
	}}
	meter := &prefixMeter{byPrefix: map[string]float64{"fast": 0.85, "out": 0.99}}

	opts := Options{
		Fast:         fast,
		StaticOffset: calibrate.Offset{Offset: 3.8, Tolerance: 0.5},
	}
	res, err := Search(context.Background(), opts, explore.PreciseQualityMatchCompressConfig(18), in, precise, meter, nil)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Pass)
	assert.InDelta(t, 0.85, res.Breakdown.Prediction, 1e-9)
}

func TestSearchNothingCompressesOnPrecise(t *testing.T) {
	in := explore.Input{Path: "in.mkv", Size: 1000}
	precise := &curveEncoder{prefix: "out", sizeFor: func(float64) int64 { return 1100 }}

	res, err := Search(context.Background(), Options{}, explore.PreciseQualityMatchCompressConfig(18), in, precise, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.Pass)
	assert.Equal(t, "no rate factor in range compresses", res.FailReason)
}
