package explore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveWallCap(t *testing.T) {
	tests := []struct {
		name string
		rng  float64
		want int
	}{
		{name: "range 10", rng: 10, want: 10},
		{name: "range 18", rng: 18, want: 11},
		{name: "range 30", rng: 30, want: 11},
		{name: "range 50", rng: 50, want: 12},
		{name: "tiny range stays above floor", rng: 0.5, want: 5},
		{name: "huge range hits ceiling", rng: 1e9, want: 20},
		{name: "zero range", rng: 0, want: 4},
		{name: "negative range", rng: -5, want: 4},
		{name: "nan range", rng: math.NaN(), want: 4},
		{name: "infinite range", rng: math.Inf(1), want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdaptiveWallCap(tt.rng))
		})
	}
}

func TestAdaptiveWallCapMonotonic(t *testing.T) {
	prev := AdaptiveWallCap(1)
	for rng := 2.0; rng <= 64.0; rng++ {
		cur := AdaptiveWallCap(rng)
		assert.GreaterOrEqual(t, cur, prev, "cap decreased at range %.0f", rng)
		prev = cur
	}
}

func TestInitialWallStep(t *testing.T) {
	tests := []struct {
		name string
		rng  float64
		want float64
	}{
		{name: "small range clamps up", rng: 5, want: 8},
		{name: "mid range divides", rng: 24, want: 16},
		{name: "large range clamps down", rng: 100, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, initialWallStep(tt.rng), 1e-9)
		})
	}
}

func TestWallCollisionStopsAtSizeWall(t *testing.T) {
	// Only rate factors at or above 18 compress. Seeded at 34 with a
	// floor of 10, the first stride is (34-10)/1.5 = 16: the walk lands
	// on 18, overshoots into the wall, and the decayed retries keep
	// colliding until the adaptive cap fires. The best point must be
	// the lowest compressing one, 18.
	enc := &fakeEncoder{sizeFor: func(p float64) int64 {
		if p >= 18 {
			return 900
		}
		return 1100
	}}
	meter := &fakeMeter{qualityFor: saturatingQuality(22)}

	cfg := PreciseQualityMatchCompressConfig(34)
	c, err := newTestContext(cfg, 1000, enc, meter)
	require.NoError(t, err)

	res, err := c.FineSearch(context.Background(), 34)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.InDelta(t, 18.0, res.OptimalParam, 1e-9)
	assert.True(t, res.CompressesTotal)
	assert.True(t, res.Pass)
	assert.Less(t, res.OutputSize, res.InputSize)
}

func TestWallCollisionQualityBelongsToChosenPoint(t *testing.T) {
	// Quality is only measurable at rate factors of 20 and above, but
	// the size wall pins the walk at 18. The result must not carry a
	// quality value measured at some earlier parameter; with the
	// threshold enforced the run fails closed instead.
	enc := &fakeEncoder{sizeFor: func(p float64) int64 {
		if p >= 18 {
			return 900
		}
		return 1100
	}}
	meter := &fakeMeter{
		qualityFor:      func(float64) float64 { return 0.93 },
		unmeasurableFor: func(p float64) bool { return p < 20 },
	}

	c, err := newTestContext(PreciseQualityMatchCompressConfig(34), 1000, enc, meter)
	require.NoError(t, err)

	wall, err := c.wallCollisionSearch(context.Background(), 34, 10, 51)
	require.NoError(t, err)
	require.NotNil(t, wall)
	assert.InDelta(t, 18.0, wall.param, 1e-9)
	assert.Nil(t, wall.quality)

	res, err := c.FineSearch(context.Background(), 34)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 18.0, res.OptimalParam, 1e-9)
	assert.False(t, res.HasSSIM)
	assert.False(t, res.Pass)
	assert.Equal(t, "quality unmeasurable", res.FailReason)
}

func TestWallCollisionBoundaryIsSuccess(t *testing.T) {
	// Everything compresses: the walk reaches the floor and stops
	// there. Hitting the boundary while still compressing is a valid
	// outcome, not a failure.
	enc := &fakeEncoder{sizeFor: func(float64) int64 { return 800 }}
	meter := &fakeMeter{qualityFor: saturatingQuality(22)}

	c, err := newTestContext(PreciseQualityMatchCompressConfig(34), 1000, enc, meter)
	require.NoError(t, err)

	res, err := c.FineSearch(context.Background(), 34)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.InDelta(t, 10.0, res.OptimalParam, 1e-9)
	assert.True(t, res.Pass)
}

func TestWallCollisionNeverReturnsNonCompressing(t *testing.T) {
	// The chosen point must compress no matter where the walls fall.
	cutoffs := []float64{12, 20, 33, 45}
	for _, cutoff := range cutoffs {
		enc := &fakeEncoder{sizeFor: func(p float64) int64 {
			if p >= cutoff {
				return 900
			}
			return 1050
		}}
		meter := &fakeMeter{qualityFor: saturatingQuality(22)}
		c, err := newTestContext(PreciseQualityMatchCompressConfig(40), 1000, enc, meter)
		require.NoError(t, err)

		res, err := c.FineSearch(context.Background(), 40)
		require.NoError(t, err)
		require.NotNil(t, res)
		if res.Pass {
			assert.Lessf(t, res.OutputSize, res.InputSize,
				"cutoff %.0f: accepted point does not compress", cutoff)
		}
	}
}

func TestWallCollisionEncoderFailure(t *testing.T) {
	enc := &fakeEncoder{failAll: true}
	c, err := newTestContext(PreciseQualityMatchCompressConfig(34), 1000, enc, nil)
	require.NoError(t, err)

	_, err = c.wallCollisionSearch(context.Background(), 34, 10, 51)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodeFailed)
}
