package calibrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandedOffset(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  float64
	}{
		{name: "far more efficient", ratio: 0.60, want: 4.0},
		{name: "band edge 0.70", ratio: 0.70, want: 3.5},
		{name: "moderately efficient", ratio: 0.75, want: 3.5},
		{name: "band edge 0.80", ratio: 0.80, want: 3.0},
		{name: "slightly efficient", ratio: 0.85, want: 3.0},
		{name: "band edge 0.90", ratio: 0.90, want: 2.5},
		{name: "near parity", ratio: 0.98, want: 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, bandedOffset(tt.ratio), 1e-9)
		})
	}
}

func TestMapperNoAnchors(t *testing.T) {
	m := NewMapper(3.8, 10, 51)
	mapped, conf := m.Map(30)
	assert.InDelta(t, 33.8, mapped, 1e-9)
	assert.InDelta(t, 0.5, conf, 1e-9)
}

func TestMapperOneAnchor(t *testing.T) {
	// Ratio 0.60: the precise backend produced 60% of the fast
	// backend's size at the same nominal rate factor, so the translated
	// parameter moves by the widest band.
	m := NewMapper(3.8, 10, 51)
	m.AddAnchor(AnchorPoint{Param: 20, SizeFast: 1000, SizePrecise: 600})
	require.Equal(t, 1, m.AnchorCount())

	mapped, conf := m.Map(30)
	assert.InDelta(t, 34.0, mapped, 1e-9)
	assert.InDelta(t, 0.75, conf, 1e-9)
}

func TestMapperTwoAnchorsInterpolates(t *testing.T) {
	m := NewMapper(3.8, 10, 51)
	m.AddAnchor(AnchorPoint{Param: 18, SizeFast: 1000, SizePrecise: 600}) // offset 4.0
	m.AddAnchor(AnchorPoint{Param: 22, SizeFast: 1000, SizePrecise: 950}) // offset 2.5

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "at first anchor", p: 18, want: 18 + 4.0},
		{name: "midway", p: 20, want: 20 + 3.25},
		{name: "at second anchor", p: 22, want: 22 + 2.5},
		{name: "below first clamps t to zero", p: 10, want: 10 + 4.0},
		// t = (30-18)/4 = 3.0 clamps to 1.5: offset 4.0 + 1.5*(-1.5).
		{name: "beyond second clamps extrapolation", p: 30, want: 30 + 1.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped, conf := m.Map(tt.p)
			assert.InDelta(t, tt.want, mapped, 1e-9)
			assert.InDelta(t, 0.85, conf, 1e-9)
		})
	}
}

func TestMapperOutputClamped(t *testing.T) {
	m := NewMapper(10.0, 10, 51)
	mapped, _ := m.Map(50)
	assert.InDelta(t, 51.0, mapped, 1e-9)

	m = NewMapper(-20.0, 10, 51)
	mapped, _ = m.Map(15)
	assert.InDelta(t, 10.0, mapped, 1e-9)
}

func TestMapperCoincidentAnchors(t *testing.T) {
	m := NewMapper(3.8, 10, 51)
	m.AddAnchor(AnchorPoint{Param: 20, SizeFast: 1000, SizePrecise: 600}) // offset 4.0
	m.AddAnchor(AnchorPoint{Param: 20, SizeFast: 1000, SizePrecise: 850}) // offset 3.0

	mapped, _ := m.Map(25)
	assert.InDelta(t, 25+3.5, mapped, 1e-9)
}

func TestAnchorPointSizeRatio(t *testing.T) {
	assert.InDelta(t, 0.6, AnchorPoint{SizeFast: 1000, SizePrecise: 600}.SizeRatio(), 1e-9)
	// A zero fast size cannot yield a ratio; parity is the safe answer.
	assert.InDelta(t, 1.0, AnchorPoint{SizeFast: 0, SizePrecise: 600}.SizeRatio(), 1e-9)
}
