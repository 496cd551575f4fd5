package calibrate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend returns a fixed size per rate factor and can be told
// to fail specific params.
type scriptedBackend struct {
	sizes   map[float64]int64
	failAt  map[float64]bool
	samples []float64
}

func (b *scriptedBackend) EncodeSample(_ context.Context, _ string, p float64, _ time.Duration) (int64, error) {
	b.samples = append(b.samples, p)
	if b.failAt[p] {
		return 0, fmt.Errorf("sample encode failed at %.1f", p)
	}
	return b.sizes[p], nil
}

func TestQuickCalibrateFirstAnchorWins(t *testing.T) {
	fast := &scriptedBackend{sizes: map[float64]int64{20: 1000, 18: 1200, 22: 900}}
	precise := &scriptedBackend{sizes: map[float64]int64{20: 600, 18: 800, 22: 700}}

	m := QuickCalibrate(context.Background(), fast, precise, "in.mkv", 3.8, 10, 51, nil)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.AnchorCount())

	// Only the preferred anchor is sampled once it succeeds.
	assert.Equal(t, []float64{20}, fast.samples)
	assert.Equal(t, []float64{20}, precise.samples)

	// Ratio 600/1000 lands in the widest band.
	mapped, conf := m.Map(30)
	assert.InDelta(t, 34.0, mapped, 1e-9)
	assert.InDelta(t, 0.75, conf, 1e-9)
}

func TestQuickCalibrateFallsThroughFailedAnchors(t *testing.T) {
	fast := &scriptedBackend{
		sizes:  map[float64]int64{18: 1200, 22: 1000},
		failAt: map[float64]bool{20: true},
	}
	precise := &scriptedBackend{
		sizes:  map[float64]int64{22: 850},
		failAt: map[float64]bool{18: true},
	}

	m := QuickCalibrate(context.Background(), fast, precise, "in.mkv", 3.8, 10, 51, nil)
	assert.Equal(t, 1, m.AnchorCount())
	// 20 failed on the fast backend, 18 on the precise one; 22 sticks.
	assert.Equal(t, []float64{20, 18, 22}, fast.samples)
}

func TestQuickCalibrateAllFailStaysStatic(t *testing.T) {
	fail := map[float64]bool{20: true, 18: true, 22: true}
	fast := &scriptedBackend{failAt: fail}
	precise := &scriptedBackend{failAt: fail}

	m := QuickCalibrate(context.Background(), fast, precise, "in.mkv", 5.0, 10, 51, nil)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.AnchorCount())

	mapped, conf := m.Map(30)
	assert.InDelta(t, 35.0, mapped, 1e-9)
	assert.InDelta(t, 0.5, conf, 1e-9)
}

func TestQuickCalibrateNilBackend(t *testing.T) {
	m := QuickCalibrate(context.Background(), nil, nil, "in.mkv", 3.8, 10, 51, nil)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.AnchorCount())
}

func TestPointFromCoarseRatio(t *testing.T) {
	tests := []struct {
		name           string
		ratio          float64
		wantAdjustment float64
		wantConfidence float64
	}{
		{name: "comfortable compression", ratio: 0.60, wantAdjustment: 1.0, wantConfidence: 0.85},
		{name: "modest compression", ratio: 0.97, wantAdjustment: 0.5, wantConfidence: 0.90},
		{name: "barely grew", ratio: 1.02, wantAdjustment: -0.5, wantConfidence: 0.80},
		{name: "grew outright", ratio: 1.20, wantAdjustment: -1.0, wantConfidence: 0.70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := PointFromCoarseRatio(30, tt.ratio)
			assert.InDelta(t, 30.0, pt.Param, 1e-9)
			assert.InDelta(t, tt.wantAdjustment, pt.Adjustment, 1e-9)
			assert.InDelta(t, tt.wantConfidence, pt.Confidence, 1e-9)
		})
	}
}

func TestStaticOffsetTable(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		accel Accelerator
		want  float64
	}{
		{name: "hevc apple", codec: CodecHEVC, accel: AccelApple, want: 5.0},
		{name: "hevc nvidia", codec: CodecHEVC, accel: AccelNvidia, want: 3.8},
		{name: "av1 apple needs no translation", codec: CodecAV1, accel: AccelApple, want: 0.0},
		{name: "av1 amd", codec: CodecAV1, accel: AccelAMD, want: 4.5},
		{name: "unknown pair gets neutral offset", codec: Codec(9), accel: AccelApple, want: 3.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, StaticOffset(tt.codec, tt.accel).Offset, 1e-9)
		})
	}
}

func TestDetectCodec(t *testing.T) {
	tests := []struct {
		name    string
		encoder string
		want    Codec
	}{
		{name: "libx265", encoder: "libx265", want: CodecHEVC},
		{name: "svt av1", encoder: "libsvtav1", want: CodecAV1},
		{name: "aom av1", encoder: "libaom-av1", want: CodecAV1},
		{name: "hardware av1", encoder: "av1_nvenc", want: CodecAV1},
		{name: "unknown defaults to hevc", encoder: "mystery", want: CodecHEVC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCodec(tt.encoder))
		})
	}
}

func TestDetectAccelerator(t *testing.T) {
	tests := []struct {
		name    string
		encoder string
		want    Accelerator
	}{
		{name: "videotoolbox", encoder: "hevc_videotoolbox", want: AccelApple},
		{name: "nvenc", encoder: "hevc_nvenc", want: AccelNvidia},
		{name: "qsv", encoder: "hevc_qsv", want: AccelIntelQSV},
		{name: "amf", encoder: "hevc_amf", want: AccelAMD},
		{name: "vaapi", encoder: "hevc_vaapi", want: AccelVAAPI},
		{name: "empty defaults to apple", encoder: "", want: AccelApple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAccelerator(tt.encoder))
		})
	}
}
