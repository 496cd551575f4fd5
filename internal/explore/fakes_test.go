package explore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// fakeEncoder produces deterministic sizes from a size curve and
// counts port invocations, so tests can assert the cache bounds them.
type fakeEncoder struct {
	sizeFor func(p float64) int64
	calls   int
	failAll bool
}

func (f *fakeEncoder) Encode(_ context.Context, _ string, p float64, _ int) (EncodeOutput, error) {
	if f.failAll {
		return EncodeOutput{}, fmt.Errorf("encoder crashed")
	}
	f.calls++
	return EncodeOutput{
		Size: f.sizeFor(p),
		Path: fmt.Sprintf("out-%.1f.mkv", p),
	}, nil
}

// fakeMeter derives quality from the rate factor embedded in the
// candidate path by the fake encoder. unmeasurableFor marks single
// rate factors the meter cannot rate.
type fakeMeter struct {
	qualityFor      func(p float64) float64
	unmeasurableFor func(p float64) bool
	calls           int
	unmeasurable    bool
}

func (f *fakeMeter) Measure(_ context.Context, _, candidate string) (QualityResult, error) {
	if f.unmeasurable {
		return QualityResult{}, ErrUnmeasurable
	}
	p := paramFromPath(candidate)
	if f.unmeasurableFor != nil && f.unmeasurableFor(p) {
		return QualityResult{}, ErrUnmeasurable
	}
	f.calls++
	return QualityResult{Value: f.qualityFor(p), Source: SourceActual}, nil
}

func paramFromPath(path string) float64 {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "out-"), ".mkv")
	p, _ := strconv.ParseFloat(trimmed, 64)
	return p
}

// linearSizes yields output sizes shrinking as the rate factor grows:
// the input compresses for parameters above the pivot.
func linearSizes(inputSize int64, pivot float64) func(p float64) int64 {
	return func(p float64) int64 {
		ratio := 1.0 + (pivot-p)*0.02
		return int64(float64(inputSize) * ratio)
	}
}

// saturatingQuality climbs toward 1.0 as the rate factor drops and
// flattens below the knee.
func saturatingQuality(knee float64) func(p float64) float64 {
	return func(p float64) float64 {
		if p <= knee {
			return 0.99
		}
		q := 0.99 - (p-knee)*0.004
		if q < 0.5 {
			return 0.5
		}
		return q
	}
}

func newTestContext(cfg Config, inputSize int64, enc Encoder, meter QualityMeter) (*Context, error) {
	return NewContext(cfg, Input{Path: "in.mkv", Size: inputSize}, enc, meter, nil, &TraceRecorder{})
}
