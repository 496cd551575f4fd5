package explore

import (
	"context"
	"math"
)

// EncodeOutput is what one encoder invocation produced.
type EncodeOutput struct {
	// Size is the total output file size in bytes.
	Size int64
	// Path is where the encoder wrote the artifact, for quality
	// measurement against the reference.
	Path string
}

// Encoder is the external encode collaborator. Implementations are
// expected to be idempotent for identical inputs; cache bypass is the
// caller's responsibility, not the port's.
type Encoder interface {
	Encode(ctx context.Context, input string, rateFactor float64, threads int) (EncodeOutput, error)
}

// QualitySource distinguishes a measured quality value from one
// predicted out of a secondary metric.
type QualitySource int

const (
	// SourceActual means the primary metric was measured directly.
	SourceActual QualitySource = iota
	// SourcePredicted means the value was derived from PSNR after the
	// primary metric's strategies all failed.
	SourcePredicted
)

func (s QualitySource) String() string {
	switch s {
	case SourceActual:
		return "actual"
	case SourcePredicted:
		return "predicted"
	default:
		return "unknown"
	}
}

// QualityResult is one quality measurement. Value is in [0,1]; an
// absent result means unknown, which is never treated as passed.
type QualityResult struct {
	Value  float64
	Source QualitySource
	PSNR   float64
	// MSSSIM is the multi-scale reading when the meter produced one;
	// zero means not measured.
	MSSSIM float64
}

// QualityMeter is the external measurement collaborator. It may try
// several strategies in priority order and return the first valid one;
// when every strategy fails it must return ErrUnmeasurable rather than
// a default or guessed value.
type QualityMeter interface {
	Measure(ctx context.Context, reference, candidate string) (QualityResult, error)
}

// PredictedQualityCap bounds PSNR-derived quality so a prediction can
// never claim perfect fidelity.
const PredictedQualityCap = 0.9999

// PredictFromPSNR converts a PSNR reading into a predicted primary
// quality value: min(1 - 10^(-psnr/20), cap).
func PredictFromPSNR(psnr float64) QualityResult {
	v := 1.0 - math.Pow(10, -psnr/20.0)
	if v > PredictedQualityCap {
		v = PredictedQualityCap
	}
	return QualityResult{Value: v, Source: SourcePredicted, PSNR: psnr}
}
