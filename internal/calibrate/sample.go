package calibrate

import (
	"context"
	"time"

	"github.com/copyleftdev/crfsearch/internal/logging"
)

// Backend encodes a short sample of the input at a nominal rate
// factor, for calibration only.
type Backend interface {
	EncodeSample(ctx context.Context, input string, rateFactor float64, maxDuration time.Duration) (int64, error)
}

// Sampling limits. Anchors are tried in preference order; the first
// pair of successful sample encodes wins.
const (
	SampleMaxDuration = 10 * time.Second
)

var anchorParams = []float64{20.0, 18.0, 22.0}

// QuickCalibrate seeds a mapper from one anchor sampled with both
// backends. Sampling failure is not an error: the mapper simply stays
// on its static offset.
func QuickCalibrate(ctx context.Context, fast, precise Backend, input string, staticOffset, minParam, maxParam float64, log *logging.Logger) *Mapper {
	m := NewMapper(staticOffset, minParam, maxParam)
	if fast == nil || precise == nil {
		return m
	}

	for _, p := range anchorParams {
		fastSize, err := fast.EncodeSample(ctx, input, p, SampleMaxDuration)
		if err != nil {
			if log != nil {
				log.Debug("calibration sample failed on fast backend", map[string]interface{}{
					"param": p,
					"error": err.Error(),
				})
			}
			continue
		}
		preciseSize, err := precise.EncodeSample(ctx, input, p, SampleMaxDuration)
		if err != nil {
			if log != nil {
				log.Debug("calibration sample failed on precise backend", map[string]interface{}{
					"param": p,
					"error": err.Error(),
				})
			}
			continue
		}

		m.AddAnchor(AnchorPoint{Param: p, SizeFast: fastSize, SizePrecise: preciseSize})
		if log != nil {
			log.Info("calibration anchor sampled", map[string]interface{}{
				"param":        p,
				"fast_size":    fastSize,
				"precise_size": preciseSize,
			})
		}
		return m
	}

	if log != nil {
		log.Warn("calibration sampling exhausted, staying on static offset")
	}
	return m
}
