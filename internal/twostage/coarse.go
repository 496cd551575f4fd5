// Package twostage orchestrates the coarse/fine collaborative search:
// a fast approximate backend narrows the range, a calibration step
// translates its boundary into the precise backend's space, and the
// wall-collision search finishes the job there.
package twostage

import (
	"context"
	"math"

	"github.com/copyleftdev/crfsearch/internal/explore"
)

// Coarse-phase tuning. The fast backend is cheap enough for a generous
// iteration cap; its curve model is more conservative than the fine
// phase's (decay 0.5 versus 0.4) because its rate control is noisier.
const (
	coarseDecayFactor  = 0.5
	coarseMaxWallHits  = 4
	coarseMinStep      = 0.5
	coarseStepMin      = 4.0
	coarseStepMax      = 15.0
	coarseAnchorMargin = 5.0
)

// CoarseConfig bounds the coarse phase.
type CoarseConfig struct {
	InitialParam  float64
	MinParam      float64
	MaxParam      float64
	Step          float64
	MaxIterations int
	Threads       int
}

// DefaultCoarseConfig returns the tuned defaults.
func DefaultCoarseConfig() CoarseConfig {
	return CoarseConfig{
		InitialParam:  18.0,
		MinParam:      1.0,
		MaxParam:      51.0,
		Step:          2.0,
		MaxIterations: 500,
	}
}

// CoarseResult is what the fast backend learned.
type CoarseResult struct {
	// BoundaryParam is the highest rate factor that still compressed.
	BoundaryParam float64
	BestSize      int64
	BestQuality   float64
	HasQuality    bool
	Iterations    int
	FoundBoundary bool
	// FineTuned means the walk reached the fine-tuning step before
	// stopping, so the boundary is already tight.
	FineTuned bool
	// SampleInputSize is the reference the coarse sizes compare to.
	SampleInputSize int64
}

// CoarseSearch finds the fast backend's approximate compression
// boundary: three sequential anchor probes to pick a direction, then a
// curve-model walk with decaying steps. When a meter is supplied the
// boundary's quality is measured once at the end.
func CoarseSearch(ctx context.Context, enc explore.Encoder, meter explore.QualityMeter, in explore.Input, cfg CoarseConfig, obs explore.Observer) (*CoarseResult, error) {
	if obs == nil {
		obs = explore.NopObserver{}
	}
	res := &CoarseResult{SampleInputSize: in.Size}
	sizes := explore.NewCache[int64]()
	paths := explore.NewCache[string]()

	probe := func(p float64) (int64, bool, error) {
		k, err := explore.Quantize(p)
		if err != nil {
			return 0, false, err
		}
		if s, ok := sizes.Get(k); ok {
			return s, true, nil
		}
		out, err := enc.Encode(ctx, in.Path, k.Param(), cfg.Threads)
		if err != nil {
			return 0, false, err
		}
		sizes.Insert(k, out.Size)
		paths.Insert(k, out.Path)
		res.Iterations++
		obs.Probe(explore.ProbeEvent{
			Phase:      "coarse",
			Param:      k.Param(),
			Size:       out.Size,
			Compresses: out.Size < in.Size,
		})
		return out.Size, false, nil
	}

	// Anchor probes: the predicted parameter when it sits comfortably
	// inside the range, otherwise midrange; then both extremes.
	anchor := cfg.InitialParam
	if anchor < cfg.MinParam+coarseAnchorMargin || anchor > cfg.MaxParam-coarseAnchorMargin {
		anchor = (cfg.MinParam + cfg.MaxParam) / 2.0
	}

	obs.Phase(explore.PhaseEvent{Phase: "coarse", Note: "anchor probes"})

	anchorSize, _, err := probe(anchor)
	if err != nil {
		return nil, err
	}

	var lo, hi float64
	if anchorSize < in.Size {
		res.BoundaryParam = anchor
		res.BestSize = anchorSize
		res.FoundBoundary = true
		lo, hi = anchor, cfg.MaxParam

		if maxSize, _, err := probe(cfg.MaxParam); err == nil && maxSize < in.Size && maxSize < anchorSize {
			res.BoundaryParam = cfg.MaxParam
			res.BestSize = maxSize
		}
	} else {
		lo, hi = cfg.MinParam, anchor
		if minSize, _, err := probe(cfg.MinParam); err == nil && minSize < in.Size {
			res.BoundaryParam = cfg.MinParam
			res.BestSize = minSize
			res.FoundBoundary = true
		}
	}

	measureBoundary := func() {
		if meter == nil || !res.FoundBoundary {
			return
		}
		k, err := explore.Quantize(res.BoundaryParam)
		if err != nil {
			return
		}
		path, ok := paths.Get(k)
		if !ok || path == "" {
			return
		}
		if q, err := meter.Measure(ctx, in.Path, path); err == nil {
			res.BestQuality = q.Value
			res.HasQuality = true
		}
	}

	if hi-lo <= 2.0*cfg.Step {
		measureBoundary()
		return res, nil
	}

	rng := hi - lo
	initialStep := clamp(rng/2.0, coarseStepMin, coarseStepMax)
	step := initialStep
	wallHits := 0

	if res.FoundBoundary {
		// Walk upward for the highest rate factor that still
		// compresses.
		last := res.BoundaryParam
		lastSize := res.BestSize
		cur := last + step
		for cur <= cfg.MaxParam && res.Iterations < cfg.MaxIterations {
			size, _, err := probe(cur)
			if err != nil {
				break
			}
			if size < in.Size {
				last, lastSize = cur, size
				cur += step
				continue
			}
			wallHits++
			if wallHits >= coarseMaxWallHits {
				break
			}
			curve := initialStep * math.Pow(coarseDecayFactor, float64(wallHits))
			if curve < 1.0 {
				step = coarseMinStep
				res.FineTuned = true
			} else {
				step = curve
			}
			cur = last + step
		}
		res.BoundaryParam = last
		res.BestSize = lastSize
	} else {
		// Walk downward for the first compressing point.
		cur := hi - step
		for cur >= cfg.MinParam && res.Iterations < cfg.MaxIterations {
			size, _, err := probe(cur)
			if err != nil {
				break
			}
			if size < in.Size {
				res.BoundaryParam = cur
				res.BestSize = size
				res.FoundBoundary = true
				break
			}
			wallHits++
			if wallHits >= coarseMaxWallHits {
				break
			}
			curve := initialStep * math.Pow(coarseDecayFactor, float64(wallHits))
			if curve < 1.0 {
				step = coarseMinStep
			} else {
				step = curve
			}
			cur -= step
		}
	}

	measureBoundary()
	return res, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
