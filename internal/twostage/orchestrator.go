package twostage

import (
	"context"

	"github.com/copyleftdev/crfsearch/internal/calibrate"
	"github.com/copyleftdev/crfsearch/internal/explore"
	"github.com/copyleftdev/crfsearch/internal/logging"
	"github.com/copyleftdev/crfsearch/internal/streams"
)

// Fine-range selection around the calibrated starting point. A poor or
// unmeasured coarse quality widens the range; a coarse phase that
// already fine-tuned narrows it.
const (
	poorCoarseQuality = 0.90
	finePoorWidenUp   = 8.0
	fineTunedHalf     = 3.0
	fineDefaultDown   = 15.0
	fineDefaultUp     = 5.0
)

// Options wires the collaborators of a two-stage run. A nil Fast
// encoder skips the coarse phase entirely; nil samplers skip dynamic
// calibration and leave the static offset in charge.
type Options struct {
	Fast           explore.Encoder
	FastSampler    calibrate.Backend
	PreciseSampler calibrate.Backend
	StaticOffset   calibrate.Offset
	Coarse         CoarseConfig
	Log            *logging.Logger
	Observer       explore.Observer
}

// Search runs the three phases: coarse boundary on the fast backend,
// calibration of the parameter-space translation, then the
// wall-collision fine search on the precise backend. Every phase
// degrades gracefully: coarse failure falls back to the full range,
// calibration failure to the static offset table.
func Search(ctx context.Context, opts Options, cfg explore.Config, in explore.Input, precise explore.Encoder, meter explore.QualityMeter, prober streams.Prober) (*explore.Result, error) {
	obs := opts.Observer
	if obs == nil {
		obs = explore.NopObserver{}
	}
	coarseCfg := opts.Coarse
	if coarseCfg.MaxIterations == 0 {
		coarseCfg = DefaultCoarseConfig()
		coarseCfg.InitialParam = cfg.InitialParam
		coarseCfg.MaxParam = cfg.MaxParam
	}

	var coarse *CoarseResult
	if opts.Fast != nil {
		cr, err := CoarseSearch(ctx, opts.Fast, meter, in, coarseCfg, obs)
		if err != nil {
			if opts.Log != nil {
				opts.Log.Warn("coarse phase failed, falling back to full range", map[string]interface{}{
					"error": err.Error(),
				})
			}
		} else {
			coarse = cr
		}
	}

	obs.Phase(explore.PhaseEvent{Phase: "calibration", Note: ""})
	mapper := calibrate.QuickCalibrate(ctx, opts.FastSampler, opts.PreciseSampler, in.Path,
		opts.StaticOffset.Offset, cfg.MinParam, cfg.MaxParam, opts.Log)

	start := cfg.InitialParam
	calibConf := 0.5
	lo, hi := cfg.MinParam, cfg.MaxParam

	if coarse != nil && coarse.FoundBoundary {
		start, calibConf = mapper.Map(coarse.BoundaryParam)

		// With no sampled anchors the coarse result itself is the only
		// calibration signal: adjust by how well the coarse phase
		// compressed.
		if mapper.AnchorCount() == 0 && in.Size > 0 {
			ratio := float64(coarse.BestSize) / float64(in.Size)
			pt := calibrate.PointFromCoarseRatio(start, ratio)
			start += pt.Adjustment
			calibConf = pt.Confidence
		}

		switch {
		case !coarse.HasQuality || coarse.BestQuality < poorCoarseQuality:
			// Poor or unmeasured coarse quality: widen downward all
			// the way, the boundary hint may be badly off.
			lo, hi = cfg.MinParam, start+finePoorWidenUp
		case coarse.FineTuned:
			lo, hi = start-fineTunedHalf, start+fineTunedHalf
		default:
			lo, hi = start-fineDefaultDown, start+fineDefaultUp
		}
		lo = clamp(lo, cfg.MinParam, cfg.MaxParam)
		hi = clamp(hi, cfg.MinParam, cfg.MaxParam)
		if hi-lo < 1.0 {
			lo, hi = cfg.MinParam, cfg.MaxParam
		}
	}
	start = clamp(start, lo, hi)

	fineCfg := cfg
	fineCfg.MinParam, fineCfg.MaxParam = lo, hi
	fineCfg.InitialParam = start

	ectx, err := explore.NewContext(fineCfg, in, precise, meter, prober, obs)
	if err != nil {
		return nil, err
	}

	obs.Phase(explore.PhaseEvent{Phase: "fine", Note: ""})
	res, err := ectx.FineSearch(ctx, start)
	if err != nil {
		return nil, err
	}

	res.Breakdown.Prediction = calibConf
	res.Confidence = res.Breakdown.Overall()
	return res, nil
}
