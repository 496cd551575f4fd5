package explore

import (
	"context"
	"errors"
	"math"
)

// explorePreciseQuality maximizes measured quality over the full
// range: a bisection seeded at the predicted rate factor, boundary
// probes, golden-section refinement, then two fine-tune passes at
// successively finer steps. No compression requirement. A probe the
// meter cannot rate is skipped, never reported in place of a measured
// one.
func (c *Context) explorePreciseQuality(ctx context.Context) (*Result, error) {
	c.setPhase("precise_quality", "")

	lo, hi := c.cfg.MinParam, c.cfg.MaxParam

	best, err := c.binarySearchQuality(ctx, lo, hi, c.cfg.InitialParam)
	if err != nil {
		return nil, err
	}

	qLo, err := c.qualityIfMeasurable(ctx, lo)
	if err != nil {
		return nil, err
	}
	qHi, err := c.qualityIfMeasurable(ctx, hi)
	if err != nil {
		return nil, err
	}
	best = betterQuality(best, qLo)
	best = betterQuality(best, qHi)
	if best == nil {
		return c.measureFailure(WrapError(ErrUnmeasurable, "no probe produced a quality value"), c.cfg.InitialParam)
	}

	// When both boundaries measured onto a plateau the section search
	// cannot improve on the seeded best.
	flat := qLo != nil && qHi != nil &&
		math.Abs(qLo.quality.Value-qHi.quality.Value) < qualityPlateauEpsilon
	if !flat {
		best, err = c.goldenSectionQuality(ctx, lo, hi, c.cfg.MaxIterations, best)
		if err != nil {
			return nil, err
		}
	}

	for _, step := range []float64{StepFine, StepMicro} {
		best, err = c.fineTuneQuality(ctx, best, step)
		if err != nil {
			return nil, err
		}
	}

	pass := c.qualityPasses(best.quality)
	reason := ""
	if !pass {
		reason = "quality below threshold"
	}
	return c.finalize(best.param, best.out, &best.quality, pass, reason, c.predictionScore(best.param)), nil
}

// fineTuneQuality tries one step to each side of the current best and
// keeps whichever improves the metric.
func (c *Context) fineTuneQuality(ctx context.Context, best *qualityPoint, step float64) (*qualityPoint, error) {
	for _, cand := range []float64{best.param - step, best.param + step} {
		if cand < c.cfg.MinParam || cand > c.cfg.MaxParam {
			continue
		}
		qp, err := c.qualityAt(ctx, cand)
		if err != nil {
			if errors.Is(err, ErrUnmeasurable) {
				continue
			}
			return best, err
		}
		if qp.quality.Value > best.quality.Value {
			best = qp
		}
	}
	return best, nil
}

// measureFailure converts an unmeasurable probe into a fail-closed
// result; every other error propagates.
func (c *Context) measureFailure(err error, p float64) (*Result, error) {
	if errors.Is(err, ErrUnmeasurable) {
		out := EncodeOutput{}
		if k, qerr := Quantize(p); qerr == nil {
			if cached, ok := c.sizes.Get(k); ok {
				out = cached
			}
		}
		return c.finalize(p, out, nil, false, "quality unmeasurable", c.predictionScore(p)), nil
	}
	return nil, err
}
