package explore

import (
	"context"
	"errors"
)

// Diminishing-returns tuning for the marginal search on near-optimal
// inputs.
const (
	marginalSizeIncreaseMax = 0.05
	marginalQualityGainMin  = 0.001
	marginalPlateauGain     = 0.0001
	marginalPlateauQuality  = 0.99
	marginalMaxFailures     = 3
)

// FineSearch is the precise-backend fine phase: a wall-collision walk
// seeded at start. When nothing at or below start compresses, the
// input is near its optimum already and the search flips to the
// marginal mode: upward to the first compressing point, then downward
// with diminishing-returns detection.
func (c *Context) FineSearch(ctx context.Context, start float64) (*Result, error) {
	start = clampParam(start, c.cfg.MinParam, c.cfg.MaxParam)

	wall, err := c.wallCollisionSearch(ctx, start, c.cfg.MinParam, c.cfg.MaxParam)
	if err != nil {
		return nil, err
	}
	if wall != nil {
		pass := true
		reason := ""
		if wall.quality != nil && !c.qualityPasses(*wall.quality) {
			pass, reason = false, "quality below threshold"
		} else if wall.quality == nil && c.cfg.Thresholds.ValidateSSIM && c.meter != nil {
			pass, reason = false, "quality unmeasurable"
		}
		res := c.finalize(wall.param, wall.out, wall.quality, pass, reason, c.predictionScore(wall.param))
		res.FailReason = reason
		if reason == "" && wall.outcome != wallNone {
			c.obs.Phase(PhaseEvent{Phase: "fine_done", Note: wall.outcome.String()})
		}
		return res, nil
	}

	c.setPhase("marginal", "no compressing point at or below seed")
	return c.marginalSearch(ctx, start)
}

// marginalSearch handles inputs already near their optimum: walk
// upward at the micro step until the first compressing point, then
// downward while each extra probe still buys meaningful quality.
func (c *Context) marginalSearch(ctx context.Context, start float64) (*Result, error) {
	var first *compressPoint
	failures := 0

	for p := start; p <= c.cfg.MaxParam; p += StepMicro {
		out, err := c.probe(ctx, p)
		if err != nil {
			failures++
			if failures >= marginalMaxFailures || errors.Is(err, context.Canceled) {
				return nil, err
			}
			continue
		}
		failures = 0
		if c.compresses(out.Size) {
			first = &compressPoint{param: p, out: out}
			break
		}
	}
	if first == nil {
		return c.noCompressingResult()
	}

	accepted := &qualityPoint{param: first.param, out: first.out}
	if c.meter != nil {
		if q, err := c.measure(ctx, first.param); err == nil {
			accepted.quality = q
		} else if !errors.Is(err, ErrUnmeasurable) {
			return nil, err
		}
	}

	for p := accepted.param - StepMicro; p >= c.cfg.MinParam; p -= StepMicro {
		out, err := c.probe(ctx, p)
		if err != nil {
			failures++
			if failures >= marginalMaxFailures {
				break
			}
			continue
		}
		failures = 0
		if !c.compresses(out.Size) {
			break
		}

		var q QualityResult
		haveQ := false
		if c.meter != nil {
			if mq, merr := c.measure(ctx, p); merr == nil {
				q = mq
				haveQ = true
			} else if !errors.Is(merr, ErrUnmeasurable) {
				return nil, merr
			}
		}

		if haveQ && accepted.quality.Value > 0 {
			sizeIncrease := float64(out.Size-accepted.out.Size) / float64(accepted.out.Size)
			gain := q.Value - accepted.quality.Value
			if sizeIncrease > marginalSizeIncreaseMax && gain < marginalQualityGainMin {
				break
			}
			if gain < marginalPlateauGain && q.Value >= marginalPlateauQuality {
				accepted = &qualityPoint{param: p, out: out, quality: q}
				break
			}
		}
		accepted = &qualityPoint{param: p, out: out}
		if haveQ {
			accepted.quality = q
		}
	}

	var qp *QualityResult
	if accepted.quality.Value > 0 || accepted.quality.PSNR > 0 {
		q := accepted.quality
		qp = &q
	}
	pass := true
	reason := ""
	if qp != nil && !c.qualityPasses(*qp) {
		pass, reason = false, "quality below threshold"
	} else if qp == nil && c.cfg.Thresholds.ValidateSSIM && c.meter != nil {
		pass, reason = false, "quality unmeasurable"
	}
	return c.finalize(accepted.param, accepted.out, qp, pass, reason, c.predictionScore(accepted.param)), nil
}
