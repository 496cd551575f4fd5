package explore

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Early-stop tuning for the staged descent.
const (
	descentWindow        = 3
	descentVarianceStop  = 1e-5
	descentChangeRateMin = 0.005
)

// descentStages are the walk's step sizes, coarsest first.
var descentStages = []float64{StepCoarse, StepMedium, StepFine, StepMicro}

// explorePreciseQualityCompress maximizes quality subject to the
// output staying smaller than the input: a staged descent from a
// compressing anchor, with variance and change-rate early stops, then
// a bidirectional fine-tune around the boundary.
func (c *Context) explorePreciseQualityCompress(ctx context.Context) (*Result, error) {
	c.setPhase("precise_quality_compress", "")

	anchor, err := c.findCompressingAnchor(ctx)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return c.noCompressingResult()
	}

	best := anchor
	ratios := make([]float64, 0, c.cfg.MaxIterations)
	ratios = append(ratios, c.sizeRatio(anchor.out.Size))

	for _, step := range descentStages {
		cur := best.param - step
		for cur >= c.cfg.MinParam {
			out, err := c.probe(ctx, cur)
			if err != nil {
				return nil, err
			}
			if !c.compresses(out.Size) {
				// Size wall for this stage; the next finer stage
				// resumes from the boundary.
				break
			}
			best = &compressPoint{param: cur, out: out}

			ratios = append(ratios, c.sizeRatio(out.Size))
			if c.descentSaturated(ratios) {
				cur = -1
				break
			}
			cur -= step
		}
		if cur < 0 {
			break
		}
	}

	tuned, err := c.fineTuneCompressing(ctx, best)
	if err != nil {
		return nil, err
	}
	best = tuned

	var qp *QualityResult
	if c.meter != nil {
		q, err := c.measure(ctx, best.param)
		if err != nil {
			if !errors.Is(err, ErrUnmeasurable) {
				return nil, err
			}
		} else {
			qp = &q
		}
	}

	pass := true
	reason := ""
	if qp == nil {
		if c.cfg.Thresholds.ValidateSSIM {
			pass, reason = false, "quality unmeasurable"
		}
	} else if !c.qualityPasses(*qp) {
		pass, reason = false, "quality below threshold"
	}
	return c.finalize(best.param, best.out, qp, pass, reason, c.predictionScore(best.param)), nil
}

// findCompressingAnchor probes the predicted rate factor and, when it
// does not compress, bisects toward the boundary over the upper half
// of the range.
func (c *Context) findCompressingAnchor(ctx context.Context) (*compressPoint, error) {
	p := clampParam(roundHalf(c.cfg.InitialParam), c.cfg.MinParam, c.cfg.MaxParam)
	out, err := c.probe(ctx, p)
	if err != nil {
		return nil, err
	}
	if c.compresses(out.Size) {
		return &compressPoint{param: p, out: out}, nil
	}

	top, err := c.probe(ctx, c.cfg.MaxParam)
	if err != nil {
		return nil, err
	}
	if c.compresses(top.Size) {
		bp, err := c.binarySearchCompress(ctx, p, c.cfg.MaxParam, c.cfg.MaxIterations)
		if err != nil {
			return nil, err
		}
		if bp != nil {
			return bp, nil
		}
		return &compressPoint{param: c.cfg.MaxParam, out: top}, nil
	}
	return nil, nil
}

// descentSaturated applies the sliding-window variance stop and the
// change-rate stop over the size-ratio history.
func (c *Context) descentSaturated(ratios []float64) bool {
	n := len(ratios)
	if n < descentWindow {
		return false
	}
	window := ratios[n-descentWindow:]
	if stat.Variance(window, nil) < descentVarianceStop {
		return true
	}
	prev, curr := ratios[n-2], ratios[n-1]
	if prev != 0 && math.Abs((curr-prev)/prev) < descentChangeRateMin {
		return true
	}
	return false
}

// fineTuneCompressing walks one micro step in each direction from the
// boundary, keeping the lowest compressing rate factor.
func (c *Context) fineTuneCompressing(ctx context.Context, best *compressPoint) (*compressPoint, error) {
	for _, cand := range []float64{best.param - StepMicro, best.param + StepMicro} {
		if cand < c.cfg.MinParam || cand > c.cfg.MaxParam {
			continue
		}
		out, err := c.probe(ctx, cand)
		if err != nil {
			return best, err
		}
		if c.compresses(out.Size) && cand < best.param {
			best = &compressPoint{param: cand, out: out}
		}
	}
	return best, nil
}

func (c *Context) sizeRatio(outputSize int64) float64 {
	if c.in.Size == 0 {
		return 0
	}
	return float64(outputSize) / float64(c.in.Size)
}

// noCompressingResult reports the normal, non-exceptional outcome of a
// range where nothing compresses.
func (c *Context) noCompressingResult() (*Result, error) {
	r := &Result{
		Strategy:   c.cfg.Strategy,
		Iterations: c.iterations,
		Pass:       false,
		FailReason: "no rate factor in range compresses",
		InputSize:  c.in.Size,
	}
	r.Breakdown = ConfidenceBreakdown{Sampling: 1.0, Reliability: 0.5}
	r.Confidence = r.Breakdown.Overall()
	if rec, ok := c.obs.(*TraceRecorder); ok {
		r.Trace = rec.Events
	}
	return r, nil
}
