package explore

import (
	"context"
	"errors"
	"math"
)

// goldenRatio drives the section search toward maximal quality.
const goldenRatio = 0.618

// qualityPlateauEpsilon ends a refinement pass once successive probes
// stop moving the metric.
const qualityPlateauEpsilon = 0.0002

// roundHalf snaps a candidate to 0.5 granularity so near-identical
// probes collapse onto the same cache keys.
func roundHalf(p float64) float64 {
	return math.Round(p*2.0) / 2.0
}

// compressPoint is a probe that produced a smaller output.
type compressPoint struct {
	param float64
	out   EncodeOutput
}

// qualityPoint is a probe with a known quality value.
type qualityPoint struct {
	param   float64
	out     EncodeOutput
	quality QualityResult
}

// binarySearchCompress bisects toward the compression boundary. A
// compressing midpoint narrows the high bound and becomes best-so-far;
// a non-compressing one narrows the low bound. Returns the best
// compressing point found, if any.
func (c *Context) binarySearchCompress(ctx context.Context, lo, hi float64, maxIter int) (*compressPoint, error) {
	var best *compressPoint
	for i := 0; i < maxIter && hi-lo > StepFine; i++ {
		mid := roundHalf((lo + hi) / 2.0)
		if mid <= lo || mid >= hi {
			break
		}
		out, err := c.probe(ctx, mid)
		if err != nil {
			return best, err
		}
		if c.compresses(out.Size) {
			if best == nil || out.Size < best.out.Size || mid < best.param {
				best = &compressPoint{param: mid, out: out}
			}
			hi = mid
		} else {
			lo = mid
		}
	}
	return best, nil
}

// qualityAt probes and measures one point, returning the triple.
func (c *Context) qualityAt(ctx context.Context, p float64) (*qualityPoint, error) {
	out, err := c.probe(ctx, p)
	if err != nil {
		return nil, err
	}
	q, err := c.measure(ctx, p)
	if err != nil {
		return nil, err
	}
	return &qualityPoint{param: p, out: out, quality: q}, nil
}

// qualityIfMeasurable probes one point, treating an unmeasurable
// metric as an absent candidate rather than an error. A candidate the
// meter cannot rate must never displace one it could.
func (c *Context) qualityIfMeasurable(ctx context.Context, p float64) (*qualityPoint, error) {
	qp, err := c.qualityAt(ctx, p)
	if err != nil {
		if errors.Is(err, ErrUnmeasurable) {
			return nil, nil
		}
		return nil, err
	}
	return qp, nil
}

// betterQuality keeps whichever measured point rates higher; nil
// candidates lose to anything measured.
func betterQuality(a, b *qualityPoint) *qualityPoint {
	if a == nil {
		return b
	}
	if b != nil && b.quality.Value > a.quality.Value {
		return b
	}
	return a
}

// binarySearchQuality seeds the search at start and bisects toward
// whichever side currently measures higher, discarding the opposite
// half each round. Stops once the better side no longer improves on
// the running best by the plateau epsilon.
func (c *Context) binarySearchQuality(ctx context.Context, lo, hi, start float64) (*qualityPoint, error) {
	best, err := c.qualityIfMeasurable(ctx, clampParam(start, lo, hi))
	if err != nil || best == nil {
		return nil, err
	}

	for i := 0; i < c.cfg.MaxIterations && hi-lo > StepFine; i++ {
		left := roundHalf((lo + best.param) / 2)
		right := roundHalf((best.param + hi) / 2)
		if right-left <= StepFine {
			break
		}

		qL, err := c.qualityIfMeasurable(ctx, left)
		if err != nil {
			return best, err
		}
		qR, err := c.qualityIfMeasurable(ctx, right)
		if err != nil {
			return best, err
		}

		var side *qualityPoint
		switch {
		case qL == nil && qR == nil:
			return best, nil
		case qR == nil || (qL != nil && qL.quality.Value >= qR.quality.Value):
			side = qL
			hi = best.param
		default:
			side = qR
			lo = best.param
		}
		if side.quality.Value <= best.quality.Value+qualityPlateauEpsilon {
			return betterQuality(best, side), nil
		}
		best = side
	}
	return best, nil
}

// goldenSectionQuality refines toward maximal quality inside [lo, hi],
// with candidates snapped to 0.5 and a plateau early exit. Unmeasurable
// candidates just shrink their own side of the bracket.
func (c *Context) goldenSectionQuality(ctx context.Context, lo, hi float64, maxIter int, best *qualityPoint) (*qualityPoint, error) {
	var prev float64
	havePrev := false

	for i := 0; i < maxIter && hi-lo > StepFine; i++ {
		x1 := roundHalf(hi - goldenRatio*(hi-lo))
		x2 := roundHalf(lo + goldenRatio*(hi-lo))
		if x1 >= x2 {
			break
		}

		q1, err := c.qualityIfMeasurable(ctx, x1)
		if err != nil {
			return best, err
		}
		q2, err := c.qualityIfMeasurable(ctx, x2)
		if err != nil {
			return best, err
		}

		switch {
		case q1 == nil && q2 == nil:
			return best, nil
		case q1 == nil:
			lo = x1
			best = betterQuality(best, q2)
			continue
		case q2 == nil:
			hi = x2
			best = betterQuality(best, q1)
			continue
		}

		if q1.quality.Value >= q2.quality.Value {
			hi = x2
			best = betterQuality(best, q1)
		} else {
			lo = x1
			best = betterQuality(best, q2)
		}

		top := math.Max(q1.quality.Value, q2.quality.Value)
		if havePrev && math.Abs(top-prev) < qualityPlateauEpsilon {
			break
		}
		prev = top
		havePrev = true
	}
	return best, nil
}
