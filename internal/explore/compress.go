package explore

import (
	"context"
	"errors"
)

// exploreCompressOnly finds any rate factor that compresses, bisecting
// from the top of the range toward the boundary. Quality is not
// checked.
func (c *Context) exploreCompressOnly(ctx context.Context) (*Result, error) {
	c.setPhase("compress_only", "")

	best, err := c.compressionBoundary(ctx)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return c.noCompressingResult()
	}
	return c.finalize(best.param, best.out, nil, true, "", c.predictionScore(best.param)), nil
}

// exploreCompressWithQuality finds the first compressing rate factor,
// then runs a coarse quality check on it. Compression gates pass/fail;
// the quality verdict is carried in the result.
func (c *Context) exploreCompressWithQuality(ctx context.Context) (*Result, error) {
	c.setPhase("compress_quality", "")

	best, err := c.compressionBoundary(ctx)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return c.noCompressingResult()
	}

	var qp *QualityResult
	if c.meter != nil {
		q, err := c.measure(ctx, best.param)
		if err != nil && !errors.Is(err, ErrUnmeasurable) {
			return nil, err
		}
		if err == nil {
			qp = &q
		}
	}
	return c.finalize(best.param, best.out, qp, true, "", c.predictionScore(best.param)), nil
}

// compressionBoundary probes the top of the range first, then bisects
// downward. A top that does not compress means nothing in range will,
// since output size grows as the rate factor drops.
func (c *Context) compressionBoundary(ctx context.Context) (*compressPoint, error) {
	top, err := c.probe(ctx, c.cfg.MaxParam)
	if err != nil {
		return nil, err
	}
	if !c.compresses(top.Size) {
		return nil, nil
	}

	best := &compressPoint{param: c.cfg.MaxParam, out: top}
	lower, err := c.binarySearchCompress(ctx, c.cfg.MinParam, c.cfg.MaxParam, c.cfg.MaxIterations)
	if err != nil {
		return best, err
	}
	if lower != nil && lower.param < best.param {
		best = lower
	}
	return best, nil
}
