package explore

import (
	"context"
	"errors"
)

// exploreQualityMatch probes once at the predicted rate factor and
// measures quality. No compression requirement; an unmeasurable probe
// fails closed.
func (c *Context) exploreQualityMatch(ctx context.Context) (*Result, error) {
	c.setPhase("quality_match", "")

	p := clampParam(c.cfg.InitialParam, c.cfg.MinParam, c.cfg.MaxParam)
	out, err := c.probe(ctx, p)
	if err != nil {
		return nil, err
	}

	q, err := c.measure(ctx, p)
	if err != nil {
		if errors.Is(err, ErrUnmeasurable) {
			return c.finalize(p, out, nil, false, "quality unmeasurable", c.predictionScore(p)), nil
		}
		return nil, err
	}

	pass := c.qualityPasses(q)
	reason := ""
	if !pass {
		reason = "quality below threshold"
	}
	return c.finalize(p, out, &q, pass, reason, c.predictionScore(p)), nil
}
