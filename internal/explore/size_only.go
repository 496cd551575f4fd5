package explore

import (
	"context"
)

// exploreSizeOnly encodes once at the maximum rate factor: the
// smallest output the encoder will produce in range. Compression is
// best effort and quality is not checked.
func (c *Context) exploreSizeOnly(ctx context.Context) (*Result, error) {
	c.setPhase("size_only", "")

	out, err := c.probe(ctx, c.cfg.MaxParam)
	if err != nil {
		return nil, err
	}
	return c.finalize(c.cfg.MaxParam, out, nil, true, "", c.predictionScore(c.cfg.MaxParam)), nil
}
