package explore

import (
	"context"
)

// Explore runs the configured strategy to completion and returns the
// immutable result. The strategy set is closed; an unknown selector is
// a typed error, not a silent default.
func (c *Context) Explore(ctx context.Context) (*Result, error) {
	c.setPhase("explore", c.cfg.Strategy.String())

	switch c.cfg.Strategy {
	case StrategySizeOnly:
		return c.exploreSizeOnly(ctx)
	case StrategyQualityMatch:
		return c.exploreQualityMatch(ctx)
	case StrategyPreciseQualityMatch:
		return c.explorePreciseQuality(ctx)
	case StrategyPreciseQualityMatchCompress:
		return c.explorePreciseQualityCompress(ctx)
	case StrategyCompressOnly:
		return c.exploreCompressOnly(ctx)
	case StrategyCompressWithQuality:
		return c.exploreCompressWithQuality(ctx)
	default:
		return nil, NewErrorf("unknown strategy %d", int(c.cfg.Strategy)).
			WithComponent("strategy").WithOperation("Explore")
	}
}
