package explore

import (
	"context"
	"errors"
	"math"
)

// Wall-collision constants. The walk decays its step by a fixed factor
// at every size wall and snaps to the minimum step once the decayed
// step would drop below 1.0.
const (
	wallDecayFactor = 0.4
	initialStepMin  = 8.0
	initialStepMax  = 25.0

	// zeroGainEpsilon is the quality delta below which a probe counts
	// toward the quality wall.
	zeroGainEpsilon = 0.00005
)

// wallOutcome names what ended a wall-collision walk.
type wallOutcome int

const (
	wallNone wallOutcome = iota
	// wallQuality: consecutive sub-epsilon quality deltas at the
	// finest step, the metric has saturated.
	wallQuality
	// wallSize: the adaptive cap on size-wall hits was reached.
	wallSize
	// wallBoundary: the walk reached the minimum parameter while still
	// compressing, an unusually compressible input, not an error.
	wallBoundary
	// wallBudget: the iteration budget ran out first.
	wallBudget
)

func (w wallOutcome) String() string {
	switch w {
	case wallQuality:
		return "quality wall"
	case wallSize:
		return "size wall"
	case wallBoundary:
		return "boundary wall"
	case wallBudget:
		return "budget exhausted"
	default:
		return "none"
	}
}

// AdaptiveWallCap bounds how many size walls the walk may hit before
// stopping: ceil(log2(range)) + 6, clamped to [4, 20]. Invalid ranges
// yield the floor. Monotonically non-decreasing in range.
func AdaptiveWallCap(rng float64) int {
	if math.IsNaN(rng) || math.IsInf(rng, 0) || rng <= 0 {
		return 4
	}
	hits := int(math.Ceil(math.Log2(rng))) + 6
	if hits < 4 {
		return 4
	}
	if hits > 20 {
		return 20
	}
	return hits
}

// initialWallStep sizes the first stride from the usable range.
func initialWallStep(rng float64) float64 {
	step := rng / 1.5
	if step < initialStepMin {
		return initialStepMin
	}
	if step > initialStepMax {
		return initialStepMax
	}
	return step
}

// wallResult is the walk's outcome: the best compressing point ever
// observed, never a point that failed to compress.
type wallResult struct {
	param    float64
	out      EncodeOutput
	quality  *QualityResult
	outcome  wallOutcome
	wallHits int
}

// wallCollisionSearch walks the rate factor downward from start,
// toward higher quality, while the output keeps compressing. Size
// walls decay the step and resume from the last good point; the walk
// ends on a quality plateau at the finest step, on the adaptive
// size-wall cap, on the range boundary, or on the iteration budget.
func (c *Context) wallCollisionSearch(ctx context.Context, start, lo, hi float64) (*wallResult, error) {
	start = clampParam(start, lo, hi)
	// The walk heads downward, so the usable range is seed to floor.
	rng := start - lo
	step := initialWallStep(rng)
	maxWalls := AdaptiveWallCap(rng)
	zeroGainNeed := c.cfg.ZeroGainRequirement()

	c.setPhase("wall_collision", "")

	res := &wallResult{outcome: wallBudget}
	var lastGood *qualityPoint
	var zeroGains int
	atFinest := func() bool { return step <= MinStep+1e-9 }

	cur := clampParam(start, lo, hi)
	for i := 0; i < c.cfg.MaxIterations; i++ {
		out, err := c.probe(ctx, cur)
		if err != nil {
			return res, err
		}

		if !c.compresses(out.Size) {
			// Size wall: decay and resume from the last good point.
			res.wallHits++
			if res.wallHits >= maxWalls {
				res.outcome = wallSize
				break
			}
			curve := initialWallStep(rng) * math.Pow(wallDecayFactor, float64(res.wallHits))
			if curve < 1.0 {
				step = MinStep
			} else {
				step = curve
			}
			if lastGood != nil {
				cur = lastGood.param - step
			} else {
				cur += step
			}
			if cur > hi {
				res.outcome = wallSize
				break
			}
			if cur < lo {
				cur = lo
			}
			continue
		}

		// Compressing probe: it becomes the new good point.
		good := &qualityPoint{param: cur, out: out}
		if c.meter != nil {
			q, err := c.measure(ctx, cur)
			if err != nil && !errors.Is(err, ErrUnmeasurable) {
				return res, err
			}
			if err == nil {
				good.quality = q
				// The quality wall is only armed at the finest step.
				if lastGood != nil && atFinest() {
					if math.Abs(q.Value-lastGood.quality.Value) < zeroGainEpsilon {
						zeroGains++
					} else {
						zeroGains = 0
					}
				}
			}
		}

		lastGood = good
		res.param = good.param
		res.out = good.out
		// The reported quality must belong to the reported point; an
		// unmeasured point carries none, even when an earlier one was
		// measured.
		res.quality = nil
		if good.quality.Value > 0 || good.quality.PSNR > 0 {
			q := good.quality
			res.quality = &q
		}

		if zeroGains >= zeroGainNeed {
			res.outcome = wallQuality
			break
		}

		if cur <= lo {
			res.outcome = wallBoundary
			break
		}

		next := cur - step
		if next < lo {
			next = lo
		}
		if k1, err1 := Quantize(next); err1 == nil {
			if k0, err0 := Quantize(cur); err0 == nil && k1 == k0 {
				next = cur - MinStep
				if next < lo {
					res.outcome = wallBoundary
					break
				}
			}
		}
		cur = next
	}

	if lastGood == nil {
		// Nothing in the walk compressed.
		return nil, nil
	}
	return res, nil
}
