package calibrate

// Point is a single-sample calibration derived from the coarse phase's
// best result, used when no anchor sampling happened at all.
type Point struct {
	Param      float64
	Adjustment float64
	Confidence float64
}

// PointFromCoarseRatio derives the adjustment from how well the coarse
// backend compressed: ratio is coarse output size over input size. A
// coarse phase that compressed comfortably leaves headroom to push the
// precise backend harder; one that barely compressed pulls back.
func PointFromCoarseRatio(param, ratio float64) Point {
	switch {
	case ratio < 0.95:
		return Point{Param: param, Adjustment: 1.0, Confidence: 0.85}
	case ratio < 1.0:
		return Point{Param: param, Adjustment: 0.5, Confidence: 0.90}
	case ratio < 1.05:
		return Point{Param: param, Adjustment: -0.5, Confidence: 0.80}
	default:
		return Point{Param: param, Adjustment: -1.0, Confidence: 0.70}
	}
}
