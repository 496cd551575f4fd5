// Package calibrate learns how one encoder backend's rate-factor space
// relates to another's, from a handful of sampled anchor encodes, and
// falls back to a static offset table when sampling is impossible.
package calibrate

// AnchorPoint is one sampled measurement: the same nominal rate factor
// encoded by both backends.
type AnchorPoint struct {
	Param       float64
	SizeFast    int64
	SizePrecise int64
}

// SizeRatio is the precise backend's output relative to the fast one.
func (a AnchorPoint) SizeRatio() float64 {
	if a.SizeFast == 0 {
		return 1.0
	}
	return float64(a.SizePrecise) / float64(a.SizeFast)
}

// Confidence levels by calibration depth.
const (
	confidenceStatic    = 0.5
	confidenceOneAnchor = 0.75
	confidenceTwoAnchor = 0.85

	// interpolationClamp bounds extrapolation past the second anchor.
	interpolationClamp = 1.5
)

// Mapper translates a fast-backend rate factor into the precise
// backend's space. Anchors accumulate within a run and are never
// removed.
type Mapper struct {
	anchors      []AnchorPoint
	staticOffset float64
	minParam     float64
	maxParam     float64
}

// NewMapper returns a mapper with no anchors, using the static offset
// until calibration data arrives.
func NewMapper(staticOffset, minParam, maxParam float64) *Mapper {
	return &Mapper{
		staticOffset: staticOffset,
		minParam:     minParam,
		maxParam:     maxParam,
	}
}

// AddAnchor records one calibration sample.
func (m *Mapper) AddAnchor(a AnchorPoint) {
	m.anchors = append(m.anchors, a)
}

// AnchorCount reports how many samples back the mapping.
func (m *Mapper) AnchorCount() int {
	return len(m.anchors)
}

// bandedOffset maps a size ratio to an additive offset. A small ratio
// means the precise backend is far more efficient at the same nominal
// rate factor, so the translated parameter moves further.
func bandedOffset(ratio float64) float64 {
	switch {
	case ratio < 0.70:
		return 4.0
	case ratio < 0.80:
		return 3.5
	case ratio < 0.90:
		return 3.0
	default:
		return 2.5
	}
}

// Map translates p into the precise backend's space and reports the
// mapping confidence. The output is always clamped to the valid range.
func (m *Mapper) Map(p float64) (float64, float64) {
	var offset, confidence float64
	switch len(m.anchors) {
	case 0:
		offset, confidence = m.staticOffset, confidenceStatic
	case 1:
		offset, confidence = bandedOffset(m.anchors[0].SizeRatio()), confidenceOneAnchor
	default:
		offset, confidence = m.interpolate(p), confidenceTwoAnchor
	}

	mapped := p + offset
	if mapped < m.minParam {
		mapped = m.minParam
	}
	if mapped > m.maxParam {
		mapped = m.maxParam
	}
	return mapped, confidence
}

// interpolate blends the banded offsets of the first two anchors by
// the parameter's relative position between them, with the blend
// factor clamped to [0, interpolationClamp].
func (m *Mapper) interpolate(p float64) float64 {
	a0, a1 := m.anchors[0], m.anchors[1]
	o0 := bandedOffset(a0.SizeRatio())
	o1 := bandedOffset(a1.SizeRatio())

	span := a1.Param - a0.Param
	if span == 0 {
		return (o0 + o1) / 2.0
	}
	t := (p - a0.Param) / span
	if t < 0 {
		t = 0
	}
	if t > interpolationClamp {
		t = interpolationClamp
	}
	return o0 + t*(o1-o0)
}
