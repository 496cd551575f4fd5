package explore

// Sub-score weights of the confidence model. They sum to 1.0; the
// aggregate is still clamped in case a sub-score ever exceeds [0,1].
const (
	weightSampling    = 0.3
	weightPrediction  = 0.3
	weightMargin      = 0.2
	weightReliability = 0.2

	// marginReference is the compression margin treated as fully safe.
	marginReference = 0.05
)

// ConfidenceBreakdown carries the four sub-scores behind the scalar.
type ConfidenceBreakdown struct {
	// Sampling reflects how much of the run used full-input probes
	// rather than short samples.
	Sampling float64
	// Prediction reflects how well the seeded starting point matched
	// the final answer.
	Prediction float64
	// Margin scales the compression headroom against the reference.
	Margin float64
	// Reliability is a step function of the measured quality.
	Reliability float64
}

// Overall aggregates the weighted sub-scores, clamped to [0,1].
func (b ConfidenceBreakdown) Overall() float64 {
	v := weightSampling*b.Sampling +
		weightPrediction*b.Prediction +
		weightMargin*b.Margin +
		weightReliability*b.Reliability
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// marginScore rates the compression headroom: zero when the output did
// not shrink, saturating at a marginReference relative saving.
func marginScore(inputSize, outputSize int64) float64 {
	if inputSize <= 0 || outputSize >= inputSize {
		return 0
	}
	margin := float64(inputSize-outputSize) / float64(inputSize)
	score := margin / marginReference
	if score > 1 {
		return 1
	}
	return score
}

// reliabilityScore is the step function over the quality value.
func reliabilityScore(quality float64, known bool) float64 {
	if !known {
		return 0.5
	}
	switch {
	case quality >= 0.99:
		return 1.0
	case quality >= 0.95:
		return 0.9
	case quality >= 0.90:
		return 0.7
	default:
		return 0.5
	}
}
