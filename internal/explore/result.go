package explore

// Result is the immutable outcome of one exploration run.
type Result struct {
	Strategy Strategy

	// OptimalParam is the chosen rate factor; OutputSize the artifact
	// size at that point.
	OptimalParam float64
	OutputSize   int64

	// SizeChangePct is (output-input)/input in percent; negative means
	// the output shrank.
	SizeChangePct float64

	SSIM    float64
	PSNR    float64
	MSSSIM  float64
	HasSSIM bool

	// QualitySource records whether SSIM was measured or predicted.
	QualitySource QualitySource

	// ActualMinSSIM is the lowest quality observed among accepted
	// probes, a floor on what the chosen point guarantees.
	ActualMinSSIM float64

	// Iterations counts probes; Encodes and CacheHits split them into
	// port invocations and cache answers.
	Iterations int
	Encodes    int
	CacheHits  int

	QualityPassed bool
	Pass          bool
	FailReason    string

	Confidence float64
	Breakdown  ConfidenceBreakdown

	// Both compression comparisons are carried; which one gates
	// pass/fail is a deployment decision.
	InputSize        int64
	InputStreamSize  int64
	OutputStreamSize int64
	CompressesTotal  bool
	CompressesStream bool

	Trace []ProbeEvent
}
