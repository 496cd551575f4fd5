package explore

// Strategy selects the search policy for one exploration run. The set
// is closed: dispatch happens through a single exhaustive switch.
type Strategy int

const (
	// StrategySizeOnly encodes once at the maximum rate factor for the
	// smallest output; compression is best effort, quality unchecked.
	StrategySizeOnly Strategy = iota
	// StrategyQualityMatch probes once at the predicted rate factor and
	// measures quality; no compression requirement.
	StrategyQualityMatch
	// StrategyPreciseQualityMatch maximizes quality via golden-section
	// refinement; no compression requirement.
	StrategyPreciseQualityMatch
	// StrategyPreciseQualityMatchCompress maximizes quality subject to
	// the output being smaller than the input.
	StrategyPreciseQualityMatchCompress
	// StrategyCompressOnly finds any rate factor that compresses.
	StrategyCompressOnly
	// StrategyCompressWithQuality finds the first compressing rate
	// factor, then runs a coarse quality check on it.
	StrategyCompressWithQuality
)

func (s Strategy) String() string {
	switch s {
	case StrategySizeOnly:
		return "size_only"
	case StrategyQualityMatch:
		return "quality_match"
	case StrategyPreciseQualityMatch:
		return "precise_quality_match"
	case StrategyPreciseQualityMatchCompress:
		return "precise_quality_match_compress"
	case StrategyCompressOnly:
		return "compress_only"
	case StrategyCompressWithQuality:
		return "compress_with_quality"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a wire name onto the closed strategy set.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range []Strategy{
		StrategySizeOnly, StrategyQualityMatch, StrategyPreciseQualityMatch,
		StrategyPreciseQualityMatchCompress, StrategyCompressOnly, StrategyCompressWithQuality,
	} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, NewErrorf("unknown strategy %q", name).WithComponent("config")
}

// RequiresCompression reports whether the strategy must fail when no
// rate factor in range compresses.
func (s Strategy) RequiresCompression() bool {
	switch s {
	case StrategyPreciseQualityMatchCompress, StrategyCompressOnly, StrategyCompressWithQuality:
		return true
	default:
		return false
	}
}

// Thresholds holds the quality gates for a run. A metric is only
// enforced when its Validate flag is set.
type Thresholds struct {
	MinSSIM   float64
	MinPSNR   float64
	MinMSSSIM float64

	ValidateSSIM   bool
	ValidatePSNR   bool
	ValidateMSSSIM bool

	// ForceMSSSIMLong keeps the MS-SSIM gate on for long inputs even
	// when it is otherwise disabled.
	ForceMSSSIMLong bool
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSSIM:      0.95,
		MinPSNR:      35.0,
		MinMSSSIM:    0.90,
		ValidateSSIM: true,
	}
}

// Config describes one exploration run.
type Config struct {
	Strategy Strategy

	// InitialParam is the predicted starting rate factor; MinParam and
	// MaxParam bound the usable range for this run.
	InitialParam float64
	MinParam     float64
	MaxParam     float64

	Thresholds    Thresholds
	MaxIterations int

	// Exhaustive relaxes the iteration budget and tightens the
	// plateau-detection requirement.
	Exhaustive bool

	// LongInput loosens the plateau requirement for long videos, where
	// each probe is disproportionately expensive.
	LongInput bool

	// UsePureMediaComparison gates compression on the media-stream
	// size rather than the total file size.
	UsePureMediaComparison bool

	// Threads is the per-encode thread budget, decided once per batch.
	Threads int

	// Verbose raises observer detail; threaded explicitly rather than
	// read from the process environment.
	Verbose bool
}

const (
	defaultInitialParam  = 18.0
	defaultMinParam      = 10.0
	defaultMaxParam      = 51.0
	defaultMaxIterations = 50

	// exhaustiveIterationFactor scales the iteration budget when a run
	// is marked exhaustive.
	exhaustiveIterationFactor = 4
)

func baseConfig(s Strategy) Config {
	return Config{
		Strategy:      s,
		InitialParam:  defaultInitialParam,
		MinParam:      defaultMinParam,
		MaxParam:      defaultMaxParam,
		Thresholds:    DefaultThresholds(),
		MaxIterations: defaultMaxIterations,
	}
}

// SizeOnlyConfig targets the smallest possible output.
func SizeOnlyConfig() Config {
	cfg := baseConfig(StrategySizeOnly)
	cfg.Thresholds.ValidateSSIM = false
	return cfg
}

// QualityMatchConfig probes the predicted rate factor once.
func QualityMatchConfig(initial float64) Config {
	cfg := baseConfig(StrategyQualityMatch)
	cfg.InitialParam = initial
	return cfg
}

// PreciseQualityMatchConfig maximizes quality without a compression
// requirement.
func PreciseQualityMatchConfig(initial float64) Config {
	cfg := baseConfig(StrategyPreciseQualityMatch)
	cfg.InitialParam = initial
	return cfg
}

// PreciseQualityMatchCompressConfig maximizes quality among the rate
// factors that compress.
func PreciseQualityMatchCompressConfig(initial float64) Config {
	cfg := baseConfig(StrategyPreciseQualityMatchCompress)
	cfg.InitialParam = initial
	return cfg
}

// CompressOnlyConfig accepts any compressing rate factor.
func CompressOnlyConfig() Config {
	cfg := baseConfig(StrategyCompressOnly)
	cfg.Thresholds.ValidateSSIM = false
	return cfg
}

// CompressWithQualityConfig requires compression and coarse-checks
// quality on the chosen point.
func CompressWithQualityConfig() Config {
	return baseConfig(StrategyCompressWithQuality)
}

// Validate rejects configurations no search can satisfy.
func (c Config) Validate() error {
	if _, err := Quantize(c.MinParam); err != nil {
		return WrapError(err, "min parameter").WithComponent("config")
	}
	if _, err := Quantize(c.MaxParam); err != nil {
		return WrapError(err, "max parameter").WithComponent("config")
	}
	if c.MinParam >= c.MaxParam {
		return NewErrorf("empty parameter range [%.1f, %.1f]", c.MinParam, c.MaxParam).
			WithComponent("config")
	}
	if c.MaxIterations <= 0 {
		return NewError("iteration budget must be positive").WithComponent("config")
	}
	return nil
}

// ZeroGainRequirement is how many consecutive sub-epsilon quality
// deltas count as a quality wall at the finest step.
func (c Config) ZeroGainRequirement() int {
	switch {
	case c.Exhaustive:
		return 8
	case c.LongInput:
		return 3
	default:
		return 4
	}
}
