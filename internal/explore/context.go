package explore

import (
	"context"
	"errors"
	"math"

	"github.com/copyleftdev/crfsearch/internal/streams"
)

// Input identifies the file under exploration.
type Input struct {
	Path string
	// Size is the total file size in bytes.
	Size int64
	// StreamSize is the pure media-stream size, 0 when unknown.
	StreamSize int64
	// DurationSecs is used for the long-input plateau relaxation.
	DurationSecs float64
}

// Context carries everything one run's searches share: ports, caches,
// counters and the observer. Every search primitive receives it
// explicitly; there is no hidden captured state.
type Context struct {
	cfg    Config
	in     Input
	enc    Encoder
	meter  QualityMeter
	prober streams.Prober
	obs    Observer

	sizes   *Cache[EncodeOutput]
	quality *Cache[QualityResult]

	phase string

	encodeCalls  int
	measureCalls int
	cacheHits    int
	iterations   int

	// minObservedQuality floors what the chosen point guarantees.
	minObservedQuality float64
	qualityObserved    bool
}

// NewContext validates the configuration and builds a run context.
// The prober may be nil; the observer defaults to a no-op sink.
func NewContext(cfg Config, in Input, enc Encoder, meter QualityMeter, prober streams.Prober, obs Observer) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, NewError("encoder port is required").WithComponent("context")
	}
	if obs == nil {
		obs = NopObserver{}
	}
	if in.DurationSecs >= longInputSecs {
		cfg.LongInput = true
	}
	if cfg.Exhaustive {
		// Exhaustive runs also tighten the plateau requirement, so the
		// walk needs more probes to reach a quality wall.
		cfg.MaxIterations *= exhaustiveIterationFactor
	}
	return &Context{
		cfg:     cfg,
		in:      in,
		enc:     enc,
		meter:   meter,
		prober:  prober,
		obs:     obs,
		sizes:   NewCache[EncodeOutput](),
		quality: NewCache[QualityResult](),
	}, nil
}

// longInputSecs is where the plateau requirement relaxes to 3.
const longInputSecs = 1800.0

// Counters exposes the instrumentation used by tests and metrics.
func (c *Context) Counters() (encodes, measures, cacheHits, iterations int) {
	return c.encodeCalls, c.measureCalls, c.cacheHits, c.iterations
}

func (c *Context) setPhase(name, note string) {
	c.phase = name
	c.obs.Phase(PhaseEvent{Phase: name, Note: note})
}

// probe encodes at p, cache first. Every successful port call is
// inserted immediately; this is the invariant that bounds total
// encoder invocations.
func (c *Context) probe(ctx context.Context, p float64) (EncodeOutput, error) {
	k, err := Quantize(p)
	if err != nil {
		return EncodeOutput{}, err
	}
	if out, ok := c.sizes.Get(k); ok {
		c.cacheHits++
		c.obs.Probe(ProbeEvent{
			Phase:      c.phase,
			Param:      k.Param(),
			Size:       out.Size,
			Compresses: c.compresses(out.Size),
			Cached:     true,
		})
		return out, nil
	}

	select {
	case <-ctx.Done():
		return EncodeOutput{}, ctx.Err()
	default:
	}

	out, err := c.enc.Encode(ctx, c.in.Path, k.Param(), c.cfg.Threads)
	if err != nil {
		return EncodeOutput{}, WrapErrorf(ErrEncodeFailed, "rate factor %.1f: %v", k.Param(), err).
			WithComponent("context").WithOperation("probe")
	}
	c.encodeCalls++
	c.iterations++
	c.sizes.Insert(k, out)
	c.obs.Probe(ProbeEvent{
		Phase:      c.phase,
		Param:      k.Param(),
		Size:       out.Size,
		Compresses: c.compresses(out.Size),
	})
	return out, nil
}

// measure returns the quality at p, cache first. The artifact must
// already exist, i.e. probe must have succeeded for the same key.
func (c *Context) measure(ctx context.Context, p float64) (QualityResult, error) {
	k, err := Quantize(p)
	if err != nil {
		return QualityResult{}, err
	}
	if q, ok := c.quality.Get(k); ok {
		c.cacheHits++
		return q, nil
	}
	out, ok := c.sizes.Get(k)
	if !ok {
		return QualityResult{}, NewErrorf("no artifact for rate factor %.1f", k.Param()).
			WithComponent("context").WithOperation("measure")
	}
	if c.meter == nil {
		return QualityResult{}, WrapError(ErrUnmeasurable, "no quality port configured")
	}

	q, err := c.meter.Measure(ctx, c.in.Path, out.Path)
	if err != nil {
		if errors.Is(err, ErrUnmeasurable) {
			return QualityResult{}, err
		}
		return QualityResult{}, WrapErrorf(ErrUnmeasurable, "rate factor %.1f: %v", k.Param(), err)
	}
	c.measureCalls++
	c.quality.Insert(k, q)
	if !c.qualityObserved || q.Value < c.minObservedQuality {
		c.minObservedQuality = q.Value
		c.qualityObserved = true
	}
	c.obs.Probe(ProbeEvent{
		Phase:      c.phase,
		Param:      k.Param(),
		Size:       out.Size,
		Quality:    q.Value,
		HasQuality: true,
		Compresses: c.compresses(out.Size),
		Cached:     true,
		Note:       "quality " + q.Source.String(),
	})
	return q, nil
}

// compresses is the search-time gate. The pure-media comparison is
// used when configured and the input stream size is known; otherwise
// total file size decides, with the container-metadata allowance for
// large files.
func (c *Context) compresses(outputSize int64) bool {
	if c.cfg.UsePureMediaComparison && c.in.StreamSize > 0 {
		return outputSize < c.in.StreamSize
	}
	return streams.CompressesWithMargin(c.in.Size, outputSize)
}

// qualityPasses applies the enforced thresholds to a known result.
func (c *Context) qualityPasses(q QualityResult) bool {
	t := c.cfg.Thresholds
	if t.ValidateSSIM && q.Value < t.MinSSIM {
		return false
	}
	if t.ValidatePSNR && q.PSNR > 0 && q.PSNR < t.MinPSNR {
		return false
	}
	msssim := t.ValidateMSSSIM || (t.ForceMSSSIMLong && c.cfg.LongInput)
	if msssim && q.MSSSIM > 0 && q.MSSSIM < t.MinMSSSIM {
		return false
	}
	return true
}

// finalize assembles the immutable Result for the chosen point.
func (c *Context) finalize(p float64, out EncodeOutput, q *QualityResult, pass bool, reason string, prediction float64) *Result {
	r := &Result{
		Strategy:     c.cfg.Strategy,
		OptimalParam: p,
		OutputSize:   out.Size,
		Iterations:   c.iterations,
		Encodes:      c.encodeCalls,
		CacheHits:    c.cacheHits,
		Pass:         pass,
		FailReason:   reason,
		InputSize:    c.in.Size,
	}
	if c.in.Size > 0 {
		r.SizeChangePct = (float64(out.Size)/float64(c.in.Size) - 1.0) * 100.0
	}
	r.CompressesTotal = streams.CompressesWithMargin(c.in.Size, out.Size)

	r.InputStreamSize = c.in.StreamSize
	if c.prober != nil && out.Path != "" {
		if info, err := c.prober.StreamSizes(out.Path); err == nil {
			r.OutputStreamSize = info.VideoStreamSize + info.AudioStreamSize
		}
	}
	if r.OutputStreamSize > 0 && r.InputStreamSize > 0 {
		r.CompressesStream = r.OutputStreamSize < r.InputStreamSize
	} else {
		r.CompressesStream = r.CompressesTotal
	}

	qualityKnown := q != nil
	if qualityKnown {
		r.SSIM = q.Value
		r.PSNR = q.PSNR
		r.MSSSIM = q.MSSSIM
		r.HasSSIM = true
		r.QualitySource = q.Source
		r.QualityPassed = c.qualityPasses(*q)
	}
	if c.qualityObserved {
		r.ActualMinSSIM = c.minObservedQuality
	}

	qv := 0.0
	if qualityKnown {
		qv = q.Value
	}
	r.Breakdown = ConfidenceBreakdown{
		Sampling:    1.0,
		Prediction:  prediction,
		Margin:      marginScore(c.in.Size, out.Size),
		Reliability: reliabilityScore(qv, qualityKnown),
	}
	r.Confidence = r.Breakdown.Overall()

	if rec := recorderIn(c.obs); rec != nil {
		r.Trace = rec.Events
	}
	return r
}

// predictionScore rates how close the configured starting point came
// to the chosen one, relative to the run's range.
func (c *Context) predictionScore(chosen float64) float64 {
	rng := c.cfg.MaxParam - c.cfg.MinParam
	if rng <= 0 {
		return 0.5
	}
	dev := math.Abs(chosen-c.cfg.InitialParam) / rng
	score := 1.0 - dev
	if score < 0 {
		return 0
	}
	return score
}
