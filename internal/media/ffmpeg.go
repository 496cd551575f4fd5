// Package media adapts external ffmpeg/ffprobe processes to the
// engine's ports. The engine itself never shells out; everything
// process-shaped lives here.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/crfsearch/internal/explore"
)

// EncoderOptions selects the codec and where artifacts go.
type EncoderOptions struct {
	// Codec is the ffmpeg video encoder name, e.g. libx265 or
	// libsvtav1 for the precise backends, hevc_videotoolbox or
	// hevc_nvenc for the fast ones.
	Codec string
	// Preset is passed through when non-empty.
	Preset string
	// WorkDir receives the encoded artifacts.
	WorkDir string
	// Extension of the output container, without the dot.
	Extension string
	// Log, when set, records every subprocess invocation at debug
	// level. Nil disables invocation logging.
	Log *zap.Logger
}

// FFmpegEncoder implements explore.Encoder over an ffmpeg binary.
type FFmpegEncoder struct {
	opts EncoderOptions
}

// NewFFmpegEncoder validates the options and returns the adapter.
func NewFFmpegEncoder(opts EncoderOptions) (*FFmpegEncoder, error) {
	if opts.Codec == "" {
		return nil, fmt.Errorf("media: codec is required")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Extension == "" {
		opts.Extension = "mkv"
	}
	return &FFmpegEncoder{opts: opts}, nil
}

// Encode re-encodes input at the given rate factor and reports the
// artifact. Identical inputs land at the same path, so the call is
// idempotent; the caller owns cache bypass.
func (e *FFmpegEncoder) Encode(ctx context.Context, input string, rateFactor float64, threads int) (explore.EncodeOutput, error) {
	out := e.outputPath(input, rateFactor)

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input,
		"-c:v", e.opts.Codec, "-crf", formatRateFactor(rateFactor)}
	if e.opts.Preset != "" {
		args = append(args, "-preset", e.opts.Preset)
	}
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	args = append(args, "-c:a", "copy", out)

	if e.opts.Log != nil {
		e.opts.Log.Debug("ffmpeg encode",
			zap.String("codec", e.opts.Codec),
			zap.Float64("rate_factor", rateFactor),
			zap.String("output", out))
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return explore.EncodeOutput{}, fmt.Errorf("media: ffmpeg exited: %w: %s", err, truncate(output))
	}

	info, err := os.Stat(out)
	if err != nil {
		return explore.EncodeOutput{}, fmt.Errorf("media: artifact missing: %w", err)
	}
	return explore.EncodeOutput{Size: info.Size(), Path: out}, nil
}

// EncodeSample encodes only the leading segment, for calibration.
func (e *FFmpegEncoder) EncodeSample(ctx context.Context, input string, rateFactor float64, maxDuration time.Duration) (int64, error) {
	out := e.outputPath(input, rateFactor) + ".sample." + e.opts.Extension

	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-t", fmt.Sprintf("%.0f", maxDuration.Seconds()), "-i", input,
		"-c:v", e.opts.Codec, "-crf", formatRateFactor(rateFactor), "-an", out}

	if e.opts.Log != nil {
		e.opts.Log.Debug("ffmpeg sample encode",
			zap.String("codec", e.opts.Codec),
			zap.Float64("rate_factor", rateFactor),
			zap.Duration("max_duration", maxDuration))
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("media: sample encode exited: %w: %s", err, truncate(output))
	}
	defer os.Remove(out)

	info, err := os.Stat(out)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (e *FFmpegEncoder) outputPath(input string, rateFactor float64) string {
	base := filepath.Base(input)
	name := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(e.opts.WorkDir,
		fmt.Sprintf("%s.%s.crf%s.%s", name, e.opts.Codec, formatRateFactor(rateFactor), e.opts.Extension))
}

func formatRateFactor(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
