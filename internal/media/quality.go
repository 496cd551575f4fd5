package media

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/copyleftdev/crfsearch/internal/explore"
)

// ssimFilters are tried in priority order; inputs with odd timestamps
// or mismatched geometry often fail the plain filter but pass one of
// the normalized variants.
var ssimFilters = []string{
	"[0:v][1:v]ssim",
	"[0:v]setpts=PTS-STARTPTS[ref];[1:v]setpts=PTS-STARTPTS[dist];[ref][dist]ssim",
	"[1:v][0:v]scale2ref[dist][ref];[ref][dist]ssim",
}

var (
	ssimAllRe = regexp.MustCompile(`All:\s*([0-9.]+)`)
	psnrAvgRe = regexp.MustCompile(`average:\s*([0-9.]+)`)
)

// FFmpegQualityMeter implements explore.QualityMeter: SSIM filter
// variants first, then the PSNR fallback with a predicted value. When
// everything fails it reports unmeasurable rather than guessing.
type FFmpegQualityMeter struct{}

// NewFFmpegQualityMeter returns the adapter.
func NewFFmpegQualityMeter() *FFmpegQualityMeter {
	return &FFmpegQualityMeter{}
}

func (m *FFmpegQualityMeter) Measure(ctx context.Context, reference, candidate string) (explore.QualityResult, error) {
	for _, filter := range ssimFilters {
		value, ok := m.runMetric(ctx, reference, candidate, filter, ssimAllRe)
		if ok {
			return explore.QualityResult{Value: value, Source: explore.SourceActual}, nil
		}
	}

	if psnr, ok := m.runMetric(ctx, reference, candidate, "[0:v][1:v]psnr", psnrAvgRe); ok {
		return explore.PredictFromPSNR(psnr), nil
	}

	return explore.QualityResult{}, fmt.Errorf("media: all measurement strategies failed: %w", explore.ErrUnmeasurable)
}

func (m *FFmpegQualityMeter) runMetric(ctx context.Context, reference, candidate, filter string, re *regexp.Regexp) (float64, bool) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner",
		"-i", reference, "-i", candidate,
		"-lavfi", filter, "-f", "null", "-")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, false
	}
	match := re.FindSubmatch(output)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(string(match[1]), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
