// Package streams accounts for media-stream sizes as distinct from
// container sizes, so compression can be judged on the payload alone
// when container overhead would distort the comparison.
package streams

import (
	"path/filepath"
	"strings"
)

// Method records how the stream sizes were obtained.
type Method int

const (
	// MethodProbeDirect means the prober reported stream sizes itself.
	MethodProbeDirect Method = iota
	// MethodBitrate means sizes were derived from bitrate x duration.
	MethodBitrate
	// MethodEstimated means total size minus an assumed container
	// overhead for the extension.
	MethodEstimated
)

func (m Method) String() string {
	switch m {
	case MethodProbeDirect:
		return "probe direct"
	case MethodBitrate:
		return "bitrate x duration"
	case MethodEstimated:
		return "estimated"
	default:
		return "unknown"
	}
}

// Confidence of each extraction method, used by reporting.
func (m Method) Confidence() float64 {
	switch m {
	case MethodProbeDirect:
		return 0.99
	case MethodBitrate:
		return 0.90
	case MethodEstimated:
		return 0.70
	default:
		return 0
	}
}

// Info holds the size breakdown of one media file.
type Info struct {
	VideoStreamSize   int64
	AudioStreamSize   int64
	TotalFileSize     int64
	ContainerOverhead int64
	Method            Method
	DurationSecs      float64
	VideoBitrate      int64
	AudioBitrate      int64
}

// PureMediaSize is the payload size excluding container overhead.
func (i Info) PureMediaSize() int64 {
	return i.VideoStreamSize + i.AudioStreamSize
}

// ContainerOverheadPercent is the overhead share of the total size.
func (i Info) ContainerOverheadPercent() float64 {
	if i.TotalFileSize == 0 {
		return 0
	}
	return float64(i.ContainerOverhead) / float64(i.TotalFileSize) * 100.0
}

// OverheadExcessive flags containers wasting more than 10% of the file.
func (i Info) OverheadExcessive() bool {
	return i.ContainerOverheadPercent() > 10.0
}

// Prober extracts stream sizes from a file on disk.
type Prober interface {
	StreamSizes(path string) (Info, error)
}

// Assumed container overhead by extension, for the estimation fallback.
const (
	MOVOverheadPercent     = 0.005
	MP4OverheadPercent     = 0.001
	MKVOverheadPercent     = 0.0005
	DefaultOverheadPercent = 0.002
)

// OverheadPercent returns the assumed container overhead share for the
// file's extension.
func OverheadPercent(path string) float64 {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "mov":
		return MOVOverheadPercent
	case "mp4", "m4v":
		return MP4OverheadPercent
	case "mkv", "webm":
		return MKVOverheadPercent
	default:
		return DefaultOverheadPercent
	}
}

// Estimate derives an Info from the total size alone.
func Estimate(path string, totalSize int64) Info {
	overhead := int64(float64(totalSize) * OverheadPercent(path))
	video := totalSize - overhead
	if video < 0 {
		video = 0
	}
	return Info{
		VideoStreamSize:   video,
		TotalFileSize:     totalSize,
		ContainerOverhead: overhead,
		Method:            MethodEstimated,
	}
}

// Verification margins for the total-file-size comparison.
const (
	// metadataMarginRatio tolerates container metadata growth.
	metadataMarginRatio = 0.005
	metadataMarginMin   = 2048
	metadataMarginMax   = 102400

	// SmallFileThreshold is where the margin stops mattering: below
	// it the comparison is taken strictly.
	SmallFileThreshold = 10 << 20
)

// MetadataMargin is the byte allowance for container metadata when
// comparing total file sizes: 0.5% of the input, clamped.
func MetadataMargin(inputSize int64) int64 {
	m := int64(float64(inputSize) * metadataMarginRatio)
	if m < metadataMarginMin {
		return metadataMarginMin
	}
	if m > metadataMarginMax {
		return metadataMarginMax
	}
	return m
}

// CompressesWithMargin judges the total-size comparison with the
// metadata allowance. Large files may grow by up to the margin and
// still count, provided the media payload shrank; small files are
// compared strictly.
func CompressesWithMargin(inputSize, outputSize int64) bool {
	if inputSize < SmallFileThreshold {
		return outputSize < inputSize
	}
	return outputSize < inputSize+MetadataMargin(inputSize)
}
