package media

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"

	"github.com/copyleftdev/crfsearch/internal/streams"
)

// FFprobeProber implements streams.Prober over an ffprobe binary,
// deriving stream sizes from bitrate and duration. When probing fails
// it degrades to the per-extension estimation.
type FFprobeProber struct{}

// NewFFprobeProber returns the adapter.
func NewFFprobeProber() *FFprobeProber {
	return &FFprobeProber{}
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	BitRate   string `json:"bit_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

func (p *FFprobeProber) StreamSizes(path string) (streams.Info, error) {
	totalSize := int64(0)
	if st, err := os.Stat(path); err == nil {
		totalSize = st.Size()
	}

	cmd := exec.CommandContext(context.Background(), "ffprobe",
		"-v", "quiet", "-print_format", "json", "-show_streams", "-show_format", path)
	raw, err := cmd.Output()
	if err != nil {
		return streams.Estimate(path, totalSize), nil
	}

	var parsed probeOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return streams.Estimate(path, totalSize), nil
	}

	duration, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return streams.Estimate(path, totalSize), nil
	}

	info := streams.Info{
		TotalFileSize: totalSize,
		Method:        streams.MethodBitrate,
		DurationSecs:  duration,
	}
	for _, s := range parsed.Streams {
		bitrate, err := strconv.ParseInt(s.BitRate, 10, 64)
		if err != nil {
			continue
		}
		size := int64(float64(bitrate) * duration / 8.0)
		switch s.CodecType {
		case "video":
			if info.VideoStreamSize == 0 {
				info.VideoStreamSize = size
				info.VideoBitrate = bitrate
			}
		case "audio":
			if info.AudioStreamSize == 0 {
				info.AudioStreamSize = size
				info.AudioBitrate = bitrate
			}
		}
	}

	if info.VideoStreamSize == 0 {
		return streams.Estimate(path, totalSize), nil
	}
	overhead := totalSize - info.PureMediaSize()
	if overhead < 0 {
		overhead = 0
	}
	info.ContainerOverhead = overhead
	return info, nil
}
