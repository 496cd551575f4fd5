package calibrate

import "strings"

// Codec identifies the target compression format.
type Codec int

const (
	CodecHEVC Codec = iota
	CodecAV1
)

func (c Codec) String() string {
	switch c {
	case CodecHEVC:
		return "hevc"
	case CodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

// Accelerator identifies the fast backend's hardware family. The
// static offsets differ per family because their rate control maps
// differently onto the software encoders.
type Accelerator int

const (
	AccelApple Accelerator = iota
	AccelNvidia
	AccelIntelQSV
	AccelAMD
	AccelVAAPI
)

func (a Accelerator) String() string {
	switch a {
	case AccelApple:
		return "apple"
	case AccelNvidia:
		return "nvidia"
	case AccelIntelQSV:
		return "intel_qsv"
	case AccelAMD:
		return "amd_amf"
	case AccelVAAPI:
		return "vaapi"
	default:
		return "unknown"
	}
}

// Offset is a static parameter translation with its tolerance band.
type Offset struct {
	Offset    float64
	Tolerance float64
}

// Empirically tuned static offsets, used when dynamic calibration has
// no anchors to work from.
var staticOffsets = map[Codec]map[Accelerator]Offset{
	CodecHEVC: {
		AccelApple:    {Offset: 5.0, Tolerance: 0.5},
		AccelNvidia:   {Offset: 3.8, Tolerance: 0.3},
		AccelIntelQSV: {Offset: 3.5, Tolerance: 0.3},
		AccelAMD:      {Offset: 4.8, Tolerance: 0.5},
		AccelVAAPI:    {Offset: 3.8, Tolerance: 0.4},
	},
	CodecAV1: {
		AccelApple:    {Offset: 0.0, Tolerance: 0.0},
		AccelNvidia:   {Offset: 3.8, Tolerance: 0.4},
		AccelIntelQSV: {Offset: 3.5, Tolerance: 0.3},
		AccelAMD:      {Offset: 4.5, Tolerance: 0.5},
		AccelVAAPI:    {Offset: 3.8, Tolerance: 0.4},
	},
}

// DetectCodec maps an ffmpeg encoder name to its calibration codec
// family. HEVC is the default family for anything unrecognized.
func DetectCodec(encoder string) Codec {
	if strings.Contains(strings.ToLower(encoder), "av1") {
		return CodecAV1
	}
	return CodecHEVC
}

// DetectAccelerator maps a hardware encoder name to its family, e.g.
// hevc_videotoolbox to Apple or av1_nvenc to Nvidia.
func DetectAccelerator(encoder string) Accelerator {
	name := strings.ToLower(encoder)
	switch {
	case strings.Contains(name, "nvenc"):
		return AccelNvidia
	case strings.Contains(name, "qsv"):
		return AccelIntelQSV
	case strings.Contains(name, "amf"):
		return AccelAMD
	case strings.Contains(name, "vaapi"):
		return AccelVAAPI
	default:
		return AccelApple
	}
}

// StaticOffset looks up the fallback translation for a codec and
// accelerator pair. Unknown pairs get a neutral offset.
func StaticOffset(c Codec, a Accelerator) Offset {
	if byAccel, ok := staticOffsets[c]; ok {
		if off, ok := byAccel[a]; ok {
			return off
		}
	}
	return Offset{Offset: 3.8, Tolerance: 0.5}
}
