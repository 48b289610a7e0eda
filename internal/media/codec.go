package media

import "strings"

// IsAC3Family reports whether codec is already playable by AC3/E-AC3-only
// receivers.
func IsAC3Family(codec string) bool {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "ac3", "eac3":
		return true
	default:
		return false
	}
}

// IsLossless reports whether codec belongs to the lossless (or lossless-class)
// family that is converted at the full AC3 target bitrate.
func IsLossless(codec string) bool {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if strings.HasPrefix(codec, "pcm_") {
		return true
	}
	switch codec {
	case "truehd", "mlp", "dts", "flac", "alac", "wavpack", "tta", "ape":
		return true
	default:
		return false
	}
}
