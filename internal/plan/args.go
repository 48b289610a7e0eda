package plan

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// hwaccelDevice maps the configured acceleration type to ffmpeg's -hwaccel
// value. The empty string disables acceleration.
func hwaccelDevice(kind string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "":
		return "", true
	case "auto", "nvenc":
		return "cuda", true
	case "qsv":
		return "qsv", true
	case "amf":
		return "d3d11va", true
	case "vaapi":
		return "vaapi", true
	default:
		return "", false
	}
}

func buildArgs(p Plan, opts Options) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
	if device, _ := hwaccelDevice(opts.HWAccel); device != "" {
		args = append(args, "-hwaccel", device)
	}
	args = append(args, "-i", p.InputPath)

	for _, v := range p.Video {
		args = append(args, "-map", mapSpec(v.Index))
	}
	for _, a := range p.Audio {
		args = append(args, "-map", mapSpec(a.Stream.Index))
	}
	for _, s := range p.Subtitles {
		args = append(args, "-map", mapSpec(s.Index))
	}

	if len(p.Video) > 0 {
		args = append(args, "-c:v", "copy")
	}
	for i, a := range p.Audio {
		args = append(args, fmt.Sprintf("-c:a:%d", i), a.Codec)
		if a.Copy() {
			continue
		}
		args = append(args, fmt.Sprintf("-b:a:%d", i), strconv.Itoa(a.Bitrate)+"k")
		if a.Channels > 0 {
			args = append(args, fmt.Sprintf("-ac:a:%d", i), strconv.Itoa(a.Channels))
		}
	}
	if len(p.Subtitles) > 0 {
		args = append(args, "-c:s", "copy")
	}

	for i := range p.Audio {
		if i == 0 {
			args = append(args, "-disposition:a:0", "default")
			continue
		}
		args = append(args, fmt.Sprintf("-disposition:a:%d", i), "0")
	}

	args = append(args, "-map_metadata", "0", "-map_chapters", "0")
	if isMP4(p.OutputPath) {
		args = append(args, "-movflags", "use_metadata_tags")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", outputArg(p.OutputPath))
	return args
}

// outputArg anchors a relative output path to the working directory so a
// leading '-' or a colon can never be read as an option or protocol.
func outputArg(path string) string {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "."+string(filepath.Separator)) {
		return path
	}
	return "." + string(filepath.Separator) + path
}

func mapSpec(index int) string {
	return "0:" + strconv.Itoa(index)
}

func isMP4(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return true
	default:
		return false
	}
}
