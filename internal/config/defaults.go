package config

const (
	defaultConfigPath    = "~/.config/ac3mux/config.toml"
	defaultStateDir      = "~/.local/share/ac3mux"
	defaultLogDir        = "~/.local/share/ac3mux/logs"
	defaultMaxParallel   = 3
	defaultTargetBitrate = 640
	defaultTMDBLanguage  = "en-US"
	defaultTMDBBaseURL   = "https://api.themoviedb.org/3"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultTrailersDir   = "Trailers"
	defaultNtfyTimeout   = 10
	maxParallelLimit     = 32
	minTargetBitrate     = 96
	maxAC3Bitrate        = 640
)

var (
	defaultLanguages       = []string{"eng", "por"}
	defaultExtensions      = []string{".mkv", ".mp4"}
	defaultTrailerPatterns = []string{"*.mp4", "*.mkv", "*.avi"}
	supportedHWAccel       = []string{"auto", "nvenc", "qsv", "amf", "vaapi"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Convert: Convert{
			MaxParallel:   defaultMaxParallel,
			Languages:     append([]string(nil), defaultLanguages...),
			TargetBitrate: defaultTargetBitrate,
			Extensions:    append([]string(nil), defaultExtensions...),
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			YTDLP:   "yt-dlp",
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Trailers: Trailers{
			Patterns: append([]string(nil), defaultTrailerPatterns...),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
