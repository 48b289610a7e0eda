package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeConvert(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeTMDB()
	if err := c.normalizeTrailers(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

// applyEnv lets the environment override file values, so container
// deployments can be configured without a config file.
func (c *Config) applyEnv() error {
	if value, ok := lookupEnv("CONVERT_DIRECTORY"); ok {
		c.Convert.Directory = value
	}
	if value, ok := lookupEnv("CONVERT_TEMP_DIRECTORY"); ok {
		c.Convert.TempDir = value
	}
	if value, ok := lookupEnv("CONVERT_MAX_PARALLEL"); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("CONVERT_MAX_PARALLEL: invalid integer %q", value)
		}
		c.Convert.MaxParallel = n
	}
	if value, ok := lookupEnv("CONVERT_LANGUAGES"); ok {
		c.Convert.Languages = splitList(value)
	}
	if value, ok := lookupEnv("CONVERT_HW_ACCEL_TYPE"); ok {
		c.Convert.HWAccel = value
	}
	if value, ok := lookupEnv("CONVERT_USE_HW_ACCEL"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("CONVERT_USE_HW_ACCEL: invalid boolean %q", value)
		}
		switch {
		case !enabled:
			c.Convert.HWAccel = ""
		case strings.TrimSpace(c.Convert.HWAccel) == "":
			c.Convert.HWAccel = "auto"
		}
	}
	if value, ok := lookupEnv("TMDB_API_KEY"); ok {
		c.TMDB.APIKey = value
	}
	if value, ok := lookupEnv("TRAILER_MOVIES_DIR"); ok {
		c.Trailers.Directory = value
	}
	if value, ok := lookupEnv("TRAILER_OUTPUT_DIR"); ok {
		c.Trailers.OutputDir = value
	}
	if value, ok := lookupEnv("NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeConvert() error {
	var err error
	if c.Convert.Directory, err = expandPath(strings.TrimSpace(c.Convert.Directory)); err != nil {
		return fmt.Errorf("convert.directory: %w", err)
	}
	if c.Convert.TempDir, err = expandPath(strings.TrimSpace(c.Convert.TempDir)); err != nil {
		return fmt.Errorf("convert.temp_dir: %w", err)
	}
	c.Convert.Languages = normalizeTokens(c.Convert.Languages)
	if len(c.Convert.Languages) == 0 {
		c.Convert.Languages = append([]string(nil), defaultLanguages...)
	}
	if c.Convert.TargetBitrate == 0 {
		c.Convert.TargetBitrate = defaultTargetBitrate
	}
	c.Convert.HWAccel = strings.ToLower(strings.TrimSpace(c.Convert.HWAccel))
	if c.Convert.HWAccel == "none" || c.Convert.HWAccel == "off" {
		c.Convert.HWAccel = ""
	}
	exts := normalizeTokens(c.Convert.Extensions)
	for i, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			exts[i] = "." + ext
		}
	}
	if len(exts) == 0 {
		exts = append([]string(nil), defaultExtensions...)
	}
	c.Convert.Extensions = exts
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = fallback(c.Tools.FFmpeg, "ffmpeg")
	c.Tools.FFprobe = fallback(c.Tools.FFprobe, "ffprobe")
	c.Tools.YTDLP = fallback(c.Tools.YTDLP, "yt-dlp")
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(fallback(c.TMDB.BaseURL, defaultTMDBBaseURL), "/")
	c.TMDB.Language = fallback(c.TMDB.Language, defaultTMDBLanguage)
}

func (c *Config) normalizeTrailers() error {
	var err error
	if c.Trailers.Directory, err = expandPath(strings.TrimSpace(c.Trailers.Directory)); err != nil {
		return fmt.Errorf("trailers.directory: %w", err)
	}
	if c.Trailers.OutputDir, err = expandPath(strings.TrimSpace(c.Trailers.OutputDir)); err != nil {
		return fmt.Errorf("trailers.output_dir: %w", err)
	}
	if c.Trailers.CookiesFile, err = expandPath(strings.TrimSpace(c.Trailers.CookiesFile)); err != nil {
		return fmt.Errorf("trailers.cookies_file: %w", err)
	}
	c.Trailers.CookiesBrowser = strings.TrimSpace(c.Trailers.CookiesBrowser)
	c.Trailers.SubtitleLanguages = normalizeTokens(c.Trailers.SubtitleLanguages)
	patterns := make([]string, 0, len(c.Trailers.Patterns))
	for _, pattern := range c.Trailers.Patterns {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if len(patterns) == 0 {
		patterns = append(patterns, defaultTrailerPatterns...)
	}
	c.Trailers.Patterns = patterns
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(fallback(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(fallback(c.Logging.Level, defaultLogLevel))
}

// TrailerOutputDir returns the configured trailer destination, defaulting to
// a Trailers folder inside the movie directory.
func (c *Config) TrailerOutputDir(moviesDir string) string {
	if c.Trailers.OutputDir != "" {
		return c.Trailers.OutputDir
	}
	if moviesDir == "" {
		moviesDir = c.Trailers.Directory
	}
	if moviesDir == "" {
		return ""
	}
	return filepath.Join(moviesDir, defaultTrailersDir)
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
}

func normalizeTokens(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func fallback(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return value
}
