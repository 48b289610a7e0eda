package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable for every command. Settings
// that only one command needs (the TMDB key) are checked by that command.
func (c *Config) Validate() error {
	if err := c.validateConvert(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

// ValidateTrailers reports whether the trailer downloader can run.
func (c *Config) ValidateTrailers() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'ac3mux config init')", defaultPath)
	}
	if c.Trailers.CookiesBrowser != "" && c.Trailers.CookiesFile != "" {
		return errors.New("trailers.cookies_browser and trailers.cookies_file are mutually exclusive")
	}
	return nil
}

func (c *Config) validateConvert() error {
	if c.Convert.MaxParallel < 1 || c.Convert.MaxParallel > maxParallelLimit {
		return fmt.Errorf("convert.max_parallel must be between 1 and %d", maxParallelLimit)
	}
	if c.Convert.TargetBitrate < minTargetBitrate || c.Convert.TargetBitrate > maxAC3Bitrate {
		return fmt.Errorf("convert.target_bitrate must be between %d and %d kbps", minTargetBitrate, maxAC3Bitrate)
	}
	if c.Convert.HWAccel != "" && !slices.Contains(supportedHWAccel, c.Convert.HWAccel) {
		return fmt.Errorf("convert.hw_accel: unsupported value %q (want one of %v)", c.Convert.HWAccel, supportedHWAccel)
	}
	if c.Convert.TempDir != "" && c.Convert.TempDir == c.Convert.Directory {
		return errors.New("convert.temp_dir must differ from convert.directory")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
