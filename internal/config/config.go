package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults applied when the config file omits a value.
const (
	DefaultSaveDir        = "music"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultConcurrency    = 10
	DefaultSegmentTimeout = 100 * time.Second
	DefaultAPIBaseURL     = "https://api.vk.com"
	DefaultAPIVersion     = "5.131"
	DefaultFFmpegBinary   = "ffmpeg"
)

// VK holds credentials and endpoint settings for the track resolver.
type VK struct {
	AccessToken string
	APIBaseURL  string
	APIVersion  string
}

// Download holds the tunables of the segment assembly pipeline.
type Download struct {
	// Concurrency bounds the number of simultaneously in-flight segment
	// tasks.
	Concurrency int
	// SegmentTimeout bounds one segment's fetch, key fetch and decrypt.
	SegmentTimeout time.Duration
	// Strict fails the whole job when any segment task fails. When false,
	// failed segments leave a gap in the output.
	Strict bool
}

// FFmpeg holds transcoder settings.
type FFmpeg struct {
	Binary string
}

// Config holds the fully processed application configuration.
type Config struct {
	SaveDir   string
	LogLevel  string
	LogFormat string
	UserAgent string
	VK        VK
	Download  Download
	FFmpeg    FFmpeg
}

// rawConfig is the intermediate structure that maps directly to the TOML
// file. Durations arrive as strings and are parsed during processing.
type rawConfig struct {
	SaveDir   string `toml:"save_dir"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	UserAgent string `toml:"user_agent"`

	VK struct {
		AccessToken string `toml:"access_token"`
		APIBaseURL  string `toml:"api_base_url"`
		APIVersion  string `toml:"api_version"`
	} `toml:"vk"`

	Download struct {
		Concurrency    int    `toml:"concurrency"`
		SegmentTimeout string `toml:"segment_timeout"`
		Strict         bool   `toml:"strict"`
	} `toml:"download"`

	FFmpeg struct {
		Binary string `toml:"binary"`
	} `toml:"ffmpeg"`
}

// Default returns a configuration with every default applied and no
// credentials set.
func Default() *Config {
	return &Config{
		SaveDir:   DefaultSaveDir,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		VK: VK{
			APIBaseURL: DefaultAPIBaseURL,
			APIVersion: DefaultAPIVersion,
		},
		Download: Download{
			Concurrency:    DefaultConcurrency,
			SegmentTimeout: DefaultSegmentTimeout,
		},
		FFmpeg: FFmpeg{
			Binary: DefaultFFmpegBinary,
		},
	}
}

// DefaultPath returns the conventional location of the config file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config dir: %w", err)
	}
	return filepath.Join(dir, "trackdl", "config.toml"), nil
}

// Load reads and parses the configuration file from the given path,
// applying defaults for any omitted value and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config TOML: %w", err)
	}

	cfg := Default()
	if raw.SaveDir != "" {
		cfg.SaveDir = raw.SaveDir
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.LogFormat != "" {
		cfg.LogFormat = raw.LogFormat
	}
	cfg.UserAgent = raw.UserAgent

	cfg.VK.AccessToken = raw.VK.AccessToken
	if raw.VK.APIBaseURL != "" {
		cfg.VK.APIBaseURL = raw.VK.APIBaseURL
	}
	if raw.VK.APIVersion != "" {
		cfg.VK.APIVersion = raw.VK.APIVersion
	}

	if raw.Download.Concurrency != 0 {
		cfg.Download.Concurrency = raw.Download.Concurrency
	}
	if raw.Download.SegmentTimeout != "" {
		d, err := time.ParseDuration(raw.Download.SegmentTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid download.segment_timeout %q: %w", raw.Download.SegmentTimeout, err)
		}
		cfg.Download.SegmentTimeout = d
	}
	cfg.Download.Strict = raw.Download.Strict

	if raw.FFmpeg.Binary != "" {
		cfg.FFmpeg.Binary = raw.FFmpeg.Binary
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SaveDir == "" {
		return fmt.Errorf("save_dir must not be empty")
	}
	if c.Download.Concurrency < 1 {
		return fmt.Errorf("download.concurrency must be at least 1, got %d", c.Download.Concurrency)
	}
	if c.Download.SegmentTimeout <= 0 {
		return fmt.Errorf("download.segment_timeout must be positive, got %s", c.Download.SegmentTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}
