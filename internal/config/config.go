// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrMediaRootRequired is returned when MEDIA_ROOT is not set.
	ErrMediaRootRequired = errors.New("config: MEDIA_ROOT is required")
	// ErrInvalidBackgroundPolicy is returned when BACKGROUND_POLICY is not
	// "fallback" or "required".
	ErrInvalidBackgroundPolicy = errors.New("config: BACKGROUND_POLICY must be fallback or required")
	// ErrInvalidCompositionPolicy is returned when COMPOSITION_POLICY is
	// not "strict" or "permissive".
	ErrInvalidCompositionPolicy = errors.New("config: COMPOSITION_POLICY must be strict or permissive")
	// ErrInvalidDimensions is returned when the default output dimensions
	// are not positive.
	ErrInvalidDimensions = errors.New("config: DEFAULT_WIDTH and DEFAULT_HEIGHT must be positive")
	// ErrInvalidFPS is returned when VIDEO_FPS is not positive.
	ErrInvalidFPS = errors.New("config: VIDEO_FPS must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	MediaRoot string `env:"MEDIA_ROOT, required" json:"media_root"`
	TempDir   string `env:"TEMP_DIR, default=/tmp/musicvideo" json:"temp_dir"`
	// DBPath selects the SQLite database file. Empty keeps records in
	// memory.
	DBPath string `env:"DB_PATH" json:"db_path,omitempty"`

	// Composition settings
	FFmpegPath     string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath    string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	DefaultWidth   int    `env:"DEFAULT_WIDTH, default=1280" json:"default_width"`
	DefaultHeight  int    `env:"DEFAULT_HEIGHT, default=720" json:"default_height"`
	VideoFPS       int    `env:"VIDEO_FPS, default=24" json:"video_fps"`
	MinDurationSec int    `env:"MIN_DURATION_SEC, default=1" json:"min_duration_sec"`
	FallbackColor  string `env:"FALLBACK_COLOR, default=black" json:"fallback_color"`

	// Policy settings
	BackgroundPolicy  string `env:"BACKGROUND_POLICY, default=fallback" json:"background_policy"` // "fallback" or "required"
	CompositionPolicy string `env:"COMPOSITION_POLICY, default=strict" json:"composition_policy"` // "strict" or "permissive"

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional AI provider settings
	AIProviderURL          string `env:"AI_PROVIDER_URL" json:"ai_provider_url,omitempty"`
	AIProviderAPIKey       string `env:"AI_PROVIDER_API_KEY" json:"-"` // Masked in JSON
	AIProviderEndpointPath string `env:"AI_PROVIDER_ENDPOINT_PATH, default=generate" json:"ai_provider_endpoint_path"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// AIProviderEnabled returns true if a remote generation provider is
// configured.
func (c *Config) AIProviderEnabled() bool {
	return c.AIProviderURL != ""
}

// PersistenceEnabled returns true if records are stored on disk.
func (c *Config) PersistenceEnabled() bool {
	return c.DBPath != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "MEDIA_ROOT") {
			return nil, ErrMediaRootRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.MediaRoot == "" {
		return ErrMediaRootRequired
	}
	switch c.BackgroundPolicy {
	case "fallback", "required":
	default:
		return ErrInvalidBackgroundPolicy
	}
	switch c.CompositionPolicy {
	case "strict", "permissive":
	default:
		return ErrInvalidCompositionPolicy
	}
	if c.DefaultWidth <= 0 || c.DefaultHeight <= 0 {
		return ErrInvalidDimensions
	}
	if c.VideoFPS <= 0 {
		return ErrInvalidFPS
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MediaRoot: %s, TempDir: %s, DBPath: %s, FFmpegPath: %s, Default: %dx%d@%d, BackgroundPolicy: %s, CompositionPolicy: %s, S3Bucket: %s, S3Region: %s, AIProviderURL: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MediaRoot,
		c.TempDir,
		c.DBPath,
		c.FFmpegPath,
		c.DefaultWidth,
		c.DefaultHeight,
		c.VideoFPS,
		c.BackgroundPolicy,
		c.CompositionPolicy,
		c.S3Bucket,
		c.S3Region,
		c.AIProviderURL,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
