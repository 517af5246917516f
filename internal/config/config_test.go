package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiredVariables(t *testing.T) {
	// Clear all environment variables
	clearEnv := func() {
		os.Unsetenv("PORT")
		os.Unsetenv("MEDIA_ROOT")
		os.Unsetenv("TEMP_DIR")
		os.Unsetenv("DB_PATH")
		os.Unsetenv("BACKGROUND_POLICY")
		os.Unsetenv("COMPOSITION_POLICY")
		os.Unsetenv("S3_BUCKET")
		os.Unsetenv("S3_REGION")
		os.Unsetenv("AWS_ACCESS_KEY_ID")
		os.Unsetenv("AWS_SECRET_ACCESS_KEY")
		os.Unsetenv("AI_PROVIDER_URL")
		os.Unsetenv("LOG_FORMAT")
		os.Unsetenv("LOG_LEVEL")
	}

	t.Run("missing MEDIA_ROOT returns error", func(t *testing.T) {
		clearEnv()

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMediaRootRequired)
	})

	t.Run("MEDIA_ROOT present succeeds", func(t *testing.T) {
		clearEnv()
		t.Setenv("MEDIA_ROOT", "/srv/media")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/srv/media", cfg.MediaRoot)
	})
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "/srv/media")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/musicvideo", cfg.TempDir)
	assert.Equal(t, "", cfg.DBPath)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 1280, cfg.DefaultWidth)
	assert.Equal(t, 720, cfg.DefaultHeight)
	assert.Equal(t, 24, cfg.VideoFPS)
	assert.Equal(t, 1, cfg.MinDurationSec)
	assert.Equal(t, "black", cfg.FallbackColor)
	assert.Equal(t, "fallback", cfg.BackgroundPolicy)
	assert.Equal(t, "strict", cfg.CompositionPolicy)
	assert.Equal(t, "generate", cfg.AIProviderEndpointPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "/data/media")
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("DB_PATH", "/data/videos.db")
	t.Setenv("DEFAULT_WIDTH", "1920")
	t.Setenv("DEFAULT_HEIGHT", "1080")
	t.Setenv("VIDEO_FPS", "30")
	t.Setenv("BACKGROUND_POLICY", "required")
	t.Setenv("COMPOSITION_POLICY", "permissive")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("AI_PROVIDER_URL", "https://ai.example.com")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "/data/videos.db", cfg.DBPath)
	assert.Equal(t, 1920, cfg.DefaultWidth)
	assert.Equal(t, 1080, cfg.DefaultHeight)
	assert.Equal(t, 30, cfg.VideoFPS)
	assert.Equal(t, "required", cfg.BackgroundPolicy)
	assert.Equal(t, "permissive", cfg.CompositionPolicy)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "https://ai.example.com", cfg.AIProviderURL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidIntegerDefaults(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "/srv/media")
	t.Setenv("PORT", "not-a-number")

	// go-envconfig returns an error when parsing fails
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidPolicy(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "/srv/media")
	t.Setenv("BACKGROUND_POLICY", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBackgroundPolicy)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_AIProviderEnabled(t *testing.T) {
	assert.False(t, (&Config{}).AIProviderEnabled())
	assert.True(t, (&Config{AIProviderURL: "https://ai.example.com"}).AIProviderEnabled())
}

func TestConfig_PersistenceEnabled(t *testing.T) {
	assert.False(t, (&Config{}).PersistenceEnabled())
	assert.True(t, (&Config{DBPath: "/data/videos.db"}).PersistenceEnabled())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		MediaRoot:          "/srv/media",
		TempDir:            "/tmp/test",
		DBPath:             "/data/videos.db",
		AWSSecretAccessKey: "secret-key",
		AIProviderAPIKey:   "provider-secret",
		S3Bucket:           "bucket",
		S3Region:           "region",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/srv/media")
	assert.Contains(t, str, "/tmp/test")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "provider-secret")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)

	// Capture output to verify it's JSON
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	// Should have JSON structure
	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	// Just verify it returns a valid logger
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MediaRoot:         "/srv/media",
			BackgroundPolicy:  "fallback",
			CompositionPolicy: "strict",
			DefaultWidth:      1280,
			DefaultHeight:     720,
			VideoFPS:          24,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing media root", func(t *testing.T) {
		cfg := valid()
		cfg.MediaRoot = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMediaRootRequired)
	})

	t.Run("bad background policy", func(t *testing.T) {
		cfg := valid()
		cfg.BackgroundPolicy = "sometimes"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidBackgroundPolicy)
	})

	t.Run("bad composition policy", func(t *testing.T) {
		cfg := valid()
		cfg.CompositionPolicy = "lenient"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidCompositionPolicy)
	})

	t.Run("bad dimensions", func(t *testing.T) {
		cfg := valid()
		cfg.DefaultWidth = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidDimensions)
	})

	t.Run("bad fps", func(t *testing.T) {
		cfg := valid()
		cfg.VideoFPS = -1
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidFPS)
	})
}
