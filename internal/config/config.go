package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIBase        = "http://localhost:8000/api"
	defaultSampleRate     = 44100
	defaultChunkInterval  = 100 * time.Millisecond
	primaryListenSeconds  = 20
	legacyListenSeconds   = 15
	legacyFlow            = "legacy"
	defaultMinChunkMillis = 10
)

// Config stores runtime configuration for the recognizer app.
type Config struct {
	API     APIConfig
	Audio   AudioConfig
	Listen  ListenConfig
	Session SessionConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkInterval   time.Duration
}

type ListenConfig struct {
	Flow       string
	MaxSeconds int
}

type SessionConfig struct {
	Path string
}

type LogConfig struct {
	Level slog.Level
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	flow := strings.ToLower(envOrDefault("MELO_FLOW", "primary"))
	maxSeconds := primaryListenSeconds
	if flow == legacyFlow {
		maxSeconds = legacyListenSeconds
	}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(envOrDefault("MELO_API_BASE", defaultAPIBase), "/"),
			Timeout: time.Duration(envOrDefaultInt("MELO_HTTP_TIMEOUT_MS", 0)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MELO_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("MELO_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("MELO_AUDIO_INPUT_DEVICE"), "default"),
			SampleRate:      envOrDefaultInt("MELO_SAMPLE_RATE", defaultSampleRate),
			Channels:        envOrDefaultInt("MELO_CHANNELS", 1),
			ChunkInterval:   time.Duration(envOrDefaultInt("MELO_CHUNK_INTERVAL_MS", int(defaultChunkInterval/time.Millisecond))) * time.Millisecond,
		},
		Listen: ListenConfig{
			Flow:       flow,
			MaxSeconds: envOrDefaultInt("MELO_MAX_LISTEN_SECONDS", maxSeconds),
		},
		Session: SessionConfig{
			Path: envOrDefault("MELO_SESSION_FILE", filepath.Join(home, ".config", "melo", "session.json")),
		},
		Log: LogConfig{
			Level: parseLevel(os.Getenv("MELO_LOG_LEVEL")),
		},
	}

	// Zero leaves the transport default (no client-side deadline).
	if cfg.API.Timeout < 0 {
		cfg.API.Timeout = 0
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaultSampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkInterval < defaultMinChunkMillis*time.Millisecond {
		cfg.Audio.ChunkInterval = defaultChunkInterval
	}
	if cfg.Listen.MaxSeconds <= 0 {
		cfg.Listen.MaxSeconds = maxSeconds
	}

	return cfg, nil
}

func parseLevel(value string) slog.Level {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
