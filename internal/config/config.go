package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/analytics"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Stream    StreamConfig
	Ingest    IngestConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ListenAddr  string
	ReadTimeout time.Duration
}

// StorageConfig holds series retention and durability configuration.
type StorageConfig struct {
	Path             string
	HeartRetention   int
	FocusRetention   int
	SnapshotInterval time.Duration
}

// StreamConfig holds live-viewer delivery configuration.
type StreamConfig struct {
	QueueSize      int
	KeepAlive      time.Duration
	SessionTimeout time.Duration
	SweepInterval  time.Duration
}

// IngestConfig holds producer-boundary configuration.
type IngestConfig struct {
	// DefaultSource is assigned to heart samples uploaded without a
	// device address.
	DefaultSource string
}

// AnalyticsConfig holds query-layer configuration, including the
// idle-detection thresholds. The thresholds are deliberately
// configuration rather than constants: the heuristic is advisory and
// deployments tune it.
type AnalyticsConfig struct {
	CacheCapacity int
	CacheTTL      time.Duration

	IdleLowVarianceBPM  float64
	IdleMinVarianceSpan time.Duration
	IdleSingleAppHold   time.Duration
	IdlePassiveApps     []string
	IdlePassiveAppHold  time.Duration
}

// DefaultConfig returns the configuration resolved from environment
// variables with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  getEnv("LISTEN_ADDR", ":5001"),
			ReadTimeout: getEnvSeconds("READ_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			Path:             getEnv("STORAGE_PATH", "./data"),
			HeartRetention:   getEnvInt("HR_HISTORY_MAX", 500),
			FocusRetention:   getEnvInt("WINDOW_HISTORY_MAX", 200),
			SnapshotInterval: getEnvSeconds("SAVE_INTERVAL_SECONDS", 30),
		},
		Stream: StreamConfig{
			QueueSize:      getEnvInt("STREAM_QUEUE_SIZE", 16),
			KeepAlive:      getEnvSeconds("STREAM_KEEPALIVE_SECONDS", 15),
			SessionTimeout: getEnvSeconds("SESSION_TIMEOUT_SECONDS", 90),
			SweepInterval:  getEnvSeconds("SESSION_SWEEP_SECONDS", 30),
		},
		Ingest: IngestConfig{
			DefaultSource: getEnv("DEVICE_ADDRESS", "unknown-device"),
		},
		Analytics: AnalyticsConfig{
			CacheCapacity:       getEnvInt("QUERY_CACHE_CAPACITY", 64),
			CacheTTL:            getEnvSeconds("QUERY_CACHE_TTL_SECONDS", 5),
			IdleLowVarianceBPM:  getEnvFloat("IDLE_LOW_VARIANCE_BPM", 3.0),
			IdleMinVarianceSpan: getEnvSeconds("IDLE_MIN_VARIANCE_SPAN_SECONDS", 300),
			IdleSingleAppHold:   getEnvSeconds("IDLE_SINGLE_APP_HOLD_SECONDS", 1800),
			IdlePassiveApps:     getEnvList("IDLE_PASSIVE_APPS", nil),
			IdlePassiveAppHold:  getEnvSeconds("IDLE_PASSIVE_HOLD_SECONDS", 600),
		},
	}
}

// Thresholds converts the analytics configuration to the engine's
// threshold set.
func (c *Config) Thresholds() analytics.Thresholds {
	return analytics.Thresholds{
		LowVarianceBPM:     c.Analytics.IdleLowVarianceBPM,
		MinLowVarianceSpan: c.Analytics.IdleMinVarianceSpan,
		SingleAppHold:      c.Analytics.IdleSingleAppHold,
		PassiveApps:        c.Analytics.IdlePassiveApps,
		PassiveAppHold:     c.Analytics.IdlePassiveAppHold,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Storage.HeartRetention < 1 || c.Storage.FocusRetention < 1 {
		return fmt.Errorf("retention limits must be at least 1")
	}
	if c.Storage.SnapshotInterval < time.Second {
		return fmt.Errorf("snapshot interval must be at least 1 second")
	}
	if c.Stream.QueueSize < 1 {
		return fmt.Errorf("stream queue size must be at least 1")
	}
	if c.Stream.SessionTimeout < time.Second {
		return fmt.Errorf("session timeout must be at least 1 second")
	}
	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatVal float64
		if _, err := fmt.Sscanf(value, "%g", &floatVal); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
