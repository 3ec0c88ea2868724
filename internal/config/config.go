// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
// Batching thresholds are deliberately absent: the merge cutoff and word
// limit are fixed policy constants, not tunables.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Session SessionConfig `mapstructure:"session"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// UploadConfig bounds incoming archive payloads.
type UploadConfig struct {
	MaxBytes       int64 `mapstructure:"max_bytes"`
	TimeoutSeconds int   `mapstructure:"timeout_seconds"`
}

// SessionConfig governs progress session retention.
type SessionConfig struct {
	GraceSeconds  int `mapstructure:"grace_seconds"`
	MaxAgeSeconds int `mapstructure:"max_age_seconds"`
	SweepSeconds  int `mapstructure:"sweep_seconds"`
}

// StreamConfig tunes the progress stream publisher.
type StreamConfig struct {
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MDBATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("upload.max_bytes", 64*1024*1024)
	v.SetDefault("upload.timeout_seconds", 60)
	v.SetDefault("session.grace_seconds", 60)
	v.SetDefault("session.max_age_seconds", 1800)
	v.SetDefault("session.sweep_seconds", 15)
	v.SetDefault("stream.heartbeat_seconds", 15)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be > 0")
	}
	if c.Upload.TimeoutSeconds <= 0 {
		return fmt.Errorf("upload.timeout_seconds must be > 0")
	}
	if c.Session.GraceSeconds <= 0 {
		return fmt.Errorf("session.grace_seconds must be > 0")
	}
	if c.Session.MaxAgeSeconds <= 0 {
		return fmt.Errorf("session.max_age_seconds must be > 0")
	}
	if c.Session.SweepSeconds <= 0 {
		return fmt.Errorf("session.sweep_seconds must be > 0")
	}
	if c.Stream.HeartbeatSeconds <= 0 {
		return fmt.Errorf("stream.heartbeat_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SessionGrace returns the retention window for completed sessions.
func (c Config) SessionGrace() time.Duration {
	return time.Duration(c.Session.GraceSeconds) * time.Second
}

// SessionMaxAge returns the unconditional session eviction age.
func (c Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAgeSeconds) * time.Second
}

// SessionSweep returns the eviction janitor cadence.
func (c Config) SessionSweep() time.Duration {
	return time.Duration(c.Session.SweepSeconds) * time.Second
}

// StreamHeartbeat returns the idle keep-alive interval for progress streams.
func (c Config) StreamHeartbeat() time.Duration {
	return time.Duration(c.Stream.HeartbeatSeconds) * time.Second
}

// UploadTimeout returns the per-request processing budget.
func (c Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}
