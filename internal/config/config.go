package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Audio   AudioConfig   `yaml:"audio"`
	VAD     VADConfig     `yaml:"vad"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains stream intake server configuration
type ServerConfig struct {
	TCPPort               int    `yaml:"tcp_port"`
	WSPort                int    `yaml:"ws_port"`
	BindAddress           string `yaml:"bind_address"`
	MaxConcurrentSessions int    `yaml:"max_concurrent_sessions"`
	SessionTimeout        int    `yaml:"session_timeout"`     // seconds
	MaxStreamDuration     int    `yaml:"max_stream_duration"` // seconds, 0 disables the guard
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio pipeline parameters
type AudioConfig struct {
	SampleRate       int  `yaml:"sample_rate"`
	StepMs           int  `yaml:"step_ms"`
	LengthMs         int  `yaml:"length_ms"`
	KeepMs           int  `yaml:"keep_ms"`
	RingCapMs        int  `yaml:"ring_cap_ms"`
	MinStepMs        int  `yaml:"min_step_ms"`
	MaxStepMs        int  `yaml:"max_step_ms"`
	StreamingEnabled bool `yaml:"streaming_enabled"`
}

// VADConfig contains speech gate configuration
type VADConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Threshold  float32 `yaml:"threshold"`
	HighPassHz float32 `yaml:"high_pass_hz"`
}

// EngineConfig contains transcription backend configuration
type EngineConfig struct {
	Backend string `yaml:"backend"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.TCPPort < 1 || s.TCPPort > 65535 {
		return fmt.Errorf("tcp_port must be between 1 and 65535, got %d", s.TCPPort)
	}

	if s.WSPort != 0 && (s.WSPort < 1 || s.WSPort > 65535) {
		return fmt.Errorf("ws_port must be between 1 and 65535, got %d", s.WSPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max_concurrent_sessions must be positive, got %d", s.MaxConcurrentSessions)
	}

	if s.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be positive, got %d", s.SessionTimeout)
	}

	if s.MaxStreamDuration < 0 {
		return fmt.Errorf("max_stream_duration cannot be negative, got %d", s.MaxStreamDuration)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if !h.Enabled {
		return nil
	}

	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates audio pipeline configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000, got %d", a.SampleRate)
	}

	if a.StepMs < 1 {
		return fmt.Errorf("step_ms must be positive, got %d", a.StepMs)
	}

	if a.LengthMs < 1 {
		return fmt.Errorf("length_ms must be positive, got %d", a.LengthMs)
	}

	if a.KeepMs < 0 {
		return fmt.Errorf("keep_ms cannot be negative, got %d", a.KeepMs)
	}

	if a.RingCapMs < a.LengthMs {
		return fmt.Errorf("ring_cap_ms must be at least length_ms (%d), got %d", a.LengthMs, a.RingCapMs)
	}

	if a.MinStepMs < 1 {
		return fmt.Errorf("min_step_ms must be positive, got %d", a.MinStepMs)
	}

	if a.MaxStepMs < a.MinStepMs {
		return fmt.Errorf("max_step_ms must be at least min_step_ms (%d), got %d", a.MinStepMs, a.MaxStepMs)
	}

	return nil
}

// Validate validates speech gate configuration
func (v *VADConfig) Validate() error {
	if !v.Enabled {
		return nil
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.HighPassHz < 0 {
		return fmt.Errorf("high_pass_hz cannot be negative, got %f", v.HighPassHz)
	}

	return nil
}

// Validate validates engine configuration
func (e *EngineConfig) Validate() error {
	switch e.Backend {
	case "", "stub":
		return nil
	default:
		return fmt.Errorf("unknown backend %q", e.Backend)
	}
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}

	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text, got %q", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// GetSessionTimeout returns the session timeout as a duration
func (s *ServerConfig) GetSessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeout) * time.Second
}

// GetMaxStreamDuration returns the stream duration cap as a duration
func (s *ServerConfig) GetMaxStreamDuration() time.Duration {
	return time.Duration(s.MaxStreamDuration) * time.Second
}
