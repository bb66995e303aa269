// Package config loads viewer server configuration from an optional YAML
// file, environment variables, and command-line overrides, in increasing
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadOptions holds command-line override options
type LoadOptions struct {
	Host       string
	Port       string
	Dir        string
	LogLevel   string
	ConfigFile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// ViewerConfig holds bitmap viewer configuration
type ViewerConfig struct {
	// Dir is the directory served to the browser; only files inside it
	// can be decoded.
	Dir       string `yaml:"dir"`
	MaxWidth  int    `yaml:"maxWidth"`
	MaxHeight int    `yaml:"maxHeight"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
	EnableGzip     bool     `yaml:"enableGzip"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration with command-line overrides
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	config := defaults()

	if opts.ConfigFile != "" {
		if err := loadFile(config, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	applyEnv(config)
	applyOverrides(config, opts)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Viewer: ViewerConfig{
			Dir:       ".",
			MaxWidth:  8192,
			MaxHeight: 8192,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{},
			EnableGzip:     true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func applyEnv(config *Config) {
	config.Server.Host = getEnvWithDefault("SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvWithDefault("SERVER_PORT", config.Server.Port)
	config.Server.ReadTimeout = getDurationWithDefault("SERVER_READ_TIMEOUT", config.Server.ReadTimeout)
	config.Server.WriteTimeout = getDurationWithDefault("SERVER_WRITE_TIMEOUT", config.Server.WriteTimeout)
	config.Server.IdleTimeout = getDurationWithDefault("SERVER_IDLE_TIMEOUT", config.Server.IdleTimeout)

	config.Viewer.Dir = getEnvWithDefault("VIEWER_DIR", config.Viewer.Dir)
	config.Viewer.MaxWidth = getIntWithDefault("VIEWER_MAX_WIDTH", config.Viewer.MaxWidth)
	config.Viewer.MaxHeight = getIntWithDefault("VIEWER_MAX_HEIGHT", config.Viewer.MaxHeight)

	config.Security.AllowedOrigins = getStringSliceWithDefault("ALLOWED_ORIGINS", config.Security.AllowedOrigins)
	config.Security.EnableGzip = getBoolWithDefault("ENABLE_GZIP", config.Security.EnableGzip)

	config.Logging.Level = getEnvWithDefault("LOG_LEVEL", config.Logging.Level)
}

func applyOverrides(config *Config, opts LoadOptions) {
	if opts.Host != "" {
		config.Server.Host = opts.Host
	}
	if opts.Port != "" {
		config.Server.Port = opts.Port
	}
	if opts.Dir != "" {
		config.Viewer.Dir = opts.Dir
	}
	if opts.LogLevel != "" {
		config.Logging.Level = opts.LogLevel
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	if c.Viewer.Dir == "" {
		return fmt.Errorf("viewer directory cannot be empty")
	}

	if c.Viewer.MaxWidth <= 0 || c.Viewer.MaxHeight <= 0 {
		return fmt.Errorf("max dimensions must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceWithDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
