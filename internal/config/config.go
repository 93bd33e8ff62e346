// Package config provides YAML-based configuration management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

// Engine kinds
const (
	EngineHTTP    = "http"
	EngineCommand = "command"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int      `yaml:"port"`
	BindAddress       string   `yaml:"bindAddress"`
	AllowOrigins      []string `yaml:"allowOrigins"`
	ReadTimeout       string   `yaml:"readTimeout"`
	WriteTimeout      string   `yaml:"writeTimeout"`
	IdleTimeout       string   `yaml:"idleTimeout"`
	BodyLimit         string   `yaml:"bodyLimit"`
	EnableCompression bool     `yaml:"enableCompression"`
	CompressionLevel  int      `yaml:"compressionLevel"`
}

// StorageConfig contains upload sink settings
type StorageConfig struct {
	UploadDirectory string `yaml:"uploadDirectory"`
	MaxUploadSize   string `yaml:"maxUploadSize"`
	NamePrefix      string `yaml:"namePrefix"`
}

// ProcessingConfig selects and tunes the processing engine
type ProcessingConfig struct {
	Engine          string   `yaml:"engine"`
	Endpoint        string   `yaml:"endpoint"`
	Command         string   `yaml:"command"`
	Args            []string `yaml:"args,omitempty"`
	Timeout         string   `yaml:"timeout"`
	JobRetention    string   `yaml:"jobRetention"`
	CleanupInterval string   `yaml:"cleanupInterval"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	RequestLogging bool   `yaml:"requestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              5000,
			BindAddress:       "0.0.0.0",
			AllowOrigins:      []string{"*"},
			ReadTimeout:       "60s",
			WriteTimeout:      "10m",
			IdleTimeout:       "120s",
			BodyLimit:         "128M",
			EnableCompression: true,
			CompressionLevel:  5,
		},
		Storage: StorageConfig{
			UploadDirectory: "./uploads",
			MaxUploadSize:   "50MiB",
			NamePrefix:      "file",
		},
		Processing: ProcessingConfig{
			Engine:          EngineHTTP,
			Endpoint:        "http://localhost:8000/parse",
			Timeout:         "5m",
			JobRetention:    "24h",
			CleanupInterval: "10m",
		},
		Log: LogConfig{
			Level:          "info",
			Format:         "text",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file, writing the defaults
// there first if it does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// fields missing from the file keep their defaults
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# docintake configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		c.Storage.UploadDirectory = dir
	}

	if endpoint := os.Getenv("ENGINE_URL"); endpoint != "" {
		c.Processing.Engine = EngineHTTP
		c.Processing.Endpoint = endpoint
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.UploadDirectory) {
		c.Storage.UploadDirectory = filepath.Join(configDir, c.Storage.UploadDirectory)
	}
}

// Validate checks that every size and duration parses and the engine is usable.
func (c *AppConfig) Validate() error {
	maxUpload, err := c.MaxUploadBytes()
	if err != nil {
		return err
	}
	// bodyLimit wraps the whole multipart request, so it must leave room
	// for a maximum-size file plus its framing. Empty disables the limit.
	if c.Server.BodyLimit != "" {
		limit, err := bytes.Parse(c.Server.BodyLimit)
		if err != nil {
			return fmt.Errorf("invalid server.bodyLimit %q: %w", c.Server.BodyLimit, err)
		}
		if limit <= maxUpload {
			return fmt.Errorf("server.bodyLimit %s must be larger than storage.maxUploadSize %s",
				c.Server.BodyLimit, c.Storage.MaxUploadSize)
		}
	}
	for name, raw := range map[string]string{
		"server.readTimeout":         c.Server.ReadTimeout,
		"server.writeTimeout":        c.Server.WriteTimeout,
		"server.idleTimeout":         c.Server.IdleTimeout,
		"processing.timeout":         c.Processing.Timeout,
		"processing.jobRetention":    c.Processing.JobRetention,
		"processing.cleanupInterval": c.Processing.CleanupInterval,
	} {
		if _, err := parseDuration(name, raw); err != nil {
			return err
		}
	}

	switch c.Processing.Engine {
	case EngineHTTP:
		if c.Processing.Endpoint == "" {
			return fmt.Errorf("processing.endpoint is required for the %s engine", EngineHTTP)
		}
	case EngineCommand:
		if c.Processing.Command == "" {
			return fmt.Errorf("processing.command is required for the %s engine", EngineCommand)
		}
	default:
		return fmt.Errorf("unknown processing.engine %q", c.Processing.Engine)
	}
	return nil
}

// MaxUploadBytes parses storage.maxUploadSize ("50MiB", "52428800").
func (c *AppConfig) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Storage.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid storage.maxUploadSize %q: %w", c.Storage.MaxUploadSize, err)
	}
	return int64(n), nil
}

// ReadTimeout returns the server read timeout
func (c *AppConfig) ReadTimeout() time.Duration {
	return mustDuration(c.Server.ReadTimeout)
}

// WriteTimeout returns the server write timeout
func (c *AppConfig) WriteTimeout() time.Duration {
	return mustDuration(c.Server.WriteTimeout)
}

// IdleTimeout returns the server idle timeout
func (c *AppConfig) IdleTimeout() time.Duration {
	return mustDuration(c.Server.IdleTimeout)
}

// EngineTimeout bounds one processing run
func (c *AppConfig) EngineTimeout() time.Duration {
	return mustDuration(c.Processing.Timeout)
}

// JobRetention is how long finished batches stay queryable
func (c *AppConfig) JobRetention() time.Duration {
	return mustDuration(c.Processing.JobRetention)
}

// CleanupInterval is how often expired batches are swept
func (c *AppConfig) CleanupInterval() time.Duration {
	return mustDuration(c.Processing.CleanupInterval)
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.UploadDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Storage.UploadDirectory, err)
	}
	return nil
}

func parseDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, raw)
	}
	return d, nil
}

// mustDuration is only used after Validate; an empty value means zero.
func mustDuration(raw string) time.Duration {
	d, _ := parseDuration("", raw)
	return d
}
