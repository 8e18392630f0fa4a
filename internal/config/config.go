package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"embedview/internal/chart"
	"embedview/internal/datadir"
	"embedview/internal/logging"
)

// Config represents the embedview configuration
type Config struct {
	DataDir     string        `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	SecretsFile string        `json:"secrets_file,omitempty" yaml:"secrets_file,omitempty"`
	Server      ServerConfig  `json:"server" yaml:"server"`
	Chart       ChartConfig   `json:"chart" yaml:"chart"`
	Logging     LoggingConfig `json:"logging" yaml:"logging"`
	Metrics     MetricsConfig `json:"metrics" yaml:"metrics"`
	Storage     StorageConfig `json:"storage" yaml:"storage"`
}

// ServerConfig contains HTTP viewer settings
type ServerConfig struct {
	Host                     string `json:"host" yaml:"host"`
	Port                     int    `json:"port" yaml:"port"`
	LinkPrefix               string `json:"link_prefix" yaml:"link_prefix"`
	ReadHeaderTimeoutSeconds int    `json:"read_header_timeout_seconds" yaml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ReadHeaderTimeout returns the configured header timeout.
func (s ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the configured graceful shutdown window.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// ChartConfig contains chart layout settings
type ChartConfig struct {
	Palette          string `json:"palette" yaml:"palette"`
	Width            int    `json:"width" yaml:"width"`
	Height           int    `json:"height" yaml:"height"`
	AnimationEnabled bool   `json:"animation_enabled" yaml:"animation_enabled"`
	TitleFontSize    int    `json:"title_font_size" yaml:"title_font_size"`
	SubtitleFontSize int    `json:"subtitle_font_size" yaml:"subtitle_font_size"`
}

// Options converts the chart section into transform options.
func (c ChartConfig) Options(linkPrefix string) (chart.Options, error) {
	palette, err := chart.PaletteByName(c.Palette)
	if err != nil {
		return chart.Options{}, err
	}
	return chart.Options{
		LinkPrefix: linkPrefix,
		Palette:    palette,
		Layout: chart.Layout{
			Width:            c.Width,
			Height:           c.Height,
			AnimationEnabled: c.AnimationEnabled,
			TitleFontSize:    c.TitleFontSize,
			SubtitleFontSize: c.SubtitleFontSize,
		},
	}, nil
}

// LoggingConfig is passed through to the logging package
type LoggingConfig = logging.Config

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Address serves /metrics on a dedicated listener; empty mounts it on the viewer.
	Address                 string `json:"address,omitempty" yaml:"address,omitempty"`
	Namespace               string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	EnableDefaultCollectors bool   `json:"enable_default_collectors" yaml:"enable_default_collectors"`
}

// StorageConfig contains S3-compatible object storage credentials used
// for s3:// archive locations
type StorageConfig struct {
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`     // Supports ${ENV_VAR} expansion
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"` // Supports ${ENV_VAR} expansion
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	layout := chart.DefaultLayout()
	return &Config{
		Server: ServerConfig{
			Host:                     "127.0.0.1",
			Port:                     5000,
			LinkPrefix:               "/static/",
			ReadHeaderTimeoutSeconds: 10,
			ShutdownTimeoutSeconds:   5,
		},
		Chart: ChartConfig{
			Palette:          "paired",
			Width:            layout.Width,
			Height:           layout.Height,
			AnimationEnabled: layout.AnimationEnabled,
			TitleFontSize:    layout.TitleFontSize,
			SubtitleFontSize: layout.SubtitleFontSize,
		},
		Logging: LoggingConfig{
			Level:    logging.Info,
			Encoding: logging.EncodingJSON,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableDefaultCollectors: true,
		},
		Storage: StorageConfig{
			AccessKeyID:     "${EMBEDVIEW_S3_ACCESS_KEY_ID}",
			SecretAccessKey: "${EMBEDVIEW_S3_SECRET_ACCESS_KEY}",
			UseSSL:          true,
		},
	}
}

// Load loads configuration from a file. A missing file yields the
// defaults. Files ending in .yaml or .yml are YAML, anything else JSON.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg.finish()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	// Expand tilde in path fields before anything else so that
	// secrets_file can reference ~/... paths.
	c.expandTilde()

	// Load secrets file (KEY=VALUE) into the environment before
	// expanding ${ENV_VAR} placeholders in the config.
	if err := c.loadSecretsFile(); err != nil {
		return nil, fmt.Errorf("failed to load secrets file: %w", err)
	}

	c.expandEnvVars()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Save saves the configuration to a file in the format implied by its
// extension
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.SecretsFile = os.ExpandEnv(c.SecretsFile)

	c.Storage.Endpoint = os.ExpandEnv(c.Storage.Endpoint)
	c.Storage.AccessKeyID = os.ExpandEnv(c.Storage.AccessKeyID)
	c.Storage.SecretAccessKey = os.ExpandEnv(c.Storage.SecretAccessKey)
	c.Storage.Region = os.ExpandEnv(c.Storage.Region)
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ReadHeaderTimeoutSeconds < 0 || c.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	if _, err := chart.PaletteByName(c.Chart.Palette); err != nil {
		return fmt.Errorf("invalid chart configuration: %w", err)
	}
	if c.Chart.Width < 0 || c.Chart.Height < 0 {
		return fmt.Errorf("chart width and height must not be negative")
	}
	if c.Chart.TitleFontSize < 0 || c.Chart.SubtitleFontSize < 0 {
		return fmt.Errorf("chart font sizes must not be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	switch c.Logging.Encoding {
	case "", logging.EncodingJSON, logging.EncodingConsole:
	default:
		return fmt.Errorf("invalid logging configuration: unknown encoding %q", c.Logging.Encoding)
	}

	if c.Storage.Endpoint != "" && strings.Contains(c.Storage.Endpoint, "://") {
		return fmt.Errorf("storage.endpoint must be host[:port] without a scheme, got %q", c.Storage.Endpoint)
	}

	return nil
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued config fields. Called before env-var expansion so that
// both "~/foo" and "${SOME_PATH}" work.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return // can't expand, leave as-is
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}

	c.DataDir = expand(c.DataDir)
	c.SecretsFile = expand(c.SecretsFile)
}

// loadSecretsFile reads a KEY=VALUE file into the process environment.
// Existing environment variables are NOT overridden (shell/systemd wins).
// If SecretsFile is empty or the file doesn't exist, this is a no-op.
func (c *Config) loadSecretsFile() error {
	if c.SecretsFile == "" {
		return nil
	}
	if err := datadir.ApplyEnvFile(c.SecretsFile, nil); err != nil {
		return fmt.Errorf("cannot read secrets file %s: %w", c.SecretsFile, err)
	}
	return nil
}
