// Package config provides configuration management for the antigravity proxy.
// It handles configuration loading with sensible defaults and validation, and exposes
// the generation defaults the request translator reads on every call.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the proxy configuration with all available options.
type Config struct {
	// Defaults are the sampling parameters applied when a request leaves them unset.
	Defaults Defaults `mapstructure:"defaults"`

	// SystemInstruction is the instruction text used when a request supplies none.
	// Empty means no default instruction.
	SystemInstruction string `mapstructure:"systemInstruction"`

	// ProjectID is the backend project requests are billed to.
	ProjectID string `mapstructure:"project_id"`

	// SessionID is sent with every request. A random one is generated when empty.
	SessionID string `mapstructure:"session_id"`

	// AccessToken is the bearer credential for the backend. Optional when the
	// backend sits behind something that authenticates on our behalf.
	AccessToken string `mapstructure:"access_token"`

	// BackendURL is the base URL of the internal backend, used by the standalone server.
	BackendURL string `mapstructure:"backend_url"`

	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// Defaults holds the per-field generation defaults.
type Defaults struct {
	// TopP controls nucleus sampling.
	// Range: 0.0 (most focused) to 1.0 (least focused). Default: 0.85
	TopP float64 `mapstructure:"top_p"`

	// TopK limits the number of highest probability tokens to consider.
	// 0 means no limit. Default: 50
	TopK int `mapstructure:"top_k"`

	// Temperature controls the randomness of the responses.
	// Range: 0.0 (deterministic) to 2.0 (very random). Default: 1.0
	Temperature float64 `mapstructure:"temperature"`

	// MaxTokens is the default maximum number of tokens to generate per candidate.
	MaxTokens int `mapstructure:"max_tokens"`
}

// ServerConfig configures the standalone HTTP server.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// New creates a new configuration with sensible defaults.
func New() *Config {
	return &Config{
		Defaults: Defaults{
			TopP:        0.85,
			TopK:        50,
			Temperature: 1.0,
			MaxTokens:   8096,
		},
		BackendURL: "https://cloudcode-pa.googleapis.com",
		Server: ServerConfig{
			Port: 8045,
			Mode: "release",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

// GenerationDefaults returns the configured sampling defaults.
func (c *Config) GenerationDefaults() Defaults {
	return c.Defaults
}

// DefaultInstruction returns the configured default system instruction text.
func (c *Config) DefaultInstruction() string {
	return c.SystemInstruction
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required and cannot be empty")
	}

	if c.Defaults.Temperature < 0.0 || c.Defaults.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", c.Defaults.Temperature)
	}

	if c.Defaults.TopP < 0.0 || c.Defaults.TopP > 1.0 {
		return fmt.Errorf("topP must be between 0.0 and 1.0, got %f", c.Defaults.TopP)
	}

	if c.Defaults.MaxTokens < 1 {
		return fmt.Errorf("maxTokens must be greater than 0, got %d", c.Defaults.MaxTokens)
	}

	if c.Defaults.TopK < 0 {
		return fmt.Errorf("topK must be non-negative, got %d", c.Defaults.TopK)
	}

	return nil
}

// newViper returns a viper instance with defaults taken from New and environment
// overrides under the ANTIGRAVITY_ prefix, e.g. ANTIGRAVITY_DEFAULTS_TOP_P.
func newViper(path string) *viper.Viper {
	v := viper.New()

	d := New()
	v.SetDefault("defaults.top_p", d.Defaults.TopP)
	v.SetDefault("defaults.top_k", d.Defaults.TopK)
	v.SetDefault("defaults.temperature", d.Defaults.Temperature)
	v.SetDefault("defaults.max_tokens", d.Defaults.MaxTokens)
	v.SetDefault("systemInstruction", d.SystemInstruction)
	v.SetDefault("project_id", d.ProjectID)
	v.SetDefault("session_id", d.SessionID)
	v.SetDefault("access_token", d.AccessToken)
	v.SetDefault("backend_url", d.BackendURL)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_path", d.Log.OutputPath)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ANTIGRAVITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// readConfig reads the config file, if any, and decodes it.
// A missing file is only an error when the path was given explicitly.
func readConfig(v *viper.Viper, path string) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Load reads the configuration from path (or ./config.yaml when empty) and the environment.
func Load(path string) (*Config, error) {
	return readConfig(newViper(path), path)
}
