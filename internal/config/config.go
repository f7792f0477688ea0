// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Synth     SynthConfig     `mapstructure:"synth" yaml:"synth"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	ViewportWidth   int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	// ActionInterval is the minimum spacing between actions on one session.
	// Zero disables pacing.
	ActionInterval time.Duration `mapstructure:"action_interval" yaml:"action_interval"`
}

// NetworkConfig tunes navigation and wait behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// StoreConfig configures the optional page-object persistence collaborator.
type StoreConfig struct {
	// PostgresURL enables the pgx-backed repository when non-empty.
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// ArtifactsConfig controls where screenshots and generated sources land.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SynthConfig tunes the code synthesizer output.
type SynthConfig struct {
	// BaseURL is prepended to page-object navigate() targets when the stored
	// URL is relative.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Indent is the indentation unit for generated source.
	Indent string `mapstructure:"indent" yaml:"indent"`
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagesmith")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.action_interval", time.Duration(0))

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.element_timeout", "10s")
	v.SetDefault("network.post_load_wait", "2s")

	// -- Store --
	v.SetDefault("store.postgres_url", "")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", defaultArtifactsDir())

	// -- Synth --
	v.SetDefault("synth.base_url", "")
	v.SetDefault("synth.indent", "  ")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("store.postgres_url", "PAGESMITH_POSTGRES_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.Network.NavigationTimeout < 0 {
		return fmt.Errorf("network.navigation_timeout must not be negative")
	}
	if c.Network.ElementTimeout < 0 {
		return fmt.Errorf("network.element_timeout must not be negative")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	switch c.Logger.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.Logger.Format)
	}
	return nil
}

// defaultArtifactsDir resolves the per-user artifact directory. Falls back to
// a relative directory when the home directory cannot be determined.
func defaultArtifactsDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "pagesmith-artifacts"
	}
	return filepath.Join(home, ".pagesmith", "artifacts")
}
