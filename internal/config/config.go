package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/felo/mail-render/internal/sanitize"
)

// EnvPrefix prefixes every environment override, e.g. MAILRENDER_SERVER_PORT
const EnvPrefix = "MAILRENDER"

// Config holds application configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Render RenderConfig `mapstructure:"render"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	MaxUploadSize string `mapstructure:"max_upload_size"`
}

// DBConfig holds database settings
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// RenderConfig holds the defaults applied to every render
type RenderConfig struct {
	LoadExternalImages bool          `mapstructure:"load_external_images"`
	Theme              string        `mapstructure:"theme"`
	Concurrency        int           `mapstructure:"concurrency"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	FetchConcurrency   int           `mapstructure:"fetch_concurrency"`
	MaxInlineImageSize string        `mapstructure:"max_inline_image_size"`
}

// CacheConfig controls the render cache
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DataDir returns the directory holding the database, ~/.mail-render
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".mail-render")
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "localhost",
			Port:          "8080",
			MaxUploadSize: "25MB",
		},
		DB: DBConfig{
			Path: filepath.Join(DataDir(), "mail-render.db"),
		},
		Render: RenderConfig{
			LoadExternalImages: false,
			Theme:              string(sanitize.ThemeLight),
			Concurrency:        4,
			FetchTimeout:       10 * time.Second,
			FetchConcurrency:   4,
			MaxInlineImageSize: "10MB",
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_size", d.Server.MaxUploadSize)
	v.SetDefault("db.path", d.DB.Path)
	v.SetDefault("render.load_external_images", d.Render.LoadExternalImages)
	v.SetDefault("render.theme", d.Render.Theme)
	v.SetDefault("render.concurrency", d.Render.Concurrency)
	v.SetDefault("render.fetch_timeout", d.Render.FetchTimeout)
	v.SetDefault("render.fetch_concurrency", d.Render.FetchConcurrency)
	v.SetDefault("render.max_inline_image_size", d.Render.MaxInlineImageSize)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.purge_interval", d.Cache.PurgeInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// Load reads the YAML file at path on top of the defaults. An empty path or
// a missing file yields the defaults. MAILRENDER_* environment variables
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed in the type system
func (c *Config) Validate() error {
	if _, err := sanitize.ParseTheme(c.Render.Theme); err != nil {
		return fmt.Errorf("render.theme: %w", err)
	}
	if c.Render.Concurrency < 1 {
		return fmt.Errorf("render.concurrency must be at least 1, got %d", c.Render.Concurrency)
	}
	if c.Render.FetchConcurrency < 1 {
		return fmt.Errorf("render.fetch_concurrency must be at least 1, got %d", c.Render.FetchConcurrency)
	}
	if c.Render.FetchTimeout <= 0 {
		return fmt.Errorf("render.fetch_timeout must be positive, got %s", c.Render.FetchTimeout)
	}
	if _, err := c.MaxInlineImageBytes(); err != nil {
		return fmt.Errorf("render.max_inline_image_size: %w", err)
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return fmt.Errorf("server.max_upload_size: %w", err)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled, got %s", c.Cache.TTL)
	}
	return nil
}

// Theme returns the configured default theme
func (c *Config) Theme() sanitize.Theme {
	t, err := sanitize.ParseTheme(c.Render.Theme)
	if err != nil {
		return sanitize.ThemeLight
	}
	return t
}

// RenderOptions returns the default per-render options
func (c *Config) RenderOptions() sanitize.Options {
	return sanitize.Options{
		LoadExternalImages: c.Render.LoadExternalImages,
		Theme:              c.Theme(),
	}
}

// MaxInlineImageBytes parses the inline image size limit; 0 means unlimited
func (c *Config) MaxInlineImageBytes() (uint64, error) {
	return parseSize(c.Render.MaxInlineImageSize)
}

// MaxUploadBytes parses the upload size limit; 0 means unlimited
func (c *Config) MaxUploadBytes() (uint64, error) {
	return parseSize(c.Server.MaxUploadSize)
}

func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// URL returns the full server URL
func (c *Config) URL() string {
	return "http://" + c.Address()
}
