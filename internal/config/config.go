// Package config loads gallery settings from config.yaml, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/pixabay-gallery/pkg/pixabay"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PIXGALLERY_PIXABAY_API_KEY.
const EnvPrefix = "PIXGALLERY"

type Config struct {
	Pixabay    PixabayConfig    `mapstructure:"pixabay"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Client     ClientConfig     `mapstructure:"client"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	UI         UIConfig         `mapstructure:"ui"`
}

type PixabayConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	ImageType   string        `mapstructure:"image_type"`
	Orientation string        `mapstructure:"orientation"`
	SafeSearch  bool          `mapstructure:"safesearch"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PaginationConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type ClientConfig struct {
	UserAgent   string `mapstructure:"user_agent"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// RedisAddr shares quota state between processes. Empty keeps it in memory.
	RedisAddr string `mapstructure:"redis_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	// File receives logs while the interactive gallery owns the terminal.
	File string `mapstructure:"file"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

type UIConfig struct {
	// AutoloadThreshold is how many lines from the bottom trigger the next page.
	AutoloadThreshold int `mapstructure:"autoload_threshold"`
}

// Load reads configuration. An explicit configPath must exist; otherwise
// config.yaml is looked up in ./configs and the working directory and is
// optional.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The key is commonly exported without the prefix.
	_ = v.BindEnv("pixabay.api_key", EnvPrefix+"_PIXABAY_API_KEY", "PIXABAY_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pixabay.api_key", "")
	v.SetDefault("pixabay.base_url", "https://pixabay.com/api/")
	v.SetDefault("pixabay.image_type", "photo")
	v.SetDefault("pixabay.orientation", "horizontal")
	v.SetDefault("pixabay.safesearch", true)
	v.SetDefault("pixabay.timeout", 15*time.Second)
	v.SetDefault("pagination.page_size", 15)
	v.SetDefault("client.user_agent", "pixabay-gallery/0.1.0")
	v.SetDefault("client.max_attempts", 1)
	v.SetDefault("ratelimit.requests_per_minute", 100)
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("ui.autoload_threshold", 3)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Pixabay.APIKey == "" {
		return fmt.Errorf("pixabay.api_key is required (set %s_PIXABAY_API_KEY or PIXABAY_API_KEY)", EnvPrefix)
	}
	if u, err := url.Parse(c.Pixabay.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("pixabay.base_url must be an absolute URL (got %q)", c.Pixabay.BaseURL)
	}
	if c.Pixabay.Timeout <= 0 {
		return fmt.Errorf("pixabay.timeout must be > 0 (got %s)", c.Pixabay.Timeout)
	}
	if err := pixabay.ValidatePageSize(c.Pagination.PageSize); err != nil {
		return fmt.Errorf("pagination.page_size: %w", err)
	}
	if c.Client.MaxAttempts < 1 {
		return fmt.Errorf("client.max_attempts must be >= 1 (got %d)", c.Client.MaxAttempts)
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("ratelimit.requests_per_minute must be >= 0 (got %d)", c.RateLimit.RequestsPerMinute)
	}
	if c.UI.AutoloadThreshold < 0 {
		return fmt.Errorf("ui.autoload_threshold must be >= 0 (got %d)", c.UI.AutoloadThreshold)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, disabled (got %q)", c.Log.Level)
	}
	return nil
}
