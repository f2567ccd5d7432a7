package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	PolicyRetain = "retain"
	PolicyReset  = "reset"
)

type Config struct {
	Env      string         `yaml:"env" env-default:"prod"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Polling  PollingConfig  `yaml:"polling"`
	History  HistoryConfig  `yaml:"history"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url" env:"UPSTREAM_BASE_URL" env-required:"true"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type PollingConfig struct {
	FastInterval    time.Duration `yaml:"fast_interval" env-default:"5s"`
	SummaryInterval time.Duration `yaml:"summary_interval" env-default:"5m"`
	SummaryLimit    int           `yaml:"summary_limit" env-default:"5"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
	FailurePolicy   string        `yaml:"failure_policy" env:"FAILURE_POLICY" env-default:"retain"`
}

type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled" env:"HISTORY_ENABLED"`
	Path            string        `yaml:"path" env:"HISTORY_PATH" env-default:"/var/lib/sensorwatch/history.db"`
	MaxAge          time.Duration `yaml:"max_age" env-default:"24h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env-default:"10m"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// ResolvePath picks the config file: explicit flag, then CONFIG_PATH, then
// the conventional location.
func ResolvePath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	return configPath
}

func Load(configPath string) (*Config, error) {
	configPath = ResolvePath(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}

	if c.Polling.FastInterval <= 0 {
		errs = append(errs, errors.New("polling.fast_interval must be positive"))
	}
	if c.Polling.SummaryInterval <= 0 {
		errs = append(errs, errors.New("polling.summary_interval must be positive"))
	}
	if c.Polling.SummaryLimit <= 0 {
		errs = append(errs, errors.New("polling.summary_limit must be positive"))
	}
	if c.Polling.Timeout <= 0 {
		errs = append(errs, errors.New("polling.timeout must be positive"))
	}

	c.Polling.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Polling.FailurePolicy))
	switch c.Polling.FailurePolicy {
	case PolicyRetain, PolicyReset:
	default:
		errs = append(errs, fmt.Errorf("polling.failure_policy %q (allowed: retain, reset)", c.Polling.FailurePolicy))
	}

	if c.History.Enabled {
		if c.History.Path == "" {
			errs = append(errs, errors.New("history.path is required when history is enabled"))
		}
		if c.History.MaxAge <= 0 {
			errs = append(errs, errors.New("history.max_age must be positive"))
		}
		if c.History.CleanupInterval <= 0 {
			errs = append(errs, errors.New("history.cleanup_interval must be positive"))
		}
	}

	return errors.Join(errs...)
}
