package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	loadErr  error
	once     sync.Once
)

// ErrMissingAPIKey means TOGETHER_API_KEY was not provided
var ErrMissingAPIKey = errors.New("TOGETHER_API_KEY must be set")

type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

type ForecastConfig struct {
	BaseURL string `yaml:"base_url"`
}

type NarrativeConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// APIKey only ever comes from the environment
	APIKey string `yaml:"-"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
}

// Load reads the config once. A failed first load is sticky: later calls
// return the same error and Get keeps panicking.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		cfg := &Config{}

		data, err := os.ReadFile(configPath)
		if err != nil {
			loadErr = fmt.Errorf("failed to read config file %s: %w", configPath, err)
			return
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			loadErr = fmt.Errorf("failed to parse config: %w", err)
			return
		}

		cfg.applyDefaults()
		cfg.applyEnv()

		if err := cfg.validate(); err != nil {
			loadErr = err
			return
		}
		instance = cfg
	})

	if loadErr != nil {
		return nil, loadErr
	}
	return instance, nil
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.SessionIdleTimeout == 0 {
		c.Server.SessionIdleTimeout = 30 * time.Minute
	}
	if c.Server.SweepInterval == 0 {
		c.Server.SweepInterval = time.Minute
	}
	if c.Narrative.Burst == 0 {
		c.Narrative.Burst = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Redis.applyDefaults()
}

// applyEnv lets the environment override file values. Secrets are read
// from the environment only.
func (c *Config) applyEnv() {
	c.Narrative.APIKey = os.Getenv("TOGETHER_API_KEY")
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Redis.applyEnv()
}

func (c *Config) validate() error {
	if c.Narrative.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Server.SessionIdleTimeout < 0 {
		return fmt.Errorf("server.session_idle_timeout cannot be negative")
	}
	if c.Server.SweepInterval < 0 {
		return fmt.Errorf("server.sweep_interval cannot be negative")
	}
	if c.Narrative.RequestsPerSecond < 0 {
		return fmt.Errorf("narrative.requests_per_second cannot be negative")
	}
	return nil
}
