package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TargetpayConfig struct {
	BaseURL string `yaml:"base_url"`
	// RTLO is the Targetpay merchant/layout code.
	RTLO           string        `yaml:"rtlo"`
	TestMode       bool          `yaml:"test_mode"`
	Timeout        time.Duration `yaml:"timeout"`
	CallbackSecret string        `yaml:"callback_secret"`
	// LegacyCreditcard selects the old "creditcard" endpoint instead of
	// "creditcard_atos" (adds the currency start parameter).
	LegacyCreditcard bool `yaml:"legacy_creditcard"`
}

type PaymentConfig struct {
	Targetpay TargetpayConfig `yaml:"targetpay"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`    // how often to scan
	StaleAfter time.Duration `yaml:"stale_after"` // how old a submitted payment must be
	Limit      int           `yaml:"limit"`       // max payments per scan
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Payment.Targetpay.BaseURL == "" {
		cfg.Payment.Targetpay.BaseURL = "https://www.targetpay.com"
	}
	if cfg.Payment.Targetpay.Timeout <= 0 {
		cfg.Payment.Targetpay.Timeout = 10 * time.Second
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.Reconciler.Limit <= 0 {
		cfg.Reconciler.Limit = 200
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.Targetpay.RTLO == "" && !cfg.Payment.Targetpay.TestMode {
		return nil, errors.New("payment.targetpay.rtlo is required outside test mode")
	}
	if cfg.Payment.Targetpay.CallbackSecret == "" {
		return nil, errors.New("payment.targetpay.callback_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
