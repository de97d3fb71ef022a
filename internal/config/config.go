package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Events   EventsConfig   `yaml:"events"`
	Narrator NarratorConfig `yaml:"narrator"`
	Library  LibraryConfig  `yaml:"library"`
	Adaptive AdaptiveConfig `yaml:"adaptive"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type NarratorConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LibraryConfig struct {
	Path              string `yaml:"path"`
	GeneratedVariants int    `yaml:"generated_variants"`
}

type AdaptiveConfig struct {
	PriorMean                []float64 `yaml:"prior_mean"`
	PriorVariance            float64   `yaml:"prior_variance"`
	MinVignettes             int       `yaml:"min_vignettes"`
	MaxVignettes             int       `yaml:"max_vignettes"`
	FIMDetThreshold          float64   `yaml:"fim_det_threshold"`
	MaxVarianceThreshold     float64   `yaml:"max_variance_threshold"`
	Temperature              float64   `yaml:"temperature"`
	MaxNewtonIterations      int       `yaml:"max_newton_iterations"`
	ConvergenceTolerance     float64   `yaml:"convergence_tolerance"`
	UncertaintyThreshold     float64   `yaml:"uncertainty_threshold"`
	FIMRegularization        float64   `yaml:"fim_regularization"`
	CovarianceRegularization float64   `yaml:"covariance_regularization"`
}

type SessionConfig struct {
	SweepIntervalMs int  `yaml:"sweep_interval_ms"`
	AbandonAfterMs  int  `yaml:"abandon_after_ms"`
	PrewarmEnabled  bool `yaml:"prewarm_enabled"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalMs) * time.Millisecond
}

func (c *Config) AbandonAfter() time.Duration {
	return time.Duration(c.Session.AbandonAfterMs) * time.Millisecond
}

func (c *Config) NarratorTimeout() time.Duration {
	return time.Duration(c.Narrator.TimeoutMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Narrator: NarratorConfig{
			URL:       "http://localhost:8710",
			TimeoutMs: 5000,
		},
		Library: LibraryConfig{
			Path:              "vignettes/library.json",
			GeneratedVariants: 3,
		},
		Adaptive: AdaptiveConfig{
			PriorVariance:            1.0,
			MinVignettes:             5,
			MaxVignettes:             15,
			FIMDetThreshold:          0.5,
			MaxVarianceThreshold:     0.3,
			Temperature:              1.0,
			MaxNewtonIterations:      25,
			ConvergenceTolerance:     1e-6,
			UncertaintyThreshold:     0.5,
			FIMRegularization:        1e-6,
			CovarianceRegularization: 1e-6,
		},
		Session: SessionConfig{
			SweepIntervalMs: 60000,
			AbandonAfterMs:  1800000,
			PrewarmEnabled:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate rejects structurally invalid configuration before anything is
// wired up. Numeric constraints on the adaptive parameters themselves are
// enforced where the parameter set is assembled.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port out of range: %d", c.Server.MetricsPort)
	}
	if n := len(c.Adaptive.PriorMean); n != 0 && n != 7 {
		return fmt.Errorf("adaptive.prior_mean must have 7 entries, got %d", n)
	}
	if c.Library.GeneratedVariants < 0 {
		return fmt.Errorf("library.generated_variants must not be negative: %d", c.Library.GeneratedVariants)
	}
	if c.Session.SweepIntervalMs <= 0 {
		return fmt.Errorf("session.sweep_interval_ms must be positive: %d", c.Session.SweepIntervalMs)
	}
	if c.Session.AbandonAfterMs <= 0 {
		return fmt.Errorf("session.abandon_after_ms must be positive: %d", c.Session.AbandonAfterMs)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ELICIT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("ELICIT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("ELICIT_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("ELICIT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("ELICIT_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("ELICIT_NARRATOR_URL"); v != "" {
		cfg.Narrator.URL = v
	}
	if v := os.Getenv("ELICIT_LIBRARY_PATH"); v != "" {
		cfg.Library.Path = v
	}
	if v := os.Getenv("ELICIT_MIN_VIGNETTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Adaptive.MinVignettes = n
		}
	}
	if v := os.Getenv("ELICIT_MAX_VIGNETTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Adaptive.MaxVignettes = n
		}
	}
	if v := os.Getenv("ELICIT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Adaptive.Temperature = f
		}
	}
	if v := os.Getenv("ELICIT_SWEEP_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.SweepIntervalMs = n
		}
	}
	if v := os.Getenv("ELICIT_ABANDON_AFTER_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.AbandonAfterMs = n
		}
	}
	if v := os.Getenv("ELICIT_PREWARM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.PrewarmEnabled = b
		}
	}
	if v := os.Getenv("ELICIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
