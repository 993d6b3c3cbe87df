package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt          = 0.01
	DefaultDuration    = 10.0
	DefaultScene       = "chain"
	DefaultIntegrator  = "implicit"
	DefaultServiceName = "mechsim"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the run configuration. Environment variables (MECHSIM_*)
// override values from the file.
type Config struct {
	Scene      string             `yaml:"scene"      env:"MECHSIM_SCENE"`
	Integrator string             `yaml:"integrator" env:"MECHSIM_INTEGRATOR"`
	Dt         float64            `yaml:"dt"         env:"MECHSIM_DT"`
	Duration   float64            `yaml:"duration"   env:"MECHSIM_DURATION"`
	Seed       int64              `yaml:"seed"       env:"MECHSIM_SEED"`
	Params     map[string]float64 `yaml:"params"`

	Engine    EngineConfig    `yaml:"engine"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
}

type EngineConfig struct {
	// Workers > 1 lets thread-safe operations visit sibling subtrees in
	// parallel.
	Workers int `yaml:"workers" env:"MECHSIM_WORKERS"`
}

type TelemetryConfig struct {
	LogTraversals bool   `yaml:"log_traversals" env:"MECHSIM_LOG_TRAVERSALS"`
	MetricsAddr   string `yaml:"metrics_addr"   env:"MECHSIM_METRICS_ADDR"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"  env:"MECHSIM_OTLP_ENDPOINT"`
	ServiceName   string `yaml:"service_name"   env:"MECHSIM_SERVICE_NAME"`
}

type StorageConfig struct {
	Dir string `yaml:"dir" env:"MECHSIM_DATA_DIR"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:      DefaultScene,
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Params:     map[string]float64{},
		Engine:     EngineConfig{Workers: 1},
		Telemetry:  TelemetryConfig{ServiceName: DefaultServiceName},
		Storage:    StorageConfig{Dir: ".mechsim"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides cfg with the MECHSIM_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve loads path when given, or the defaults, then applies the
// environment and validates the result.
func Resolve(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalid, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalid, c.Duration)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	return nil
}

// GetParams returns a copy of the scene parameters.
func (c *Config) GetParams() map[string]float64 {
	out := make(map[string]float64, len(c.Params))
	for k, v := range c.Params {
		out[k] = v
	}
	return out
}
