package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the orchestrator.
// Zero values mean "unspecified" and are replaced by defaults in WithDefaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Self-managed GPU instance.
	InstanceID      string `json:"instance_id" yaml:"instance_id" toml:"instance_id"`
	Region          string `json:"region" yaml:"region" toml:"region"`
	InstanceBaseURL string `json:"instance_base_url" yaml:"instance_base_url" toml:"instance_base_url"`

	// Third-party serverless backend. Empty disables the fallback path.
	ServerlessBaseURL string `json:"serverless_base_url" yaml:"serverless_base_url" toml:"serverless_base_url"`

	// CORS origins allowed to call the API. Empty allows none.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	// Timers and timeouts. Config files accept Go duration strings.
	ProbeTimeout   Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	HealthTTL      Duration `json:"health_ttl" yaml:"health_ttl" toml:"health_ttl"`
	BootTimeout    Duration `json:"boot_timeout" yaml:"boot_timeout" toml:"boot_timeout"`
	PollInterval   Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	ControlTimeout Duration `json:"control_timeout" yaml:"control_timeout" toml:"control_timeout"`
	IdleTimeout    Duration `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout"`
	TrainReadyWait Duration `json:"train_ready_wait" yaml:"train_ready_wait" toml:"train_ready_wait"`
}

// Defaults applied by WithDefaults when the corresponding field is unset.
const (
	DefaultAddr           = ":8090"
	DefaultProbeTimeout   = 5 * time.Second
	DefaultHealthTTL      = 30 * time.Second
	DefaultBootTimeout    = 5 * time.Minute
	DefaultPollInterval   = 10 * time.Second
	DefaultControlTimeout = 30 * time.Second
	DefaultIdleTimeout    = 15 * time.Minute
	DefaultTrainReadyWait = 2 * time.Minute
)

// WithDefaults returns a copy of c with unset fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = Duration(DefaultProbeTimeout)
	}
	if c.HealthTTL <= 0 {
		c.HealthTTL = Duration(DefaultHealthTTL)
	}
	if c.BootTimeout <= 0 {
		c.BootTimeout = Duration(DefaultBootTimeout)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.ControlTimeout <= 0 {
		c.ControlTimeout = Duration(DefaultControlTimeout)
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.TrainReadyWait <= 0 {
		c.TrainReadyWait = Duration(DefaultTrainReadyWait)
	}
	return c
}

// Validate reports fatal configuration errors. The self-managed backend
// requires an instance identity and a base URL; startup fails immediately
// rather than attempting lifecycle operations with partial settings.
func (c Config) Validate() error {
	if c.InstanceID == "" && c.ServerlessBaseURL == "" {
		return fmt.Errorf("no backend configured: set instance_id or serverless_base_url")
	}
	if c.InstanceID != "" {
		if c.Region == "" {
			return fmt.Errorf("instance_id is set but region is empty")
		}
		if c.InstanceBaseURL == "" {
			return fmt.Errorf("instance_id is set but instance_base_url is empty")
		}
	}
	return nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
