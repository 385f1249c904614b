// Package config loads the operator configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ScriptConfig maps a registered script to its inference backend.
type ScriptConfig struct {
	URL           string                 `yaml:"url"`
	PayloadFormat string                 `yaml:"payload_format"`
	Settings      map[string]interface{} `yaml:"settings"`
}

// GatewayConfig holds the ledger gateway endpoints.
type GatewayConfig struct {
	GraphQLURL string        `yaml:"graphql_url"`
	DataURL    string        `yaml:"data_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// BundlerConfig holds the upload and token-registration endpoints.
type BundlerConfig struct {
	NodeURL          string        `yaml:"node_url"`
	RegistryURL      string        `yaml:"registry_url"`
	RegisterProvider string        `yaml:"register_provider"`
	Timeout          time.Duration `yaml:"timeout"`
}

// OperatorConfig holds loop behavior settings.
type OperatorConfig struct {
	WalletPath       string        `yaml:"wallet_path"`
	SleepTime        time.Duration `yaml:"sleep_time"`
	StartBlockHeight int64         `yaml:"start_block_height"`
	MaxImages        int           `yaml:"max_images"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	OutputDir        string        `yaml:"output_dir"`
	BeaconInterval   time.Duration `yaml:"beacon_interval"`
}

// ServerConfig holds the operational HTTP surface.
type ServerConfig struct {
	OpsPort     int `yaml:"ops_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// Config is the complete operator configuration.
type Config struct {
	Gateway  GatewayConfig           `yaml:"gateway"`
	Bundler  BundlerConfig           `yaml:"bundler"`
	Operator OperatorConfig          `yaml:"operator"`
	Server   ServerConfig            `yaml:"server"`
	URLs     map[string]ScriptConfig `yaml:"urls"`
}

// Load reads the config file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GATEWAY_GRAPHQL_URL"); v != "" {
		c.Gateway.GraphQLURL = v
	}
	if v := os.Getenv("GATEWAY_DATA_URL"); v != "" {
		c.Gateway.DataURL = v
	}
	if v := os.Getenv("BUNDLER_NODE_URL"); v != "" {
		c.Bundler.NodeURL = v
	}
	if v := os.Getenv("BUNDLER_REGISTRY_URL"); v != "" {
		c.Bundler.RegistryURL = v
	}
	if v := os.Getenv("WALLET_PATH"); v != "" {
		c.Operator.WalletPath = v
	}
	if v := os.Getenv("SLEEP_TIME_SECONDS"); v != "" {
		c.Operator.SleepTime = time.Duration(cast.ToInt64(v)) * time.Second
	}
	if v := os.Getenv("START_BLOCK_HEIGHT"); v != "" {
		c.Operator.StartBlockHeight = cast.ToInt64(v)
	}
	if v := os.Getenv("OPS_PORT"); v != "" {
		c.Server.OpsPort = cast.ToInt(v)
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		c.Server.MetricsPort = cast.ToInt(v)
	}
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Gateway.GraphQLURL == "" {
		return fmt.Errorf("gateway graphql_url is required")
	}
	if c.Gateway.DataURL == "" {
		return fmt.Errorf("gateway data_url is required")
	}
	if c.Bundler.NodeURL == "" {
		return fmt.Errorf("bundler node_url is required")
	}
	if c.Bundler.RegistryURL == "" {
		return fmt.Errorf("bundler registry_url is required")
	}
	if c.Operator.WalletPath == "" {
		return fmt.Errorf("operator wallet_path is required")
	}
	if len(c.URLs) == 0 {
		return fmt.Errorf("at least one script url mapping is required")
	}
	for id, sc := range c.URLs {
		if sc.URL == "" {
			return fmt.Errorf("script %s has no backend url", id)
		}
	}

	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 30 * time.Second
	}
	if c.Bundler.Timeout <= 0 {
		c.Bundler.Timeout = 2 * time.Minute
	}
	if c.Bundler.RegisterProvider == "" {
		c.Bundler.RegisterProvider = "node2"
	}
	if c.Operator.SleepTime <= 0 {
		c.Operator.SleepTime = 30 * time.Second
	}
	if c.Operator.MaxImages <= 0 {
		c.Operator.MaxImages = 10
	}
	if c.Operator.InferenceTimeout <= 0 {
		c.Operator.InferenceTimeout = 10 * time.Minute
	}
	if c.Operator.OutputDir == "" {
		c.Operator.OutputDir = "."
	}
	if c.Operator.BeaconInterval <= 0 {
		c.Operator.BeaconInterval = 30 * time.Minute
	}
	return nil
}
