package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL           string              `json:"base_url" yaml:"base_url"`
	BlueprintName     string              `json:"blueprint_name" yaml:"blueprint_name"`
	HTTPTimeoutSec    int                 `json:"http_timeout_sec" yaml:"http_timeout_sec"`
	CommandTimeoutSec int                 `json:"command_timeout_sec" yaml:"command_timeout_sec"`
	BuildPollSec      int                 `json:"build_poll_sec" yaml:"build_poll_sec"`
	BootPollSec       int                 `json:"boot_poll_sec" yaml:"boot_poll_sec"`
	SettleSec         int                 `json:"settle_sec" yaml:"settle_sec"`
	OutputLimit       int                 `json:"output_limit" yaml:"output_limit"`
	Observer          ObservabilityConfig `json:"observability" yaml:"observability"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.runloop.ai",
		BlueprintName:     "agentsh-sandbox",
		HTTPTimeoutSec:    120,
		CommandTimeoutSec: 30,
		BuildPollSec:      5,
		BootPollSec:       2,
		SettleSec:         10,
		OutputLimit:       200,
		Observer: ObservabilityConfig{
			ServiceName: "agentsh-verify",
			SampleRatio: 1,
		},
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

func normalizeConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.runloop.ai"
	}
	if strings.TrimSpace(cfg.BlueprintName) == "" {
		cfg.BlueprintName = "agentsh-sandbox"
	}
	if cfg.HTTPTimeoutSec <= 0 {
		cfg.HTTPTimeoutSec = 120
	}
	if cfg.CommandTimeoutSec <= 0 {
		cfg.CommandTimeoutSec = 30
	}
	if cfg.BuildPollSec <= 0 {
		cfg.BuildPollSec = 5
	}
	if cfg.BootPollSec <= 0 {
		cfg.BootPollSec = 2
	}
	if cfg.SettleSec <= 0 {
		cfg.SettleSec = 10
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = 200
	}
	if cfg.Observer.SampleRatio <= 0 || cfg.Observer.SampleRatio > 1 {
		cfg.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(cfg.Observer.ServiceName) == "" {
		cfg.Observer.ServiceName = "agentsh-verify"
	}
}
