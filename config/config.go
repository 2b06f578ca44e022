// Package config loads the surveillance node configuration from YAML or
// JSON files with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ldsn-cm/ldsn/core/cluster"
	"github.com/ldsn-cm/ldsn/core/metrics"
	"github.com/ldsn-cm/ldsn/core/service"
	"github.com/ldsn-cm/ldsn/infra/mqtt"
)

type Config struct {
	MQTT    mqtt.Config        `json:"mqtt"`
	Service service.Config     `json:"service"`
	Metrics metrics.Config     `json:"metrics"`
	Storage StorageConfig      `json:"storage"`
	Cluster cluster.Thresholds `json:"cluster"`
	Network NetworkConfig      `json:"network"`
	// Diseases extends the known-disease index beyond the national
	// severity matrix.
	Diseases []string `json:"diseases"`
	// Severity overrides or extends the base priority matrix, keyed by
	// disease name with levels 1 (critical) to 5 (informational).
	Severity map[string]int `json:"severity"`
	API      APIConfig      `json:"api"`
}

// APIConfig configures the HTTP query surface.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Port    string `json:"port"`
}

// SetDefaults applies defaults to the API block.
func (c *APIConfig) SetDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Service.SetDefaults()
	cfg.Storage.SetDefaults()
	cfg.Cluster.SetDefaults()
	cfg.Network.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Network.Validate(); err != nil {
		return nil, err
	}
	for disease, level := range cfg.Severity {
		if level < 1 || level > 5 {
			return nil, fmt.Errorf("severity for %q must be between 1 and 5, got %d", disease, level)
		}
	}
	return &cfg, nil
}
