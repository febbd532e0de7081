package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/foliavcs/folia/entitystore"
	"github.com/foliavcs/folia/repo"
	"github.com/foliavcs/folia/storage"
)

// cliConfig is the on-disk shape foliactl reads, mirroring repo.Config
// plus the bits that are deployment-specific rather than repository-state.
type cliConfig struct {
	DefaultBranch string                    `yaml:"defaultBranch"`
	Indexes       []entitystore.IndexConfig `yaml:"indexes"`
	Storage       struct {
		Kind string `yaml:"kind"` // "memory" or "badger"
		Path string `yaml:"path"`
	} `yaml:"storage"`
	MetricsAddr string `yaml:"metricsAddr"`
}

func loadConfig(path string) (*cliConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("foliactl: read config: %w", err)
	}
	var cfg cliConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("foliactl: parse config: %w", err)
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "main"
	}
	if cfg.Storage.Kind == "" {
		cfg.Storage.Kind = "memory"
	}
	return &cfg, nil
}

func (c *cliConfig) repoConfig() repo.Config {
	return repo.Config{DefaultBranch: c.DefaultBranch, Indexes: c.Indexes}
}

func (c *cliConfig) openAdapter() (storage.Adapter, error) {
	switch c.Storage.Kind {
	case "memory":
		return storage.NewMemoryAdapter(), nil
	case "badger":
		return storage.OpenBadgerAdapter(storage.DefaultBadgerConfig(c.Storage.Path))
	default:
		return nil, fmt.Errorf("foliactl: unknown storage kind %q", c.Storage.Kind)
	}
}
