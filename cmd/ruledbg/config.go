package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config is the optional YAML configuration for a debug run.
type config struct {
	Engine      string `yaml:"engine"`      // "walk" (default) or "instrument"
	Breakpoints []int  `yaml:"breakpoints"` // original-source lines
	TargetStep  int    `yaml:"targetStep"`  // run-to-target step index
}

// loadConfig reads path, returning defaults when path is empty.
func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Engine != "" && cfg.Engine != "walk" && cfg.Engine != "instrument" {
		return nil, fmt.Errorf("unknown engine %q in %s", cfg.Engine, path)
	}
	return cfg, nil
}
