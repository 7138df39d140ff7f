// Package config loads, normalizes, and validates the pipeval configuration
// file. Validation failures are configuration errors: they abort before any
// worker starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"pipeval/internal/spec"
)

// Load reads, parses, normalizes, and validates a config file.
func Load(path string) (spec.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spec.Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := spec.ParseConfig(data)
	if err != nil {
		return spec.Config{}, err
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return spec.Config{}, err
	}
	ResolvePaths(&cfg, filepath.Dir(path))
	return cfg, nil
}

// ResolvePaths makes relative store paths absolute against baseDir.
func ResolvePaths(cfg *spec.Config, baseDir string) {
	cfg.Store.LedgerPath = resolve(baseDir, cfg.Store.LedgerPath)
	cfg.Store.BacklogPath = resolve(baseDir, cfg.Store.BacklogPath)
	cfg.Dataset = resolve(baseDir, cfg.Dataset)
	cfg.Analytics.DBPath = resolve(baseDir, cfg.Analytics.DBPath)
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
