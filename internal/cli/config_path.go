package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"pipeval/internal/config"
	"pipeval/internal/spec"
)

// resolveConfigPath normalizes a config path or finds it from CWD.
func resolveConfigPath(configPath string) (string, error) {
	if strings.TrimSpace(configPath) == "" {
		return config.FindConfigPath("")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}

// loadConfig resolves and loads the config for a command.
func loadConfig(configPath string) (spec.Config, error) {
	resolved, err := resolveConfigPath(configPath)
	if err != nil {
		return spec.Config{}, err
	}
	return config.Load(resolved)
}
