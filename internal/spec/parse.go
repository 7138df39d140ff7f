package spec

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseConfig decodes a YAML config document strictly: unknown fields and
// multiple documents are rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("parse config yaml: multiple documents are not supported")
		}
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}
