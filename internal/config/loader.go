package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Stage kinds and options are checked later, when the registry builds them.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if len(cfg.Stages) == 0 {
		errs = append(errs, errors.New("stages: at least one stage is required"))
	}

	seen := make(map[string]string)
	Walk(cfg.Stages, func(path []string, s StageConfig) {
		prefix := stagePrefix(path, s)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == ".." {
				errs = append(errs, fmt.Errorf("%s.name %q is not a valid directory name", prefix, s.Name))
			}
			if prev, ok := seen[s.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of %s", prefix, s.Name, prev))
			} else {
				seen[s.Name] = prefix
			}
		}
		if s.Kind == "" {
			errs = append(errs, fmt.Errorf("%s.kind is required", prefix))
		}
		if s.OutDir == "" && cfg.OutputRoot == "" {
			errs = append(errs, fmt.Errorf("%s: out_dir is required when output_root is not set", prefix))
		}
	})

	return errors.Join(errs...)
}

func stagePrefix(path []string, s StageConfig) string {
	name := s.Name
	if name == "" {
		name = "?"
	}
	return "stages[" + strings.Join(append(path[:len(path):len(path)], name), "/") + "]"
}
