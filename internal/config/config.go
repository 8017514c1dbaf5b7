// Package config provides the configuration schema, loader, and stage registry
// for the audioflow pipeline.
package config

import (
	"bytes"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level returns the slog level for l. Unknown and empty levels map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for audioflow.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// OutputRoot is the parent of every stage's default output directory.
	OutputRoot string `yaml:"output_root"`

	// MetricsFile, when set, receives a Prometheus text-format dump of the
	// pipeline metrics after every batch.
	MetricsFile string `yaml:"metrics_file"`

	// Tools locates the external programs the stages invoke.
	Tools Tools `yaml:"tools"`

	// Stages are the root stages. Every input is handed to each of them.
	Stages []StageConfig `yaml:"stages"`
}

// Tools holds executable names or paths and installation directories of the
// external tools. Empty values fall back to the tool's default name on $PATH.
type Tools struct {
	Lame  string `yaml:"lame"`
	Sox   string `yaml:"sox"`
	Praat string `yaml:"praat"`

	// OpenSmileHome is the openSMILE installation directory.
	OpenSmileHome string `yaml:"opensmile_home"`

	// KaldiHome is the Kaldi source tree.
	KaldiHome string `yaml:"kaldi_home"`

	// OpenAIAPIKey authenticates the openai_transcribe stage.
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

// StageConfig declares one stage of the pipeline tree.
type StageConfig struct {
	// Name identifies the stage in logs and metrics and names its default
	// output directory. Unique across the whole tree.
	Name string `yaml:"name"`

	// Kind selects the stage implementation from the [Registry].
	Kind string `yaml:"kind"`

	// OutDir overrides the default output directory, OutputRoot/Name.
	OutDir string `yaml:"out_dir"`

	// Options are kind-specific settings, decoded with [StageConfig.DecodeOptions].
	Options map[string]any `yaml:"options"`

	// Next are the consumers of this stage's artifacts, in emission order.
	Next []StageConfig `yaml:"next"`
}

// DecodeOptions decodes Options into v, which should be a pointer to a
// struct with yaml tags. Unknown option keys are an error.
func (s StageConfig) DecodeOptions(v any) error {
	if len(s.Options) == 0 {
		return nil
	}
	data, err := yaml.Marshal(s.Options)
	if err != nil {
		return fmt.Errorf("config: stage %q: encode options: %w", s.Name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("config: stage %q: options: %w", s.Name, err)
	}
	return nil
}

// Walk calls fn for every stage in the tree rooted at stages, depth first
// and in declaration order. path is the chain of ancestor names.
func Walk(stages []StageConfig, fn func(path []string, s StageConfig)) {
	walk(nil, stages, fn)
}

func walk(path []string, stages []StageConfig, fn func([]string, StageConfig)) {
	for _, s := range stages {
		fn(path, s)
		walk(append(path[:len(path):len(path)], s.Name), s.Next, fn)
	}
}
