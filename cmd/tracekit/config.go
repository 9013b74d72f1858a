package main

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tracekit-io/tracekit/internal/config"
)

// DefaultConfigPath is the default location for the tracekit configuration
// file, searched in the current directory.
const DefaultConfigPath = ".tracekit.yaml"

// ConfigPathEnvVar is the environment variable name for a custom config path.
const ConfigPathEnvVar = "TRACEKIT_CONFIG_PATH"

// FileConfig holds study-level defaults loaded from .tracekit.yaml. Command
// line flags override these; they in turn feed the metadata reconciler as
// invocation defaults.
//
//nolint:tagliatelle // snake_case is intentional for YAML config files
type FileConfig struct {
	Researcher  string   `yaml:"researcher"`
	Instrument  string   `yaml:"instrument"`
	LCProtocol  string   `yaml:"lc_protocol"`
	LCRunLength int      `yaml:"lc_run_length"`
	Polarity    string   `yaml:"polarity"`
	Tracer      []string `yaml:"tracer"`
}

// loadFileConfig loads study defaults from a YAML file at the given path.
//
// Behavior:
//   - Returns empty config (not error) if the file doesn't exist - the file
//     is optional
//   - Returns empty config + logs warning if YAML is invalid (graceful
//     degradation)
//   - Returns populated config on success
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, continuing without study defaults",
				slog.String("path", path))

			return cfg
		}

		slog.Warn("Failed to read config file, continuing without study defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg
	}

	if len(data) == 0 {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse config file, continuing without study defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &FileConfig{}
	}

	return cfg
}

// loadFileConfigFromEnv loads the config from the path in TRACEKIT_CONFIG_PATH,
// falling back to ".tracekit.yaml" in the current directory.
func loadFileConfigFromEnv() *FileConfig {
	return loadFileConfig(config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath))
}
