// Package am provides configuration management for doxa.
//
// Configuration is loaded from TOML files with a layered precedence:
// system (/etc/doxa/config.toml), then user (~/.doxa/doxa.toml or
// ~/.doxa/config.toml), then the nearest project file (doxa.toml or
// config.toml found by walking up from the working directory), and
// finally DOXA_* environment variables on top.
package am

import (
	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/temporal"
)

const (
	// ConfigDirPerm is the permission for created config directories.
	ConfigDirPerm = 0o755

	// ConfigFilePerm is the permission for written config files.
	ConfigFilePerm = 0o644

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "DOXA"
)

// Config is the full doxa configuration tree.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" toml:"database"`
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Inference InferenceConfig `mapstructure:"inference" toml:"inference"`
	Ontology  OntologyConfig  `mapstructure:"ontology" toml:"ontology"`
	Watch     WatchConfig     `mapstructure:"watch" toml:"watch"`
	Display   DisplayConfig   `mapstructure:"display" toml:"display"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" gives an ephemeral store.
	Path string `mapstructure:"path" toml:"path"`
}

// ServerConfig holds settings for the graph server.
type ServerConfig struct {
	// Port is the listen port. Nil means the default; zero is invalid.
	Port *int `mapstructure:"port" toml:"port"`

	// AllowedOrigins restricts websocket origins. Empty allows all.
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// InferenceConfig bounds the inference engine.
type InferenceConfig struct {
	// MaxRounds caps fixpoint iterations per Infer call. Zero means unbounded.
	MaxRounds int `mapstructure:"max_rounds" toml:"max_rounds"`

	// MaxDerivations caps total derived facts per Infer call. Zero means unbounded.
	MaxDerivations int `mapstructure:"max_derivations" toml:"max_derivations"`

	// RulesDir is loaded at startup when set. Each *.toml file defines rules.
	RulesDir string `mapstructure:"rules_dir" toml:"rules_dir"`

	// Hierarchy enables parent-inheritance rules for IS edges.
	Hierarchy bool `mapstructure:"hierarchy" toml:"hierarchy"`
}

// OntologyConfig holds fact-store settings.
type OntologyConfig struct {
	// OverlapPolicy is "reject" or "replace" for conflicting assertions.
	OverlapPolicy string `mapstructure:"overlap_policy" toml:"overlap_policy"`
}

// WatchConfig holds watch engine settings.
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
}

// DisplayConfig holds output settings.
type DisplayConfig struct {
	// JSON forces JSON output without the --json flag.
	JSON bool `mapstructure:"json" toml:"json"`

	// Color disables ANSI color when false.
	Color bool `mapstructure:"color" toml:"color"`
}

// OverlapPolicy resolves the configured overlap policy string.
func (c *Config) OverlapPolicy() (temporal.OverlapPolicy, error) {
	switch c.Ontology.OverlapPolicy {
	case "", "reject":
		return temporal.OverlapReject, nil
	case "replace":
		return temporal.OverlapReplace, nil
	default:
		return temporal.OverlapReject, errors.Newf("unknown overlap policy %q (want reject or replace)", c.Ontology.OverlapPolicy)
	}
}
