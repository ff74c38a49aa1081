// Package config provides configuration management for buildferry.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds a full build-and-publish profile. It is loaded once at
// startup and passed into orchestrators by value; there is no process-wide
// mutable registry.
type Config struct {
	// Engine
	EngineBase string `yaml:"engine_base"`

	// Project
	Source string `yaml:"source"`

	Build BuildProfile `yaml:"build"`
	Steam SteamProfile `yaml:"steam"`
	Itch  ItchProfile  `yaml:"itch"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"`
	Verbose     bool   `yaml:"verbose"`
	LogFormat   string `yaml:"log_format"` // json, text
	LogLevel    string `yaml:"log_level"`
}

// BuildProfile configures the packaging run.
type BuildProfile struct {
	Platform       string `yaml:"platform"`      // Win64, Win32, Mac
	Configuration  string `yaml:"configuration"` // Development, Shipping
	Clean          bool   `yaml:"clean"`
	OutputDir      string `yaml:"output_dir"`
	StoreOptimized bool   `yaml:"store_optimized"`
}

// SteamProfile configures publishing to Steam. The account password comes
// from the environment, never from this file.
type SteamProfile struct {
	SteamcmdPath string            `yaml:"steamcmd_path"`
	Username     string            `yaml:"username"`
	AppID        string            `yaml:"app_id"`
	Description  string            `yaml:"description"`
	BuilderDir   string            `yaml:"builder_dir"`
	Depots       map[string]string `yaml:"depots"`
}

// ItchProfile configures publishing to itch.io. The API key comes from
// the environment, never from this file.
type ItchProfile struct {
	ButlerPath string `yaml:"butler_path"`
	UserGame   string `yaml:"user_game"`
	Channel    string `yaml:"channel"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildProfile{
			Platform:      "Win64",
			Configuration: "Development",
		},
		MetricsAddr: "", // disabled unless set
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

// Load reads a profile file and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return cfg, nil
}
