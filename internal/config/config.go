// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for learnmate.
//
// Configuration is read from ~/.learnmate/config.toml with environment
// variable overrides and built-in defaults. Precedence (lowest to highest):
//   - Built-in defaults
//   - ~/.learnmate/config.toml
//   - Environment variables (OPENAI_API_KEY, LEARNMATE_*)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete learnmate configuration.
type Config struct {
	// OpenAI holds the LLM provider configuration.
	OpenAI OpenAIConfig `toml:"openai"`

	// Search holds the web-search provider configuration.
	Search SearchConfig `toml:"search"`

	// Server holds the HTTP server configuration.
	Server ServerConfig `toml:"server"`
}

// OpenAIConfig contains OpenAI API settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Env override: OPENAI_API_KEY.
	APIKey string `toml:"api_key"`
	// BaseURL overrides the API endpoint (used for testing and proxies).
	BaseURL string `toml:"base_url"`
	// Model is the chat model used for all requests.
	Model string `toml:"model"`
}

// SearchConfig contains web-search settings.
type SearchConfig struct {
	// BaseURL is the DuckDuckGo HTML endpoint.
	BaseURL string `toml:"base_url"`
	// MaxResultsPerConcept caps resources returned per concept.
	MaxResultsPerConcept int `toml:"max_results_per_concept"`
	// MaxConcepts caps how many prerequisites are searched per call.
	MaxConcepts int `toml:"max_concepts"`
	// QueriesPerSecond throttles outbound search queries.
	QueriesPerSecond float64 `toml:"queries_per_second"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the listen port for the HTTP API.
	Port int `toml:"port"`
	// RateLimit is the allowed requests per window per client IP.
	RateLimit int `toml:"rate_limit"`
	// RateWindowSecs is the rate-limit window in seconds.
	RateWindowSecs int `toml:"rate_window_secs"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultSearchURL is the DuckDuckGo HTML search endpoint.
	DefaultSearchURL = "https://html.duckduckgo.com/html/"

	// DefaultPort is the default HTTP API port.
	DefaultPort = 8675
)

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Model: DefaultModel,
		},
		Search: SearchConfig{
			BaseURL:              DefaultSearchURL,
			MaxResultsPerConcept: 5,
			MaxConcepts:          10,
			QueriesPerSecond:     2,
		},
		Server: ServerConfig{
			Port:           DefaultPort,
			RateLimit:      100,
			RateWindowSecs: 60,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// ConfigDir returns the learnmate configuration directory (~/.learnmate).
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".learnmate"), nil
}

// Load reads the configuration from disk, applies environment overrides,
// and validates the result. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	dir, err := ConfigDir()
	if err == nil {
		path := filepath.Join(dir, "config.toml")
		if _, statErr := os.Stat(path); statErr == nil {
			if _, decErr := toml.DecodeFile(path, cfg); decErr != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, decErr)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from an explicit path (no env overrides).
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides to the configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("LEARNMATE_MODEL"); v != "" {
		c.OpenAI.Model = strings.TrimSpace(v)
	}
	if v := os.Getenv("LEARNMATE_SEARCH_URL"); v != "" {
		c.Search.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("LEARNMATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ErrMissingAPIKey indicates no OpenAI API key is configured.
var ErrMissingAPIKey = errors.New("OpenAI API key is required: set OPENAI_API_KEY or openai.api_key in config.toml")

// Validate checks configuration values and normalizes out-of-range numbers.
// A missing API key is not a validation error; callers that need the LLM
// check with RequireAPIKey before making requests.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Search.MaxResultsPerConcept < 1 {
		c.Search.MaxResultsPerConcept = 5
	}
	if c.Search.MaxConcepts < 1 {
		c.Search.MaxConcepts = 10
	}
	if c.Search.QueriesPerSecond <= 0 {
		c.Search.QueriesPerSecond = 2
	}
	if c.Server.RateLimit < 1 {
		c.Server.RateLimit = 100
	}
	if c.Server.RateWindowSecs < 1 {
		c.Server.RateWindowSecs = 60
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultModel
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey if no API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Save writes the configuration to ~/.learnmate/config.toml.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.toml")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
