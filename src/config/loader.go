package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"chatgate/src/anthropic"
)

// DefaultConfigPath is the config file location under the XDG config
// directory.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "chatgate", "config.json")
}

// DefaultDatabasePath is the sqlite file location under the XDG state
// directory.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.StateHome, "chatgate", "sessions.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:     "127.0.0.1:8080",
		Model:    anthropic.DefaultModel,
		LogLevel: "info",
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   DefaultDatabasePath(),
		},
		Permissions: PermissionsConfig{
			TimeoutSeconds: 300,
			Ask:            []string{"write_file", "run_command"},
			DefaultMode:    "allow",
		},
		Cleanup: CleanupConfig{
			IntervalMinutes: 60,
			MaxAgeHours:     24 * 30,
		},
	}
}

// Load reads the config file at path (the default path when empty),
// falls back to defaults when the file is absent, and resolves upstream
// credentials from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults apply
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolveCredentials(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveCredentials fills in the API key and base URL: environment
// first, then the Claude CLI settings file.
func resolveCredentials(cfg *Config) {
	if cfg.API.Key == "" {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.API.Key = key
		} else if key := os.Getenv("ANTHROPIC_AUTH_TOKEN"); key != "" {
			cfg.API.Key = key
		}
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	}
	if cfg.API.Key == "" {
		key, baseURL := readClaudeSettings()
		cfg.API.Key = key
		if cfg.API.BaseURL == "" {
			cfg.API.BaseURL = baseURL
		}
	}
}

// readClaudeSettings pulls credentials from ~/.claude/settings.json,
// which stores them under an "env" map.
func readClaudeSettings() (key, baseURL string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	data, err := os.ReadFile(filepath.Join(home, ".claude", "settings.json"))
	if err != nil {
		return "", ""
	}
	var settings struct {
		Env map[string]string `json:"env"`
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return "", ""
	}
	key = settings.Env["ANTHROPIC_API_KEY"]
	if key == "" {
		key = settings.Env["ANTHROPIC_AUTH_TOKEN"]
	}
	return key, settings.Env["ANTHROPIC_BASE_URL"]
}
