// Package config loads and validates the server configuration: a JSON
// file under the XDG config dir with environment overrides for
// credentials.
package config

import "time"

// Config is the complete server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `json:"addr" validate:"required"`

	// Model is the default model identifier for turns that do not
	// specify one.
	Model string `json:"model" validate:"required"`

	// SystemPrompt is prepended to every generation call.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`

	API         APIConfig         `json:"api"`
	Database    DatabaseConfig    `json:"database"`
	Permissions PermissionsConfig `json:"permissions"`
	Cleanup     CleanupConfig     `json:"cleanup"`
}

// APIConfig carries upstream credentials.
type APIConfig struct {
	Key     string `json:"key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// DatabaseConfig selects the session store backend.
type DatabaseConfig struct {
	// Driver is memory or sqlite.
	Driver string `json:"driver" validate:"oneof=memory sqlite"`

	// Path is the sqlite database file; ignored for memory.
	Path string `json:"path,omitempty"`
}

// PermissionsConfig drives the tool gating policy.
type PermissionsConfig struct {
	// TimeoutSeconds bounds how long a gated tool call waits for a
	// decision before it is denied.
	TimeoutSeconds int `json:"timeout_seconds" validate:"min=1"`

	// Allow, Ask and Deny are tool name patterns; Deny wins over Ask,
	// Ask over Allow. `*` matches any run of characters.
	Allow []string `json:"allow,omitempty"`
	Ask   []string `json:"ask,omitempty"`
	Deny  []string `json:"deny,omitempty"`

	// DefaultMode applies when no pattern matches: allow, deny or ask.
	DefaultMode string `json:"default_mode" validate:"oneof=allow deny ask"`
}

// Timeout returns the permission timeout as a duration.
func (p PermissionsConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// CleanupConfig drives the stale-session janitor.
type CleanupConfig struct {
	// IntervalMinutes is how often cleanup runs; 0 disables it.
	IntervalMinutes int `json:"interval_minutes"`

	// MaxAgeHours is the idle age past which sessions are removed.
	MaxAgeHours int `json:"max_age_hours"`
}

func (c CleanupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c CleanupConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}
