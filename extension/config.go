package extension

import "time"

// Config holds the tienda extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tienda" or "tienda" keys).
type Config struct {
	// DisableStart leaves the engine unstarted so the host can call Start
	// itself, for example after restoring a snapshot.
	DisableStart bool `json:"disable_start" mapstructure:"disable_start" yaml:"disable_start"`

	// AuditCapacity is the number of audit entries kept in the state
	// (default: 100).
	AuditCapacity int `json:"audit_capacity" mapstructure:"audit_capacity" yaml:"audit_capacity"`

	// PluginTimeout bounds every plugin callback (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// InsightsTimeout bounds one advisor request (default: 30s).
	InsightsTimeout time.Duration `json:"insights_timeout" mapstructure:"insights_timeout" yaml:"insights_timeout"`

	// ResetOnCorrupt starts from first-run defaults when the stored
	// snapshot cannot be decoded.
	ResetOnCorrupt bool `json:"reset_on_corrupt" mapstructure:"reset_on_corrupt" yaml:"reset_on_corrupt"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AuditCapacity:   100,
		PluginTimeout:   5 * time.Second,
		InsightsTimeout: 30 * time.Second,
	}
}
