package extension

import (
	"time"

	"github.com/xraph/tienda"
	"github.com/xraph/tienda/advisor"
	"github.com/xraph/tienda/plugin"
	"github.com/xraph/tienda/store"
)

// Option configures the tienda Forge extension.
type Option func(*Extension)

// WithStore sets the snapshot store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a tienda.Option through to the underlying engine.
func WithEngineOption(opt tienda.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a tienda plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, tienda.WithPlugin(p))
	}
}

// WithAdvisor sets the insights advisor.
func WithAdvisor(a advisor.Advisor) Option {
	return func(e *Extension) { e.advisor = a }
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableStart leaves the engine unstarted.
func WithDisableStart() Option {
	return func(e *Extension) { e.config.DisableStart = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithAuditCapacity sets how many audit entries are kept.
func WithAuditCapacity(n int) Option {
	return func(e *Extension) { e.config.AuditCapacity = n }
}

// WithPluginTimeout bounds every plugin callback.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithInsightsTimeout bounds one advisor request.
func WithInsightsTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.InsightsTimeout = d }
}

// WithResetOnCorrupt starts from defaults when the snapshot is unusable.
func WithResetOnCorrupt() Option {
	return func(e *Extension) { e.config.ResetOnCorrupt = true }
}
