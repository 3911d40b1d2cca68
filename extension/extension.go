// Package extension provides the Forge extension adapter for tienda.
//
// It implements the forge.Extension interface to integrate the point-of-sale
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tienda" or "tienda" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tienda"
	"github.com/xraph/tienda/advisor"
	"github.com/xraph/tienda/store"
	"github.com/xraph/tienda/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tienda"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Multi-currency point-of-sale and inventory ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts tienda as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tienda.Engine
	store      store.Store
	advisor    advisor.Advisor
	engineOpts []tienda.Option
}

// New creates a new tienda Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *tienda.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = tienda.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*tienda.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tienda: extension not initialized")
	}

	if !e.config.DisableStart {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tienda: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs tienda.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []tienda.Option {
	opts := make([]tienda.Option, 0, len(e.engineOpts)+4)

	// Apply config-derived options.
	if e.config.AuditCapacity > 0 {
		opts = append(opts, tienda.WithAuditCapacity(e.config.AuditCapacity))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, tienda.WithPluginTimeout(e.config.PluginTimeout))
	}
	if e.config.ResetOnCorrupt {
		opts = append(opts, tienda.WithResetOnCorrupt())
	}
	if e.advisor != nil {
		var ropts []advisor.RefresherOption
		if e.config.InsightsTimeout > 0 {
			ropts = append(ropts, advisor.WithTimeout(e.config.InsightsTimeout))
		}
		opts = append(opts, tienda.WithAdvisor(e.advisor, ropts...))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tienda: configuration is required but not found in config files; " +
				"ensure 'extensions.tienda' or 'tienda' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tienda: configuration loaded",
		forge.F("disable_start", e.config.DisableStart),
		forge.F("audit_capacity", e.config.AuditCapacity),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("insights_timeout", e.config.InsightsTimeout),
		forge.F("reset_on_corrupt", e.config.ResetOnCorrupt),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tienda" first (namespaced pattern).
	if cm.IsSet("extensions.tienda") {
		if err := cm.Bind("extensions.tienda", &cfg); err == nil {
			e.Logger().Debug("tienda: loaded config from file",
				forge.F("key", "extensions.tienda"),
			)
			return cfg, true
		}
		e.Logger().Warn("tienda: failed to bind extensions.tienda config",
			forge.F("error", "bind failed"),
		)
	}

	// Try short "tienda" key.
	if cm.IsSet("tienda") {
		if err := cm.Bind("tienda", &cfg); err == nil {
			e.Logger().Debug("tienda: loaded config from file",
				forge.F("key", "tienda"),
			)
			return cfg, true
		}
		e.Logger().Warn("tienda: failed to bind tienda config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.AuditCapacity == 0 {
		cfg.AuditCapacity = defaults.AuditCapacity
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	if cfg.InsightsTimeout == 0 {
		cfg.InsightsTimeout = defaults.InsightsTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableStart {
		yamlConfig.DisableStart = true
	}
	if programmaticConfig.ResetOnCorrupt {
		yamlConfig.ResetOnCorrupt = true
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.AuditCapacity == 0 && programmaticConfig.AuditCapacity != 0 {
		yamlConfig.AuditCapacity = programmaticConfig.AuditCapacity
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if yamlConfig.InsightsTimeout == 0 && programmaticConfig.InsightsTimeout != 0 {
		yamlConfig.InsightsTimeout = programmaticConfig.InsightsTimeout
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
