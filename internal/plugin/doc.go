// Package plugin provides the plugin system for VerseDeck.
//
// Plugins extend the presentation application with verse search, UI
// panels, translation importers, themes, church-management integrations,
// exporters and script engines. A plugin is a module exposing a fixed
// set of C-ABI exports; the same contract is served by native shared
// libraries, Lua scripts and in-process Go exports.
//
// # Quick Start
//
// The easiest way to use the plugin system is through the System type:
//
//	config := plugin.DefaultSystemConfig()
//	config.ManagerConfig.PluginsDir = "/usr/share/versedeck/plugins"
//
//	sys := plugin.NewSystem(config)
//	if err := sys.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer sys.Shutdown(context.Background())
//
//	// Load every auto-start plugin in the plugins directory
//	if err := sys.Start(context.Background()); err != nil {
//	    log.Printf("some plugins failed to load: %v", err)
//	}
//
// # Module Contract
//
// Every module exports:
//
//	plugin_create() handle
//	plugin_destroy(handle)
//	plugin_api_version() string   // must be "1.0"
//	plugin_type() string          // search, ui, translation, theme,
//	                              // integration, export or script
//
// and optionally plugin_initialize, plugin_shutdown, plugin_info,
// plugin_configure, plugin_activate, plugin_deactivate, plugin_update and
// plugin_last_error. The exports of the declared kind are required, for
// example plugin_search and plugin_search_quality for a search plugin.
// The instance is always destroyed by the module that created it.
//
// File names follow the platform: libNAME.so on Linux, libNAME.dylib on
// macOS, NAME.dll on Windows and NAME.lua for scripts.
//
// # Lifecycle
//
//	Unloaded|Error --Load--> Loading --> Loaded --> Active
//	Active --Deactivate--> Loaded
//	Loaded|Active|Error --Unload--> Unloading --> Unloaded
//
// Load validates the file (size, signature, name), opens the module,
// checks the contract, requires every declared dependency to be active,
// applies default permissions, then calls initialize, configure and
// activate. Any failure leaves the plugin in Error with LastError set and
// the instance destroyed.
//
// # Settings
//
// Each plugin has a key=value settings file at <ConfigDir>/<name>.conf
// and a data directory at <DataDir>/<name>. The auto_start key overrides
// ManagerConfig.AutoStart for that plugin.
//
// # Security
//
// Host services reached by a plugin are gated by its sandbox in the
// security registry (see package security). Decisions persist in
// <ConfigDir>/security.conf. Enforcement is cooperative: a native module
// runs in the host process with full privileges.
//
// # Thread Safety
//
// Manager is safe for concurrent use. Calls into one plugin are
// serialised; different plugins may run concurrently. Event handlers run
// without manager locks held.
package plugin
