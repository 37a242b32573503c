// Package lua runs plugin scripts as modules.
//
// A script module is a Lua file whose global functions follow the same
// export table as a native plugin library (plugin_create, plugin_destroy,
// plugin_api_version, plugin_type and the optional and kind-specific
// exports). Module.Resolve binds a global function into a Go function
// value of the caller's chosen signature, so the plugin loader treats
// scripts and native libraries identically.
//
// Scripts run in a restricted state: io, os, debug and package loading
// are unavailable and require only resolves string, table, math and the
// host module. Host services are reached through the host table:
//
//	local host = require("host")
//	local text = host.verse_text("John 3:16", "KJV")
//	host.publish("echo.said", { text = text })
//
// Every host function that touches verses, files or the system is gated
// by the plugin's Policy. A denied call is reported as a violation and
// raises a Lua error.
//
// gopher-lua states are not goroutine-safe. State serialises every call
// with a mutex and bus event callbacks run on a per-module delivery
// goroutine.
package lua
