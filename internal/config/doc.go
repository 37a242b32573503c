// Package config provides application configuration for VerseDeck.
//
// Configuration is read in three layers, each overriding the last:
//
//  1. Built-in defaults (Default)
//  2. A TOML file, usually versedeck.toml
//  3. Environment variables prefixed with VERSEDECK_, optionally seeded
//     from .env files
//
// # File Format
//
//	[paths]
//	plugins_dir = "plugins"
//	config_dir = "config"
//	data_dir = "data"
//
//	[plugins]
//	platform = "native"        # or "script"
//	auto_start = true
//	call_timeout = "5s"
//	update_interval = "100ms"
//	rescan_schedule = "@every 5m"
//
//	[security]
//	sandbox_enabled = true
//	require_signature = false
//	trust_policy = "bypass-all"
//
//	[admin]
//	enabled = true
//	listen = "127.0.0.1:7070"
//
//	[logging]
//	level = "info"
//	format = "text"
//
// # Environment
//
// Well-known variables such as VERSEDECK_PLUGINS_DIR and VERSEDECK_LOG_LEVEL
// map to fixed keys. Any other VERSEDECK_SECTION_KEY variable sets
// section.key. Values are typed on a best-effort basis: booleans,
// integers, floats and JSON arrays are recognised, everything else is a
// string.
package config
