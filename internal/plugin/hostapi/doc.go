// Package hostapi defines the host surface plugins call into: verse
// lookup, favorites, the application event bus and system information.
//
// The verse store and favorites live outside the plugin framework; the
// interfaces here are what the framework needs from them. Bus,
// MemoryFavorites, VerseSet and Unavailable are ready-made
// implementations for the CLI and for tests.
package hostapi
