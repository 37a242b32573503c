package plugin

import (
	"context"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
	"github.com/dshills/versedeck/internal/plugin/security"
)

func testSystemConfig(t *testing.T, static *StaticPlatform) SystemConfig {
	t.Helper()
	cfg := DefaultSystemConfig()
	cfg.ManagerConfig.PluginsDir = t.TempDir()
	cfg.ManagerConfig.ConfigDir = t.TempDir()
	cfg.ManagerConfig.DataDir = t.TempDir()
	cfg.Static = static
	cfg.Logger = nullLogger()
	return cfg
}

func TestSystemLifecycle(t *testing.T) {
	static := NewStaticPlatform()
	finder := newFake("search")
	finder.quality = 0.8
	finder.results = []SearchResult{{Reference: "Psalm 119:105", Text: "Thy word is a lamp"}}
	static.Register("Finder", finder.exports())
	static.Register("Night", newFake("theme").exports())

	cfg := testSystemConfig(t, static)
	cfg.Registerer = prometheus.NewRegistry()
	cfg.Verses = hostapi.NewVerseSet(hostapi.Verse{Book: "Psalms", Chapter: 119, Number: 105, Text: "Thy word is a lamp"})
	sys := NewSystem(cfg)
	ctx := context.Background()

	assert.False(t, sys.IsInitialized())
	assert.ErrorIs(t, sys.Start(ctx), ErrNotInitialized)
	assert.ErrorIs(t, sys.Update(ctx, 1), ErrNotInitialized)
	assert.ErrorIs(t, sys.SaveSecurity(), ErrNotInitialized)

	require.NoError(t, sys.Initialize())
	assert.ErrorIs(t, sys.Initialize(), ErrAlreadyInitialized)
	assert.True(t, sys.IsInitialized())
	assert.Same(t, sys.Bus(), sys.Facade().Events)

	var loaded []string
	sys.Bus().Subscribe(HostEventPluginLoaded, func(ev hostapi.Event) {
		loaded = append(loaded, ev.Data["plugin"])
		assert.Equal(t, "plugin-manager", ev.Source)
	})

	require.NoError(t, sys.Start(ctx))
	assert.ElementsMatch(t, []string{"Finder", "Night"}, loaded)
	assert.ElementsMatch(t, []string{"Finder", "Night"}, sys.Manager().ListLoaded())

	results, err := sys.Search().Search(ctx, "lamp", "KJV")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Finder", results[0].Plugin)

	require.NoError(t, sys.Update(ctx, 0.1))
	assert.Equal(t, 1, finder.Updates())

	require.NoError(t, sys.Shutdown(ctx))
	assert.False(t, sys.IsInitialized())
	assert.Empty(t, sys.Manager().ListLoaded())
	assert.FileExists(t, sys.SecurityConfigPath())

	// Nothing to do the second time.
	require.NoError(t, sys.Shutdown(ctx))
}

func TestSystemPersistsPermissions(t *testing.T) {
	static := NewStaticPlatform()
	static.Register("Echo", newFake("script").exports())
	cfg := testSystemConfig(t, static)
	ctx := context.Background()

	first := NewSystem(cfg)
	require.NoError(t, first.Initialize())
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.Security().Grant("Echo", security.PermNetworkAccess))
	require.NoError(t, first.Shutdown(ctx))

	second := NewSystem(cfg)
	require.NoError(t, second.Initialize())
	t.Cleanup(func() { _ = second.Shutdown(ctx) })
	assert.Equal(t,
		[]string{security.PermNetworkAccess, security.PermUIModify, security.PermVerseRead},
		second.Security().Permissions("Echo"))
}

func TestSystemUnknownPlatform(t *testing.T) {
	cfg := testSystemConfig(t, nil)
	cfg.Platform = "wasm"
	err := NewSystem(cfg).Initialize()
	assert.ErrorContains(t, err, "unknown plugin platform")
}

func TestSystemScriptPlatform(t *testing.T) {
	cfg := testSystemConfig(t, nil)
	cfg.Platform = PlatformScript
	cfg.ManagerConfig.PluginsDir = "testdata"
	sys := NewSystem(cfg)
	ctx := context.Background()

	require.NoError(t, sys.Initialize())
	require.NoError(t, sys.Start(ctx))
	t.Cleanup(func() { _ = sys.Shutdown(ctx) })

	sp, err := sys.Manager().Script("EchoPlugin")
	require.NoError(t, err)
	assert.Equal(t, "echo: Amen", sp.Execute("Amen"))
}

func TestSystemWatch(t *testing.T) {
	cfg := testSystemConfig(t, nil)
	cfg.Platform = PlatformScript
	cfg.Watch = true
	sys := NewSystem(cfg)
	ctx := context.Background()

	require.NoError(t, sys.Initialize())
	require.NoError(t, sys.Start(ctx))
	require.NoError(t, sys.Shutdown(ctx))

	_, err := os.Stat(cfg.ManagerConfig.PluginsDir)
	assert.NoError(t, err)
}
