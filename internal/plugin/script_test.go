package plugin

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
	"github.com/dshills/versedeck/internal/plugin/security"
)

func TestScriptPluginEndToEnd(t *testing.T) {
	logger := nullLogger()
	facade := hostapi.NewFacade(logger)
	reg := security.NewRegistry(security.Config{}, security.WithLogger(logger))

	var (
		mu    sync.Mutex
		steps []string
	)
	facade.Events.Subscribe("echo.lifecycle", func(ev hostapi.Event) {
		mu.Lock()
		steps = append(steps, ev.Data["step"])
		mu.Unlock()
		assert.Equal(t, "EchoPlugin", ev.Data["source"])
	})

	platform := &ScriptPlatform{Facade: facade, Security: reg, Logger: logger}
	m := newTestManager(t, ManagerConfig{PluginsDir: "testdata"},
		WithPlatform(platform), WithSecurity(reg), WithEvents(facade.Events))
	ctx := context.Background()

	require.NoError(t, m.Load(ctx, "EchoPlugin"))

	info, ok := m.Info("EchoPlugin")
	require.True(t, ok)
	assert.Equal(t, "EchoPlugin", info.Name)
	assert.Equal(t, "VerseDeck", info.Author)
	assert.Equal(t, "1.0.0", info.Version.String())

	sp, err := m.Script("EchoPlugin")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", sp.Execute("hi"))
	assert.Equal(t, "echo", sp.Language())

	require.NoError(t, m.Unload(ctx, "EchoPlugin"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"initialize", "configure", "activate", "deactivate", "shutdown", "destroy"}, steps)
}

func TestScriptPluginWithoutPublishPermission(t *testing.T) {
	logger := nullLogger()
	facade := hostapi.NewFacade(logger)
	reg := security.NewRegistry(security.Config{DefaultGrants: []string{}}, security.WithLogger(logger))

	platform := &ScriptPlatform{Facade: facade, Security: reg, Logger: logger}
	m := newTestManager(t, ManagerConfig{PluginsDir: "testdata"}, WithPlatform(platform), WithSecurity(reg))

	err := m.Load(context.Background(), "EchoPlugin")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRuntime)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NotEmpty(t, reg.Violations("EchoPlugin"))

	state, _ := m.State("EchoPlugin")
	assert.Equal(t, StateError, state)
}

func TestScriptPlatformNaming(t *testing.T) {
	p := &ScriptPlatform{}

	assert.Equal(t, "EchoPlugin.lua", p.LibraryName("EchoPlugin"))
	name, ok := p.PluginName("EchoPlugin.lua")
	assert.True(t, ok)
	assert.Equal(t, "EchoPlugin", name)
	_, ok = p.PluginName("README.md")
	assert.False(t, ok)

	names, err := p.Scan("testdata")
	require.NoError(t, err)
	assert.Equal(t, []string{"EchoPlugin"}, names)
}
