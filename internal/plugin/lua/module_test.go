package lua

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
)

func openEcho(t *testing.T, opts Options) *Module {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger, _ = test.NewNullLogger()
	}
	m, err := Open("EchoPlugin", filepath.Join("testdata", "echo.lua"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestModuleResolveABI(t *testing.T) {
	m := openEcho(t, Options{})

	var apiVersion func() string
	var create func() uintptr
	var execute func(uintptr, string) string
	require.NoError(t, m.Resolve("plugin_api_version", &apiVersion))
	require.NoError(t, m.Resolve("plugin_create", &create))
	require.NoError(t, m.Resolve("plugin_script_execute", &execute))

	assert.Equal(t, "1.0", apiVersion())
	h := create()
	assert.Equal(t, uintptr(1), h)
	assert.Equal(t, "echo: hello", execute(h, "hello"))
}

func TestModuleResolveTypes(t *testing.T) {
	m := openEcho(t, Options{})

	var add func(int, int) int
	var half func(float64) float64
	var negate func(bool) bool
	require.NoError(t, m.Resolve("add", &add))
	require.NoError(t, m.Resolve("half", &half))
	require.NoError(t, m.Resolve("negate", &negate))

	assert.Equal(t, 5, add(2, 3))
	assert.InDelta(t, 1.25, half(2.5), 1e-9)
	assert.True(t, negate(false))
}

func TestModuleTableAsJSON(t *testing.T) {
	m := openEcho(t, Options{})

	var info func(uintptr) string
	require.NoError(t, m.Resolve("plugin_info", &info))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(info(1)), &decoded))
	assert.Equal(t, "EchoPlugin", decoded["name"])
	assert.Equal(t, "1.2.3", decoded["version"])
	assert.Equal(t, []any{"demo", "script"}, decoded["tags"])
}

func TestModuleResolveErrors(t *testing.T) {
	m := openEcho(t, Options{})

	var fn func()
	assert.ErrorIs(t, m.Resolve("plugin_missing", &fn), ErrSymbolNotFound)
	assert.Error(t, m.Resolve("add", fn))
	assert.Error(t, m.Resolve("add", new(int)))
}

func TestModuleCallErrorPanics(t *testing.T) {
	m := openEcho(t, Options{})

	var fails func()
	require.NoError(t, m.Resolve("fails", &fails))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ce, ok := r.(*CallError)
		require.True(t, ok, "panic value %T", r)
		assert.Equal(t, "fails", ce.Symbol)
		assert.Contains(t, ce.Error(), "broken on purpose")
	}()
	fails()
}

func TestModuleTimeout(t *testing.T) {
	m := openEcho(t, Options{Timeout: 50 * time.Millisecond})

	var spin func()
	require.NoError(t, m.Resolve("spin", &spin))
	defer func() {
		ce, ok := recover().(*CallError)
		require.True(t, ok)
		assert.ErrorIs(t, ce, ErrExecutionTimeout)
	}()
	spin()
}

func TestOpenBadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.lua")
	require.NoError(t, os.WriteFile(path, []byte("function ("), 0o644))
	logger, _ := test.NewNullLogger()

	_, err := Open("Broken", path, Options{Logger: logger})
	assert.Error(t, err)

	_, err = Open("Missing", filepath.Join(t.TempDir(), "missing.lua"), Options{Logger: logger})
	assert.Error(t, err)
}

func TestModuleCloseReleasesSubscriptions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	facade := hostapi.NewFacade(logger)
	m, err := Open("EchoPlugin", filepath.Join("testdata", "echo.lua"), Options{Facade: facade, Logger: logger})
	require.NoError(t, err)

	bus := facade.Events.(*hostapi.Bus)
	assert.Equal(t, 1, bus.SubscriberCount())
	require.NoError(t, m.Close())
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.True(t, m.State().IsClosed())
}
