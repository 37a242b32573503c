package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/versedeck/internal/plugin/security"
)

func TestManagerInstallUninstall(t *testing.T) {
	p := newFilePlatform()
	f := newFake("script")
	p.Register("Gamma", f.exports())
	m := newTestManager(t, ManagerConfig{}, WithPlatform(p))
	events := &eventLog{}
	m.Subscribe(events.handle)
	ctx := context.Background()

	srcDir := t.TempDir()
	src := writePluginFile(t, srcDir, "Gamma.plug")
	require.NoError(t, os.WriteFile(src+security.SignatureSuffix, []byte("sig"), 0o644))

	name, err := m.Install(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "Gamma", name)

	dst := filepath.Join(m.ManagerConfig().PluginsDir, "Gamma.plug")
	assert.FileExists(t, dst)
	assert.FileExists(t, dst+security.SignatureSuffix)
	state, ok := m.State("Gamma")
	require.True(t, ok)
	assert.Equal(t, StateUnloaded, state)
	assert.Len(t, events.ofType(EventPluginInstalled), 1)

	require.NoError(t, m.Load(ctx, "Gamma"))
	_, err = m.Install(ctx, src)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, ErrFilesystem)

	require.NoError(t, m.Uninstall(ctx, "Gamma"))
	assert.NoFileExists(t, dst)
	assert.NoFileExists(t, dst+security.SignatureSuffix)
	_, ok = m.State("Gamma")
	assert.False(t, ok)
	assert.Len(t, events.ofType(EventPluginUninstalled), 1)
	created, destroyed := f.Counts()
	assert.Equal(t, created, destroyed)
	assert.NotZero(t, m.Metrics("Gamma").Calls)
}

func TestManagerInstallDropsStaleSignature(t *testing.T) {
	m := newTestManager(t, ManagerConfig{}, WithPlatform(newFilePlatform()))
	dst := filepath.Join(m.ManagerConfig().PluginsDir, "Delta.plug")
	require.NoError(t, os.WriteFile(dst+security.SignatureSuffix, []byte("old"), 0o644))

	src := writePluginFile(t, t.TempDir(), "Delta.plug")
	_, err := m.Install(context.Background(), src)
	require.NoError(t, err)

	assert.FileExists(t, dst)
	assert.NoFileExists(t, dst+security.SignatureSuffix)
}

func TestManagerInstallErrors(t *testing.T) {
	m := newTestManager(t, ManagerConfig{}, WithPlatform(newFilePlatform()))
	ctx := context.Background()

	_, err := m.Install(ctx, filepath.Join(t.TempDir(), "Missing.plug"))
	assert.ErrorIs(t, err, ErrFilesystem)
	assert.NotContains(t, m.List(), "Missing")
	assert.Zero(t, m.Count())
	_, known := m.State("Missing")
	assert.False(t, known)

	// A failed reinstall of a known plugin is recorded on its entry.
	_, err = m.Install(ctx, writePluginFile(t, t.TempDir(), "Echo.plug"))
	require.NoError(t, err)
	_, err = m.Install(ctx, filepath.Join(t.TempDir(), "Echo.plug"))
	assert.ErrorIs(t, err, ErrFilesystem)
	assert.NotEmpty(t, m.LastError("Echo"))

	_, err = m.Install(ctx, filepath.Join(t.TempDir(), ".plug"))
	assert.ErrorIs(t, err, ErrFilesystem)

	// Uninstalling an unknown plugin only removes files that exist.
	require.NoError(t, m.Uninstall(ctx, "Nobody"))

	static := staticManager(t, ManagerConfig{}, nil)
	_, err = static.Install(ctx, "whatever.plug")
	assert.ErrorIs(t, err, ErrFilesystem)
	assert.ErrorIs(t, static.Uninstall(ctx, "whatever"), ErrFilesystem)
}
