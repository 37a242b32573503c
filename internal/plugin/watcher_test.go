package plugin

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherLoadsNewPlugins(t *testing.T) {
	p := newFilePlatform()
	p.Register("Alpha", newFake("script").exports())
	m := newTestManager(t, ManagerConfig{AutoStart: true}, WithPlatform(p))

	var scans atomic.Int32
	w, err := NewWatcher(m, WithDebounce(20*time.Millisecond), OnScan(func([]string, error) { scans.Add(1) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	assert.Equal(t, m.ManagerConfig().PluginsDir, w.Dir())

	writePluginFile(t, w.Dir(), "Alpha.plug")

	require.Eventually(t, func() bool {
		state, _ := m.State("Alpha")
		return state == StateActive
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, scans.Load(), int32(1))
}

func TestWatcherCloseWaitsForRescan(t *testing.T) {
	p := newFilePlatform()
	p.Register("Alpha", newFake("script").exports())
	m := newTestManager(t, ManagerConfig{AutoStart: true}, WithPlatform(p))

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	w, err := NewWatcher(m, WithDebounce(10*time.Millisecond), OnScan(func([]string, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}))
	require.NoError(t, err)

	writePluginFile(t, w.Dir(), "Alpha.plug")
	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("rescan did not run")
	}

	closed := make(chan error, 1)
	go func() { closed <- w.Close() }()
	select {
	case <-closed:
		t.Fatal("Close returned while a rescan was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	m := newTestManager(t, ManagerConfig{AutoStart: true}, WithPlatform(newFilePlatform()))

	var scans atomic.Int32
	w, err := NewWatcher(m, WithDebounce(10*time.Millisecond), OnScan(func([]string, error) { scans.Add(1) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(w.Dir(), "README.md"), []byte("notes"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, scans.Load())
}

func TestWatcherCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")
	m := newTestManager(t, ManagerConfig{PluginsDir: dir}, WithPlatform(newFilePlatform()))

	w, err := NewWatcher(m)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatcherRequiresFiles(t *testing.T) {
	m := staticManager(t, ManagerConfig{}, nil)
	_, err := NewWatcher(m)
	assert.Error(t, err)
}
