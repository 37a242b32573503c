package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/versedeck/internal/plugin/security"
)

// Install copies the module at srcPath into the plugins directory under
// the platform naming convention and registers it unloaded. A detached
// signature next to srcPath is copied along. The plugin name is taken
// from the file name.
func (m *Manager) Install(ctx context.Context, srcPath string) (name string, err error) {
	_, span := m.startSpan(ctx, "plugin.install", filepath.Base(srcPath))
	defer func() { endSpan(span, err) }()

	if !m.platform.FileBacked() {
		return "", errorf(KindFilesystem, "", "install", "platform has no plugin files")
	}

	base := filepath.Base(srcPath)
	name, ok := m.platform.PluginName(base)
	if !ok {
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if name == "" || strings.HasPrefix(name, ".") {
		return "", errorf(KindFilesystem, "", "install", "cannot derive a plugin name from %q", base)
	}

	// The entry is registered only once the module is in place, so a
	// failed copy leaves no trace of an unknown name.
	m.mu.Lock()
	if e, ok := m.entries[name]; ok && (e.busy || (e.state != StateUnloaded && e.state != StateError)) {
		state := e.state
		m.mu.Unlock()
		return name, newError(KindFilesystem, name, "install", fmt.Errorf("plugin is %s: %w", state, ErrBusy))
	}
	m.mu.Unlock()
	dst := m.pluginPath(name)

	if err := os.MkdirAll(m.config.PluginsDir, 0o755); err != nil {
		return name, m.recordFailure(name, newError(KindFilesystem, name, "install", err))
	}
	if err := copyFile(srcPath, dst); err != nil {
		return name, m.recordFailure(name, newError(KindFilesystem, name, "install", err))
	}
	switch err := copyFile(srcPath+security.SignatureSuffix, dst+security.SignatureSuffix); {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		// A stale signature would fail verification of the new module.
		_ = os.Remove(dst + security.SignatureSuffix)
	default:
		return name, m.recordFailure(name, newError(KindFilesystem, name, "install signature", err))
	}

	m.mu.Lock()
	m.entryLocked(name)
	m.mu.Unlock()

	m.log.WithField("plugin", name).WithField("path", dst).Info("plugin installed")
	m.emitEvent(ManagerEvent{Type: EventPluginInstalled, Plugin: name})
	return name, nil
}

// Uninstall unloads name, deletes its module and signature from the
// plugins directory and forgets the entry. Metrics are kept.
func (m *Manager) Uninstall(ctx context.Context, name string) (err error) {
	ctx, span := m.startSpan(ctx, "plugin.uninstall", name)
	defer func() { endSpan(span, err) }()

	if !m.platform.FileBacked() {
		return errorf(KindFilesystem, name, "uninstall", "platform has no plugin files")
	}

	if err := m.Unload(ctx, name); err != nil && !errors.Is(err, ErrPluginNotFound) {
		return m.recordFailure(name, newError(KindFilesystem, name, "uninstall", err))
	}

	path := m.pluginPath(name)
	for _, p := range []string{path, path + security.SignatureSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return m.recordFailure(name, newError(KindFilesystem, name, "uninstall", err))
		}
	}

	m.mu.Lock()
	if e, ok := m.entries[name]; ok && !e.busy {
		delete(m.entries, name)
		for i, n := range m.order {
			if n == name {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		m.updateGaugeLocked()
	}
	m.mu.Unlock()

	m.log.WithField("plugin", name).Info("plugin uninstalled")
	m.emitEvent(ManagerEvent{Type: EventPluginUninstalled, Plugin: name})
	return nil
}

// recordFailure stores err as the last error of name, if registered.
// Unknown names are not registered.
func (m *Manager) recordFailure(name string, err error) error {
	m.mu.Lock()
	if e, ok := m.entries[name]; ok {
		e.lastErr = err.Error()
	}
	m.mu.Unlock()
	m.log.WithField("plugin", name).WithError(err).Error("plugin file operation failed")
	return err
}

// copyFile writes src to dst through a temporary file in dst's directory
// and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".install-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
