package plugin

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Status is a snapshot of one plugin's registry entry.
type Status struct {
	Name      string    `json:"name" yaml:"name"`
	State     string    `json:"state" yaml:"state"`
	Kind      string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Info      Info      `json:"info" yaml:"info"`
	Path      string    `json:"path" yaml:"path"`
	LastError string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty" yaml:"loaded_at,omitempty"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
}

// List returns every known plugin name in discovery order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, len(m.order))
	copy(result, m.order)
	return result
}

// ListLoaded returns the names of plugins holding a live instance.
func (m *Manager) ListLoaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0)
	for _, name := range m.order {
		if s := m.entries[name].state; s == StateActive || s == StateLoaded {
			result = append(result, name)
		}
	}
	return result
}

// ListAvailable returns the plugin names present in the plugins
// directory, whether or not they are registered.
func (m *Manager) ListAvailable() ([]string, error) {
	names, err := m.platform.Scan(m.config.PluginsDir)
	if err != nil {
		return nil, newError(KindFilesystem, "", "scan", err)
	}
	return names, nil
}

// ListByState returns plugins in a specific state.
func (m *Manager) ListByState(state State) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0)
	for _, name := range m.order {
		if m.entries[name].state == state {
			result = append(result, name)
		}
	}
	return result
}

// State returns the lifecycle state of name.
func (m *Manager) State(name string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return StateUnloaded, false
	}
	return e.state, true
}

// LastError returns the message of the last failure recorded for name.
func (m *Manager) LastError(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[name]; ok {
		return e.lastErr
	}
	return ""
}

// Info returns the descriptor decoded at load time.
func (m *Manager) Info(name string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok || e.inst == nil {
		return Info{}, false
	}
	return e.info, true
}

// Kind returns the kind of a loaded plugin.
func (m *Manager) Kind(name string) Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[name]; ok && e.inst != nil {
		return e.inst.Kind()
	}
	return KindUnknown
}

// Status returns a snapshot of name.
func (m *Manager) Status(name string) (Status, error) {
	m.mu.RLock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.RUnlock()
		return Status{}, fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	st := m.statusLocked(e)
	m.mu.RUnlock()
	st.Metrics = m.metrics.get(name)
	return st, nil
}

// Statuses returns a snapshot of every plugin in discovery order.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	result := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		result = append(result, m.statusLocked(m.entries[name]))
	}
	m.mu.RUnlock()

	for i := range result {
		result[i].Metrics = m.metrics.get(result[i].Name)
	}
	return result
}

func (m *Manager) statusLocked(e *entry) Status {
	st := Status{
		Name:      e.name,
		State:     e.state.String(),
		Info:      e.info,
		Path:      e.path,
		LastError: e.lastErr,
		LoadedAt:  e.loadedAt,
	}
	if e.inst != nil {
		st.Kind = e.inst.Kind().String()
	}
	return st
}

// Count returns the number of known plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Errors returns the last error of every plugin in the error state.
func (m *Manager) Errors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]string)
	for name, e := range m.entries {
		if e.state == StateError {
			errs[name] = e.lastErr
		}
	}
	return errs
}

// Metrics returns the call statistics for name. Statistics outlive
// unload and uninstall.
func (m *Manager) Metrics(name string) Metrics {
	return m.metrics.get(name)
}

// ResetMetrics clears the call statistics for name.
func (m *Manager) ResetMetrics(name string) {
	m.metrics.reset(name)
}

// Config returns the settings of name: the copy held in memory, read
// from disk on first use.
func (m *Manager) Config(name string) (*Config, error) {
	m.mu.RLock()
	if e, ok := m.entries[name]; ok && e.config != nil {
		cfg := e.config
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	cfg, err := LoadConfig(name, m.config.ConfigDir, m.config.DataDir)
	if err != nil {
		return nil, newError(KindFilesystem, name, "read config", err)
	}
	// Configuring a plugin registers it so the edits reach its next load.
	m.mu.Lock()
	e := m.entryLocked(name)
	if e.config == nil {
		e.config = cfg
	}
	cfg = e.config
	m.mu.Unlock()
	return cfg, nil
}

// SetConfigValue sets one setting of name in memory. The plugin sees it
// the next time it is configured.
func (m *Manager) SetConfigValue(name, key, value string) error {
	cfg, err := m.Config(name)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return newError(KindFilesystem, name, "set config", err)
	}
	return nil
}

// SaveConfig writes the settings of name to disk.
func (m *Manager) SaveConfig(name string) error {
	cfg, err := m.Config(name)
	if err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return newError(KindFilesystem, name, "save config", err)
	}
	return nil
}

// SetAutoStart sets and saves the auto_start setting of name.
func (m *Manager) SetAutoStart(name string, enabled bool) error {
	if err := m.SetConfigValue(name, KeyAutoStart, strconv.FormatBool(enabled)); err != nil {
		return err
	}
	return m.SaveConfig(name)
}

// activeByKind returns the active plugins of kind k, sorted by name.
func (m *Manager) activeByKind(k Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, e := range m.entries {
		if e.state == StateActive && !e.busy && e.inst != nil && e.inst.Kind() == k {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ListByKind returns the active plugins of kind k.
func (m *Manager) ListByKind(k Kind) []string {
	return m.activeByKind(k)
}
