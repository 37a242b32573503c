package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
	"github.com/dshills/versedeck/internal/plugin/security"
)

const tracerName = "github.com/dshills/versedeck/internal/plugin"

// Manager manages the lifecycle of all plugins.
// It handles discovery, loading, activation, and event dispatching.
type Manager struct {
	mu sync.RWMutex

	// Known plugins by name
	entries map[string]*entry

	// Discovery order (for deterministic iteration)
	order []string

	// Event handlers (protected by hmu)
	hmu          sync.RWMutex
	handlers     map[uint64]EventHandler
	handlerOrder []uint64
	nextHandler  uint64

	config   ManagerConfig
	platform Platform
	security *security.Registry
	events   hostapi.Events
	log      *logrus.Logger
	tracer   trace.Tracer
	clock    clockwork.Clock
	metrics  *metricsStore
}

// entry is the registry record for one plugin. Fields are guarded by
// Manager.mu; sem serialises calls into the plugin.
type entry struct {
	name string
	path string

	state    State
	busy     bool
	lastErr  string
	loadedAt time.Time

	loader      *Loader
	inst        *Instance
	info        Info
	config      *Config
	initialized bool

	sem chan struct{}
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// PluginsDir holds plugin modules named by the platform convention.
	PluginsDir string

	// ConfigDir holds <name>.conf settings files.
	ConfigDir string

	// DataDir holds per-plugin data directories.
	DataDir string

	// AutoStart loads plugins found by ScanForPlugins. The auto_start key
	// in a plugin's settings overrides it.
	AutoStart bool

	// CallTimeout bounds every call into a plugin. Zero disables it.
	CallTimeout time.Duration

	// MaxViolations force-unloads a plugin once its violation log reaches
	// this length. Zero disables it.
	MaxViolations int
}

// DefaultManagerConfig returns sensible default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PluginsDir: "plugins",
		ConfigDir:  "config",
		DataDir:    "data",
		AutoStart:  true,
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPlatform sets the module platform. The default is NativePlatform.
func WithPlatform(p Platform) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.platform = p
		}
	}
}

// WithSecurity sets the security registry.
func WithSecurity(r *security.Registry) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.security = r
		}
	}
}

// WithEvents sets the host event bus that receives plugin.loaded and
// plugin.unloaded.
func WithEvents(ev hostapi.Events) ManagerOption {
	return func(m *Manager) {
		m.events = ev
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithTracerProvider sets the tracer provider. The default is the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) ManagerOption {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock sets the clock used for timestamps and call timeouts.
func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetricsRegisterer registers the manager's Prometheus collectors.
// Without it the collectors exist but are not registered.
func WithMetricsRegisterer(reg prometheus.Registerer) ManagerOption {
	return func(m *Manager) {
		m.metrics = newMetricsStore(reg)
	}
}

// NewManager creates a new plugin manager.
func NewManager(config ManagerConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		entries:  make(map[string]*entry),
		handlers: make(map[uint64]EventHandler),
		config:   config,
		platform: NativePlatform(),
		log:      logrus.New(),
		tracer:   otel.Tracer(tracerName),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = newMetricsStore(nil)
	}
	if m.security == nil {
		m.security = security.NewRegistry(security.Config{}, security.WithLogger(m.log))
	}
	if m.config.MaxViolations > 0 {
		m.security.OnViolation(m.escalate)
	}
	return m
}

// ManagerConfig returns the manager configuration.
func (m *Manager) ManagerConfig() ManagerConfig {
	return m.config
}

// Platform returns the module platform.
func (m *Manager) Platform() Platform {
	return m.platform
}

// Security returns the security registry.
func (m *Manager) Security() *security.Registry {
	return m.security
}

// entryLocked returns the entry for name, creating it in the unloaded
// state. Must be called with mu held.
func (m *Manager) entryLocked(name string) *entry {
	if e, ok := m.entries[name]; ok {
		return e
	}
	e := &entry{
		name:  name,
		path:  m.pluginPath(name),
		state: StateUnloaded,
		sem:   make(chan struct{}, 1),
	}
	m.entries[name] = e
	m.order = append(m.order, name)
	m.updateGaugeLocked()
	return e
}

func (m *Manager) pluginPath(name string) string {
	file := m.platform.LibraryName(name)
	if !m.platform.FileBacked() {
		return file
	}
	return filepath.Join(m.config.PluginsDir, file)
}

// setStateLocked moves e to state to. Illegal transitions are refused.
// Must be called with mu held.
func (m *Manager) setStateLocked(e *entry, to State) (State, error) {
	from := e.state
	if !CanTransition(from, to) {
		return from, fmt.Errorf("plugin %q: illegal transition %s -> %s", e.name, from, to)
	}
	e.state = to
	m.updateGaugeLocked()
	return from, nil
}

// transition is setStateLocked under the lock followed by the state
// change event.
func (m *Manager) transition(e *entry, to State) error {
	m.mu.Lock()
	from, err := m.setStateLocked(e, to)
	m.mu.Unlock()
	if err != nil {
		m.log.WithField("plugin", e.name).WithError(err).Error("state transition refused")
		return err
	}
	m.emitStateChange(e.name, from, to)
	return nil
}

func (m *Manager) emitStateChange(name string, from, to State) {
	if from == to {
		return
	}
	m.log.WithFields(logrus.Fields{"plugin": name, "from": from.String(), "state": to.String()}).Debug("plugin state changed")
	m.emitEvent(ManagerEvent{Type: EventStateChanged, Plugin: name, From: from, To: to})
}

// updateGaugeLocked refreshes the per-state plugin gauge. Must be called
// with mu held.
func (m *Manager) updateGaugeLocked() {
	counts := make(map[State]int, len(AllStates))
	for _, e := range m.entries {
		counts[e.state]++
	}
	for _, s := range AllStates {
		m.metrics.prom.plugins.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

func (m *Manager) startSpan(ctx context.Context, op, name string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("plugin.name", name)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Load loads and activates a plugin by name.
// Loading an active plugin is a no-op. A failed load leaves the plugin in
// the error state with the failure recorded as its last error.
func (m *Manager) Load(ctx context.Context, name string) (err error) {
	ctx, span := m.startSpan(ctx, "plugin.load", name)
	defer func() { endSpan(span, err) }()

	// Claim the entry (brief lock)
	m.mu.Lock()
	e := m.entryLocked(name)
	if e.busy {
		state := e.state
		m.mu.Unlock()
		return fmt.Errorf("plugin %q is %s: %w", name, state, ErrBusy)
	}
	switch e.state {
	case StateActive:
		m.mu.Unlock()
		return nil
	case StateLoaded:
		m.mu.Unlock()
		return m.Activate(ctx, name)
	}
	from, err := m.setStateLocked(e, StateLoading)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.busy = true
	e.lastErr = ""
	stale := e.loader != nil
	m.mu.Unlock()
	m.emitStateChange(name, from, StateLoading)

	// A plugin that failed while running still holds its module.
	if stale {
		if terr := m.teardown(ctx, e, false); terr != nil {
			m.log.WithField("plugin", name).WithError(terr).Warn("release before reload")
		}
	}

	if err = m.load(ctx, e); err != nil {
		m.abortLoad(ctx, e, err)
		return err
	}

	m.mu.Lock()
	e.busy = false
	e.loadedAt = m.clock.Now()
	info := e.info
	kind := e.inst.Kind()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"plugin":  name,
		"kind":    kind.String(),
		"version": info.Version.String(),
	}).Info("plugin loaded")
	m.publish(HostEventPluginLoaded, map[string]string{
		"plugin":  name,
		"kind":    kind.String(),
		"version": info.Version.String(),
	})
	m.emitEvent(ManagerEvent{Type: EventPluginLoaded, Plugin: name})
	return nil
}

// load runs every load step after the entry has been claimed. It leaves
// the entry Active on success.
func (m *Manager) load(ctx context.Context, e *entry) error {
	name := e.name

	// Settings edited through SetConfigValue win over the file.
	m.mu.RLock()
	cfg := e.config
	m.mu.RUnlock()
	if cfg == nil {
		var err error
		if cfg, err = LoadConfig(name, m.config.ConfigDir, m.config.DataDir); err != nil {
			return newError(KindFilesystem, name, "read config", err)
		}
	}

	if m.platform.FileBacked() {
		if _, err := os.Stat(e.path); err != nil {
			return newError(KindLoad, name, "load library", err)
		}
		if err := m.security.ValidatePluginSafety(e.path); err != nil {
			return newError(KindSecurity, name, "validate module", err)
		}
	}

	// The loader is recorded first so a timed-out open is still released.
	loader := NewLoader(m.platform, m.log)
	m.mu.Lock()
	e.loader = loader
	e.config = cfg
	m.mu.Unlock()

	var inst *Instance
	if err := m.invoke(ctx, e, "load", func() error {
		var lerr error
		inst, lerr = loader.Load(name, e.path)
		return lerr
	}); err != nil {
		return err
	}

	m.mu.Lock()
	e.inst = inst
	m.mu.Unlock()
	if err := m.transition(e, StateLoaded); err != nil {
		return newError(KindRuntime, name, "load", err)
	}

	var (
		info     Info
		infoErrs []error
	)
	if err := m.invoke(ctx, e, "info", func() error {
		info, infoErrs = inst.decodeInfo()
		return nil
	}); err != nil {
		return err
	}
	if len(infoErrs) > 0 {
		return newError(KindDependency, name, "dependencies", errors.Join(infoErrs...))
	}
	m.mu.Lock()
	e.info = info
	m.mu.Unlock()

	if err := m.checkDependencies(name, info); err != nil {
		return err
	}

	if err := m.security.CheckPluginPermissions(security.Descriptor{
		Name:    name,
		Version: info.Version.String(),
		Author:  info.Author,
	}); err != nil {
		return newError(KindSecurity, name, "permissions", err)
	}

	if err := m.invoke(ctx, e, "initialize", func() error {
		if !inst.Initialize() {
			return newError(KindInitialization, name, "initialize", errors.New(lastErrorOr(inst, "plugin_initialize returned false")))
		}
		return nil
	}); err != nil {
		return err
	}
	m.mu.Lock()
	e.initialized = true
	m.mu.Unlock()

	if err := m.invoke(ctx, e, "configure", func() error {
		if !inst.Configure(cfg) {
			return newError(KindInitialization, name, "configure", errors.New(lastErrorOr(inst, "plugin_configure rejected the configuration")))
		}
		return nil
	}); err != nil {
		return err
	}

	if err := m.invoke(ctx, e, "activate", func() error {
		inst.OnActivate()
		return nil
	}); err != nil {
		return err
	}
	if err := m.transition(e, StateActive); err != nil {
		return newError(KindRuntime, name, "activate", err)
	}
	return nil
}

func lastErrorOr(inst *Instance, fallback string) string {
	if msg := inst.LastError(); msg != "" {
		return msg
	}
	return fallback
}

// checkDependencies requires every declared dependency to be active at
// its minimum version. Dependencies match registry names first, then
// declared plugin names.
func (m *Manager) checkDependencies(name string, info Info) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, dep := range info.Dependencies {
		d, ok := m.entries[dep.Name]
		if !ok {
			for _, other := range m.entries {
				if other.info.Name == dep.Name && other.name != name {
					d, ok = other, true
					break
				}
			}
		}
		if !ok || d.state != StateActive || d.busy {
			return errorf(KindDependency, name, "dependencies", "dependency %s is not active", dep.Name)
		}
		if dep.MinVersion != nil && d.info.Version.Compare(*dep.MinVersion) < 0 {
			return errorf(KindDependency, name, "dependencies", "dependency %s is version %s, need >= %s",
				dep.Name, d.info.Version, dep.MinVersion)
		}
	}
	return nil
}

// abortLoad destroys whatever a failed load created and records err.
func (m *Manager) abortLoad(ctx context.Context, e *entry, err error) {
	if terr := m.teardown(ctx, e, false); terr != nil {
		m.log.WithField("plugin", e.name).WithError(terr).Warn("cleanup after failed load")
	}

	m.mu.Lock()
	from, _ := m.setStateLocked(e, StateError)
	e.busy = false
	e.lastErr = err.Error()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"plugin": e.name, "kind": KindOf(err).String()}).WithError(err).Error("plugin load failed")
	m.emitStateChange(e.name, from, StateError)
	m.emitEvent(ManagerEvent{Type: EventPluginLoadFailed, Plugin: e.name, Err: err})
}

// teardown deactivates and shuts down the instance as required, then
// releases the module. Errors from plugin callbacks are logged; the
// returned error is from the release only.
func (m *Manager) teardown(ctx context.Context, e *entry, deactivate bool) error {
	ctx = context.WithoutCancel(ctx)

	m.mu.RLock()
	inst, loader, initialized := e.inst, e.loader, e.initialized
	m.mu.RUnlock()

	log := m.log.WithField("plugin", e.name)
	if inst != nil {
		if deactivate {
			if err := m.invoke(ctx, e, "deactivate", func() error {
				inst.OnDeactivate()
				return nil
			}); err != nil {
				log.WithError(err).Warn("plugin deactivate failed")
			}
		}
		if initialized {
			if err := m.invoke(ctx, e, "shutdown", func() error {
				inst.Shutdown()
				return nil
			}); err != nil {
				log.WithError(err).Warn("plugin shutdown failed")
			}
		}
	}

	var err error
	if loader != nil {
		err = m.releaseModule(e, loader)
	}

	m.mu.Lock()
	e.inst = nil
	e.loader = nil
	e.initialized = false
	m.mu.Unlock()
	return err
}

// Unload unloads a plugin by name.
// Unloading an unloaded plugin is a no-op.
func (m *Manager) Unload(ctx context.Context, name string) (err error) {
	ctx, span := m.startSpan(ctx, "plugin.unload", name)
	defer func() { endSpan(span, err) }()

	// Claim the entry (brief lock)
	m.mu.Lock()
	e, exists := m.entries[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	if e.busy {
		state := e.state
		m.mu.Unlock()
		return fmt.Errorf("plugin %q is %s: %w", name, state, ErrBusy)
	}
	if e.state == StateUnloaded {
		m.mu.Unlock()
		return nil
	}
	from, err := m.setStateLocked(e, StateUnloading)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.busy = true
	m.mu.Unlock()
	m.emitStateChange(name, from, StateUnloading)

	// Tear down (potentially long operation, outside lock)
	err = m.teardown(ctx, e, from == StateActive)
	if err != nil {
		err = newError(KindRuntime, name, "unload", err)
	}

	m.mu.Lock()
	_, _ = m.setStateLocked(e, StateUnloaded)
	e.busy = false
	e.loadedAt = time.Time{}
	if err != nil {
		e.lastErr = err.Error()
	}
	m.mu.Unlock()
	m.emitStateChange(name, StateUnloading, StateUnloaded)

	m.log.WithField("plugin", name).Info("plugin unloaded")
	m.publish(HostEventPluginUnloaded, map[string]string{"plugin": name})
	m.emitEvent(ManagerEvent{Type: EventPluginUnloaded, Plugin: name, Err: err})
	return err
}

// Reload reloads a plugin (unload + load). The load is skipped when the
// unload fails.
func (m *Manager) Reload(ctx context.Context, name string) (err error) {
	ctx, span := m.startSpan(ctx, "plugin.reload", name)
	defer func() { endSpan(span, err) }()

	if err := m.Unload(ctx, name); err != nil {
		return fmt.Errorf("reload unload failed: %w", err)
	}
	if err := m.Load(ctx, name); err != nil {
		return fmt.Errorf("reload load failed: %w", err)
	}

	m.emitEvent(ManagerEvent{Type: EventPluginReloaded, Plugin: name})
	return nil
}

// Activate re-activates a loaded plugin that was deactivated.
func (m *Manager) Activate(ctx context.Context, name string) error {
	return m.toggle(ctx, name, StateLoaded, StateActive, "activate", func(inst *Instance) { inst.OnActivate() })
}

// Deactivate deactivates an active plugin without unloading it. Inactive
// plugins receive no update ticks.
func (m *Manager) Deactivate(ctx context.Context, name string) error {
	return m.toggle(ctx, name, StateActive, StateLoaded, "deactivate", func(inst *Instance) { inst.OnDeactivate() })
}

func (m *Manager) toggle(ctx context.Context, name string, from, to State, op string, call func(*Instance)) error {
	// Claim the entry (brief lock)
	m.mu.Lock()
	e, exists := m.entries[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	if e.busy {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrBusy)
	}
	if e.state == to {
		m.mu.Unlock()
		return nil
	}
	if e.state != from {
		state := e.state
		m.mu.Unlock()
		return fmt.Errorf("plugin %q is %s, cannot %s", name, state, op)
	}
	e.busy = true
	inst := e.inst
	m.mu.Unlock()

	err := m.invoke(ctx, e, op, func() error {
		call(inst)
		return nil
	})

	m.mu.Lock()
	e.busy = false
	m.mu.Unlock()
	if err != nil {
		m.fail(e, err)
		return err
	}
	return m.transition(e, to)
}

// UnloadAll unloads all plugins in reverse discovery order.
func (m *Manager) UnloadAll(ctx context.Context) error {
	// Get names in reverse order (brief lock)
	m.mu.RLock()
	names := make([]string, len(m.order))
	for i, name := range m.order {
		names[len(m.order)-1-i] = name
	}
	m.mu.RUnlock()

	var unloadErrors []error
	for _, name := range names {
		if err := m.Unload(ctx, name); err != nil {
			unloadErrors = append(unloadErrors, err)
		}
	}

	if len(unloadErrors) > 0 {
		return fmt.Errorf("failed to unload %d plugins: %w", len(unloadErrors), errors.Join(unloadErrors...))
	}
	return nil
}

// ScanForPlugins lists the plugins directory, registers every plugin
// found and loads the unloaded ones set to auto start. It returns the
// names found; load failures are joined into the error.
func (m *Manager) ScanForPlugins(ctx context.Context) (names []string, err error) {
	ctx, span := m.startSpan(ctx, "plugin.scan", "")
	defer func() { endSpan(span, err) }()

	names, err = m.platform.Scan(m.config.PluginsDir)
	if err != nil {
		return nil, newError(KindFilesystem, "", "scan", err)
	}

	// Register and collect candidates (brief lock)
	m.mu.Lock()
	var candidates []string
	for _, name := range names {
		e := m.entryLocked(name)
		if e.state == StateUnloaded && !e.busy {
			candidates = append(candidates, name)
		}
	}
	m.mu.Unlock()

	// Load (potentially long operation, outside lock)
	var loadErrors []error
	for _, name := range candidates {
		if cerr := ctx.Err(); cerr != nil {
			loadErrors = append(loadErrors, cerr)
			break
		}
		if !m.autoStart(name) {
			continue
		}
		if err := m.Load(ctx, name); err != nil {
			loadErrors = append(loadErrors, err)
		}
	}
	m.log.WithFields(logrus.Fields{"found": len(names), "failed": len(loadErrors)}).Debug("plugin scan complete")
	return names, errors.Join(loadErrors...)
}

func (m *Manager) autoStart(name string) bool {
	cfg, err := LoadConfig(name, m.config.ConfigDir, m.config.DataDir)
	if err != nil {
		m.log.WithField("plugin", name).WithError(err).Warn("read plugin config")
		return m.config.AutoStart
	}
	return cfg.Bool(KeyAutoStart, m.config.AutoStart)
}

// Update ticks every active plugin. A failing plugin is logged and
// reported; the others still run.
func (m *Manager) Update(ctx context.Context, dt float64) (err error) {
	ctx, span := m.startSpan(ctx, "plugin.update", "")
	defer func() { endSpan(span, err) }()

	// Snapshot active plugins (brief lock)
	type target struct {
		e    *entry
		inst *Instance
	}
	m.mu.RLock()
	targets := make([]target, 0, len(m.order))
	for _, name := range m.order {
		e := m.entries[name]
		if e.state == StateActive && !e.busy && e.inst != nil {
			targets = append(targets, target{e: e, inst: e.inst})
		}
	}
	m.mu.RUnlock()

	var updateErrors []error
	for _, t := range targets {
		t := t
		inst := t.inst
		uerr := m.invoke(ctx, t.e, "update", func() error {
			// The plugin may have been unloaded since the snapshot.
			if !m.live(t.e, inst) {
				return nil
			}
			inst.OnUpdate(dt)
			return nil
		})
		if uerr == nil {
			continue
		}
		updateErrors = append(updateErrors, uerr)
		if errors.Is(uerr, ErrCallTimeout) {
			// invoke already moved the plugin to the error state.
			continue
		}
		m.mu.Lock()
		t.e.lastErr = uerr.Error()
		m.mu.Unlock()
		m.log.WithField("plugin", t.e.name).WithError(uerr).Error("plugin update failed")
		m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: t.e.name, Err: uerr})
	}
	return errors.Join(updateErrors...)
}

// escalate unloads a plugin whose violation log reached MaxViolations.
// It runs asynchronously since violations are reported from inside
// plugin calls.
func (m *Manager) escalate(v security.Violation) {
	if len(m.security.Violations(v.Plugin)) < m.config.MaxViolations {
		return
	}
	m.mu.RLock()
	_, known := m.entries[v.Plugin]
	m.mu.RUnlock()
	if !known {
		return
	}

	go func() {
		log := m.log.WithFields(logrus.Fields{"plugin": v.Plugin, "violations": m.config.MaxViolations})
		log.Warn("violation limit reached, unloading plugin")
		if err := m.Unload(context.Background(), v.Plugin); err != nil {
			log.WithError(err).Error("forced unload failed")
		}
		m.security.ClearViolations(v.Plugin)
		m.mu.Lock()
		if e, ok := m.entries[v.Plugin]; ok {
			e.lastErr = fmt.Sprintf("unloaded after %d security violations", m.config.MaxViolations)
		}
		m.mu.Unlock()
	}()
}

// live reports whether inst is still the active instance of e.
func (m *Manager) live(e *entry, inst *Instance) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.state == StateActive && e.inst == inst
}

func (m *Manager) publish(eventType string, data map[string]string) {
	if m.events == nil {
		return
	}
	if bus, ok := m.events.(*hostapi.Bus); ok {
		bus.PublishEvent(hostapi.Event{Type: eventType, Source: "plugin-manager", Data: data})
		return
	}
	m.events.Publish(eventType, data)
}
