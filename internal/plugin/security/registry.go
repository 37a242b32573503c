package security

import (
	"crypto/ed25519"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// DefaultMaxPluginFileSize is the ceiling applied by ValidatePluginSafety.
const DefaultMaxPluginFileSize int64 = 100 * 1024 * 1024

// maxViolationsPerPlugin bounds the in-memory violation log.
const maxViolationsPerPlugin = 256

// Config configures a Registry.
type Config struct {
	// DefaultLimits are copied into every new context.
	DefaultLimits ResourceLimits

	TrustPolicy TrustPolicy

	// MaxFileSize overrides DefaultMaxPluginFileSize when positive.
	MaxFileSize int64

	// RequireSignature rejects modules without a valid <path>.sig.
	RequireSignature bool
	TrustedSigners   []ed25519.PublicKey

	// DefaultGrants overrides DefaultGrants when non-nil.
	DefaultGrants []string
}

// Descriptor identifies a plugin to CheckPluginPermissions.
type Descriptor struct {
	Name    string
	Version string
	Author  string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock sets the clock handed to every context.
func WithRegistryClock(c clockwork.Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// Registry owns the security state of every plugin.
type Registry struct {
	mu         sync.RWMutex
	contexts   map[string]*Context
	sandboxes  map[string]*Sandbox
	decided    map[string]bool
	blocked    map[string]bool
	violations map[string][]Violation

	handlers []func(Violation)

	sandboxEnabled atomic.Bool

	config Config
	clock  clockwork.Clock
	log    *logrus.Logger
}

// NewRegistry creates an empty registry with sandboxing enabled.
func NewRegistry(cfg Config, opts ...RegistryOption) *Registry {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxPluginFileSize
	}
	if cfg.DefaultLimits.isZero() {
		cfg.DefaultLimits = DefaultResourceLimits()
	}
	if cfg.DefaultGrants == nil {
		cfg.DefaultGrants = DefaultGrants
	}
	r := &Registry{
		contexts:   make(map[string]*Context),
		sandboxes:  make(map[string]*Sandbox),
		decided:    make(map[string]bool),
		blocked:    make(map[string]bool),
		violations: make(map[string][]Violation),
		config:     cfg,
		clock:      clockwork.NewRealClock(),
		log:        logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sandboxEnabled.Store(true)
	return r
}

// Context returns the context for plugin, creating it on first use.
func (r *Registry) Context(plugin string) *Context {
	r.mu.RLock()
	sc, ok := r.contexts[plugin]
	r.mu.RUnlock()
	if ok {
		return sc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contextLocked(plugin)
}

func (r *Registry) contextLocked(plugin string) *Context {
	if sc, ok := r.contexts[plugin]; ok {
		return sc
	}
	sc := NewContext(plugin,
		WithClock(r.clock),
		WithLimits(r.config.DefaultLimits),
		WithTrustPolicy(r.config.TrustPolicy),
	)
	r.contexts[plugin] = sc
	return sc
}

// Lookup returns the context for plugin without creating one.
func (r *Registry) Lookup(plugin string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.contexts[plugin]
	return sc, ok
}

// Plugins returns every plugin with security state, sorted.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sandbox returns the sandbox for plugin, creating it on first use.
func (r *Registry) Sandbox(plugin string) *Sandbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sb, ok := r.sandboxes[plugin]; ok {
		return sb
	}
	sb := NewSandbox(r.contextLocked(plugin))
	sb.global = &r.sandboxEnabled
	sb.report = func(permission, message string) {
		r.ReportViolation(plugin, permission, message)
	}
	r.sandboxes[plugin] = sb
	return sb
}

// SetSandboxEnabled turns every sandbox on or off.
func (r *Registry) SetSandboxEnabled(enabled bool) {
	r.sandboxEnabled.Store(enabled)
	r.log.WithField("enabled", enabled).Info("plugin sandbox toggled")
}

// SandboxEnabled reports the registry-wide sandbox switch.
func (r *Registry) SandboxEnabled() bool {
	return r.sandboxEnabled.Load()
}

// Grant grants perm to plugin.
func (r *Registry) Grant(plugin, perm string) error {
	if err := r.Context(plugin).Grant(perm); err != nil {
		return err
	}
	r.markDecided(plugin)
	r.log.WithFields(logrus.Fields{"plugin": plugin, "permission": perm}).Info("permission granted")
	return nil
}

// Revoke revokes perm from plugin.
func (r *Registry) Revoke(plugin, perm string) {
	r.Context(plugin).Revoke(perm)
	r.markDecided(plugin)
	r.log.WithFields(logrus.Fields{"plugin": plugin, "permission": perm}).Info("permission revoked")
}

// HasPermission reports whether plugin holds perm.
func (r *Registry) HasPermission(plugin, perm string) bool {
	sc, ok := r.Lookup(plugin)
	return ok && sc.HasPermission(perm)
}

// Permissions returns plugin's granted permissions.
func (r *Registry) Permissions(plugin string) []string {
	sc, ok := r.Lookup(plugin)
	if !ok {
		return nil
	}
	return sc.Permissions()
}

// SetTrusted sets plugin's trust flag.
func (r *Registry) SetTrusted(plugin string, trusted bool) {
	r.Context(plugin).SetTrusted(trusted)
	r.markDecided(plugin)
	r.log.WithFields(logrus.Fields{"plugin": plugin, "trusted": trusted}).Info("plugin trust changed")
}

// IsTrusted reports plugin's trust flag.
func (r *Registry) IsTrusted(plugin string) bool {
	sc, ok := r.Lookup(plugin)
	return ok && sc.IsTrusted()
}

// SetBlocked blocks or unblocks plugin. A blocked plugin fails
// CheckPluginPermissions.
func (r *Registry) SetBlocked(plugin string, blocked bool) {
	r.mu.Lock()
	if blocked {
		r.blocked[plugin] = true
	} else {
		delete(r.blocked, plugin)
	}
	r.mu.Unlock()
}

// IsBlocked reports whether plugin is blocked.
func (r *Registry) IsBlocked(plugin string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blocked[plugin]
}

func (r *Registry) markDecided(plugin string) {
	r.mu.Lock()
	r.decided[plugin] = true
	r.mu.Unlock()
}

// CheckPluginPermissions runs at load time. A plugin with no prior
// decision receives the default grants.
func (r *Registry) CheckPluginPermissions(d Descriptor) error {
	r.mu.Lock()
	if r.blocked[d.Name] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginBlocked, d.Name)
	}
	sc := r.contextLocked(d.Name)
	fresh := !r.decided[d.Name]
	r.decided[d.Name] = true
	r.mu.Unlock()

	if fresh && !sc.IsTrusted() {
		for _, perm := range r.config.DefaultGrants {
			if err := sc.Grant(perm); err != nil {
				return err
			}
		}
		r.log.WithFields(logrus.Fields{
			"plugin":  d.Name,
			"version": d.Version,
			"grants":  r.config.DefaultGrants,
		}).Info("default permissions granted")
	}
	return nil
}

// ReportViolation appends a violation to plugin's log and notifies
// handlers.
func (r *Registry) ReportViolation(plugin, permission, message string) Violation {
	v := Violation{
		ID:         uuid.NewString(),
		Plugin:     plugin,
		Permission: permission,
		Message:    message,
		Timestamp:  r.clock.Now(),
	}

	r.mu.Lock()
	log := append(r.violations[plugin], v)
	if len(log) > maxViolationsPerPlugin {
		log = log[len(log)-maxViolationsPerPlugin:]
	}
	r.violations[plugin] = log
	handlers := make([]func(Violation), len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"plugin":     plugin,
		"permission": permission,
		"violation":  v.ID,
	}).Warn(message)

	for _, h := range handlers {
		h(v)
	}
	return v
}

// OnViolation registers a handler called after each reported violation.
// Handlers run without registry locks held.
func (r *Registry) OnViolation(h func(Violation)) {
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

// Violations returns plugin's violation log, oldest first.
func (r *Registry) Violations(plugin string) []Violation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Violation(nil), r.violations[plugin]...)
}

// ClearViolations empties plugin's violation log.
func (r *Registry) ClearViolations(plugin string) {
	r.mu.Lock()
	delete(r.violations, plugin)
	r.mu.Unlock()
}

// Forget drops all state for plugin.
func (r *Registry) Forget(plugin string) {
	r.mu.Lock()
	delete(r.contexts, plugin)
	delete(r.sandboxes, plugin)
	delete(r.decided, plugin)
	delete(r.blocked, plugin)
	delete(r.violations, plugin)
	r.mu.Unlock()
}
