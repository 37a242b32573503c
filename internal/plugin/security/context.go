package security

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TrustPolicy controls what a trusted context bypasses.
type TrustPolicy int

const (
	// TrustBypassAll makes a trusted context pass every check.
	TrustBypassAll TrustPolicy = iota
	// TrustEnforceResources lets a trusted context skip permission checks
	// while resource ceilings still apply.
	TrustEnforceResources
)

// String returns a string representation of the policy.
func (p TrustPolicy) String() string {
	switch p {
	case TrustBypassAll:
		return "bypass-all"
	case TrustEnforceResources:
		return "enforce-resources"
	default:
		return "unknown"
	}
}

// ParseTrustPolicy parses the configuration spelling of a policy.
func ParseTrustPolicy(s string) (TrustPolicy, error) {
	switch s {
	case "", "bypass-all":
		return TrustBypassAll, nil
	case "enforce-resources":
		return TrustEnforceResources, nil
	default:
		return TrustBypassAll, fmt.Errorf("unknown trust policy %q", s)
	}
}

// Context is the security state of one plugin: granted permissions,
// resource limits, trust flag and usage counters.
type Context struct {
	mu sync.Mutex

	plugin  string
	granted map[string]bool
	limits  ResourceLimits
	trusted bool
	policy  TrustPolicy
	clock   clockwork.Clock

	memoryMB    int64
	requests    int
	diskIOMB    float64
	windowStart time.Time
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithClock sets the clock used for the usage window.
func WithClock(c clockwork.Clock) ContextOption {
	return func(sc *Context) {
		if c != nil {
			sc.clock = c
		}
	}
}

// WithLimits sets the initial resource limits.
func WithLimits(l ResourceLimits) ContextOption {
	return func(sc *Context) {
		sc.limits = l.clone()
	}
}

// WithTrustPolicy sets what trust bypasses.
func WithTrustPolicy(p TrustPolicy) ContextOption {
	return func(sc *Context) {
		sc.policy = p
	}
}

// NewContext creates a context with no permissions and default limits.
func NewContext(plugin string, opts ...ContextOption) *Context {
	sc := &Context{
		plugin:  plugin,
		granted: make(map[string]bool),
		limits:  DefaultResourceLimits(),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.windowStart = sc.clock.Now()
	return sc
}

// Plugin returns the plugin this context belongs to.
func (sc *Context) Plugin() string {
	return sc.plugin
}

// Grant adds a permission. Names outside the catalog are rejected.
func (sc *Context) Grant(perm string) error {
	if !IsValidPermission(perm) {
		return fmt.Errorf("%w: %s", ErrUnknownPermission, perm)
	}
	sc.mu.Lock()
	sc.granted[perm] = true
	sc.mu.Unlock()
	return nil
}

// Revoke removes a permission. Revoking an absent permission is a no-op.
func (sc *Context) Revoke(perm string) {
	sc.mu.Lock()
	delete(sc.granted, perm)
	sc.mu.Unlock()
}

// HasPermission reports whether perm is granted. Trusted contexts hold
// every permission.
func (sc *Context) HasPermission(perm string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.trusted {
		return true
	}
	return sc.granted[perm]
}

// Permissions returns the explicitly granted permissions, sorted.
func (sc *Context) Permissions() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	perms := make([]string, 0, len(sc.granted))
	for p := range sc.granted {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// SetTrusted sets the trust flag.
func (sc *Context) SetTrusted(trusted bool) {
	sc.mu.Lock()
	sc.trusted = trusted
	sc.mu.Unlock()
}

// IsTrusted returns the trust flag.
func (sc *Context) IsTrusted() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.trusted
}

// Limits returns a copy of the resource limits.
func (sc *Context) Limits() ResourceLimits {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.limits.clone()
}

// SetLimits replaces the resource limits. Counters are kept.
func (sc *Context) SetLimits(l ResourceLimits) {
	sc.mu.Lock()
	sc.limits = l.clone()
	sc.mu.Unlock()
}

// bypass reports whether resource checks are skipped. Caller holds mu.
func (sc *Context) bypass() bool {
	return sc.trusted && sc.policy == TrustBypassAll
}

// rollWindow resets the per-minute counters when the window has elapsed.
// Caller holds mu.
func (sc *Context) rollWindow() {
	now := sc.clock.Now()
	if now.Sub(sc.windowStart) > usageWindow {
		sc.requests = 0
		sc.diskIOMB = 0
		sc.windowStart = now
	}
}

// CheckMemoryUsage reports whether allocating requestMB more stays within
// the memory ceiling.
func (sc *Context) CheckMemoryUsage(requestMB int64) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.bypass() || sc.limits.MaxMemoryMB <= 0 {
		return true
	}
	return sc.memoryMB+requestMB <= sc.limits.MaxMemoryMB
}

// AddMemoryUsage adjusts the tracked memory by deltaMB. The counter never
// drops below zero.
func (sc *Context) AddMemoryUsage(deltaMB int64) {
	sc.mu.Lock()
	sc.memoryMB += deltaMB
	if sc.memoryMB < 0 {
		sc.memoryMB = 0
	}
	sc.mu.Unlock()
}

// CheckNetworkRequest consumes one request from the current window and
// reports whether it was within the limit.
func (sc *Context) CheckNetworkRequest() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.bypass() {
		return true
	}
	sc.rollWindow()
	if sc.limits.MaxNetworkRequestsPerMinute > 0 && sc.requests >= sc.limits.MaxNetworkRequestsPerMinute {
		return false
	}
	sc.requests++
	return true
}

// CheckDiskIO consumes mb of disk I/O from the current window and reports
// whether it was within the limit. Denied I/O is not counted.
func (sc *Context) CheckDiskIO(mb float64) bool {
	if mb < 0 {
		mb = 0
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.bypass() {
		return true
	}
	sc.rollWindow()
	if sc.limits.MaxDiskIOPerMinuteMB > 0 && sc.diskIOMB+mb > sc.limits.MaxDiskIOPerMinuteMB {
		return false
	}
	sc.diskIOMB += mb
	return true
}

// CheckCPUTime reports whether ms of CPU time is within the per-call limit.
func (sc *Context) CheckCPUTime(ms int64) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.bypass() || sc.limits.MaxCPUTimeMs <= 0 {
		return true
	}
	return ms <= sc.limits.MaxCPUTimeMs
}

// CheckFileSize reports whether a file of mb megabytes is within the limit.
func (sc *Context) CheckFileSize(mb float64) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.bypass() || sc.limits.MaxFileSizeMB <= 0 {
		return true
	}
	return mb <= sc.limits.MaxFileSizeMB
}

// CheckFileAccess reports whether path lies under one of the allow-listed
// directories for the access mode. Trusted contexts pass.
func (sc *Context) CheckFileAccess(path string, write bool) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.trusted {
		return true
	}
	allowed := sc.limits.AllowedReadPaths
	if write {
		allowed = sc.limits.AllowedWritePaths
	}
	target := normalizePath(path)
	for _, base := range allowed {
		if isWithinPath(target, normalizePath(base)) {
			return true
		}
	}
	return false
}

// AllowsNetwork reports whether the limits permit network use at all.
func (sc *Context) AllowsNetwork() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.trusted || sc.limits.AllowNetwork
}

// AllowsSubprocess reports whether the limits permit starting processes.
func (sc *Context) AllowsSubprocess() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.trusted || sc.limits.AllowSubprocess
}

// AllowsLibraryLoading reports whether the limits permit loading libraries.
func (sc *Context) AllowsLibraryLoading() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.trusted || sc.limits.AllowLibraryLoading
}

// Usage returns a snapshot of the counters.
func (sc *Context) Usage() Usage {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return Usage{
		MemoryMB:        sc.memoryMB,
		NetworkRequests: sc.requests,
		DiskIOMB:        sc.diskIOMB,
		WindowStart:     sc.windowStart,
	}
}

// ResetUsage zeroes every counter and starts a new window.
func (sc *Context) ResetUsage() {
	sc.mu.Lock()
	sc.memoryMB = 0
	sc.requests = 0
	sc.diskIOMB = 0
	sc.windowStart = sc.clock.Now()
	sc.mu.Unlock()
}
