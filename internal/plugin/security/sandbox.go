package security

import (
	"sync/atomic"
)

// Sandbox wraps a Context with intention-revealing checks. A disabled
// sandbox allows everything.
type Sandbox struct {
	ctx     *Context
	enabled atomic.Bool
	global  *atomic.Bool
	report  func(permission, message string)
}

// NewSandbox creates an enabled sandbox over ctx. Violations reported on a
// standalone sandbox are discarded; use Registry.Sandbox to have them logged.
func NewSandbox(ctx *Context) *Sandbox {
	sb := &Sandbox{ctx: ctx}
	sb.enabled.Store(true)
	return sb
}

// Context returns the underlying security context.
func (sb *Sandbox) Context() *Context {
	return sb.ctx
}

// SetEnabled enables or disables this sandbox.
func (sb *Sandbox) SetEnabled(enabled bool) {
	sb.enabled.Store(enabled)
}

// Enabled reports whether checks are applied. The registry-wide switch
// overrides the per-instance flag.
func (sb *Sandbox) Enabled() bool {
	if sb.global != nil && !sb.global.Load() {
		return false
	}
	return sb.enabled.Load()
}

// Report logs a violation for this plugin.
func (sb *Sandbox) Report(permission, message string) {
	if sb.report != nil {
		sb.report(permission, message)
	}
}

func (sb *Sandbox) allow(perm string) bool {
	if !sb.Enabled() {
		return true
	}
	return sb.ctx.HasPermission(perm)
}

// AllowVerseRead reports whether the plugin may read verses.
func (sb *Sandbox) AllowVerseRead() bool { return sb.allow(PermVerseRead) }

// AllowVerseWrite reports whether the plugin may modify favorites and
// annotations.
func (sb *Sandbox) AllowVerseWrite() bool { return sb.allow(PermVerseWrite) }

// AllowUIModification reports whether the plugin may change the UI.
func (sb *Sandbox) AllowUIModification() bool { return sb.allow(PermUIModify) }

func (sb *Sandbox) AllowSettingsRead() bool  { return sb.allow(PermSettingsRead) }
func (sb *Sandbox) AllowSettingsWrite() bool { return sb.allow(PermSettingsWrite) }
func (sb *Sandbox) AllowSystemInfo() bool    { return sb.allow(PermSystemInfo) }
func (sb *Sandbox) AllowSystemConfig() bool  { return sb.allow(PermSystemConfig) }

func (sb *Sandbox) AllowPresentationControl() bool { return sb.allow(PermPresentationControl) }
func (sb *Sandbox) AllowPluginManagement() bool    { return sb.allow(PermPluginManage) }

// AllowFileRead requires file.read and an allow-listed read path.
func (sb *Sandbox) AllowFileRead(path string) bool {
	if !sb.Enabled() {
		return true
	}
	return sb.ctx.HasPermission(PermFileRead) && sb.ctx.CheckFileAccess(path, false)
}

// AllowFileWrite requires file.write and an allow-listed write path.
func (sb *Sandbox) AllowFileWrite(path string) bool {
	if !sb.Enabled() {
		return true
	}
	return sb.ctx.HasPermission(PermFileWrite) && sb.ctx.CheckFileAccess(path, true)
}

// AllowNetworkAccess requires network.access, network use enabled in the
// limits and a request left in the current window. An allowed call
// consumes one request.
func (sb *Sandbox) AllowNetworkAccess() bool {
	if !sb.Enabled() {
		return true
	}
	return sb.ctx.HasPermission(PermNetworkAccess) && sb.ctx.AllowsNetwork() && sb.ctx.CheckNetworkRequest()
}

// AllowProcessExecution requires process.execute and subprocesses enabled.
func (sb *Sandbox) AllowProcessExecution() bool {
	if !sb.Enabled() {
		return true
	}
	return sb.ctx.HasPermission(PermProcessExecute) && sb.ctx.AllowsSubprocess()
}

// AllowLibraryLoading requires library.load and library loading enabled.
func (sb *Sandbox) AllowLibraryLoading() bool {
	if !sb.Enabled() {
		return true
	}
	return sb.ctx.HasPermission(PermLibraryLoad) && sb.ctx.AllowsLibraryLoading()
}

// EnforceMemoryLimit reports whether allocating mb more is within limits.
func (sb *Sandbox) EnforceMemoryLimit(mb int64) bool {
	return !sb.Enabled() || sb.ctx.CheckMemoryUsage(mb)
}

// EnforceCPUTime reports whether ms of CPU time is within limits.
func (sb *Sandbox) EnforceCPUTime(ms int64) bool {
	return !sb.Enabled() || sb.ctx.CheckCPUTime(ms)
}

// EnforceDiskIO consumes mb of disk I/O and reports whether it was allowed.
func (sb *Sandbox) EnforceDiskIO(mb float64) bool {
	return !sb.Enabled() || sb.ctx.CheckDiskIO(mb)
}

// EnforceFileSize reports whether a file of mb megabytes is within limits.
func (sb *Sandbox) EnforceFileSize(mb float64) bool {
	return !sb.Enabled() || sb.ctx.CheckFileSize(mb)
}
