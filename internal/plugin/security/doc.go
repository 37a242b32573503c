// Package security implements least-privilege access control for plugins.
//
// Enforcement is cooperative: plugins run in the host process and a
// malicious native module can bypass every check here. The package answers
// "may this plugin do X?" at the host API boundary.
//
// # Permissions
//
// The permission catalog is fixed at startup (see Catalog). Each plugin has
// one Context holding its granted permissions, its ResourceLimits, a trust
// flag and live usage counters. A trusted context passes every check.
//
// # Resource limits
//
// Network requests and disk I/O are metered over a rolling one-minute
// window. The window resets lazily on the first check more than sixty
// seconds after the previous reset; no background timer is involved.
//
// # Sandbox
//
// Sandbox wraps a Context with intention-revealing checks so call sites
// read as policy:
//
//	sb := registry.Sandbox("EchoPlugin")
//	if !sb.AllowFileWrite(path) {
//	    sb.Report(security.PermFileWrite, "write "+path)
//	    return errDenied
//	}
//
// # Registry
//
// Registry owns every Context, persists grants to security.conf, performs
// the load-time safety gate (file size ceiling, optional signature check,
// filename blacklist) and keeps the violation log.
package security
