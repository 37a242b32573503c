package plugin

import (
	"errors"
	"fmt"
)

// ErrorKind classifies plugin failures.
type ErrorKind int

// Error kinds.
const (
	KindLoad ErrorKind = iota + 1
	KindContract
	KindDependency
	KindSecurity
	KindInitialization
	KindRuntime
	KindFilesystem
)

// String returns a string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindContract:
		return "contract"
	case KindDependency:
		return "dependency"
	case KindSecurity:
		return "security"
	case KindInitialization:
		return "initialization"
	case KindRuntime:
		return "runtime"
	case KindFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrLoad           = errors.New("plugin load error")
	ErrContract       = errors.New("plugin contract error")
	ErrDependency     = errors.New("plugin dependency error")
	ErrSecurity       = errors.New("plugin security error")
	ErrInitialization = errors.New("plugin initialization error")
	ErrRuntime        = errors.New("plugin runtime error")
	ErrFilesystem     = errors.New("plugin filesystem error")
)

// Plugin system errors.
var (
	// ErrPluginNotFound is returned for names the manager has never seen.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrBusy is returned when a plugin is mid-transition.
	ErrBusy = errors.New("plugin is busy")

	// ErrNotActive is returned when a kind accessor targets an inactive plugin.
	ErrNotActive = errors.New("plugin is not active")

	// ErrWrongKind is returned when a kind accessor targets another kind.
	ErrWrongKind = errors.New("plugin is of a different kind")

	// ErrCallTimeout is returned when a plugin call exceeds CallTimeout.
	ErrCallTimeout = errors.New("plugin call timed out")

	// ErrAlreadyInitialized is returned when System.Initialize runs twice.
	ErrAlreadyInitialized = errors.New("plugin system already initialized")

	// ErrNotInitialized is returned by System methods before Initialize.
	ErrNotInitialized = errors.New("plugin system not initialized")
)

var kindSentinels = map[ErrorKind]error{
	KindLoad:           ErrLoad,
	KindContract:       ErrContract,
	KindDependency:     ErrDependency,
	KindSecurity:       ErrSecurity,
	KindInitialization: ErrInitialization,
	KindRuntime:        ErrRuntime,
	KindFilesystem:     ErrFilesystem,
}

var kindHints = map[ErrorKind]string{
	KindLoad:           "Check that the plugin file exists and was built for this platform and architecture.",
	KindContract:       "The plugin does not implement the expected interface; rebuild it against API version " + APIVersion + ".",
	KindDependency:     "Load the plugins listed as dependencies first.",
	KindSecurity:       "Review the plugin's permissions, signature and file size in the security settings.",
	KindInitialization: "The plugin rejected its configuration; check its settings file.",
	KindRuntime:        "The plugin failed while running; reload it or check the log for details.",
	KindFilesystem:     "Check that the plugins directory exists and is writable.",
}

// Error is a classified plugin failure.
type Error struct {
	Kind   ErrorKind
	Plugin string
	Op     string
	Err    error
}

func newError(kind ErrorKind, plugin, op string, err error) *Error {
	return &Error{Kind: kind, Plugin: plugin, Op: op, Err: err}
}

func errorf(kind ErrorKind, plugin, op, format string, args ...any) *Error {
	return newError(kind, plugin, op, fmt.Errorf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Plugin != "" && e.Op != "":
		return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Op, e.Err)
	case e.Plugin != "":
		return fmt.Sprintf("plugin %s: %v", e.Plugin, e.Err)
	default:
		return fmt.Sprintf("plugin: %v", e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Hint returns a remediation message for user interfaces.
func (e *Error) Hint() string {
	return kindHints[e.Kind]
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
