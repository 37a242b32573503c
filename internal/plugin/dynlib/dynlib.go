// Package dynlib loads native shared libraries and resolves their exported
// symbols.
//
// A Library wraps one platform handle (dlopen on Unix-like systems,
// LoadLibrary on Windows). Symbols are bound into Go function values with
// Resolve, which performs no signature checking: the caller must know the
// exact shape of the exported function.
//
//	lib, err := dynlib.Open("/usr/lib/versedeck/plugins/libecho.so")
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	var version func() string
//	if err := lib.Resolve("plugin_api_version", &version); err != nil {
//	    return err
//	}
package dynlib

import (
	"fmt"
	"reflect"
	"sync"
)

// LoadError is returned when the platform loader rejects a library file.
type LoadError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load library %s: %s", e.Path, e.Reason)
}

// SymbolError is returned when a symbol is not exported by a library.
type SymbolError struct {
	Library string
	Symbol  string
	Reason  string
}

// Error implements the error interface.
func (e *SymbolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("symbol %q not found in %s: %s", e.Symbol, e.Library, e.Reason)
	}
	return fmt.Sprintf("symbol %q not found in %s", e.Symbol, e.Library)
}

// noCopy flags accidental copies of a Library under go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Library is a loaded native module.
// A Library must not be copied after Open; pass it by pointer.
type Library struct {
	_ noCopy

	mu     sync.Mutex
	path   string
	handle uintptr
	closed bool
}

// Open loads the library at path.
func Open(path string) (*Library, error) {
	handle, err := platformOpen(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	return &Library{path: path, handle: handle}, nil
}

// Path returns the filesystem path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Lookup returns the address of an exported symbol.
func (l *Library) Lookup(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, &SymbolError{Library: l.path, Symbol: name, Reason: "library is closed"}
	}

	addr, err := platformSymbol(l.handle, name)
	if err != nil {
		return 0, &SymbolError{Library: l.path, Symbol: name, Reason: err.Error()}
	}
	if addr == 0 {
		return 0, &SymbolError{Library: l.path, Symbol: name}
	}
	return addr, nil
}

// Resolve binds the exported function name into fptr, which must be a
// non-nil pointer to a variable of function type.
func (l *Library) Resolve(name string, fptr any) error {
	rv := reflect.ValueOf(fptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Func {
		return fmt.Errorf("resolve %q: target must be a pointer to a function, got %T", name, fptr)
	}

	addr, err := l.Lookup(name)
	if err != nil {
		return err
	}

	return bindFunc(fptr, addr)
}

// Close unloads the library. It is safe to call Close more than once.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := platformClose(l.handle); err != nil {
		return fmt.Errorf("unload library %s: %w", l.path, err)
	}
	l.handle = 0
	return nil
}

// Closed reports whether Close has been called.
func (l *Library) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
