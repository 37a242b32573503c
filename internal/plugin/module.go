package plugin

import (
	"fmt"
	"reflect"
)

// Module is an opened plugin module: a native library, a script or a
// set of in-process exports.
type Module interface {
	Path() string
	// Resolve binds the export symbol into fptr, a pointer to a func
	// variable of the expected signature.
	Resolve(symbol string, fptr any) error
	Close() error
}

// Exports is a Module backed by Go functions, keyed by symbol. It serves
// built-in plugins and test doubles.
type Exports map[string]any

// Path returns a placeholder; exports have no file.
func (e Exports) Path() string { return "builtin" }

// Close is a no-op.
func (e Exports) Close() error { return nil }

// Resolve assigns the function registered for symbol to *fptr. The
// registered function must be assignable to the target type.
func (e Exports) Resolve(symbol string, fptr any) error {
	pv := reflect.ValueOf(fptr)
	if pv.Kind() != reflect.Pointer || pv.IsNil() || pv.Elem().Kind() != reflect.Func {
		return fmt.Errorf("resolve %s: target must be a non-nil pointer to a func, got %T", symbol, fptr)
	}
	fn, ok := e[symbol]
	if !ok || fn == nil {
		return fmt.Errorf("symbol %s not exported", symbol)
	}
	fv := reflect.ValueOf(fn)
	if !fv.Type().AssignableTo(pv.Elem().Type()) {
		return fmt.Errorf("symbol %s has type %s, want %s", symbol, fv.Type(), pv.Elem().Type())
	}
	pv.Elem().Set(fv)
	return nil
}
