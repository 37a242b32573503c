package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call exceeds its time budget.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrSymbolNotFound is returned by Resolve for a missing global function.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// CallError is the panic value raised by a bound function when the Lua
// call fails. Callers of bound functions recover it.
type CallError struct {
	Symbol string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("lua %s: %v", e.Symbol, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
