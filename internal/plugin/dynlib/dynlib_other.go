//go:build !(darwin || linux || freebsd || windows)

package dynlib

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("native libraries are not supported on " + runtime.GOOS)

func platformOpen(string) (uintptr, error) { return 0, errUnsupported }

func platformSymbol(uintptr, string) (uintptr, error) { return 0, errUnsupported }

func platformClose(uintptr) error { return nil }

func bindFunc(any, uintptr) error { return errUnsupported }
