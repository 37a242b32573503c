//go:build windows

package dynlib

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

func platformOpen(path string) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return 0, err
	}
	return uintptr(h), nil
}

func platformSymbol(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}

func platformClose(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}

func bindFunc(fptr any, addr uintptr) error {
	purego.RegisterFunc(fptr, addr)
	return nil
}
