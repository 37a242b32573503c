package security

import (
	"errors"
	"fmt"
)

// Security errors.
var (
	ErrUnknownPermission = errors.New("unknown permission")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrPluginBlocked     = errors.New("plugin is blocked")
	ErrFileTooLarge      = errors.New("plugin file exceeds size limit")
	ErrMissingSignature  = errors.New("plugin signature missing")
	ErrInvalidSignature  = errors.New("plugin signature invalid")
	ErrSuspiciousName    = errors.New("plugin file name is blacklisted")
)

// PermissionError is returned when a plugin lacks a permission.
type PermissionError struct {
	Plugin     string
	Permission string
	Action     string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("permission denied: plugin %q needs %s to %s", e.Plugin, e.Permission, e.Action)
	}
	return fmt.Sprintf("permission denied: plugin %q needs %s", e.Plugin, e.Permission)
}

// Unwrap returns ErrPermissionDenied.
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}
