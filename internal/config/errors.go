package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDuration indicates a duration setting that time.ParseDuration rejects.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseError reports a configuration source (a TOML file, a .env file
// or the process environment) that could not be decoded.
type ParseError struct {
	Path string
	// Line and Column are zero when the decoder gives no position.
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("config ")
	b.WriteString(e.Path)
	switch {
	case e.Line > 0 && e.Column > 0:
		fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
	case e.Line > 0:
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError describes an invalid setting.
type ValidationError struct {
	// Path is the dotted setting path, e.g. "plugins.platform".
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Path + ": " + e.Message
}
