package plugin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := errorf(KindLoad, "Echo", "open", "no such file")
	assert.Equal(t, "plugin Echo: open: no such file", err.Error())

	err = newError(KindRuntime, "Echo", "", errors.New("boom"))
	assert.Equal(t, "plugin Echo: boom", err.Error())

	err = newError(KindFilesystem, "", "", errors.New("disk full"))
	assert.Equal(t, "plugin: disk full", err.Error())
}

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("wrapped: %w", newError(KindSecurity, "Echo", "permissions", cause))

	assert.ErrorIs(t, err, ErrSecurity)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrLoad)
	assert.Equal(t, KindSecurity, KindOf(err))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func TestErrorHints(t *testing.T) {
	for kind := KindLoad; kind <= KindFilesystem; kind++ {
		err := newError(kind, "Echo", "op", errors.New("x"))
		assert.NotEmpty(t, err.Hint(), kind.String())
		assert.NotEqual(t, "unknown", kind.String())
	}
	assert.Equal(t, "unknown", ErrorKind(0).String())
}
