package dynlib

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libmissing.so")

	lib, err := Open(path)
	require.Error(t, err)
	assert.Nil(t, lib)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
	assert.NotEmpty(t, loadErr.Reason)
	assert.Contains(t, err.Error(), "load library")
}

func TestSymbolErrorMessage(t *testing.T) {
	err := &SymbolError{Library: "libecho.so", Symbol: "plugin_create"}
	assert.Equal(t, `symbol "plugin_create" not found in libecho.so`, err.Error())

	err.Reason = "undefined symbol"
	assert.Contains(t, err.Error(), "undefined symbol")
}

func TestResolveRejectsNonFunctionTarget(t *testing.T) {
	lib := &Library{path: "fake"}
	var n int
	err := lib.Resolve("x", &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pointer to a function")
}

func TestClosedLibraryLookup(t *testing.T) {
	lib := &Library{path: "fake", closed: true}

	_, err := lib.Lookup("plugin_create")
	var symErr *SymbolError
	require.True(t, errors.As(err, &symErr))
	assert.Equal(t, "plugin_create", symErr.Symbol)

	// Closing an already closed library is a no-op.
	assert.NoError(t, lib.Close())
	assert.True(t, lib.Closed())
}

func TestSystemLibrary(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("system library fixture only available on linux")
	}

	lib, err := Open("libc.so.6")
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	defer lib.Close()

	var getpid func() int32
	require.NoError(t, lib.Resolve("getpid", &getpid))
	assert.Positive(t, getpid())

	_, err = lib.Lookup("versedeck_no_such_symbol")
	var symErr *SymbolError
	assert.True(t, errors.As(err, &symErr))

	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close())
	assert.True(t, lib.Closed())
}
