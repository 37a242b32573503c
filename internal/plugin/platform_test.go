package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativePlatformNaming(t *testing.T) {
	tests := []struct {
		goos string
		file string
	}{
		{"linux", "libconcordance.so"},
		{"darwin", "libconcordance.dylib"},
		{"windows", "concordance.dll"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			p := nativeFor(tt.goos)
			assert.Equal(t, tt.file, p.LibraryName("concordance"))
			name, ok := p.PluginName(tt.file)
			assert.True(t, ok)
			assert.Equal(t, "concordance", name)
			assert.True(t, p.FileBacked())
		})
	}

	linux := nativeFor("linux")
	for _, file := range []string{"concordance.so", "libconcordance.dll", "lib.so", "lib.hidden.so"} {
		_, ok := linux.PluginName(file)
		assert.False(t, ok, file)
	}
}

func TestNativePlatformScan(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"libzeta.so", "libalpha.so", "notes.txt", "alpha.so"} {
		writePluginFile(t, dir, f)
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "libdir.so"), 0o755))

	names, err := nativeFor("linux").Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)

	names, err = nativeFor("linux").Scan(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNativePlatformOpenMissing(t *testing.T) {
	_, err := NativePlatform().Open("ghost", filepath.Join(t.TempDir(), "libghost.so"))
	assert.Error(t, err)
}

func TestStaticPlatform(t *testing.T) {
	p := NewStaticPlatform()
	p.Register("Zeta", Exports{})
	p.Register("Alpha", Exports{})

	assert.False(t, p.FileBacked())
	assert.Equal(t, "Alpha", p.LibraryName("Alpha"))
	names, err := p.Scan("ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Zeta"}, names)

	_, ok := p.PluginName("Beta")
	assert.False(t, ok)

	p.Unregister("Zeta")
	_, err = p.Open("Zeta", "")
	assert.Error(t, err)
	mod, err := p.Open("Alpha", "")
	require.NoError(t, err)
	assert.Equal(t, "builtin", mod.Path())
}
