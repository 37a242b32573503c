package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig("Echo", dir, "/data")
	require.NoError(t, err)

	assert.Equal(t, "Echo", cfg.Name())
	assert.Equal(t, filepath.Join(dir, "Echo.conf"), cfg.Path())
	assert.Equal(t, filepath.Join("/data", "Echo"), cfg.DataPath())
	assert.Empty(t, cfg.Values())
	assert.Equal(t, "{}", cfg.JSON())
}

func TestLoadConfigParsesLines(t *testing.T) {
	dir := t.TempDir()
	content := "# display settings\n\nfont = Georgia\nsize=18\nbroken line\n=orphan\nauto_start=off\nurl=http://x/?a=b\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Echo.conf"), []byte(content), 0o644))

	cfg, err := LoadConfig("Echo", dir, dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"font":       "Georgia",
		"size":       "18",
		"auto_start": "off",
		"url":        "http://x/?a=b",
	}, cfg.Values())
	assert.Equal(t, 18, cfg.Int("size", 0))
	assert.Equal(t, 7, cfg.Int("font", 7))
	assert.False(t, cfg.Bool(KeyAutoStart, true))
	assert.True(t, cfg.Bool("missing", true))
	assert.Equal(t, "none", cfg.String("missing", "none"))
	assert.True(t, cfg.Has("font"))
	assert.False(t, cfg.Has("broken line"))
}

func TestConfigBool(t *testing.T) {
	cfg := NewConfig("Echo", t.TempDir(), t.TempDir())
	for value, want := range map[string]bool{
		"yes": true, "on": true, "true": true, "1": true, "YES": true,
		"no": false, "off": false, "false": false, "0": false,
	} {
		require.NoError(t, cfg.Set("flag", value))
		assert.Equal(t, want, cfg.Bool("flag", !want), value)
	}
	require.NoError(t, cfg.Set("flag", "maybe"))
	assert.True(t, cfg.Bool("flag", true))
}

func TestConfigSetRejectsInvalid(t *testing.T) {
	cfg := NewConfig("Echo", t.TempDir(), t.TempDir())

	assert.Error(t, cfg.Set("", "x"))
	assert.Error(t, cfg.Set("a=b", "x"))
	assert.Error(t, cfg.Set("a\nb", "x"))
	assert.Error(t, cfg.Set("key", "line1\nline2"))
	assert.Empty(t, cfg.Values())
}

func TestConfigJSON(t *testing.T) {
	cfg := NewConfig("Echo", t.TempDir(), t.TempDir())
	require.NoError(t, cfg.Set("theme.color", "blue"))
	require.NoError(t, cfg.Set("quote", `say "hi"`))

	assert.JSONEq(t, `{"theme.color":"blue","quote":"say \"hi\""}`, cfg.JSON())
}

func TestConfigSaveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := NewConfig("Echo", dir, dir)
	require.NoError(t, cfg.Set("b", "2"))
	require.NoError(t, cfg.Set("a", "1"))
	require.NoError(t, cfg.Set("b", "3"))
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, "b=3\na=1\n", string(data))

	loaded, err := LoadConfig("Echo", dir, dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Values(), loaded.Values())
}
