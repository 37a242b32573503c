package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewRegistry(cfg, WithLogger(logger), WithRegistryClock(clockwork.NewFakeClock()))
}

func TestCheckPluginPermissionsDefaultGrants(t *testing.T) {
	r := newTestRegistry(t, Config{})

	require.NoError(t, r.CheckPluginPermissions(Descriptor{Name: "EchoPlugin"}))
	assert.Equal(t, []string{PermUIModify, PermVerseRead}, r.Permissions("EchoPlugin"))

	// A later revoke is a decision and survives the next load.
	r.Revoke("EchoPlugin", PermUIModify)
	require.NoError(t, r.CheckPluginPermissions(Descriptor{Name: "EchoPlugin"}))
	assert.Equal(t, []string{PermVerseRead}, r.Permissions("EchoPlugin"))
}

func TestCheckPluginPermissionsBlocked(t *testing.T) {
	r := newTestRegistry(t, Config{})
	r.SetBlocked("Bad", true)
	err := r.CheckPluginPermissions(Descriptor{Name: "Bad"})
	assert.ErrorIs(t, err, ErrPluginBlocked)

	r.SetBlocked("Bad", false)
	assert.NoError(t, r.CheckPluginPermissions(Descriptor{Name: "Bad"}))
}

func TestRegistrySandboxReportsViolations(t *testing.T) {
	r := newTestRegistry(t, Config{})
	var seen []Violation
	r.OnViolation(func(v Violation) { seen = append(seen, v) })

	sb := r.Sandbox("EchoPlugin")
	assert.Same(t, sb, r.Sandbox("EchoPlugin"))
	require.False(t, sb.AllowFileWrite("/etc/passwd"))
	sb.Report(PermFileWrite, "write /etc/passwd")

	vs := r.Violations("EchoPlugin")
	require.Len(t, vs, 1)
	assert.Equal(t, PermFileWrite, vs[0].Permission)
	assert.NotEmpty(t, vs[0].ID)
	assert.Equal(t, vs, seen)

	r.ClearViolations("EchoPlugin")
	assert.Empty(t, r.Violations("EchoPlugin"))
}

func TestRegistryGlobalSandboxSwitch(t *testing.T) {
	r := newTestRegistry(t, Config{})
	sb := r.Sandbox("p")
	assert.False(t, sb.AllowNetworkAccess())

	r.SetSandboxEnabled(false)
	assert.True(t, sb.AllowNetworkAccess())
	assert.False(t, sb.Enabled())

	r.SetSandboxEnabled(true)
	assert.False(t, sb.AllowNetworkAccess())
}

func TestRegistryGrantUnknown(t *testing.T) {
	r := newTestRegistry(t, Config{})
	assert.ErrorIs(t, r.Grant("p", "fly"), ErrUnknownPermission)
	assert.False(t, r.HasPermission("missing", PermVerseRead))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	r := newTestRegistry(t, Config{})
	require.NoError(t, r.Grant("EchoPlugin", PermVerseRead))
	require.NoError(t, r.Grant("EchoPlugin", PermFileWrite))
	require.NoError(t, r.Grant("com.example.tools", PermSystemInfo))
	r.SetTrusted("Trusted", true)
	r.Revoke("Empty", PermVerseRead)
	r.SetBlocked("Bad", true)
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "EchoPlugin.file.write=granted\n")
	assert.Contains(t, string(data), "Trusted.trusted=true\n")

	loaded := newTestRegistry(t, Config{})
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, []string{PermFileWrite, PermVerseRead}, loaded.Permissions("EchoPlugin"))
	assert.Equal(t, []string{PermSystemInfo}, loaded.Permissions("com.example.tools"))
	assert.True(t, loaded.IsTrusted("Trusted"))
	assert.True(t, loaded.IsBlocked("Bad"))

	// Empty had an explicit decision, so it gets no default grants.
	require.NoError(t, loaded.CheckPluginPermissions(Descriptor{Name: "Empty"}))
	assert.Empty(t, loaded.Permissions("Empty"))
}

func TestLoadSkipsGarbage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewRegistry(Config{}, WithLogger(logger))

	input := strings.Join([]string{
		"# comment",
		"",
		"no equals sign",
		"EchoPlugin.warp.drive=granted",
		"EchoPlugin.verse.read=granted",
	}, "\n")
	require.NoError(t, r.read(strings.NewReader(input), "test"))

	assert.Equal(t, []string{PermVerseRead}, r.Permissions("EchoPlugin"))
	assert.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestLoadMissingFile(t *testing.T) {
	r := newTestRegistry(t, Config{})
	assert.NoError(t, r.Load(filepath.Join(t.TempDir(), "absent.conf")))
}

func TestValidatePluginSafetySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libHuge.so")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(DefaultMaxPluginFileSize+1))
	require.NoError(t, f.Close())

	r := newTestRegistry(t, Config{})
	assert.ErrorIs(t, r.ValidatePluginSafety(path), ErrFileTooLarge)

	small := filepath.Join(dir, "libSmall.so")
	require.NoError(t, os.WriteFile(small, []byte("ELF"), 0o644))
	assert.NoError(t, r.ValidatePluginSafety(small))
}

func TestValidatePluginSafetyBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libKeyLogger.so")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	r := newTestRegistry(t, Config{})
	assert.ErrorIs(t, r.ValidatePluginSafety(path), ErrSuspiciousName)
}

func TestValidatePluginSafetyMissing(t *testing.T) {
	r := newTestRegistry(t, Config{})
	assert.Error(t, r.ValidatePluginSafety(filepath.Join(t.TempDir(), "nope.so")))
}

func TestValidatePluginSafetySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "libSigned.so")
	require.NoError(t, os.WriteFile(path, []byte("module bytes"), 0o644))

	r := newTestRegistry(t, Config{RequireSignature: true, TrustedSigners: []ed25519.PublicKey{pub}})
	assert.ErrorIs(t, r.ValidatePluginSafety(path), ErrMissingSignature)

	bad, err := SignFile(path, otherPriv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+SignatureSuffix, []byte(bad), 0o644))
	assert.ErrorIs(t, r.ValidatePluginSafety(path), ErrInvalidSignature)

	good, err := SignFile(path, priv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+SignatureSuffix, []byte(good+"\n"), 0o644))
	assert.NoError(t, r.ValidatePluginSafety(path))

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))
	assert.ErrorIs(t, r.ValidatePluginSafety(path), ErrInvalidSignature)
}

func TestCatalog(t *testing.T) {
	perms := Catalog()
	assert.Len(t, perms, 14)
	for i := 1; i < len(perms); i++ {
		assert.Less(t, perms[i-1].Name, perms[i].Name)
	}
	p, ok := LookupPermission(PermNetworkAccess)
	require.True(t, ok)
	assert.True(t, p.Dangerous)
	assert.Contains(t, DangerousPermissions(), PermProcessExecute)
	assert.NotContains(t, DangerousPermissions(), PermVerseRead)
}
