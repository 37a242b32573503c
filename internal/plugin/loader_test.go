package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(name string, ex Exports) *Loader {
	p := NewStaticPlatform()
	p.Register(name, ex)
	return NewLoader(p, nullLogger())
}

func TestLoaderLoadUnload(t *testing.T) {
	f := newFake("theme")
	l := newTestLoader("Night", f.exports())

	inst, err := l.Load("Night", "Night")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.True(t, l.Loaded())
	assert.Equal(t, KindTheme, l.Kind())
	assert.Equal(t, APIVersion, l.APIVersion())
	assert.Same(t, inst, l.Instance())
	assert.Equal(t, "Night", inst.Name())
	assert.Equal(t, uintptr(1), inst.Handle().Value())

	theme, ok := inst.Theme()
	require.True(t, ok)
	assert.Equal(t, "Night", theme.ThemeName())
	_, ok = inst.Search()
	assert.False(t, ok)

	require.NoError(t, l.Unload())
	assert.False(t, l.Loaded())
	assert.Nil(t, l.Instance())
	assert.Equal(t, KindUnknown, l.Kind())
	_, destroyed := f.Counts()
	assert.Equal(t, 1, destroyed)

	// Unloading an empty loader is a no-op.
	require.NoError(t, l.Unload())
	_, destroyed = f.Counts()
	assert.Equal(t, 1, destroyed)
}

func TestLoaderRefusesSecondLoad(t *testing.T) {
	l := newTestLoader("Echo", newFake("script").exports())
	_, err := l.Load("Echo", "Echo")
	require.NoError(t, err)

	_, err = l.Load("Echo", "Echo")
	assert.ErrorIs(t, err, ErrLoad)
	require.NoError(t, l.Unload())
}

func TestLoaderOpenFailure(t *testing.T) {
	l := NewLoader(NewStaticPlatform(), nullLogger())
	_, err := l.Load("Ghost", "Ghost")
	assert.ErrorIs(t, err, ErrLoad)
	assert.False(t, l.Loaded())
}

func TestLoaderOptionalExportsDefault(t *testing.T) {
	f := newFake("script")
	ex := f.exports()
	for _, sym := range []string{SymInitialize, SymShutdown, SymInfo, SymConfigure, SymActivate, SymDeactivate, SymUpdate, SymLastError} {
		delete(ex, sym)
	}
	l := newTestLoader("Bare", ex)

	inst, err := l.Load("Bare", "Bare")
	require.NoError(t, err)
	defer l.Unload()

	assert.True(t, inst.Initialize())
	assert.True(t, inst.Configure(nil))
	assert.Equal(t, Info{Name: "Bare"}, inst.Info())
	assert.Empty(t, inst.LastError())
	assert.NotPanics(t, func() {
		inst.OnActivate()
		inst.OnUpdate(1)
		inst.OnDeactivate()
		inst.Shutdown()
	})
	assert.Equal(t, []string{"create"}, f.Steps())
}

func TestLoaderRecoversPanickingModule(t *testing.T) {
	ex := newFake("script").exports()
	ex[SymAPIVersion] = func() string { panic("bad module") }
	l := newTestLoader("Crash", ex)

	_, err := l.Load("Crash", "Crash")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContract)
	assert.Contains(t, err.Error(), "bad module")
	assert.False(t, l.Loaded())
}

func TestLoaderDestroyPanicStillCloses(t *testing.T) {
	ex := newFake("script").exports()
	ex[SymDestroy] = func(uintptr) { panic("double free") }
	l := newTestLoader("Leaky", ex)
	_, err := l.Load("Leaky", "Leaky")
	require.NoError(t, err)

	err = l.Unload()
	assert.ErrorIs(t, err, ErrRuntime)
	assert.False(t, l.Loaded())
}

func TestHandleReleaseOnce(t *testing.T) {
	var calls int
	h := &Handle{ptr: 7, destroy: func(p uintptr) {
		assert.Equal(t, uintptr(7), p)
		calls++
	}}
	h.Release()
	h.Release()
	assert.Equal(t, 1, calls)
}

func TestExportsResolve(t *testing.T) {
	ex := Exports{"answer": func() int { return 42 }}

	var fn func() int
	require.NoError(t, ex.Resolve("answer", &fn))
	assert.Equal(t, 42, fn())

	var wrong func() string
	assert.Error(t, ex.Resolve("answer", &wrong))
	assert.Error(t, ex.Resolve("missing", &fn))
	assert.Error(t, ex.Resolve("answer", fn))
	assert.Equal(t, "builtin", ex.Path())
	assert.NoError(t, ex.Close())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindSearch, KindUI, KindTranslation, KindTheme, KindIntegration, KindExport, KindScript} {
		got, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("wallpaper")
	assert.False(t, ok)
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestSearchQualityClamped(t *testing.T) {
	for q, want := range map[float64]float64{-0.5: 0, 0.4: 0.4, 3: 1} {
		f := newFake("search")
		f.quality = q
		l := newTestLoader("Finder", f.exports())
		inst, err := l.Load("Finder", "Finder")
		require.NoError(t, err)
		sp, ok := inst.Search()
		require.True(t, ok)
		assert.Equal(t, want, sp.Quality())
		require.NoError(t, l.Unload())
	}
}
