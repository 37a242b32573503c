package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/dshills/versedeck/internal/plugin/security"
)

// fakePlugin is an in-process module with call counters. Configure its
// fields before loading it.
type fakePlugin struct {
	kind       string
	title      string
	version    string
	deps       []string
	apiVersion string

	initResult      bool
	configureResult bool
	lastError       string
	onUpdate        func()
	onSearch        func(call int)
	results         []SearchResult
	quality         float64

	mu        sync.Mutex
	steps     []string
	created   int
	destroyed int
	updates   int
	searches  int
	settings  string
}

func newFake(kind string) *fakePlugin {
	return &fakePlugin{
		kind:            kind,
		version:         "1.0.0",
		apiVersion:      APIVersion,
		initResult:      true,
		configureResult: true,
	}
}

func (f *fakePlugin) record(step string) {
	f.mu.Lock()
	f.steps = append(f.steps, step)
	f.mu.Unlock()
}

func (f *fakePlugin) Steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.steps...)
}

func (f *fakePlugin) Counts() (created, destroyed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.destroyed
}

func (f *fakePlugin) Updates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *fakePlugin) Searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func (f *fakePlugin) exports() Exports {
	ex := Exports{
		SymCreate: func() uintptr {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.created++
			f.steps = append(f.steps, "create")
			return uintptr(f.created)
		},
		SymDestroy: func(uintptr) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.destroyed++
			f.steps = append(f.steps, "destroy")
		},
		SymAPIVersion: func() string { return f.apiVersion },
		SymType:       func() string { return f.kind },
		SymInitialize: func(uintptr) bool {
			f.record("initialize")
			return f.initResult
		},
		SymShutdown: func(uintptr) { f.record("shutdown") },
		SymInfo: func(uintptr) string {
			info := map[string]any{
				"description":  "test double",
				"version":      f.version,
				"dependencies": f.deps,
			}
			if f.title != "" {
				info["name"] = f.title
			}
			data, _ := json.Marshal(info)
			return string(data)
		},
		SymConfigure: func(_ uintptr, settings string) bool {
			f.mu.Lock()
			f.settings = settings
			f.steps = append(f.steps, "configure")
			f.mu.Unlock()
			return f.configureResult
		},
		SymActivate:   func(uintptr) { f.record("activate") },
		SymDeactivate: func(uintptr) { f.record("deactivate") },
		SymUpdate: func(uintptr, float64) {
			f.mu.Lock()
			f.updates++
			fn := f.onUpdate
			f.mu.Unlock()
			if fn != nil {
				fn()
			}
		},
		SymLastError: func(uintptr) string { return f.lastError },
	}

	switch f.kind {
	case "search":
		ex[SymSearch] = func(_ uintptr, query, translation string) string {
			f.mu.Lock()
			f.searches++
			call, fn := f.searches, f.onSearch
			f.mu.Unlock()
			if fn != nil {
				fn(call)
			}
			data, _ := json.Marshal(f.results)
			return string(data)
		}
		ex[SymSearchQuality] = func(uintptr) float64 { return f.quality }
	case "script":
		ex[SymScriptExecute] = func(_ uintptr, source string) string { return "ran " + source }
		ex[SymScriptLanguage] = func(uintptr) string { return "fake" }
	case "theme":
		ex[SymThemeName] = func(uintptr) string { return "Night" }
		ex[SymThemeStylesheet] = func(uintptr) string { return "body { color: white; }" }
	}
	return ex
}

// filePlatform serves static exports but behaves like a file-backed
// platform: modules must exist as <name>.plug in the plugins directory.
type filePlatform struct {
	*StaticPlatform
	opens atomic.Int32
}

func newFilePlatform() *filePlatform {
	return &filePlatform{StaticPlatform: NewStaticPlatform()}
}

func (p *filePlatform) LibraryName(name string) string { return name + ".plug" }

func (p *filePlatform) PluginName(file string) (string, bool) {
	return trimAffixes(file, "", ".plug")
}

func (p *filePlatform) Scan(dir string) ([]string, error) { return scanDir(dir, p.PluginName) }
func (p *filePlatform) FileBacked() bool                  { return true }

func (p *filePlatform) Open(name, path string) (Module, error) {
	p.opens.Add(1)
	return p.StaticPlatform.Open(name, path)
}

func writePluginFile(t *testing.T, dir, file string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte("module"), 0o644))
	return path
}

func nullLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

// newTestManager creates a manager over temp directories. Plugins left
// loaded are unloaded at cleanup.
func newTestManager(t *testing.T, cfg ManagerConfig, opts ...ManagerOption) *Manager {
	t.Helper()
	if cfg.PluginsDir == "" {
		cfg.PluginsDir = t.TempDir()
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = t.TempDir()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	logger := nullLogger()
	base := []ManagerOption{
		WithLogger(logger),
		WithSecurity(security.NewRegistry(security.Config{}, security.WithLogger(logger))),
	}
	m := NewManager(cfg, append(base, opts...)...)
	t.Cleanup(func() { _ = m.UnloadAll(context.Background()) })
	return m
}

// staticManager registers each fake under its name on a static platform.
func staticManager(t *testing.T, cfg ManagerConfig, fakes map[string]*fakePlugin, opts ...ManagerOption) *Manager {
	t.Helper()
	p := NewStaticPlatform()
	for name, f := range fakes {
		p.Register(name, f.exports())
	}
	return newTestManager(t, cfg, append([]ManagerOption{WithPlatform(p)}, opts...)...)
}

// eventLog collects manager events.
type eventLog struct {
	mu     sync.Mutex
	events []ManagerEvent
}

func (l *eventLog) handle(ev ManagerEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) ofType(t ManagerEventType) []ManagerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ManagerEvent
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
