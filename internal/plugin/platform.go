package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/versedeck/internal/plugin/dynlib"
	"github.com/dshills/versedeck/internal/plugin/hostapi"
	"github.com/dshills/versedeck/internal/plugin/lua"
	"github.com/dshills/versedeck/internal/plugin/security"
)

// Platform maps plugin names to files and opens modules. One platform is
// chosen when the manager is configured.
type Platform interface {
	// LibraryName returns the file name for plugin name.
	LibraryName(name string) string
	// PluginName returns the plugin name for a file name, if the file
	// follows the naming convention.
	PluginName(file string) (string, bool)
	// Scan lists plugin names available in dir.
	Scan(dir string) ([]string, error)
	Open(name, path string) (Module, error)
	// FileBacked reports whether modules are files on disk.
	FileBacked() bool
}

// nativePlatform loads shared libraries.
type nativePlatform struct {
	prefix string
	ext    string
}

// NativePlatform returns the shared library platform for this OS:
// lib<name>.so, lib<name>.dylib or <name>.dll.
func NativePlatform() Platform {
	return nativeFor(runtime.GOOS)
}

func nativeFor(goos string) nativePlatform {
	switch goos {
	case "windows":
		return nativePlatform{ext: ".dll"}
	case "darwin", "ios":
		return nativePlatform{prefix: "lib", ext: ".dylib"}
	default:
		return nativePlatform{prefix: "lib", ext: ".so"}
	}
}

func (p nativePlatform) LibraryName(name string) string {
	return p.prefix + name + p.ext
}

func (p nativePlatform) PluginName(file string) (string, bool) {
	return trimAffixes(file, p.prefix, p.ext)
}

func (p nativePlatform) Scan(dir string) ([]string, error) {
	return scanDir(dir, p.PluginName)
}

func (p nativePlatform) Open(_, path string) (Module, error) {
	lib, err := dynlib.Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

func (nativePlatform) FileBacked() bool { return true }

// ScriptExtension is the file extension of script plugins.
const ScriptExtension = ".lua"

// ScriptPlatform loads Lua script modules. Each script's host calls are
// gated by its sandbox in Security.
type ScriptPlatform struct {
	Facade   *hostapi.Facade
	Security *security.Registry
	Logger   *logrus.Logger
	Timeout  time.Duration
}

func (p *ScriptPlatform) LibraryName(name string) string {
	return name + ScriptExtension
}

func (p *ScriptPlatform) PluginName(file string) (string, bool) {
	return trimAffixes(file, "", ScriptExtension)
}

func (p *ScriptPlatform) Scan(dir string) ([]string, error) {
	return scanDir(dir, p.PluginName)
}

func (p *ScriptPlatform) Open(name, path string) (Module, error) {
	opts := lua.Options{
		Facade:  p.Facade,
		Logger:  p.Logger,
		Timeout: p.Timeout,
	}
	if p.Security != nil {
		opts.Policy = p.Security.Sandbox(name)
	}
	mod, err := lua.Open(name, path, opts)
	if err != nil {
		return nil, err
	}
	return mod, nil
}

func (p *ScriptPlatform) FileBacked() bool { return true }

// StaticPlatform serves plugins compiled into the host process.
type StaticPlatform struct {
	mu      sync.RWMutex
	modules map[string]Exports
}

// NewStaticPlatform creates an empty static platform.
func NewStaticPlatform() *StaticPlatform {
	return &StaticPlatform{modules: make(map[string]Exports)}
}

// Register makes exports loadable as plugin name.
func (p *StaticPlatform) Register(name string, exports Exports) {
	p.mu.Lock()
	p.modules[name] = exports
	p.mu.Unlock()
}

// Unregister removes plugin name.
func (p *StaticPlatform) Unregister(name string) {
	p.mu.Lock()
	delete(p.modules, name)
	p.mu.Unlock()
}

func (p *StaticPlatform) LibraryName(name string) string { return name }

func (p *StaticPlatform) PluginName(file string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.modules[file]
	return file, ok
}

func (p *StaticPlatform) Scan(string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.modules))
	for name := range p.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *StaticPlatform) Open(name, _ string) (Module, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ex, ok := p.modules[name]
	if !ok {
		return nil, fmt.Errorf("no built-in library named %s", name)
	}
	return ex, nil
}

func (p *StaticPlatform) FileBacked() bool { return false }

func trimAffixes(file, prefix, ext string) (string, bool) {
	if !strings.HasPrefix(file, prefix) || !strings.HasSuffix(file, ext) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(file, prefix), ext)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

// scanDir maps regular files in dir to plugin names. A missing directory
// holds no plugins.
func scanDir(dir string, nameOf func(string) (string, bool)) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name, ok := nameOf(e.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
