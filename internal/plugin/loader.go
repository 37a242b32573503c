package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader owns one opened module and the instance created from it.
type Loader struct {
	mu       sync.Mutex
	platform Platform
	log      *logrus.Entry

	module     Module
	inst       *Instance
	kind       Kind
	apiVersion string
}

// NewLoader creates a loader that opens modules through platform.
func NewLoader(platform Platform, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}
	return &Loader{platform: platform, log: logrus.NewEntry(log)}
}

// required are the four exports every module must provide.
type required struct {
	create     func() uintptr
	destroy    func(uintptr)
	apiVersion func() string
	pluginType func() string
}

// Load opens the module at path, validates its export contract and
// creates the instance. On any failure the module is closed before
// returning. Failures are *Error of kind KindLoad or KindContract.
func (l *Loader) Load(name, path string) (inst *Instance, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.module != nil {
		return nil, errorf(KindLoad, name, "open", "loader already holds %s", l.module.Path())
	}

	log := l.log.WithFields(logrus.Fields{"plugin": name, "path": path})

	mod, err := l.platform.Open(name, path)
	if err != nil {
		return nil, newError(KindLoad, name, "open", err)
	}
	defer func() {
		if err != nil {
			if cerr := mod.Close(); cerr != nil {
				log.WithError(cerr).Warn("close after failed load")
			}
		}
	}()
	// Script modules signal failures by panicking from bound functions.
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = errorf(KindContract, name, "validate", "module %w: %v", errPanicked, r)
		}
	}()

	var req required
	for _, sym := range []struct {
		name string
		fptr any
	}{
		{SymCreate, &req.create},
		{SymDestroy, &req.destroy},
		{SymAPIVersion, &req.apiVersion},
		{SymType, &req.pluginType},
	} {
		if rerr := mod.Resolve(sym.name, sym.fptr); rerr != nil {
			return nil, newError(KindContract, name, "missing export "+sym.name, rerr)
		}
	}

	version := req.apiVersion()
	if version != APIVersion {
		return nil, errorf(KindContract, name, "api version", "module reports %q, host requires %q", version, APIVersion)
	}

	typeName := req.pluginType()
	kind, ok := ParseKind(typeName)
	if !ok {
		return nil, errorf(KindContract, name, "plugin type", "unknown plugin type %q", typeName)
	}

	ops, err := bindKind(mod, kind)
	if err != nil {
		return nil, newError(KindContract, name, kind.String()+" exports", err)
	}

	var lc lifecycle
	lc.bind(mod)

	h := req.create()
	if h == 0 {
		return nil, newError(KindContract, name, SymCreate, errors.New("factory returned a null instance"))
	}
	ops.setHandle(h)

	l.module = mod
	l.kind = kind
	l.apiVersion = version
	l.inst = &Instance{
		name:   name,
		kind:   kind,
		handle: &Handle{ptr: h, destroy: req.destroy},
		lc:     lc,
		ops:    ops,
	}
	log.WithField("kind", kind).Debug("module loaded")
	return l.inst, nil
}

// Unload destroys the instance through the module's own deleter and then
// closes the module. Calling Unload on an empty loader is a no-op. A
// panicking deleter is reported but the module is still closed.
func (l *Loader) Unload() (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.module == nil {
		return nil
	}

	if l.inst != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = errorf(KindRuntime, l.inst.name, SymDestroy, "%w: %v", errPanicked, r)
				}
			}()
			l.inst.handle.Release()
		}()
	}

	if cerr := l.module.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close module: %w", cerr))
	}
	l.module = nil
	l.inst = nil
	l.kind = KindUnknown
	l.apiVersion = ""
	return err
}

// Instance returns the live instance, or nil.
func (l *Loader) Instance() *Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inst
}

// Kind returns the loaded module's kind.
func (l *Loader) Kind() Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kind
}

// APIVersion returns the loaded module's reported API version.
func (l *Loader) APIVersion() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apiVersion
}

// Loaded reports whether a module is held.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.module != nil
}
