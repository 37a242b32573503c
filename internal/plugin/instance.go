package plugin

import (
	"sync"
)

// Handle is a plugin instance pointer paired with the deleter from the
// module that created it. The deleter runs at most once.
type Handle struct {
	ptr     uintptr
	destroy func(uintptr)

	once sync.Once
}

// Value returns the raw instance pointer.
func (h *Handle) Value() uintptr {
	return h.ptr
}

// Release destroys the instance through the owning module's deleter.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.destroy(h.ptr)
	})
}

// Plugin is the lifecycle every plugin kind shares.
type Plugin interface {
	Initialize() bool
	Shutdown()
	Info() Info
	Configure(cfg *Config) bool
	OnActivate()
	OnDeactivate()
	OnUpdate(dt float64)
	LastError() string
}

// lifecycle holds the optional exports. Nil entries use defaults.
type lifecycle struct {
	initialize func(uintptr) bool
	shutdown   func(uintptr)
	info       func(uintptr) string
	configure  func(uintptr, string) bool
	activate   func(uintptr)
	deactivate func(uintptr)
	update     func(uintptr, float64)
	lastError  func(uintptr) string
}

func (lc *lifecycle) bind(mod Module) {
	optional := []struct {
		symbol string
		fptr   any
	}{
		{SymInitialize, &lc.initialize},
		{SymShutdown, &lc.shutdown},
		{SymInfo, &lc.info},
		{SymConfigure, &lc.configure},
		{SymActivate, &lc.activate},
		{SymDeactivate, &lc.deactivate},
		{SymUpdate, &lc.update},
		{SymLastError, &lc.lastError},
	}
	for _, o := range optional {
		// A failed resolve leaves the pointer nil.
		_ = mod.Resolve(o.symbol, o.fptr)
	}
}

// Instance is a live plugin: the base lifecycle plus the one operation
// table of its kind.
type Instance struct {
	name   string
	kind   Kind
	handle *Handle
	lc     lifecycle
	ops    kindOps
}

var _ Plugin = (*Instance)(nil)

// Name returns the registry key the instance was loaded under.
func (i *Instance) Name() string { return i.name }

// Kind returns the declared kind.
func (i *Instance) Kind() Kind { return i.kind }

// Handle returns the instance handle.
func (i *Instance) Handle() *Handle { return i.handle }

func (i *Instance) Initialize() bool {
	if i.lc.initialize == nil {
		return true
	}
	return i.lc.initialize(i.handle.ptr)
}

func (i *Instance) Shutdown() {
	if i.lc.shutdown != nil {
		i.lc.shutdown(i.handle.ptr)
	}
}

// Info decodes plugin_info. Without the export the name is the registry key.
func (i *Instance) Info() Info {
	info, _ := i.decodeInfo()
	return info
}

func (i *Instance) decodeInfo() (Info, []error) {
	if i.lc.info == nil {
		return Info{Name: i.name}, nil
	}
	return parseInfo(i.lc.info(i.handle.ptr), i.name)
}

// Configure passes cfg as a JSON object of string values.
func (i *Instance) Configure(cfg *Config) bool {
	if i.lc.configure == nil {
		return true
	}
	doc := "{}"
	if cfg != nil {
		doc = cfg.JSON()
	}
	return i.lc.configure(i.handle.ptr, doc)
}

func (i *Instance) OnActivate() {
	if i.lc.activate != nil {
		i.lc.activate(i.handle.ptr)
	}
}

func (i *Instance) OnDeactivate() {
	if i.lc.deactivate != nil {
		i.lc.deactivate(i.handle.ptr)
	}
}

func (i *Instance) OnUpdate(dt float64) {
	if i.lc.update != nil {
		i.lc.update(i.handle.ptr, dt)
	}
}

func (i *Instance) LastError() string {
	if i.lc.lastError == nil {
		return ""
	}
	return i.lc.lastError(i.handle.ptr)
}

// Search returns the search operations when the kind is search.
func (i *Instance) Search() (SearchPlugin, bool) {
	ops, ok := i.ops.(*searchOps)
	return ops, ok
}

func (i *Instance) UI() (UIPlugin, bool) {
	ops, ok := i.ops.(*uiOps)
	return ops, ok
}

func (i *Instance) Translation() (TranslationPlugin, bool) {
	ops, ok := i.ops.(*translationOps)
	return ops, ok
}

func (i *Instance) Theme() (ThemePlugin, bool) {
	ops, ok := i.ops.(*themeOps)
	return ops, ok
}

func (i *Instance) Integration() (IntegrationPlugin, bool) {
	ops, ok := i.ops.(*integrationOps)
	return ops, ok
}

func (i *Instance) Export() (ExportPlugin, bool) {
	ops, ok := i.ops.(*exportOps)
	return ops, ok
}

func (i *Instance) Script() (ScriptPlugin, bool) {
	ops, ok := i.ops.(*scriptOps)
	return ops, ok
}
