package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
)

// activeInstance returns the entry and instance of name when it is
// active and of kind k.
func (m *Manager) activeInstance(name string, k Kind) (*entry, *Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, nil, fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	if e.state != StateActive || e.busy || e.inst == nil {
		return nil, nil, fmt.Errorf("plugin %q is %s: %w", name, e.state, ErrNotActive)
	}
	if e.inst.Kind() != k {
		return nil, nil, fmt.Errorf("plugin %q is a %s plugin, not %s: %w", name, e.inst.Kind(), k, ErrWrongKind)
	}
	return e, e.inst, nil
}

// managed routes kind operations through the manager so they are
// serialised, timed and panic-safe like lifecycle calls. Failed calls
// return zero values and are reported as plugin errors.
type managed struct {
	m    *Manager
	e    *entry
	inst *Instance
}

// call runs fn in the plugin's call slot. The liveness check runs inside
// the slot since unloading needs the slot to destroy the instance.
func (g managed) call(op string, fn func()) bool {
	err := g.m.invoke(context.Background(), g.e, op, func() error {
		if !g.m.live(g.e, g.inst) {
			return fmt.Errorf("plugin %q: %w", g.e.name, ErrNotActive)
		}
		fn()
		return nil
	})
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCallTimeout) && !errors.Is(err, ErrNotActive) {
		g.m.mu.Lock()
		g.e.lastErr = err.Error()
		g.m.mu.Unlock()
		g.m.log.WithField("plugin", g.e.name).WithError(err).Error("plugin call failed")
		g.m.emitEvent(ManagerEvent{Type: EventPluginError, Plugin: g.e.name, Err: err})
	}
	return false
}

// Search returns the search operations of an active search plugin.
func (m *Manager) Search(name string) (SearchPlugin, error) {
	e, inst, err := m.activeInstance(name, KindSearch)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.Search()
	return managedSearch{managed{m, e, inst}, ops}, nil
}

// UI returns the operations of an active UI plugin.
func (m *Manager) UI(name string) (UIPlugin, error) {
	e, inst, err := m.activeInstance(name, KindUI)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.UI()
	return managedUI{managed{m, e, inst}, ops}, nil
}

// Translation returns the operations of an active translation plugin.
func (m *Manager) Translation(name string) (TranslationPlugin, error) {
	e, inst, err := m.activeInstance(name, KindTranslation)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.Translation()
	return managedTranslation{managed{m, e, inst}, ops}, nil
}

// Theme returns the operations of an active theme plugin.
func (m *Manager) Theme(name string) (ThemePlugin, error) {
	e, inst, err := m.activeInstance(name, KindTheme)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.Theme()
	return managedTheme{managed{m, e, inst}, ops}, nil
}

// Integration returns the operations of an active integration plugin.
func (m *Manager) Integration(name string) (IntegrationPlugin, error) {
	e, inst, err := m.activeInstance(name, KindIntegration)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.Integration()
	return managedIntegration{managed{m, e, inst}, ops}, nil
}

// Export returns the operations of an active export plugin.
func (m *Manager) Export(name string) (ExportPlugin, error) {
	e, inst, err := m.activeInstance(name, KindExport)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.Export()
	return managedExport{managed{m, e, inst}, ops}, nil
}

// Script returns the operations of an active script plugin.
func (m *Manager) Script(name string) (ScriptPlugin, error) {
	e, inst, err := m.activeInstance(name, KindScript)
	if err != nil {
		return nil, err
	}
	ops, _ := inst.Script()
	return managedScript{managed{m, e, inst}, ops}, nil
}

type managedSearch struct {
	managed
	ops SearchPlugin
}

// Search stamps each result with the plugin name and quality.
func (s managedSearch) Search(query, translation string) []SearchResult {
	out, _ := s.search(query, translation)
	return out
}

// search is Search that also reports whether the plugin call succeeded.
func (s managedSearch) search(query, translation string) ([]SearchResult, bool) {
	var out []SearchResult
	var quality float64
	if !s.call(SymSearch, func() {
		out = s.ops.Search(query, translation)
		quality = s.ops.Quality()
	}) {
		return nil, false
	}
	for i := range out {
		out[i].Plugin = s.e.name
		out[i].Quality = quality
	}
	return out, true
}

func (s managedSearch) Quality() float64 {
	var q float64
	if !s.call(SymSearchQuality, func() { q = s.ops.Quality() }) {
		return 0
	}
	return q
}

type managedUI struct {
	managed
	ops UIPlugin
}

func (u managedUI) RenderPanel(panel string) string {
	var out string
	if !u.call(SymUIRender, func() { out = u.ops.RenderPanel(panel) }) {
		return ""
	}
	return out
}

func (u managedUI) HandleAction(action, payload string) bool {
	var ok bool
	if !u.call(SymUIAction, func() { ok = u.ops.HandleAction(action, payload) }) {
		return false
	}
	return ok
}

type managedTranslation struct {
	managed
	ops TranslationPlugin
}

func (t managedTranslation) TranslationCodes() []string {
	var out []string
	if !t.call(SymTranslationCodes, func() { out = t.ops.TranslationCodes() }) {
		return nil
	}
	return out
}

func (t managedTranslation) ParseTranslation(data string) string {
	var out string
	if !t.call(SymTranslationParse, func() { out = t.ops.ParseTranslation(data) }) {
		return ""
	}
	return out
}

type managedTheme struct {
	managed
	ops ThemePlugin
}

func (t managedTheme) ThemeName() string {
	var out string
	if !t.call(SymThemeName, func() { out = t.ops.ThemeName() }) {
		return ""
	}
	return out
}

func (t managedTheme) Stylesheet() string {
	var out string
	if !t.call(SymThemeStylesheet, func() { out = t.ops.Stylesheet() }) {
		return ""
	}
	return out
}

type managedIntegration struct {
	managed
	ops IntegrationPlugin
}

func (i managedIntegration) Connect(endpoint string) bool {
	var ok bool
	if !i.call(SymIntegrationConnect, func() { ok = i.ops.Connect(endpoint) }) {
		return false
	}
	return ok
}

func (i managedIntegration) Sync() bool {
	var ok bool
	if !i.call(SymIntegrationSync, func() { ok = i.ops.Sync() }) {
		return false
	}
	return ok
}

func (i managedIntegration) Disconnect() {
	i.call(SymIntegrationDisconnect, i.ops.Disconnect)
}

type managedExport struct {
	managed
	ops ExportPlugin
}

func (x managedExport) ExportVerse(v hostapi.Verse, path string) bool {
	var ok bool
	if !x.call(SymExportVerse, func() { ok = x.ops.ExportVerse(v, path) }) {
		return false
	}
	return ok
}

func (x managedExport) ExportVerses(vs []hostapi.Verse, path string) bool {
	var ok bool
	if !x.call(SymExportVerses, func() { ok = x.ops.ExportVerses(vs, path) }) {
		return false
	}
	return ok
}

func (x managedExport) ExportServicePlan(planJSON, path string) bool {
	var ok bool
	if !x.call(SymExportPlan, func() { ok = x.ops.ExportServicePlan(planJSON, path) }) {
		return false
	}
	return ok
}

func (x managedExport) FileExtension() string {
	var out string
	if !x.call(SymExportExtension, func() { out = x.ops.FileExtension() }) {
		return ""
	}
	return out
}

type managedScript struct {
	managed
	ops ScriptPlugin
}

func (s managedScript) Execute(source string) string {
	var out string
	if !s.call(SymScriptExecute, func() { out = s.ops.Execute(source) }) {
		return ""
	}
	return out
}

func (s managedScript) Language() string {
	var out string
	if !s.call(SymScriptLanguage, func() { out = s.ops.Language() }) {
		return ""
	}
	return out
}
