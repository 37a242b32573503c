package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
)

// Kind is the closed set of plugin kinds.
type Kind int

// Plugin kinds.
const (
	KindUnknown Kind = iota
	KindSearch
	KindUI
	KindTranslation
	KindTheme
	KindIntegration
	KindExport
	KindScript
)

var kindNames = map[Kind]string{
	KindSearch:      "search",
	KindUI:          "ui",
	KindTranslation: "translation",
	KindTheme:       "theme",
	KindIntegration: "integration",
	KindExport:      "export",
	KindScript:      "script",
}

// String returns the plugin_type spelling.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind parses a plugin_type string.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// SearchResult is one hit from a search plugin.
type SearchResult struct {
	Plugin      string  `json:"plugin,omitempty"`
	Reference   string  `json:"reference"`
	Text        string  `json:"text"`
	Translation string  `json:"translation,omitempty"`
	Score       float64 `json:"score"`
	Quality     float64 `json:"quality,omitempty"`
}

// SearchPlugin finds verses.
type SearchPlugin interface {
	Search(query, translation string) []SearchResult
	// Quality is the plugin's self-reported result quality in [0, 1].
	Quality() float64
}

// UIPlugin contributes panels.
type UIPlugin interface {
	RenderPanel(panel string) string
	HandleAction(action, payload string) bool
}

// TranslationPlugin imports bible translations.
type TranslationPlugin interface {
	TranslationCodes() []string
	ParseTranslation(data string) string
}

// ThemePlugin provides a stylesheet.
type ThemePlugin interface {
	ThemeName() string
	Stylesheet() string
}

// IntegrationPlugin connects to an external system such as a church
// management service.
type IntegrationPlugin interface {
	Connect(endpoint string) bool
	Sync() bool
	Disconnect()
}

// ExportPlugin writes verses and service plans to files.
type ExportPlugin interface {
	ExportVerse(v hostapi.Verse, path string) bool
	ExportVerses(vs []hostapi.Verse, path string) bool
	ExportServicePlan(planJSON, path string) bool
	FileExtension() string
}

// ScriptPlugin executes scripts in some language.
type ScriptPlugin interface {
	Execute(source string) string
	Language() string
}

// binder resolves exports and collects the first failure.
type binder struct {
	mod Module
	err error
}

func (b *binder) bind(symbol string, fptr any) {
	if b.err != nil {
		return
	}
	if err := b.mod.Resolve(symbol, fptr); err != nil {
		b.err = fmt.Errorf("missing export %s: %w", symbol, err)
	}
}

// bindKind resolves the operation table for k. The table is chosen once
// at load time and never re-probed.
func bindKind(mod Module, k Kind) (kindOps, error) {
	b := &binder{mod: mod}
	switch k {
	case KindSearch:
		ops := &searchOps{}
		b.bind(SymSearch, &ops.search)
		b.bind(SymSearchQuality, &ops.quality)
		return ops, b.err
	case KindUI:
		ops := &uiOps{}
		b.bind(SymUIRender, &ops.render)
		b.bind(SymUIAction, &ops.action)
		return ops, b.err
	case KindTranslation:
		ops := &translationOps{}
		b.bind(SymTranslationCodes, &ops.codes)
		b.bind(SymTranslationParse, &ops.parse)
		return ops, b.err
	case KindTheme:
		ops := &themeOps{}
		b.bind(SymThemeName, &ops.name)
		b.bind(SymThemeStylesheet, &ops.stylesheet)
		return ops, b.err
	case KindIntegration:
		ops := &integrationOps{}
		b.bind(SymIntegrationConnect, &ops.connect)
		b.bind(SymIntegrationSync, &ops.sync)
		b.bind(SymIntegrationDisconnect, &ops.disconnect)
		return ops, b.err
	case KindExport:
		ops := &exportOps{}
		b.bind(SymExportVerse, &ops.verse)
		b.bind(SymExportVerses, &ops.verses)
		b.bind(SymExportPlan, &ops.plan)
		b.bind(SymExportExtension, &ops.extension)
		return ops, b.err
	case KindScript:
		ops := &scriptOps{}
		b.bind(SymScriptExecute, &ops.execute)
		b.bind(SymScriptLanguage, &ops.language)
		return ops, b.err
	default:
		return nil, fmt.Errorf("unknown plugin kind %d", k)
	}
}

// kindOps is implemented by every operation table. The handle is set
// after plugin_create succeeds.
type kindOps interface {
	setHandle(h uintptr)
}

type opsBase struct {
	h uintptr
}

func (o *opsBase) setHandle(h uintptr) { o.h = h }

type searchOps struct {
	opsBase
	search  func(uintptr, string, string) string
	quality func(uintptr) float64
}

// Search decodes the JSON array returned by plugin_search.
func (o *searchOps) Search(query, translation string) []SearchResult {
	raw := o.search(o.h, query, translation)
	var results []SearchResult
	for _, r := range gjson.Parse(raw).Array() {
		results = append(results, SearchResult{
			Reference:   r.Get("reference").String(),
			Text:        r.Get("text").String(),
			Translation: r.Get("translation").String(),
			Score:       r.Get("score").Float(),
		})
	}
	return results
}

func (o *searchOps) Quality() float64 {
	q := o.quality(o.h)
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	default:
		return q
	}
}

type uiOps struct {
	opsBase
	render func(uintptr, string) string
	action func(uintptr, string, string) bool
}

func (o *uiOps) RenderPanel(panel string) string { return o.render(o.h, panel) }

func (o *uiOps) HandleAction(action, payload string) bool {
	return o.action(o.h, action, payload)
}

type translationOps struct {
	opsBase
	codes func(uintptr) string
	parse func(uintptr, string) string
}

// TranslationCodes decodes the JSON array returned by the plugin.
func (o *translationOps) TranslationCodes() []string {
	var codes []string
	for _, c := range gjson.Parse(o.codes(o.h)).Array() {
		codes = append(codes, c.String())
	}
	return codes
}

func (o *translationOps) ParseTranslation(data string) string { return o.parse(o.h, data) }

type themeOps struct {
	opsBase
	name       func(uintptr) string
	stylesheet func(uintptr) string
}

func (o *themeOps) ThemeName() string  { return o.name(o.h) }
func (o *themeOps) Stylesheet() string { return o.stylesheet(o.h) }

type integrationOps struct {
	opsBase
	connect    func(uintptr, string) bool
	sync       func(uintptr) bool
	disconnect func(uintptr)
}

func (o *integrationOps) Connect(endpoint string) bool { return o.connect(o.h, endpoint) }
func (o *integrationOps) Sync() bool                   { return o.sync(o.h) }
func (o *integrationOps) Disconnect()                  { o.disconnect(o.h) }

type exportOps struct {
	opsBase
	verse     func(uintptr, string, string) bool
	verses    func(uintptr, string, string) bool
	plan      func(uintptr, string, string) bool
	extension func(uintptr) string
}

func (o *exportOps) ExportVerse(v hostapi.Verse, path string) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return o.verse(o.h, string(data), path)
}

func (o *exportOps) ExportVerses(vs []hostapi.Verse, path string) bool {
	data, err := json.Marshal(vs)
	if err != nil {
		return false
	}
	return o.verses(o.h, string(data), path)
}

func (o *exportOps) ExportServicePlan(planJSON, path string) bool {
	return o.plan(o.h, planJSON, path)
}

func (o *exportOps) FileExtension() string { return o.extension(o.h) }

type scriptOps struct {
	opsBase
	execute  func(uintptr, string) string
	language func(uintptr) string
}

func (o *scriptOps) Execute(source string) string { return o.execute(o.h, source) }
func (o *scriptOps) Language() string             { return o.language(o.h) }
