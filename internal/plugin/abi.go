package plugin

// APIVersion is the only plugin_api_version the loader accepts.
const APIVersion = "1.0"

// Required exports.
const (
	SymCreate     = "plugin_create"
	SymDestroy    = "plugin_destroy"
	SymAPIVersion = "plugin_api_version"
	SymType       = "plugin_type"
)

// Optional lifecycle exports. Absent exports fall back to defaults.
const (
	SymInitialize = "plugin_initialize"
	SymShutdown   = "plugin_shutdown"
	SymInfo       = "plugin_info"
	SymConfigure  = "plugin_configure"
	SymActivate   = "plugin_activate"
	SymDeactivate = "plugin_deactivate"
	SymUpdate     = "plugin_update"
	SymLastError  = "plugin_last_error"
)

// Kind-specific exports. All exports of the declared kind are required.
const (
	SymSearch        = "plugin_search"
	SymSearchQuality = "plugin_search_quality"

	SymUIRender = "plugin_ui_render"
	SymUIAction = "plugin_ui_action"

	SymTranslationCodes = "plugin_translation_codes"
	SymTranslationParse = "plugin_translation_parse"

	SymThemeName       = "plugin_theme_name"
	SymThemeStylesheet = "plugin_theme_stylesheet"

	SymIntegrationConnect    = "plugin_integration_connect"
	SymIntegrationSync       = "plugin_integration_sync"
	SymIntegrationDisconnect = "plugin_integration_disconnect"

	SymExportVerse     = "plugin_export_verse"
	SymExportVerses    = "plugin_export_verses"
	SymExportPlan      = "plugin_export_plan"
	SymExportExtension = "plugin_export_extension"

	SymScriptExecute  = "plugin_script_execute"
	SymScriptLanguage = "plugin_script_language"
)
