package security

import (
	"path/filepath"
	"sort"
	"strings"
)

// Level is the access level a permission confers.
type Level int

// Permission levels.
const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
	LevelFull
)

// String returns a string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// Permission names.
const (
	PermVerseRead           = "verse.read"
	PermVerseWrite          = "verse.write"
	PermFileRead            = "file.read"
	PermFileWrite           = "file.write"
	PermNetworkAccess       = "network.access"
	PermUIModify            = "ui.modify"
	PermSettingsRead        = "settings.read"
	PermSettingsWrite       = "settings.write"
	PermSystemInfo          = "system.info"
	PermProcessExecute      = "process.execute"
	PermLibraryLoad         = "library.load"
	PermSystemConfig        = "system.config"
	PermPresentationControl = "presentation.control"
	PermPluginManage        = "plugin.manage"
)

// Permission describes one entry in the permission catalog.
type Permission struct {
	Name        string
	Description string
	Level       Level
	Dangerous   bool
}

// catalog is fixed for the life of the process.
var catalog = map[string]Permission{
	PermVerseRead: {
		Name:        PermVerseRead,
		Description: "Read verse data and search results",
		Level:       LevelRead,
	},
	PermVerseWrite: {
		Name:        PermVerseWrite,
		Description: "Modify favorites, collections and verse annotations",
		Level:       LevelWrite,
	},
	PermFileRead: {
		Name:        PermFileRead,
		Description: "Read files inside allow-listed directories",
		Level:       LevelRead,
	},
	PermFileWrite: {
		Name:        PermFileWrite,
		Description: "Write files inside allow-listed directories",
		Level:       LevelWrite,
		Dangerous:   true,
	},
	PermNetworkAccess: {
		Name:        PermNetworkAccess,
		Description: "Make network requests",
		Level:       LevelFull,
		Dangerous:   true,
	},
	PermUIModify: {
		Name:        PermUIModify,
		Description: "Add panels and modify the user interface",
		Level:       LevelWrite,
	},
	PermSettingsRead: {
		Name:        PermSettingsRead,
		Description: "Read application settings",
		Level:       LevelRead,
	},
	PermSettingsWrite: {
		Name:        PermSettingsWrite,
		Description: "Change application settings",
		Level:       LevelWrite,
		Dangerous:   true,
	},
	PermSystemInfo: {
		Name:        PermSystemInfo,
		Description: "Query operating system and hardware information",
		Level:       LevelRead,
	},
	PermProcessExecute: {
		Name:        PermProcessExecute,
		Description: "Start external processes",
		Level:       LevelFull,
		Dangerous:   true,
	},
	PermLibraryLoad: {
		Name:        PermLibraryLoad,
		Description: "Load additional native libraries",
		Level:       LevelFull,
		Dangerous:   true,
	},
	PermSystemConfig: {
		Name:        PermSystemConfig,
		Description: "Access the registry and system configuration",
		Level:       LevelFull,
		Dangerous:   true,
	},
	PermPresentationControl: {
		Name:        PermPresentationControl,
		Description: "Drive the live presentation output",
		Level:       LevelWrite,
	},
	PermPluginManage: {
		Name:        PermPluginManage,
		Description: "Load, unload and configure other plugins",
		Level:       LevelFull,
		Dangerous:   true,
	},
}

// DefaultGrants is the minimal set given to a plugin on first load.
var DefaultGrants = []string{PermVerseRead, PermUIModify}

// LookupPermission returns the catalog entry for name.
func LookupPermission(name string) (Permission, bool) {
	p, ok := catalog[name]
	return p, ok
}

// IsValidPermission returns true if name is in the catalog.
func IsValidPermission(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Catalog returns every known permission sorted by name.
func Catalog() []Permission {
	perms := make([]Permission, 0, len(catalog))
	for _, p := range catalog {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool {
		return perms[i].Name < perms[j].Name
	})
	return perms
}

// DangerousPermissions returns the names of permissions flagged dangerous.
func DangerousPermissions() []string {
	var names []string
	for name, p := range catalog {
		if p.Dangerous {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// normalizePath returns an absolute, clean path.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// isWithinPath checks if target is within or equal to base using filepath.Rel.
// "/tmp/allowed" does not match "/tmp/allowedfile".
func isWithinPath(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
