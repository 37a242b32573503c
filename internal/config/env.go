package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VERSEDECK_"

// envMapping maps well-known variables to setting paths.
var envMapping = map[string]string{
	"VERSEDECK_PLUGINS_DIR":       "paths.plugins_dir",
	"VERSEDECK_CONFIG_DIR":        "paths.config_dir",
	"VERSEDECK_DATA_DIR":          "paths.data_dir",
	"VERSEDECK_PLATFORM":          "plugins.platform",
	"VERSEDECK_AUTO_START":        "plugins.auto_start",
	"VERSEDECK_WATCH":             "plugins.watch",
	"VERSEDECK_CALL_TIMEOUT":      "plugins.call_timeout",
	"VERSEDECK_UPDATE_INTERVAL":   "plugins.update_interval",
	"VERSEDECK_RESCAN_SCHEDULE":   "plugins.rescan_schedule",
	"VERSEDECK_MAX_VIOLATIONS":    "plugins.max_violations",
	"VERSEDECK_SANDBOX":           "security.sandbox_enabled",
	"VERSEDECK_REQUIRE_SIGNATURE": "security.require_signature",
	"VERSEDECK_TRUST_POLICY":      "security.trust_policy",
	"VERSEDECK_ADMIN_LISTEN":      "admin.listen",
	"VERSEDECK_ADMIN_ENABLED":     "admin.enabled",
	"VERSEDECK_LOG_LEVEL":         "logging.level",
	"VERSEDECK_LOG_FORMAT":        "logging.format",
}

// stringPaths never go through value typing.
var stringPaths = map[string]bool{
	"paths.plugins_dir":       true,
	"paths.config_dir":        true,
	"paths.data_dir":          true,
	"plugins.rescan_schedule": true,
	"admin.listen":            true,
}

// LoadDotEnv seeds the process environment from .env files. Missing files
// are skipped and variables already set are kept.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &ParseError{Path: f, Message: err.Error(), Err: err}
		}
	}
	return nil
}

// envLayer reads VERSEDECK_* variables from environ into a nested map.
func envLayer(environ []string) map[string]any {
	layer := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		path, mapped := envMapping[name]
		if !mapped {
			path = envToPath(name)
			if path == "" {
				continue
			}
		}
		if stringPaths[path] {
			setByPath(layer, path, value)
			continue
		}
		setByPath(layer, path, parseValue(value))
	}
	return layer
}

// envToPath converts VERSEDECK_SECURITY_MAX_FILE_SIZE_MB to
// security.max_file_size_mb. A single word yields "".
func envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, EnvPrefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Only values with a decimal point, so ints stay ints.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if strings.HasPrefix(s, "[") {
		var v []any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// deepMerge merges src into dst. Maps merge recursively, other values
// from src replace those in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = srcVal
	}
	return dst
}

func osEnviron() []string { return os.Environ() }
