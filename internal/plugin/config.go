package plugin

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/sjson"
)

// KeyAutoStart overrides the manager's AutoStart for one plugin.
const KeyAutoStart = "auto_start"

// Config is a plugin's key=value settings file. Values are stored as
// strings; typed getters fall back to the default on parse failure.
type Config struct {
	mu      sync.RWMutex
	name    string
	path    string
	dataDir string
	values  map[string]string
	keys    []string
}

// NewConfig returns an empty config for plugin name stored at
// <configDir>/<name>.conf with data under <dataDir>/<name>.
func NewConfig(name, configDir, dataDir string) *Config {
	return &Config{
		name:    name,
		path:    filepath.Join(configDir, name+".conf"),
		dataDir: dataDir,
		values:  make(map[string]string),
	}
}

// LoadConfig reads the config for plugin name. A missing file yields an
// empty config.
func LoadConfig(name, configDir, dataDir string) (*Config, error) {
	c := NewConfig(name, configDir, dataDir)
	f, err := os.Open(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("open plugin config: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		c.set(key, strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return c, fmt.Errorf("read plugin config: %w", err)
	}
	return c, nil
}

// Name returns the plugin name.
func (c *Config) Name() string { return c.name }

// Path returns the settings file path.
func (c *Config) Path() string { return c.path }

// DataPath returns the plugin's private data directory.
func (c *Config) DataPath() string { return filepath.Join(c.dataDir, c.name) }

func (c *Config) set(key, value string) {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Set stores value under key. Keys may not contain '=' or newlines and
// values may not contain newlines.
func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "=\n\r") {
		return fmt.Errorf("invalid config key %q", key)
	}
	if strings.ContainsAny(value, "\n\r") {
		return fmt.Errorf("config value for %q contains a newline", key)
	}
	c.mu.Lock()
	c.set(key, value)
	c.mu.Unlock()
	return nil
}

// Has reports whether key is set.
func (c *Config) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[key]
	return ok
}

// String returns the value for key or def.
func (c *Config) String(key, def string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as an integer, or def.
func (c *Config) Int(key string, def int) int {
	n, err := strconv.Atoi(c.String(key, ""))
	if err != nil {
		return def
	}
	return n
}

// Bool returns the value for key parsed as a boolean, or def. Accepts the
// strconv spellings plus yes/no and on/off.
func (c *Config) Bool(key string, def bool) bool {
	switch strings.ToLower(c.String(key, "")) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(c.String(key, ""))
	if err != nil {
		return def
	}
	return b
}

// Values returns a copy of all settings.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// JSON encodes the settings as a flat JSON object of strings.
func (c *Config) JSON() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc := "{}"
	for _, k := range c.keys {
		if next, err := sjson.Set(doc, escapeJSONPath(k), c.values[k]); err == nil {
			doc = next
		}
	}
	return doc
}

// escapeJSONPath quotes sjson path metacharacters so keys with dots stay flat.
func escapeJSONPath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save writes the settings in insertion order, creating the config
// directory if needed.
func (c *Config) Save() error {
	c.mu.RLock()
	var b strings.Builder
	for _, k := range c.keys {
		fmt.Fprintf(&b, "%s=%s\n", k, c.values[k])
	}
	c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(c.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("save plugin config: %w", err)
	}
	return nil
}
