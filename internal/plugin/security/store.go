package security

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConfigFileName is the file the registry persists to.
const ConfigFileName = "security.conf"

const (
	keyTrusted = "trusted"
	keyBlocked = "blocked"
)

// Load reads persisted grants, trust and block flags from path. A missing
// file is not an error. Unrecognised lines are logged and skipped.
func (r *Registry) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open security config: %w", err)
	}
	defer f.Close()
	return r.read(f, path)
}

func (r *Registry) read(rd io.Reader, source string) error {
	scanner := bufio.NewScanner(rd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			r.log.WithFields(logrus.Fields{"file": source, "line": lineNo}).Warn("malformed security entry")
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if plugin, ok := strings.CutSuffix(key, "."+keyTrusted); ok && plugin != "" {
			r.Context(plugin).SetTrusted(value == "true")
			r.markDecided(plugin)
			continue
		}
		if plugin, ok := strings.CutSuffix(key, "."+keyBlocked); ok && plugin != "" {
			r.SetBlocked(plugin, value == "true")
			continue
		}

		plugin, perm, ok := splitPermissionKey(key)
		if !ok {
			r.log.WithFields(logrus.Fields{"file": source, "line": lineNo, "key": key}).Warn("unknown permission in security config")
			continue
		}
		sc := r.Context(plugin)
		if value == "granted" {
			_ = sc.Grant(perm)
		} else {
			sc.Revoke(perm)
		}
		r.markDecided(plugin)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read security config: %w", err)
	}
	return nil
}

// splitPermissionKey splits "<plugin>.<permission>". Plugin names may
// contain dots, so the permission is matched as a catalog suffix.
func splitPermissionKey(key string) (plugin, perm string, ok bool) {
	for name := range catalog {
		if p, found := strings.CutSuffix(key, "."+name); found && p != "" {
			return p, name, true
		}
	}
	return "", "", false
}

// Save writes every decided plugin's state to path, replacing the file
// atomically.
func (r *Registry) Save(path string) error {
	r.mu.RLock()
	plugins := make([]string, 0, len(r.decided)+len(r.blocked))
	seen := make(map[string]bool)
	for name := range r.decided {
		plugins = append(plugins, name)
		seen[name] = true
	}
	for name := range r.blocked {
		if !seen[name] {
			plugins = append(plugins, name)
		}
	}
	blocked := make(map[string]bool, len(r.blocked))
	for name := range r.blocked {
		blocked[name] = true
	}
	contexts := make(map[string]*Context, len(plugins))
	for _, name := range plugins {
		contexts[name] = r.contexts[name]
	}
	r.mu.RUnlock()
	sort.Strings(plugins)

	var b strings.Builder
	b.WriteString("# VerseDeck plugin security settings\n")
	for _, name := range plugins {
		sc := contexts[name]
		if sc != nil {
			perms := sc.Permissions()
			for _, perm := range perms {
				fmt.Fprintf(&b, "%s.%s=granted\n", name, perm)
			}
			if trusted := sc.IsTrusted(); trusted || len(perms) == 0 {
				fmt.Fprintf(&b, "%s.%s=%t\n", name, keyTrusted, trusted)
			}
		}
		if blocked[name] {
			fmt.Fprintf(&b, "%s.%s=true\n", name, keyBlocked)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".security-*.conf")
	if err != nil {
		return fmt.Errorf("save security config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("save security config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save security config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save security config: %w", err)
	}
	return nil
}
