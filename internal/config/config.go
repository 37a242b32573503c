package config

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dshills/versedeck/internal/plugin"
	"github.com/dshills/versedeck/internal/plugin/security"
)

// DefaultFileName is the configuration file looked up when no path is given.
const DefaultFileName = "versedeck.toml"

// Config is the VerseDeck application configuration.
type Config struct {
	Paths    PathsConfig    `toml:"paths"`
	Plugins  PluginsConfig  `toml:"plugins"`
	Security SecurityConfig `toml:"security"`
	Admin    AdminConfig    `toml:"admin"`
	Logging  LoggingConfig  `toml:"logging"`
}

// PathsConfig locates plugin modules, settings and data.
type PathsConfig struct {
	PluginsDir string `toml:"plugins_dir"`
	ConfigDir  string `toml:"config_dir"`
	DataDir    string `toml:"data_dir"`
}

// PluginsConfig controls the plugin manager.
type PluginsConfig struct {
	// Platform is "native" for shared libraries or "script" for Lua.
	Platform  string `toml:"platform"`
	AutoStart bool   `toml:"auto_start"`

	Watch         bool     `toml:"watch"`
	WatchDebounce Duration `toml:"watch_debounce"`

	CallTimeout   Duration `toml:"call_timeout"`
	ScriptTimeout Duration `toml:"script_timeout"`

	// UpdateInterval is the tick period of serve. Zero disables ticks.
	UpdateInterval Duration `toml:"update_interval"`

	// RescanSchedule is a cron spec for periodic directory rescans.
	// Empty disables them.
	RescanSchedule string `toml:"rescan_schedule"`

	MaxViolations int `toml:"max_violations"`
}

// SecurityConfig controls the permission registry.
type SecurityConfig struct {
	SandboxEnabled   bool     `toml:"sandbox_enabled"`
	RequireSignature bool     `toml:"require_signature"`
	TrustedSigners   []string `toml:"trusted_signers,omitempty"`
	TrustPolicy      string   `toml:"trust_policy"`
	// DefaultGrants replaces the built-in grants when set.
	DefaultGrants []string     `toml:"default_grants,omitempty"`
	MaxFileSizeMB int64        `toml:"max_file_size_mb"`
	Limits        LimitsConfig `toml:"limits"`
}

// LimitsConfig mirrors security.ResourceLimits.
type LimitsConfig struct {
	MaxMemoryMB                 int64    `toml:"max_memory_mb"`
	MaxFileSizeMB               float64  `toml:"max_file_size_mb"`
	MaxNetworkRequestsPerMinute int      `toml:"max_network_requests_per_minute"`
	MaxCPUTimeMs                int64    `toml:"max_cpu_time_ms"`
	MaxDiskIOPerMinuteMB        float64  `toml:"max_disk_io_per_minute_mb"`
	AllowedReadPaths            []string `toml:"allowed_read_paths,omitempty"`
	AllowedWritePaths           []string `toml:"allowed_write_paths,omitempty"`
	AllowNetwork                bool     `toml:"allow_network"`
	AllowSubprocess             bool     `toml:"allow_subprocess"`
	AllowLibraryLoading         bool     `toml:"allow_library_loading"`
}

// AdminConfig controls the HTTP admin API of serve.
type AdminConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	limits := security.DefaultResourceLimits()
	return Config{
		Paths: PathsConfig{
			PluginsDir: "plugins",
			ConfigDir:  "config",
			DataDir:    "data",
		},
		Plugins: PluginsConfig{
			Platform:       plugin.PlatformNative,
			AutoStart:      true,
			WatchDebounce:  Duration(plugin.DefaultWatchDebounce),
			CallTimeout:    Duration(5 * time.Second),
			UpdateInterval: Duration(100 * time.Millisecond),
		},
		Security: SecurityConfig{
			SandboxEnabled: true,
			TrustPolicy:    security.TrustBypassAll.String(),
			MaxFileSizeMB:  security.DefaultMaxPluginFileSize / (1024 * 1024),
			Limits: LimitsConfig{
				MaxMemoryMB:                 limits.MaxMemoryMB,
				MaxFileSizeMB:               limits.MaxFileSizeMB,
				MaxNetworkRequestsPerMinute: limits.MaxNetworkRequestsPerMinute,
				MaxCPUTimeMs:                limits.MaxCPUTimeMs,
				MaxDiskIOPerMinuteMB:        limits.MaxDiskIOPerMinuteMB,
			},
		},
		Admin: AdminConfig{
			Enabled: true,
			Listen:  "127.0.0.1:7070",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	invalid := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if c.Paths.PluginsDir == "" {
		invalid("paths.plugins_dir", "must not be empty")
	}
	if c.Paths.ConfigDir == "" {
		invalid("paths.config_dir", "must not be empty")
	}
	switch c.Plugins.Platform {
	case plugin.PlatformNative, plugin.PlatformScript:
	default:
		invalid("plugins.platform", "unknown platform %q", c.Plugins.Platform)
	}
	for path, d := range map[string]Duration{
		"plugins.watch_debounce":  c.Plugins.WatchDebounce,
		"plugins.call_timeout":    c.Plugins.CallTimeout,
		"plugins.script_timeout":  c.Plugins.ScriptTimeout,
		"plugins.update_interval": c.Plugins.UpdateInterval,
	} {
		if d < 0 {
			invalid(path, "must not be negative")
		}
	}
	if c.Plugins.RescanSchedule != "" {
		if _, err := cron.ParseStandard(c.Plugins.RescanSchedule); err != nil {
			invalid("plugins.rescan_schedule", "%v", err)
		}
	}
	if c.Plugins.MaxViolations < 0 {
		invalid("plugins.max_violations", "must not be negative")
	}

	if _, err := security.ParseTrustPolicy(c.Security.TrustPolicy); err != nil {
		invalid("security.trust_policy", "%v", err)
	}
	for _, s := range c.Security.TrustedSigners {
		if _, err := security.ParsePublicKey(s); err != nil {
			invalid("security.trusted_signers", "%v", err)
		}
	}
	for _, p := range c.Security.DefaultGrants {
		if !security.IsValidPermission(p) {
			invalid("security.default_grants", "unknown permission %q", p)
		}
	}
	if c.Security.RequireSignature && len(c.Security.TrustedSigners) == 0 {
		invalid("security.trusted_signers", "required when require_signature is set")
	}

	if c.Admin.Enabled && c.Admin.Listen == "" {
		invalid("admin.listen", "must not be empty when the admin API is enabled")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		invalid("logging.level", "%v", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		invalid("logging.format", "unknown format %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// ManagerConfig returns the plugin manager settings.
func (c Config) ManagerConfig() plugin.ManagerConfig {
	return plugin.ManagerConfig{
		PluginsDir:    c.Paths.PluginsDir,
		ConfigDir:     c.Paths.ConfigDir,
		DataDir:       c.Paths.DataDir,
		AutoStart:     c.Plugins.AutoStart,
		CallTimeout:   c.Plugins.CallTimeout.Std(),
		MaxViolations: c.Plugins.MaxViolations,
	}
}

// SecurityRegistryConfig returns the permission registry settings.
func (c Config) SecurityRegistryConfig() (security.Config, error) {
	policy, err := security.ParseTrustPolicy(c.Security.TrustPolicy)
	if err != nil {
		return security.Config{}, err
	}
	signers := make([]ed25519.PublicKey, 0, len(c.Security.TrustedSigners))
	for _, s := range c.Security.TrustedSigners {
		key, err := security.ParsePublicKey(s)
		if err != nil {
			return security.Config{}, fmt.Errorf("trusted signer: %w", err)
		}
		signers = append(signers, key)
	}

	l := c.Security.Limits
	return security.Config{
		DefaultLimits: security.ResourceLimits{
			MaxMemoryMB:                 l.MaxMemoryMB,
			MaxFileSizeMB:               l.MaxFileSizeMB,
			MaxNetworkRequestsPerMinute: l.MaxNetworkRequestsPerMinute,
			MaxCPUTimeMs:                l.MaxCPUTimeMs,
			MaxDiskIOPerMinuteMB:        l.MaxDiskIOPerMinuteMB,
			AllowedReadPaths:            l.AllowedReadPaths,
			AllowedWritePaths:           l.AllowedWritePaths,
			AllowNetwork:                l.AllowNetwork,
			AllowSubprocess:             l.AllowSubprocess,
			AllowLibraryLoading:         l.AllowLibraryLoading,
		},
		TrustPolicy:      policy,
		MaxFileSize:      c.Security.MaxFileSizeMB * 1024 * 1024,
		RequireSignature: c.Security.RequireSignature,
		TrustedSigners:   signers,
		DefaultGrants:    c.Security.DefaultGrants,
	}, nil
}

// SystemConfig returns the plugin system settings using log.
func (c Config) SystemConfig(log *logrus.Logger) (plugin.SystemConfig, error) {
	sec, err := c.SecurityRegistryConfig()
	if err != nil {
		return plugin.SystemConfig{}, err
	}
	return plugin.SystemConfig{
		ManagerConfig:  c.ManagerConfig(),
		Platform:       c.Plugins.Platform,
		ScriptTimeout:  c.Plugins.ScriptTimeout.Std(),
		Security:       sec,
		SandboxEnabled: c.Security.SandboxEnabled,
		Watch:          c.Plugins.Watch,
		WatchDebounce:  c.Plugins.WatchDebounce.Std(),
		Logger:         log,
	}, nil
}

// NewLogger builds the application logger writing to out.
func (c LoggingConfig) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
