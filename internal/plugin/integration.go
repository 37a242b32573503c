package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/versedeck/internal/plugin/hostapi"
	"github.com/dshills/versedeck/internal/plugin/security"
)

// Platform names accepted by SystemConfig.Platform.
const (
	PlatformNative = "native"
	PlatformScript = "script"
)

// System provides a unified interface to the VerseDeck plugin system.
// It wires the security registry, host facade, module platform, plugin
// manager, search router and directory watcher together.
//
// System is the primary entry point for the application. It handles:
//   - Plugin discovery, loading, and lifecycle management
//   - Permission persistence in <ConfigDir>/security.conf
//   - Event routing between the application and plugins
//   - Resource cleanup on shutdown
type System struct {
	mu sync.RWMutex

	// Core components
	manager  *Manager
	security *security.Registry
	facade   *hostapi.Facade
	bus      *hostapi.Bus
	router   *SearchRouter
	watcher  *Watcher

	// Configuration
	config SystemConfig

	// State
	initialized bool
}

// SystemConfig configures the plugin system.
type SystemConfig struct {
	// ManagerConfig for the plugin manager
	ManagerConfig ManagerConfig

	// Platform is PlatformNative or PlatformScript. Static overrides it.
	Platform string
	Static   *StaticPlatform

	// ScriptTimeout bounds each script call on the script platform.
	ScriptTimeout time.Duration

	Security       security.Config
	SandboxEnabled bool

	// Watch rescans the plugins directory on change.
	Watch         bool
	WatchDebounce time.Duration

	// Host services. Nil fields fall back to the facade defaults.
	Verses    hostapi.Verses
	Favorites hostapi.Favorites

	Logger         *logrus.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
}

// DefaultSystemConfig returns sensible default system configuration.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		ManagerConfig:  DefaultManagerConfig(),
		Platform:       PlatformNative,
		SandboxEnabled: true,
		WatchDebounce:  DefaultWatchDebounce,
	}
}

// NewSystem creates a new plugin system with the given configuration.
func NewSystem(config SystemConfig) *System {
	return &System{
		config: config,
	}
}

// Initialize sets up the plugin system.
// This must be called before any other operations.
func (s *System) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}

	log := s.config.Logger
	if log == nil {
		log = logrus.New()
	}

	// Host facade
	s.facade = hostapi.NewFacade(log)
	s.bus = hostapi.NewBus(log)
	s.facade.Events = s.bus
	if s.config.Verses != nil {
		s.facade.Verses = s.config.Verses
	}
	if s.config.Favorites != nil {
		s.facade.Favorites = s.config.Favorites
	}

	// Security registry with persisted decisions
	s.security = security.NewRegistry(s.config.Security, security.WithLogger(log))
	s.security.SetSandboxEnabled(s.config.SandboxEnabled)
	if err := s.security.Load(s.SecurityConfigPath()); err != nil {
		return fmt.Errorf("failed to load security settings: %w", err)
	}

	platform, err := s.platform(log)
	if err != nil {
		return err
	}

	opts := []ManagerOption{
		WithPlatform(platform),
		WithSecurity(s.security),
		WithEvents(s.bus),
		WithLogger(log),
		WithTracerProvider(s.config.TracerProvider),
	}
	if s.config.Registerer != nil {
		opts = append(opts, WithMetricsRegisterer(s.config.Registerer))
	}
	s.manager = NewManager(s.config.ManagerConfig, opts...)
	s.router = NewSearchRouter(s.manager)

	s.initialized = true
	return nil
}

func (s *System) platform(log *logrus.Logger) (Platform, error) {
	if s.config.Static != nil {
		return s.config.Static, nil
	}
	switch s.config.Platform {
	case PlatformNative, "":
		return NativePlatform(), nil
	case PlatformScript:
		return &ScriptPlatform{
			Facade:   s.facade,
			Security: s.security,
			Logger:   log,
			Timeout:  s.config.ScriptTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown plugin platform %q", s.config.Platform)
	}
}

// Start scans the plugins directory, loading auto-start plugins, and
// starts the directory watcher when configured.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}

	_, scanErr := s.manager.ScanForPlugins(ctx)

	if s.config.Watch && s.watcher == nil && s.manager.Platform().FileBacked() {
		w, err := NewWatcher(s.manager, WithDebounce(s.config.WatchDebounce))
		if err != nil {
			return errors.Join(scanErr, fmt.Errorf("failed to watch plugins: %w", err))
		}
		s.watcher = w
	}
	return scanErr
}

// Shutdown gracefully shuts down the plugin system.
// It stops watching, unloads all plugins and saves security settings.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil // Nothing to shut down
	}

	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop watcher: %w", err))
		}
		s.watcher = nil
	}
	s.router.Close()

	// Unload all plugins (handles deactivation internally)
	if err := s.manager.UnloadAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to unload plugins: %w", err))
	}
	if err := s.security.Save(s.SecurityConfigPath()); err != nil {
		errs = append(errs, fmt.Errorf("failed to save security settings: %w", err))
	}

	s.initialized = false
	return errors.Join(errs...)
}

// SecurityConfigPath returns the path of the persisted permission file.
func (s *System) SecurityConfigPath() string {
	return filepath.Join(s.config.ManagerConfig.ConfigDir, security.ConfigFileName)
}

// SaveSecurity persists permission decisions.
func (s *System) SaveSecurity() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return s.security.Save(s.SecurityConfigPath())
}

// IsInitialized returns true if the system has been initialized.
func (s *System) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Manager returns the plugin manager for direct access.
func (s *System) Manager() *Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager
}

// Security returns the security registry.
func (s *System) Security() *security.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.security
}

// Facade returns the host services handed to plugins.
func (s *System) Facade() *hostapi.Facade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facade
}

// Bus returns the application event bus.
func (s *System) Bus() *hostapi.Bus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bus
}

// Search returns the search router.
func (s *System) Search() *SearchRouter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Update ticks every active plugin.
func (s *System) Update(ctx context.Context, dt float64) error {
	s.mu.RLock()
	m := s.manager
	s.mu.RUnlock()
	if m == nil {
		return ErrNotInitialized
	}
	return m.Update(ctx, dt)
}
