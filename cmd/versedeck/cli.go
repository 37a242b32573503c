package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dshills/versedeck/internal/config"
	"github.com/dshills/versedeck/internal/plugin"
)

// cli holds state shared by every command.
type cli struct {
	configPath string
	envFiles   []string
	logLevel   string

	stdout io.Writer
	stderr io.Writer

	cfg config.Config
	log *logrus.Logger
}

func (c *cli) loadConfig() error {
	if c.logLevel != "" {
		if _, err := logrus.ParseLevel(c.logLevel); err != nil {
			return err
		}
	}

	cfg, err := config.Load(c.configPath, config.WithDotEnv(c.envFiles...))
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	log, err := cfg.Logging.NewLogger(c.stderr)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = log
	return nil
}

// systemOption adjusts the plugin system settings of one command.
type systemOption func(*plugin.SystemConfig)

func withoutAutoStart() systemOption {
	return func(sc *plugin.SystemConfig) { sc.ManagerConfig.AutoStart = false }
}

func withRegisterer(reg prometheus.Registerer) systemOption {
	return func(sc *plugin.SystemConfig) { sc.Registerer = reg }
}

func withoutWatch() systemOption {
	return func(sc *plugin.SystemConfig) { sc.Watch = false }
}

// openSystem initializes a plugin system from the loaded configuration.
// The caller shuts it down.
func (c *cli) openSystem(opts ...systemOption) (*plugin.System, error) {
	sc, err := c.cfg.SystemConfig(c.log)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&sc)
	}
	sys := plugin.NewSystem(sc)
	if err := sys.Initialize(); err != nil {
		return nil, err
	}
	return sys, nil
}

// withSystem runs fn over an initialized system and shuts it down after.
func (c *cli) withSystem(ctx context.Context, fn func(*plugin.System) error, opts ...systemOption) (err error) {
	sys, err := c.openSystem(append([]systemOption{withoutWatch()}, opts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if serr := sys.Shutdown(ctx); serr != nil && err == nil {
			err = fmt.Errorf("shutdown: %w", serr)
		}
	}()
	return fn(sys)
}

func (c *cli) printYAML(v any) error {
	enc := yaml.NewEncoder(c.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
