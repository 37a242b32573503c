package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/versedeck/internal/adminapi"
	"github.com/dshills/versedeck/internal/plugin"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the plugin host until interrupted",
		Long: `Load auto-start plugins, drive their update tick and serve the admin API.

The plugins directory is rescanned on change when plugins.watch is set and
on the plugins.rescan_schedule cron spec.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) (err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sys, err := c.openSystem(withRegisterer(reg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := sys.Shutdown(shutdownCtx); serr != nil {
			err = errors.Join(err, serr)
		}
	}()

	if err := sys.Start(ctx); err != nil {
		// Individual plugin failures are recorded on their entries.
		c.log.WithError(err).Warn("some plugins failed to start")
	}
	c.log.WithField("active", sys.Manager().ListLoaded()).Info("plugin host started")

	if spec := c.cfg.Plugins.RescanSchedule; spec != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(spec, func() {
			if _, err := sys.Manager().ScanForPlugins(ctx); err != nil {
				c.log.WithError(err).Warn("scheduled rescan")
			}
		}); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	if interval := c.cfg.Plugins.UpdateInterval.Std(); interval > 0 {
		g.Go(func() error {
			c.updateLoop(ctx, sys, interval)
			return nil
		})
	}

	if c.cfg.Admin.Enabled {
		server := adminapi.New(sys.Manager(),
			adminapi.WithSearch(sys.Search()),
			adminapi.WithPermissions(sys.Security()),
			adminapi.WithGatherer(reg),
			adminapi.WithLogger(c.log),
		)
		g.Go(func() error {
			return server.ListenAndServe(ctx, c.cfg.Admin.Listen)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err = g.Wait()
	c.log.Info("plugin host stopping")
	return err
}

// updateLoop ticks every active plugin with the elapsed time in seconds.
func (c *cli) updateLoop(ctx context.Context, sys *plugin.System, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := sys.Update(ctx, dt); err != nil {
				c.log.WithError(err).Debug("plugin update failed")
			}
		}
	}
}
