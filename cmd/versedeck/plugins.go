package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/versedeck/internal/adminapi"
	"github.com/dshills/versedeck/internal/plugin"
)

// pluginRow is one line of "plugins list".
type pluginRow struct {
	Name        string   `yaml:"name"`
	File        string   `yaml:"file"`
	AutoStart   bool     `yaml:"auto_start"`
	Trusted     bool     `yaml:"trusted,omitempty"`
	Blocked     bool     `yaml:"blocked,omitempty"`
	Permissions []string `yaml:"permissions,omitempty"`
}

func newPluginsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect and manage plugins",
	}

	var admin string
	adminAddr := func() string {
		if admin != "" {
			return admin
		}
		return c.cfg.Admin.Listen
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List plugins found in the plugins directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
				m := sys.Manager()
				names, err := m.ListAvailable()
				if err != nil {
					return err
				}
				rows := make([]pluginRow, 0, len(names))
				for _, name := range names {
					cfg, err := m.Config(name)
					if err != nil {
						return err
					}
					rows = append(rows, pluginRow{
						Name:        name,
						File:        m.Platform().LibraryName(name),
						AutoStart:   cfg.Bool("auto_start", c.cfg.Plugins.AutoStart),
						Trusted:     sys.Security().IsTrusted(name),
						Blocked:     sys.Security().IsBlocked(name),
						Permissions: sys.Security().Permissions(name),
					})
				}
				return c.printYAML(rows)
			}, withoutAutoStart())
		},
	}

	info := &cobra.Command{
		Use:   "info <name>",
		Short: "Load a plugin and print its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
				m := sys.Manager()
				loadErr := m.Load(cmd.Context(), args[0])
				st, err := m.Status(args[0])
				if err != nil {
					return errors.Join(loadErr, err)
				}
				if err := c.printYAML(st); err != nil {
					return err
				}
				return withHint(loadErr)
			}, withoutAutoStart())
		},
	}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "Scan the plugins directory and load auto-start plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
				_, scanErr := sys.Manager().ScanForPlugins(cmd.Context())
				if err := c.printYAML(sys.Manager().Statuses()); err != nil {
					return err
				}
				return scanErr
			})
		},
	}

	install := &cobra.Command{
		Use:   "install <file>",
		Short: "Copy a plugin file into the plugins directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
				name, err := sys.Manager().Install(cmd.Context(), args[0])
				if err != nil {
					return withHint(err)
				}
				fmt.Fprintf(c.stdout, "installed %s\n", name)
				return nil
			}, withoutAutoStart())
		},
	}

	uninstall := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove a plugin file from the plugins directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
				if err := sys.Manager().Uninstall(cmd.Context(), args[0]); err != nil {
					return withHint(err)
				}
				fmt.Fprintf(c.stdout, "uninstalled %s\n", args[0])
				return nil
			}, withoutAutoStart())
		},
	}

	// load, unload and reload act on a running "serve" through its admin API.
	remote := func(use, short string, op func(*adminapi.Client, *cobra.Command, string) (plugin.Status, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := op(adminapi.NewClient(adminAddr()), cmd, args[0])
				if err != nil {
					return err
				}
				return c.printYAML(st)
			},
		}
	}
	load := remote("load", "Load a plugin in the running host", func(cl *adminapi.Client, cmd *cobra.Command, name string) (plugin.Status, error) {
		return cl.Load(cmd.Context(), name)
	})
	unload := remote("unload", "Unload a plugin in the running host", func(cl *adminapi.Client, cmd *cobra.Command, name string) (plugin.Status, error) {
		return cl.Unload(cmd.Context(), name)
	})
	reload := remote("reload", "Reload a plugin in the running host", func(cl *adminapi.Client, cmd *cobra.Command, name string) (plugin.Status, error) {
		return cl.Reload(cmd.Context(), name)
	})
	for _, sub := range []*cobra.Command{load, unload, reload} {
		sub.Flags().StringVar(&admin, "admin", "", "Admin API address (default from config)")
	}

	cmd.AddCommand(list, info, scan, install, uninstall, load, unload, reload)
	return cmd
}

// withHint appends the remediation hint of a classified plugin error.
func withHint(err error) error {
	var perr *plugin.Error
	if errors.As(err, &perr) {
		return fmt.Errorf("%w\nhint: %s", err, perr.Hint())
	}
	return err
}
