package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/versedeck/internal/plugin"
	"github.com/dshills/versedeck/internal/plugin/security"
)

type permissionRow struct {
	Name        string `yaml:"name"`
	Level       string `yaml:"level"`
	Dangerous   bool   `yaml:"dangerous,omitempty"`
	Description string `yaml:"description"`
}

type pluginPermissions struct {
	Plugin      string               `yaml:"plugin"`
	Permissions []string             `yaml:"permissions"`
	Trusted     bool                 `yaml:"trusted"`
	Blocked     bool                 `yaml:"blocked"`
	Violations  []security.Violation `yaml:"violations,omitempty"`
}

func newPermsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perms",
		Short: "Manage plugin permissions",
	}

	// edit applies fn to the security registry and saves the decisions.
	edit := func(cmd *cobra.Command, fn func(*security.Registry) error) error {
		return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
			if err := fn(sys.Security()); err != nil {
				return err
			}
			return sys.SaveSecurity()
		}, withoutAutoStart())
	}

	list := &cobra.Command{
		Use:   "list [plugin]",
		Short: "List the permission catalog, or one plugin's grants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				rows := make([]permissionRow, 0)
				for _, p := range security.Catalog() {
					rows = append(rows, permissionRow{
						Name:        p.Name,
						Level:       p.Level.String(),
						Dangerous:   p.Dangerous,
						Description: p.Description,
					})
				}
				return c.printYAML(rows)
			}
			return c.withSystem(cmd.Context(), func(sys *plugin.System) error {
				reg := sys.Security()
				perms := reg.Permissions(args[0])
				if perms == nil {
					perms = []string{}
				}
				return c.printYAML(pluginPermissions{
					Plugin:      args[0],
					Permissions: perms,
					Trusted:     reg.IsTrusted(args[0]),
					Blocked:     reg.IsBlocked(args[0]),
					Violations:  reg.Violations(args[0]),
				})
			}, withoutAutoStart())
		},
	}

	grant := &cobra.Command{
		Use:   "grant <plugin> <permission>...",
		Short: "Grant permissions to a plugin",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, func(reg *security.Registry) error {
				for _, perm := range args[1:] {
					if err := reg.Grant(args[0], perm); err != nil {
						return err
					}
					fmt.Fprintf(c.stdout, "granted %s to %s\n", perm, args[0])
				}
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <plugin> <permission>...",
		Short: "Revoke permissions from a plugin",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd, func(reg *security.Registry) error {
				for _, perm := range args[1:] {
					if !security.IsValidPermission(perm) {
						return fmt.Errorf("unknown permission %q", perm)
					}
					reg.Revoke(args[0], perm)
					fmt.Fprintf(c.stdout, "revoked %s from %s\n", perm, args[0])
				}
				return nil
			})
		},
	}

	setFlag := func(use, short, verb string, fn func(*security.Registry, string)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <plugin>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return edit(cmd, func(reg *security.Registry) error {
					fn(reg, args[0])
					fmt.Fprintf(c.stdout, "%s %s\n", verb, args[0])
					return nil
				})
			},
		}
	}
	trust := setFlag("trust", "Mark a plugin trusted", "trusted", func(reg *security.Registry, name string) {
		reg.SetTrusted(name, true)
	})
	untrust := setFlag("untrust", "Remove a plugin's trusted mark", "untrusted", func(reg *security.Registry, name string) {
		reg.SetTrusted(name, false)
	})
	block := setFlag("block", "Refuse to load a plugin", "blocked", func(reg *security.Registry, name string) {
		reg.SetBlocked(name, true)
	})
	unblock := setFlag("unblock", "Allow a blocked plugin to load", "unblocked", func(reg *security.Registry, name string) {
		reg.SetBlocked(name, false)
	})

	cmd.AddCommand(list, grant, revoke, trust, untrust, block, unblock)
	return cmd
}
