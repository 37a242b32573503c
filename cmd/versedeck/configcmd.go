package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/versedeck/internal/config"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "print",
			Short: "Print the effective configuration as TOML",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return config.Write(c.stdout, c.cfg)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check the configuration and exit",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				// Loading already validated it.
				fmt.Fprintln(c.stdout, "configuration ok")
				return nil
			},
		},
	)
	return cmd
}
