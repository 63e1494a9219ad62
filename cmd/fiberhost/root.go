package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds global flags shared by all commands.
type rootOptions struct {
	Verbose    bool
	ConfigFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fiberhost",
		Short: "Host runtime for Fiber reactive guest modules",
		Long: `fiberhost sandboxes a wasm guest built against the Fiber SDK, owns its
reactive state on the host side, and exchanges tagged values with it over
the boundary protocol.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to config file")

	cmd.AddCommand(newRunCommand(opts))

	return cmd
}
