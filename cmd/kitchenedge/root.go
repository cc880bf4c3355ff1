package main

import (
	"log"

	"github.com/spf13/cobra"

	"kitchenedge/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "kitchenedge",
		Short:         "Kitchen display edge service",
		Long:          "Runs kitchen display sessions: order feed, status changes, receipt printing and the new-order alarm.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Debug {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "kitchenedge.yaml", "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newReceiptCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))

	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.ConfigPath)
}
