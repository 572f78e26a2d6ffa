package main

import (
	"github.com/spf13/cobra"

	cfg "wadserv/src/configuration"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "wadserv",
		Short:         "wadserv serves items, users and profile images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	load := func() (*cfg.Properties, error) {
		return cfg.ReadProperties(envFile)
	}
	cmd.AddCommand(
		newServeCmd(load),
		newTokenCmd(load),
	)
	return cmd
}
