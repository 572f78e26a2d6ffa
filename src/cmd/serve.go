package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfg "wadserv/src/configuration"
	"wadserv/src/logging"
	"wadserv/src/server"
)

func newServeCmd(load func() (*cfg.Properties, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}
			logger, err := logging.New(config.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("configuration loaded",
				zap.String("name", config.Server.Name),
				zap.String("port", config.Server.Port))
			return server.RunServer(config, logger)
		},
	}
}
