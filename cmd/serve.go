package main

import (
	"github.com/spf13/cobra"

	"github.com/intervu-app/intervu/config"
	"github.com/intervu-app/intervu/internal/logger"
	srv "github.com/intervu-app/intervu/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the interview coaching HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.General.LogJSON, cfg.General.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			return srv.Run(cfg, log)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
