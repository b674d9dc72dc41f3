package main

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/api"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves the JSON API with server-sent event and websocket negotiation streams. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, record)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&record, "record", false, "store every prompt and reply in agent_logs")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, record bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	svc, err := buildService(cmd, cfg, gormDB, record)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	return api.Start(ctx, api.StartOpts{
		Service:     svc,
		Port:        port,
		CORSOrigins: cfg.Server.CORSOrigins,
		Out:         cmd.OutOrStdout(),
		Logger:      log.New(cmd.ErrOrStderr(), "", log.LstdFlags),
	})
}
