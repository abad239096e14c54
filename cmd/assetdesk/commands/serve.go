package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/assetdesk/internal/server"
)

func NewServeCommand() *cobra.Command {
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr != "" {
				cfg.Server.Addr = addr
			}
			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			app.Start(ctx)

			return server.Run(ctx, server.Config{
				Addr:            cfg.Server.Addr,
				Handler:         app.Handler(),
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Logger:          logger,
			})
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return serveCmd
}
