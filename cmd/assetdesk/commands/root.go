package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/assetdesk/internal/config"
	"github.com/matthewbaird/assetdesk/internal/logging"
	"github.com/matthewbaird/assetdesk/internal/server"
)

var (
	configFile string
	cfg        config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "assetdesk",
	Short:         "IT asset management service",
	Long:          "assetdesk tracks software licenses and hardware, the users they are issued to and the requests that issue them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		logger = logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Color)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
}

// GetRootCmd returns the root command with every subcommand attached.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// buildApp wires the services for one-shot commands. The caller closes it.
func buildApp(ctx context.Context) (*server.App, error) {
	return server.Build(ctx, cfg, logger)
}
