package commands

import (
	"github.com/spf13/cobra"

	"github.com/matthewbaird/assetdesk/internal/seed"
)

func NewSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo reference data, users, families and requests",
		Long:  "Loads a demo data set through the regular services. Does nothing when families already exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			app.Start(ctx)

			_, err = seed.Run(ctx, seed.Services{
				Settings:  app.Settings,
				Inventory: app.Inventory,
				Lifecycle: app.Lifecycle,
			}, logger)
			return err
		},
	}
}
