package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ariga.io/atlas-go-sdk/atlasexec"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/matthewbaird/assetdesk/internal/store"
)

func NewMigrateCommand() *cobra.Command {
	var (
		useAtlas  bool
		atlasBin  string
		targetURL string
		dryRun    bool
	)
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: "Applies the built-in schema to the configured SQLite database. With --atlas the schema is " +
			"applied declaratively through the atlas CLI, which diffs the live database against it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.Database.Driver == "memory" {
				logger.Info("memory driver has no schema, nothing to do")
				return nil
			}
			if !useAtlas {
				st, err := store.OpenSQLite(ctx, cfg.Database.DSN, logger)
				if err != nil {
					return err
				}
				defer st.Close()
				logger.Info("database migrated successfully", "dsn", cfg.Database.DSN)
				return nil
			}

			dir, err := os.MkdirTemp("", "assetdesk-schema-")
			if err != nil {
				return errors.Wrap(err, "creating working directory")
			}
			defer os.RemoveAll(dir)
			if err := os.WriteFile(filepath.Join(dir, "schema.sql"), []byte(store.Schema()), 0o644); err != nil {
				return errors.Wrap(err, "writing schema")
			}

			client, err := atlasexec.NewClient(dir, atlasBin)
			if err != nil {
				return errors.Wrap(err, "starting atlas")
			}
			if targetURL == "" {
				targetURL = atlasURL(cfg.Database.DSN)
			}
			res, err := client.SchemaApply(ctx, &atlasexec.SchemaApplyParams{
				URL:         targetURL,
				To:          "file://schema.sql",
				DevURL:      "sqlite://dev?mode=memory",
				DryRun:      dryRun,
				AutoApprove: true,
			})
			if err != nil {
				return errors.Wrap(err, "applying schema")
			}
			if dryRun {
				for _, stmt := range res.Changes.Pending {
					fmt.Fprintln(cmd.OutOrStdout(), stmt)
				}
				return nil
			}
			logger.Info("schema applied", "url", targetURL, "statements", len(res.Changes.Applied))
			return nil
		},
	}
	migrateCmd.Flags().BoolVar(&useAtlas, "atlas", false, "apply the schema with the atlas CLI")
	migrateCmd.Flags().StringVar(&atlasBin, "atlas-bin", "atlas", "path to the atlas binary")
	migrateCmd.Flags().StringVar(&targetURL, "url", "", "atlas database url, derived from database.dsn when empty")
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print pending statements without applying them")
	return migrateCmd
}

// atlasURL turns a sqlite driver DSN such as file:assetdesk.db?_pragma=...
// into the sqlite://assetdesk.db form atlas expects.
func atlasURL(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	return "sqlite://" + path
}
