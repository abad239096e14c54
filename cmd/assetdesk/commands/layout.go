package commands

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/seed"
)

func NewLayoutCommand() *cobra.Command {
	layoutCmd := &cobra.Command{
		Use:   "layout",
		Short: "Export and import form layouts",
	}
	layoutCmd.AddCommand(newLayoutExportCommand())
	layoutCmd.AddCommand(newLayoutImportCommand())
	return layoutCmd
}

func newLayoutExportCommand() *cobra.Command {
	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the effective layout of every context as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			layouts, err := app.Settings.Layouts(ctx)
			if err != nil {
				return err
			}
			b, err := layout.MarshalYAML(layouts)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return errors.Wrap(os.WriteFile(out, b, 0o644), "writing layouts")
		},
	}
	exportCmd.Flags().StringVarP(&out, "output", "o", "", "output file, stdout when empty")
	return exportCmd
}

func newLayoutImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace stored layouts with those in a YAML export",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				b   []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				b, err = io.ReadAll(cmd.InOrStdin())
			} else {
				b, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrap(err, "reading layouts")
			}
			layouts, err := layout.UnmarshalYAML(b)
			if err != nil {
				return err
			}

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			contexts := make([]string, 0, len(layouts))
			for c := range layouts {
				contexts = append(contexts, string(c))
			}
			sort.Strings(contexts)
			for _, c := range contexts {
				if _, err := app.Settings.SaveLayout(ctx, layout.Context(c), layouts[layout.Context(c)], seed.Actor); err != nil {
					return errors.Wrapf(err, "saving %s layout", c)
				}
				logger.Info("layout imported", "context", c)
			}
			return nil
		},
	}
}
