package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/saga-core/internal/application/handlers"
)

func newImportCmd() *cobra.Command {
	var (
		format string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import entity timelines from a seed file",
		Long:  "Backfills timelines from a JSON or CSV seed file of entity states, one snapshot per record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(d *Deps) error {
				result, err := d.Import.Handle(cmd.Context(), projectID(), args[0], handlers.ImportOptions{
					Format: format,
					DryRun: dryRun,
				})
				if err != nil {
					return err
				}

				if dryRun {
					fmt.Printf("Dry run: %d records valid, %d skipped\n", result.Imported, result.Skipped)
				} else {
					fmt.Printf("Imported %d records, skipped %d\n", result.Imported, result.Skipped)
				}

				for _, importErr := range result.Errors {
					fmt.Printf("  record %d: %s\n", importErr.Line, importErr.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate records without writing")

	return cmd
}
