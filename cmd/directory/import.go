package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/application/handlers"
	"github.com/ersonp/resource-directory/internal/domain/services"
)

type importFlags struct {
	format     string
	dryRun     bool
	onConflict string
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import records from JSON, CSV or YAML",
		Long:  "Imports directory records from a structured file. Each record gets a creation version and an audit entry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", handlers.FormatAuto, "File format (json, csv, yaml, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&flags.onConflict, "on-conflict", "skip", "Conflict handling (skip, overwrite)")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	conflict := services.ConflictStrategy(flags.onConflict)
	if conflict != services.ConflictSkip && conflict != services.ConflictOverwrite {
		return fmt.Errorf("invalid --on-conflict value %q (valid: skip, overwrite)", flags.onConflict)
	}

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		fmt.Fprintf(out, "Importing %s...\n", filePath)

		result, err := d.ImportHandler.Handle(ctx, filePath, handlers.ImportOptions{
			Format:     flags.format,
			DryRun:     flags.dryRun,
			OnConflict: conflict,
			Actor:      actor,
		})
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		if len(result.Errors) > 0 {
			fmt.Fprintf(out, "\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e.Error())
			}
		}

		fmt.Fprintln(out)
		if flags.dryRun {
			fmt.Fprintf(out, "Dry run: %d records would be imported", result.Imported)
		} else {
			fmt.Fprintf(out, "Imported: %d records", result.Imported)
		}
		if result.Skipped > 0 {
			fmt.Fprintf(out, ", %d skipped (already exist)", result.Skipped)
		}
		if len(result.Errors) > 0 {
			fmt.Fprintf(out, ", %d errors", len(result.Errors))
		}
		fmt.Fprintln(out)

		return nil
	})
}
