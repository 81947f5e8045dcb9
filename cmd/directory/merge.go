package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/application/handlers"
	"github.com/ersonp/resource-directory/internal/domain/entities"
)

type mergeFlags struct {
	notes  string
	dryRun bool
	format string
}

func newMergeCmd() *cobra.Command {
	var flags mergeFlags

	cmd := &cobra.Command{
		Use:   "merge <primary-id> <duplicate-id>...",
		Short: "Merge duplicate records into a primary record",
		Long: "Fills the primary's empty fields from the duplicates, unions their tags, appends\n" +
			"their notes and archives them. Everything happens in one transaction.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args[0], args[1:], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.notes, "notes", "n", "", "Note recorded with the merge")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show the merge without saving it")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runMerge(cmd *cobra.Command, primaryID string, duplicateIDs []string, flags mergeFlags) error {
	if !contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	actor, err := resolveActor()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.DedupeHandler.HandleMerge(ctx, handlers.MergeOptions{
			PrimaryID:    primaryID,
			DuplicateIDs: duplicateIDs,
			Notes:        flags.notes,
			Actor:        actor,
			DryRun:       flags.dryRun,
		})
		if err != nil {
			return fmt.Errorf("merging into %s: %w", primaryID, err)
		}

		if flags.format == "json" {
			return writeJSON(out, result)
		}
		formatMergeResult(out, result)
		return nil
	})
}

func formatMergeResult(w io.Writer, result *entities.MergeResult) {
	if result.DryRun {
		fmt.Fprintln(w, "Dry run, nothing was saved.")
	}
	fmt.Fprintln(w, result.Summary)

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	if len(result.FieldsChanged) == 0 {
		fmt.Fprintln(w, "No fields changed on the primary.")
		return
	}

	fields := make([]string, 0, len(result.FieldsChanged))
	for f := range result.FieldsChanged {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	fmt.Fprintln(w, "\nFields changed:")
	for _, f := range fields {
		change := result.FieldsChanged[entities.MergeField(f)]
		line := fmt.Sprintf("  %-20s %q -> %q", f, change.Old, change.New)
		if change.SourceID != "" {
			line += " (from " + change.SourceID + ")"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
