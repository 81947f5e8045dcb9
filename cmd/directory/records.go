package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/domain/entities"
)

func newRecordsCmd() *cobra.Command {
	var (
		limit      int
		categoryID string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List active records",
		Long:  "Lists active (not archived, not deleted) directory records ordered by name.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(cmd, categoryID, limit, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultListLimit, "Maximum number of records to display (0 for all)")
	cmd.Flags().StringVarP(&categoryID, "category", "c", "", "Filter by category id")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runRecords(cmd *cobra.Command, categoryID string, limit int, format string) error {
	if !contains(validFormats, format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", format, validFormats)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.RecordHandler.HandleList(ctx, categoryID, limit)
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}

		if format == "json" {
			return writeJSON(out, result)
		}

		if result.Total == 0 {
			fmt.Fprintln(out, "No active records found.")
			return nil
		}

		fmt.Fprintf(out, "Showing %d records:\n\n", result.Total)
		for i := range result.Records {
			displayRecord(out, &result.Records[i])
		}
		return nil
	})
}

func displayRecord(w io.Writer, r *entities.Record) {
	fmt.Fprintf(w, "%s  %s\n", r.ID, r.Name)
	if contact := recordContact(r); contact != "" {
		fmt.Fprintf(w, "  %s\n", contact)
	}
	if len(r.ServiceTypes) > 0 {
		fmt.Fprintf(w, "  tags: %s\n", strings.Join(r.ServiceTypes, ", "))
	}
}

// recordContact joins the non-empty contact and location fields of a record.
func recordContact(r *entities.Record) string {
	var parts []string
	for _, v := range []string{r.Phone, r.Email, r.Website, r.Address1, r.City, r.State} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}
