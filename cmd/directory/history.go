package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/application/handlers"
)

func newHistoryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the versions and audit trail of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runHistory(cmd *cobra.Command, recordID, format string) error {
	if !contains(validFormats, format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", format, validFormats)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.RecordHandler.HandleHistory(ctx, recordID)
		if err != nil {
			return fmt.Errorf("loading history of %s: %w", recordID, err)
		}

		if format == "json" {
			return writeJSON(out, result)
		}
		formatHistory(out, result)
		return nil
	})
}

func formatHistory(w io.Writer, h *handlers.HistoryResult) {
	r := h.Record
	status := "active"
	switch {
	case r.IsDeleted:
		status = "deleted"
	case r.IsArchived && r.MergedIntoID != "":
		status = "merged into " + r.MergedIntoID
	case r.IsArchived:
		status = "archived"
	}
	fmt.Fprintf(w, "%s  %s  [%s]\n", r.ID, r.Name, status)
	if r.ArchiveReason != "" {
		fmt.Fprintf(w, "  reason: %s\n", r.ArchiveReason)
	}

	fmt.Fprintf(w, "\nVersions (%d):\n", len(h.Versions))
	for _, v := range h.Versions {
		fmt.Fprintf(w, "  v%d  %-8s  %s  by %s: %s\n",
			v.Version, v.ChangeType, v.CreatedAt.Format(time.RFC3339), v.Actor, v.Reason)
	}

	fmt.Fprintf(w, "\nAudit log (%d):\n", len(h.Audit))
	for i, e := range h.Audit {
		if i == DefaultAuditShow {
			fmt.Fprintf(w, "  ... %d older entries\n", len(h.Audit)-i)
			break
		}
		fmt.Fprintf(w, "  #%d  %-18s  %s  by %s\n", e.ID, e.Action, e.CreatedAt.Format(time.RFC3339), e.Actor)
	}

	if len(h.Flags) > 0 {
		fmt.Fprintf(w, "\nReview flags (%d):\n", len(h.Flags))
		for _, f := range h.Flags {
			fmt.Fprintf(w, "  group %s  by %s: %s\n", f.GroupID, f.Actor, f.Reason)
		}
	}
}
