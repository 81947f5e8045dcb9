package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/application/handlers"
)

func newArchiveCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "archive <id>...",
		Short: "Archive records without merging",
		Long:  "Archives every given record in one transaction. If any record is missing or already archived, nothing changes.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd, args, reason)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason for archiving (required)")

	return cmd
}

func runArchive(cmd *cobra.Command, ids []string, reason string) error {
	opts, err := batchOptions(ids, reason)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.DedupeHandler.HandleArchive(ctx, opts)
		if err != nil {
			return fmt.Errorf("archiving records: %w", err)
		}

		fmt.Fprintf(out, "Archived %d records: %s\n", len(result.ArchivedIDs), strings.Join(result.ArchivedIDs, ", "))
		return nil
	})
}

func newFlagCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "flag <id>...",
		Short: "Flag records for duplicate review",
		Long:  "Marks the given records as one candidate group for human review. Records are not modified.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlag(cmd, args, reason)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the records need review (required)")

	return cmd
}

func runFlag(cmd *cobra.Command, ids []string, reason string) error {
	opts, err := batchOptions(ids, reason)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.DedupeHandler.HandleFlag(ctx, opts)
		if err != nil {
			return fmt.Errorf("flagging records: %w", err)
		}

		fmt.Fprintf(out, "Flagged %d records for review (group %s): %s\n",
			len(result.FlaggedIDs), result.GroupID, strings.Join(result.FlaggedIDs, ", "))
		return nil
	})
}

func batchOptions(ids []string, reason string) (handlers.BatchOptions, error) {
	if strings.TrimSpace(reason) == "" {
		return handlers.BatchOptions{}, errors.New("--reason is required")
	}

	actor, err := resolveActor()
	if err != nil {
		return handlers.BatchOptions{}, err
	}

	return handlers.BatchOptions{IDs: ids, Reason: reason, Actor: actor}, nil
}
