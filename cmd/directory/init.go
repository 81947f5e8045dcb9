package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new resource directory",
		Long:  "Creates a .directory folder with default configuration and the SQLite schema.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	handler := handlers.NewInitHandler(openRelationalDB)

	result, err := handler.Handle(cmd.Context(), state.cwd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", result.ConfigPath)
	fmt.Fprintf(out, "Created database: %s\n", result.DatabasePath)
	fmt.Fprintln(out, "Directory initialized successfully!")
	return nil
}
