package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ersonp/resource-directory/internal/application/handlers"
	"github.com/ersonp/resource-directory/internal/domain/entities"
	"github.com/ersonp/resource-directory/internal/domain/services"
)

type detectFlags struct {
	format     string
	categoryID string
	ids        []string
	threshold  float64
	blocking   string
}

func newDetectCmd() *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect candidate duplicate records",
		Long: "Runs every duplicate detection over the active records and prints the candidates\n" +
			"grouped by method, highest confidence first. Nothing is modified.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().StringVarP(&flags.categoryID, "category", "c", "", "Only consider records in this category")
	cmd.Flags().StringSliceVar(&flags.ids, "ids", nil, "Only consider these record ids")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", services.DefaultFuzzyThreshold, "Fuzzy name similarity threshold (0.0-1.0)")
	cmd.Flags().StringVar(&flags.blocking, "blocking", string(services.BlockingNone), "Fuzzy comparison blocking (none, first_token)")

	return cmd
}

func runDetect(cmd *cobra.Command, flags detectFlags) error {
	if !contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	if state.cfg != nil {
		if cmd.Flags().Changed("threshold") {
			state.cfg.Detection.FuzzyThreshold = flags.threshold
		}
		if cmd.Flags().Changed("blocking") {
			state.cfg.Detection.FuzzyBlocking = flags.blocking
		}
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		report, err := d.DedupeHandler.HandleDetect(ctx, handlers.DetectOptions{
			CategoryID: flags.categoryID,
			IDs:        flags.ids,
		})
		if err != nil {
			return fmt.Errorf("detecting duplicates: %w", err)
		}

		if flags.format == "json" {
			return writeJSON(out, report)
		}
		return formatReport(out, report)
	})
}

// formatReport prints the report method by method in review order.
func formatReport(w io.Writer, report *entities.DuplicateReport) error {
	fmt.Fprintf(w, "Scanned %d active records (fuzzy threshold %.2f).\n",
		report.TotalRecords, report.FuzzyThreshold)

	order := report.ReviewOrder()
	if len(order) == 0 {
		fmt.Fprintln(w, "No duplicate candidates found.")
		return nil
	}
	fmt.Fprintf(w, "Found %d candidate groups and pairs.\n", report.Counts.Total())

	for _, m := range order {
		fmt.Fprintf(w, "\n== %s (%s confidence, %d) ==\n", m, m.Tier(), report.Counts.For(m))

		switch m {
		case entities.MethodFuzzyName:
			for _, p := range report.FuzzyName {
				fmt.Fprintf(w, "  %s %q  ~  %s %q  score %s\n",
					p.First.ID, p.First.Name, p.Second.ID, p.Second.Name, formatScore(p.Score))
			}
		case entities.MethodContact:
			for _, p := range report.Contact {
				fmt.Fprintf(w, "  %s %q  =  %s %q  via %s\n",
					p.First.ID, p.First.Name, p.Second.ID, p.Second.Name, p.MatchedField)
			}
		default:
			for _, g := range report.Groups(m) {
				fmt.Fprintf(w, "  %q\n", g.Key)
				for _, r := range g.Records {
					fmt.Fprintf(w, "    %s  %s\n", r.ID, r.Name)
				}
			}
		}
	}
	return nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
