package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"formulary/internal/report"
)

func newReportCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print statistics for the formula store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("report", map[string]any{"json": asJSON})
			defer func() { done(err) }()

			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			store, err := c.loadStore()
			if err != nil {
				return err
			}
			stats := report.Aggregate(store.All(), reg.Inputs(), reg.Outputs())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			if stats.Empty {
				fmt.Fprintln(out, "No formulas stored.")
				return nil
			}
			fmt.Fprintf(out, "Total formulas:       %d\n", stats.Total)
			fmt.Fprintf(out, "Average confidence:   %s\n", report.FormatConfidence(stats.AverageConfidence))
			fmt.Fprintf(out, "Variant-specific:     %d (%s)\n", stats.VariantSpecificCount, report.FormatPercent(stats.VariantSpecificPercent()))
			fmt.Fprintf(out, "Editable:             %d (%s)\n", stats.EditableCount, report.FormatPercent(stats.EditablePercent()))
			fmt.Fprintf(out, "Confidence buckets:   high %d, medium %d, low %d\n", stats.Buckets.High, stats.Buckets.Medium, stats.Buckets.Low)
			fmt.Fprintf(out, "Source methods:       %s\n", strings.Join(stats.SourceMethods, ", "))
			fmt.Fprintf(out, "Input variables:      %d\n", stats.InputCount)
			fmt.Fprintf(out, "Output variables:     %d\n", stats.OutputCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}
