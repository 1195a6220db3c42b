package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"formulary/internal/processor"
)

func newProcessCmd(c *cli) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "process DATASET",
		Short: "Apply stored formulas to every row of a CSV or XLSX dataset",
		Long: `Evaluate the stored formulas against each row of a dataset and write the
filled table as processed_output_<timestamp>.xlsx. Rows are matched to
product variants through processor.variant_column and processor.variants;
a dataset without that column uses the base expressions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			path, err := c.ws.ResolvePath(args[0])
			if err != nil {
				return err
			}
			done := c.track("process", map[string]any{"dataset": path})
			defer func() { done(err) }()

			dir, err := c.resolveDir(outDir, c.cfg.Processor.Dir, c.ws.ProcessedDir)
			if err != nil {
				return err
			}
			store, err := c.loadStore()
			if err != nil {
				return err
			}
			table, err := processor.ReadTable(path)
			if err != nil {
				return err
			}

			p := &processor.Processor{
				Formulas:      store.All(),
				VariantColumn: c.cfg.Processor.VariantColumn,
				Variants:      c.cfg.Processor.Variants,
				Logger:        c.log,
			}
			if table.ColumnIndex(p.VariantColumn) < 0 {
				c.log.Warn("dataset has no variant column, using base expressions",
					zap.String("column", p.VariantColumn))
				p.Variants = nil
			}
			result, err := p.Process(table)
			if err != nil {
				return err
			}
			outPath, err := processor.WriteWorkbook(dir, result.Table, time.Now())
			if err != nil {
				return err
			}

			sum := result.Summary()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %s\n", sum.Status)
			fmt.Fprintf(out, "Rows processed: %d of %d\n", sum.ProcessedRows, sum.TotalRows)
			fmt.Fprintf(out, "Calculations: %d\n", sum.SuccessfulCalculations)
			for _, col := range sum.NewColumns {
				fmt.Fprintf(out, "New column: %s\n", col)
			}
			for _, e := range sum.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			fmt.Fprintln(out, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: <workspace>/processed)")
	return cmd
}
