package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"formulary/internal/export"
)

const formatAll = "all"

func newExportCmd(c *cli) *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the formula store",
		Long: fmt.Sprintf(`Write the formula store as a date-stamped artifact. Formats: %s, or %s
for every format at once. An empty store is refused.`, strings.Join(export.Formats(), ", "), formatAll),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("export", map[string]any{"format": format})
			defer func() { done(err) }()

			dir, err := c.resolveDir(outDir, c.cfg.Export.Dir, c.ws.ExportsDir)
			if err != nil {
				return err
			}
			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			store, err := c.loadStore()
			if err != nil {
				return err
			}
			bundle := export.Bundle{
				Formulas: store.All(),
				Inputs:   reg.Inputs(),
				Outputs:  reg.Outputs(),
			}
			w := &export.Writer{Dir: dir, Logger: c.log}

			var paths []string
			if format == formatAll {
				paths, err = w.WriteAll(cmd.Context(), bundle)
				if err != nil {
					return err
				}
			} else {
				r, err := export.Lookup(format)
				if err != nil {
					return err
				}
				path, err := w.WriteFile(r, bundle)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatAll, "Export format")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: <workspace>/exports)")
	return cmd
}
