package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"formulary/internal/formulastore"
	"formulary/internal/matching"
	"formulary/internal/report"
)

func newMatchCmd(c *cli) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match the registry against the template catalog",
		Long: `Match registered variables against the formula template catalog. A
template is reported when at least two of its required variables match.
With --apply the formula store is replaced by the matched templates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("match", map[string]any{"apply": apply})
			defer func() { done(err) }()

			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			if !reg.IsConfigured() {
				return errNotConfigured
			}
			cat, err := c.loadCatalog()
			if err != nil {
				return err
			}

			engine := matching.NewEngine(cat)
			results := engine.Match(reg)
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No templates matched.")
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s\n", i+1, r.Template.Expression)
				fmt.Fprintf(out, "   %s\n", r.Template.Context)
				fmt.Fprintf(out, "   matched %d/%d, confidence %s\n",
					r.MatchedCount(), len(r.Template.RequiredVariables), report.FormatConfidence(r.Confidence))
			}
			if !apply {
				return nil
			}

			records, err := formulastore.CollectAll(cmd.Context(), []formulastore.Provider{
				&matching.Provider{Engine: engine, Registry: reg},
			})
			if err != nil {
				return err
			}
			store := formulastore.NewStore()
			if err := store.ReplaceAll(records); err != nil {
				return err
			}
			if err := c.saveStore(store); err != nil {
				return err
			}
			c.log.Info("match applied", zap.Int("formulas", store.Len()))
			fmt.Fprintf(out, "Stored %d formulas in %s\n", store.Len(), c.ws.FormulasPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Replace the formula store with the matches")
	return cmd
}
