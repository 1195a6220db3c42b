package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"formulary/internal/extraction"
	"formulary/internal/formulastore"
	"formulary/internal/report"
)

func newFormulasCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formulas",
		Short: "Inspect and edit the formula store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newFormulasListCmd(c),
		newFormulasShowCmd(c),
		newFormulasEditCmd(c),
		newFormulasDeleteCmd(c),
		newFormulasIngestCmd(c),
		newFormulasExtractCmd(c),
	)
	return cmd
}

func newFormulasListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored formulas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("formulas_list", nil)
			defer func() { done(err) }()

			store, err := c.loadStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if store.Len() == 0 {
				fmt.Fprintln(out, "No formulas stored.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTERM\tCONFIDENCE\tSOURCE")
			for _, f := range store.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.TermDescription, report.FormatConfidence(f.Confidence), f.SourceMethod)
			}
			return tw.Flush()
		},
	}
}

func newFormulasShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print one formula record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("formulas_show", map[string]any{"id": args[0]})
			defer func() { done(err) }()

			store, err := c.loadStore()
			if err != nil {
				return err
			}
			f, ok := store.Get(args[0])
			if !ok {
				return fmt.Errorf("formula %q not found", args[0])
			}
			data, err := yaml.Marshal(f)
			if err != nil {
				return fmt.Errorf("encode formula: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newFormulasEditCmd(c *cli) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "edit --from FILE",
		Short: "Upsert edited records and show the diff",
		Long: `Read records from a JSON or YAML file (a list, or {formulas: [...]})
and upsert each into the store by id. The change is printed as a unified diff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			path, err := c.ws.ResolvePath(from)
			if err != nil {
				return err
			}
			done := c.track("formulas_edit", map[string]any{"from": path})
			defer func() { done(err) }()

			store, err := c.loadStore()
			if err != nil {
				return err
			}
			records, err := formulastore.CollectAll(cmd.Context(), []formulastore.Provider{
				&formulastore.FileProvider{Path: path},
			})
			if err != nil {
				return err
			}

			before := store.All()
			var added, replaced int
			for _, f := range records {
				ok, err := store.Upsert(f)
				if err != nil {
					return err
				}
				if ok {
					replaced++
				} else {
					added++
				}
			}
			diff, err := formulastore.RenderDiff(before, store.All())
			if err != nil {
				return err
			}
			if err := c.saveStore(store); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if diff == "" {
				fmt.Fprintln(out, "No changes.")
				return nil
			}
			fmt.Fprint(out, diff)
			fmt.Fprintf(out, "Updated %d, added %d formulas\n", replaced, added)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "File with edited records")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newFormulasDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a formula by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("formulas_delete", map[string]any{"id": args[0]})
			defer func() { done(err) }()

			store, err := c.loadStore()
			if err != nil {
				return err
			}
			if !store.RemoveByID(args[0]) {
				return fmt.Errorf("formula %q not found", args[0])
			}
			if err := c.saveStore(store); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newFormulasIngestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest RESPONSE.json",
		Short: "Replace the store with a saved extraction response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			path, err := c.ws.ResolvePath(args[0])
			if err != nil {
				return err
			}
			done := c.track("formulas_ingest", map[string]any{"path": path})
			defer func() { done(err) }()

			records, err := formulastore.CollectAll(cmd.Context(), []formulastore.Provider{
				&extraction.FileResponseProvider{Path: path, Logger: c.log},
			})
			if err != nil {
				return err
			}
			return c.replaceStore(cmd, records)
		},
	}
}

func newFormulasExtractCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "extract DOCUMENT",
		Short: "Send a document to the extraction service",
		Long: `Upload a document together with the registered variables to the
extraction service and replace the store with the returned formulas.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			path, err := c.ws.ResolvePath(args[0])
			if err != nil {
				return err
			}
			done := c.track("formulas_extract", map[string]any{"document": path})
			defer func() { done(err) }()

			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			if !reg.IsConfigured() {
				return errNotConfigured
			}

			client := extraction.NewClient(c.cfg.Extraction.BaseURL, c.cfg.Extraction.Timeout, c.cfg.Extraction.RateLimit, c.log)
			if err := client.CheckFormat(cmd.Context(), path); err != nil {
				return err
			}
			resp, err := client.Upload(cmd.Context(), path, reg.InputMap(), reg.Outputs())
			if err != nil {
				return err
			}
			records, err := formulastore.CollectAll(cmd.Context(), []formulastore.Provider{
				&extraction.ResponseProvider{Response: resp, Logger: c.log},
			})
			if err != nil {
				return err
			}
			if resp.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
			return c.replaceStore(cmd, records)
		},
	}
}

func (c *cli) replaceStore(cmd *cobra.Command, records []formulastore.Formula) error {
	store := formulastore.NewStore()
	if err := store.ReplaceAll(records); err != nil {
		return err
	}
	if err := c.saveStore(store); err != nil {
		return err
	}
	c.log.Info("formula store replaced", zap.Int("formulas", store.Len()))
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %d formulas in %s\n", store.Len(), c.ws.FormulasPath)
	return nil
}
