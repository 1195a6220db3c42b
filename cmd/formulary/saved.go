package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"formulary/internal/formulastore"
	"formulary/internal/session"
	"formulary/internal/variables"
)

func (c *cli) openSessions() (*session.Store, error) {
	return session.Open(c.ws.SessionsDBPath, c.log)
}

func newSaveCmd(c *cli) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the current variables and formulas as an analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("save", map[string]any{"note": note})
			defer func() { done(err) }()

			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			store, err := c.loadStore()
			if err != nil {
				return err
			}
			sessions, err := c.openSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			records := store.All()
			id, err := sessions.Save(cmd.Context(), session.SavedAnalysis{
				Note:             note,
				Formulas:         records,
				InputVariables:   reg.InputMap(),
				OutputVariables:  reg.Outputs(),
				VariantsDetected: detectedVariants(records),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved analysis %s (%d formulas)\n", id, len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Free-text note stored with the analysis")
	return cmd
}

func newSavedCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Browse saved analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSavedListCmd(c), newSavedLoadCmd(c), newSavedDeleteCmd(c))
	return cmd
}

func newSavedListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("saved_list", nil)
			defer func() { done(err) }()

			sessions, err := c.openSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			summaries, err := sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No saved analyses.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tFORMULAS\tNOTE")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.CreatedAt.Local().Format(time.DateTime), s.FormulaCount, s.Note)
			}
			return tw.Flush()
		},
	}
}

func newSavedLoadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load ID",
		Short: "Restore variables and formulas from a saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("saved_load", map[string]any{"id": args[0]})
			defer func() { done(err) }()

			sessions, err := c.openSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			a, err := sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reg, err := registryFromSaved(a, c.registryOptions())
			if err != nil {
				return err
			}
			store := formulastore.NewStore()
			if err := store.ReplaceAll(a.Formulas); err != nil {
				return err
			}
			if err := c.saveRegistry(reg); err != nil {
				return err
			}
			if err := c.saveStore(store); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded analysis %s: %d inputs, %d outputs, %d formulas\n",
				a.ID, len(reg.Inputs()), len(reg.Outputs()), store.Len())
			return nil
		},
	}
}

// registryFromSaved rebuilds a registry. Saved inputs carry no order, so
// they are added by name.
func registryFromSaved(a *session.SavedAnalysis, opts []variables.Option) (*variables.Registry, error) {
	reg := variables.New(opts...)
	names := make([]string, 0, len(a.InputVariables))
	for name := range a.InputVariables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := reg.AddInput(name, a.InputVariables[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range a.OutputVariables {
		if _, err := reg.AddOutput(name); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newSavedDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("saved_delete", map[string]any{"id": args[0]})
			defer func() { done(err) }()

			sessions, err := c.openSessions()
			if err != nil {
				return err
			}
			defer sessions.Close()

			removed, err := sessions.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: %s", session.ErrNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted analysis %s\n", args[0])
			return nil
		},
	}
}
