package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"formulary/internal/catalog"
	"formulary/internal/extraction"
	"formulary/internal/variables"
)

func newVarsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Manage input and output variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newVarsListCmd(c),
		newVarsAddInputCmd(c),
		newVarsRemoveInputCmd(c),
		newVarsAddOutputCmd(c),
		newVarsRemoveOutputCmd(c),
		newVarsTermsCmd(c),
		newVarsAddTermCmd(c),
	)
	return cmd
}

// mutateRegistry loads the registry, applies fn and saves it when fn succeeds.
func (c *cli) mutateRegistry(name string, payload map[string]any, fn func(*variables.Registry) error) (err error) {
	if err := c.setup(); err != nil {
		return err
	}
	done := c.track(name, payload)
	defer func() { done(err) }()

	reg, err := c.loadRegistry()
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return c.saveRegistry(reg)
}

func newVarsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("vars_list", nil)
			defer func() { done(err) }()

			reg, err := c.loadRegistry()
			if err != nil {
				return err
			}
			printRegistry(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func printRegistry(w io.Writer, reg *variables.Registry) {
	inputs := reg.Inputs()
	fmt.Fprintf(w, "Input variables (%d):\n", len(inputs))
	for _, v := range inputs {
		fmt.Fprintf(w, "  %-24s %s\n", v.Name, v.Description)
	}
	outputs := reg.Outputs()
	fmt.Fprintf(w, "Output variables (%d):\n", len(outputs))
	for i, name := range outputs {
		fmt.Fprintf(w, "  [%d] %s\n", i, name)
	}
	if !reg.IsConfigured() {
		fmt.Fprintln(w, "Registry is not configured: add at least one input and one output.")
	}
}

func newVarsAddInputCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add-input NAME DESCRIPTION...",
		Short: "Register an input variable",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := strings.Join(args[1:], " ")
			return c.mutateRegistry("vars_add_input", map[string]any{"name": args[0]}, func(reg *variables.Registry) error {
				name, err := reg.AddInput(args[0], desc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added input %s\n", name)
				return nil
			})
		},
	}
}

func newVarsRemoveInputCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-input NAME",
		Short: "Remove an input variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutateRegistry("vars_remove_input", map[string]any{"name": args[0]}, func(reg *variables.Registry) error {
				if !reg.RemoveInput(args[0]) {
					return fmt.Errorf("input %q is not registered", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed input %s\n", args[0])
				return nil
			})
		},
	}
}

func newVarsAddOutputCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add-output NAME",
		Short: "Register an output variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutateRegistry("vars_add_output", map[string]any{"name": args[0]}, func(reg *variables.Registry) error {
				name, err := reg.AddOutput(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added output %s\n", name)
				return nil
			})
		},
	}
}

func newVarsRemoveOutputCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-output INDEX",
		Short: "Remove the output at INDEX (see vars list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse index %q: %w", args[0], err)
			}
			return c.mutateRegistry("vars_remove_output", map[string]any{"index": index}, func(reg *variables.Registry) error {
				name, err := reg.RemoveOutput(index)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed output %s\n", name)
				return nil
			})
		},
	}
}

func newVarsTermsCmd(c *cli) *cobra.Command {
	var (
		group  string
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Show suggested generic terms",
		Long: `Show suggested variable names with descriptions. Without --group the
insurance and financial groups are merged. --remote asks the extraction
service instead of the built-in lists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("vars_terms", map[string]any{"group": group, "remote": remote})
			defer func() { done(err) }()

			out := cmd.OutOrStdout()
			if remote {
				client := extraction.NewClient(c.cfg.Extraction.BaseURL, c.cfg.Extraction.Timeout, c.cfg.Extraction.RateLimit, c.log)
				terms, err := client.GenericTerms(cmd.Context())
				if err != nil {
					return err
				}
				printTermMap(out, terms)
				return nil
			}
			if group == "" {
				printTermMap(out, catalog.AllTerms())
				return nil
			}
			terms, ok := catalog.Terms(group)
			if !ok {
				return fmt.Errorf("unknown term group %q (want one of %s)", group, strings.Join(catalog.Groups(), ", "))
			}
			for _, v := range terms {
				fmt.Fprintf(out, "  %-24s %s\n", v.Name, v.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Term group (basic, financial, insurance)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch terms from the extraction service")
	return cmd
}

func printTermMap(w io.Writer, terms map[string]string) {
	names := make([]string, 0, len(terms))
	for name := range terms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-24s %s\n", name, terms[name])
	}
}

func newVarsAddTermCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "add-term NAME",
		Short: "Register a generic term as an input variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.mutateRegistry("vars_add_term", map[string]any{"name": args[0]}, func(reg *variables.Registry) error {
				desc, ok := lookupTerm(args[0])
				if !ok {
					return fmt.Errorf("unknown generic term %q", args[0])
				}
				name, err := reg.AddInput(args[0], desc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added input %s\n", name)
				return nil
			})
		},
	}
}

func lookupTerm(raw string) (string, bool) {
	name, err := variables.NormalizeName(raw)
	if err != nil {
		return "", false
	}
	if desc, ok := catalog.AllTerms()[name]; ok {
		return desc, true
	}
	terms, _ := catalog.Terms(catalog.GroupBasic)
	for _, v := range terms {
		if v.Name == name {
			return v.Description, true
		}
	}
	return "", false
}
