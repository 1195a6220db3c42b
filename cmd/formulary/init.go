package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"formulary/internal/config"
	"formulary/internal/fileutil"
	"formulary/internal/formulastore"
	"formulary/internal/variables"
	"formulary/internal/workspace"
)

func newInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new workspace",
		Long: `Create the workspace directories and write formulary.toml, variables.yml
and an empty formulas.json. Existing files are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			root, err := workspace.ResolveRoot(c.workspacePath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(root, 0o755); err != nil {
				return fmt.Errorf("create workspace root: %w", err)
			}
			c.workspacePath = root
			if err := c.setup(); err != nil {
				return err
			}
			done := c.track("workspace_init", nil)
			defer func() { done(err) }()

			if err := c.ws.EnsureDirs(); err != nil {
				return err
			}
			if _, err := fileutil.WriteIfMissing(c.ws.ConfigPath, []byte(config.DefaultFile)); err != nil {
				return err
			}

			reg := variables.New(c.registryOptions()...)
			if c.cfg.Registry.SeedDefaults {
				reg = variables.NewDefault(c.registryOptions()...)
			}
			data, err := reg.Marshal()
			if err != nil {
				return err
			}
			if _, err := fileutil.WriteIfMissing(c.ws.VariablesPath, data); err != nil {
				return err
			}
			if _, err := os.Stat(c.ws.FormulasPath); os.IsNotExist(err) {
				if err := formulastore.SaveFile(c.ws.FormulasPath, formulastore.NewStore()); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized workspace: %s\n", c.ws.Root)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  %s vars list --workspace %s\n", appName, c.ws.Root)
			fmt.Fprintf(out, "  %s match --apply --workspace %s\n", appName, c.ws.Root)
			fmt.Fprintf(out, "  %s export --format all --workspace %s\n", appName, c.ws.Root)
			return nil
		},
	}
}
