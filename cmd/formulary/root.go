package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"formulary/internal/audit"
	"formulary/internal/catalog"
	"formulary/internal/config"
	"formulary/internal/formulastore"
	"formulary/internal/logger"
	"formulary/internal/variables"
	"formulary/internal/workspace"
)

var errNotConfigured = errors.New("registry needs at least one input and one output variable")

// cli carries the state shared by every command of one invocation.
type cli struct {
	workspacePath string
	logLevel      string

	ws    *workspace.Workspace
	cfg   *config.Config
	log   *zap.Logger
	audit *audit.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   appName,
		Short: "Formula discovery and export for insurance product variables",
		Long: `formulary keeps a registry of input and output variables, matches it
against a catalog of formula templates or ingests records from the extraction
service, and exports the resulting formulas as a workbook, JSON, CSV or a
plain-text report.

Examples:
  formulary init --workspace ./ws
  formulary vars add-input PRINCIPAL "Principal amount"
  formulary match --apply
  formulary export --format all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.workspacePath, "workspace", ".", "Path to workspace root")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(c),
		newVarsCmd(c),
		newMatchCmd(c),
		newFormulasCmd(c),
		newReportCmd(c),
		newExportCmd(c),
		newSaveCmd(c),
		newSavedCmd(c),
		newProcessCmd(c),
	)
	return root
}

// setup resolves the workspace and loads config, logger and audit log.
func (c *cli) setup() error {
	ws, err := workspace.Resolve(c.workspacePath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(ws.Root)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.ws = ws
	c.cfg = cfg
	c.log = logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}).Named(appName)

	auditPath := ws.AuditDBPath
	if os.Getenv(audit.EnvDBPath) != "" {
		auditPath = ""
	}
	c.audit = audit.NewLogger(auditPath)
	return nil
}

// track records <name>_started and returns the function that records
// <name>_finished. Audit failures are reported and otherwise ignored.
func (c *cli) track(name string, payload map[string]any) func(error) {
	start := map[string]any{"workspace": c.ws.Root}
	for k, v := range payload {
		start[k] = v
	}
	if err := c.audit.LogEvent("cli", name+"_started", start); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}
	return func(runErr error) {
		finish := map[string]any{"workspace": c.ws.Root}
		for k, v := range payload {
			finish[k] = v
		}
		if runErr != nil {
			finish["error"] = runErr.Error()
		}
		if err := c.audit.LogEvent("cli", name+"_finished", finish); err != nil {
			fmt.Fprintln(os.Stderr, "audit log failed:", err)
		}
	}
}

func (c *cli) registryOptions() []variables.Option {
	return []variables.Option{variables.WithMinDescriptionLength(c.cfg.Registry.MinDescriptionLength)}
}

// loadRegistry reads variables.yml. A missing file yields the starting
// registry, seeded when registry.seed_defaults is set.
func (c *cli) loadRegistry() (*variables.Registry, error) {
	reg, err := variables.Load(c.ws.VariablesPath, c.registryOptions()...)
	if err == nil {
		return reg, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("load variables: %w", err)
	}
	if c.cfg.Registry.SeedDefaults {
		return variables.NewDefault(c.registryOptions()...), nil
	}
	return variables.New(c.registryOptions()...), nil
}

func (c *cli) saveRegistry(reg *variables.Registry) error {
	return reg.Save(c.ws.VariablesPath)
}

func (c *cli) loadStore() (*formulastore.Store, error) {
	return formulastore.LoadFile(c.ws.FormulasPath)
}

func (c *cli) saveStore(store *formulastore.Store) error {
	return formulastore.SaveFile(c.ws.FormulasPath, store)
}

// loadCatalog prefers the workspace catalog.yml over the built-in templates.
func (c *cli) loadCatalog() (*catalog.Catalog, error) {
	if !c.ws.HasCatalog() {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(c.ws.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	c.log.Debug("using workspace catalog", zap.String("path", c.ws.CatalogPath), zap.Int("templates", cat.Len()))
	return cat, nil
}

// resolveDir returns override, then configured, then fallback, resolved
// against the workspace root.
func (c *cli) resolveDir(override, configured, fallback string) (string, error) {
	for _, dir := range []string{override, configured} {
		if dir != "" {
			return c.ws.ResolvePath(dir)
		}
	}
	return fallback, nil
}

// detectedVariants is the sorted union of ApplicableVariants over records.
func detectedVariants(records []formulastore.Formula) []string {
	seen := make(map[string]struct{})
	for _, f := range records {
		for _, v := range f.ApplicableVariants {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
