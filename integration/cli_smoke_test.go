package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formulary/integration/harness"
)

func TestCLISmoke(t *testing.T) {
	bin := harness.Binary(t)
	ws := harness.CopyFixture(t, "workspace-min")
	dir := t.TempDir()

	res := harness.Run(t, bin, dir, nil, "--help")
	require.Zero(t, res.ExitCode, res)
	assert.Contains(t, res.Stdout+res.Stderr, "Formula discovery and export")

	formulary := func(args ...string) string {
		t.Helper()
		res := harness.Run(t, bin, dir, nil, append(args, "--workspace", ws)...)
		require.Zero(t, res.ExitCode, "formulary %s\n%s", strings.Join(args, " "), res)
		return res.Stdout
	}

	assert.Contains(t, formulary("formulas", "ingest", "response.json"), "Stored 2 formulas")

	out := formulary("report")
	for _, want := range []string{"Total formulas:       2", "high 1, medium 1, low 0", "ai_analysis"} {
		assert.Contains(t, out, want)
	}

	out = formulary("export", "--format", "all")
	date := time.Now().UTC().Format("2006-01-02")
	for _, name := range []string{
		"enhanced_formula_analysis_" + date + ".xlsx",
		"formula_analysis_" + date + ".json",
		"formula_analysis_" + date + ".csv",
		"formula_analysis_summary_" + date + ".txt",
	} {
		_, err := os.Stat(filepath.Join(ws, "exports", name))
		assert.NoError(t, err, "%s\n%s", name, out)
	}

	out = formulary("process", "policies.csv")
	for _, want := range []string{
		"Status: warning",
		"Rows processed: 2 of 3",
		"Calculations: 4",
		"New column: maturity_benefit",
		"Row 4: Unknown COVER_CODE 'UNKNOWN'",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "New column: surrender_value")
	matches, err := filepath.Glob(filepath.Join(ws, "processed", "processed_output_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	harness.RequireAuditEvents(t, ws,
		"formulas_ingest_started", "formulas_ingest_finished",
		"report_started", "report_finished",
		"export_started", "export_finished",
		"process_started", "process_finished",
	)

	_, err = os.Stat(filepath.Join(harness.ModuleRoot(t), "state", "audit.sqlite"))
	assert.True(t, os.IsNotExist(err), "audit db leaked into the module root: %v", err)
}
