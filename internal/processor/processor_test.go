package processor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formulary/internal/formulastore"
	"formulary/internal/logger"
)

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"  Policy Term ": "policy_term",
		"Sum Assured %":  "sum_assured_percent",
		"*Premium":       "premium",
		"ＰＲＥＭＩＵＭ":        "premium",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanName(in), in)
	}
}

func TestRewrite(t *testing.T) {
	ctx := map[string]float64{"premium": 1, "policy_term": 2}
	tests := []struct {
		in, want string
	}{
		{"SURRENDER_VALUE = PREMIUM * 0.3", "premium * 0.3"},
		{"PREMIUM + UNKNOWN", "premium + 0"},
		{"MAX(PREMIUM, BONUS)", "max(premium, 0)"},
		{"POLICY_TERM ^ 2", "policy_term ** 2"},
		{"PREMIUM × 2 ÷ 4", "premium * 2 / 4"},
		{"PI * 1e3", "pi * 1e3"},
		{"premium == policy_term", "premium == policy_term"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rewrite(tt.in, ctx), tt.in)
	}
}

func TestEval(t *testing.T) {
	e := NewEvaluator()
	ctx := map[string]float64{"premium": 1000, "policy_term": 12}

	got, err := e.Eval("PREMIUM * POLICY_TERM * 0.3", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3600, got, 1e-9)

	got, err = e.Eval("max(PREMIUM, 5000, policy_term)", ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, got)

	got, err = e.Eval("round(2.5)", ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = e.Eval("round(1.234, 2)", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.23, got, 1e-9)

	got, err = e.Eval("sqrt(16) + 2^3", ctx)
	require.NoError(t, err)
	assert.InDelta(t, 12, got, 1e-9)

	_, err = e.Eval("PREMIUM / 0", ctx)
	assert.Error(t, err, "infinite result")

	_, err = e.Eval("PREMIUM > 1", ctx)
	assert.Error(t, err, "boolean result")

	_, err = e.Eval("PREMIUM +", ctx)
	assert.Error(t, err)

	_, err = e.Eval("   ", ctx)
	assert.Error(t, err)
}

const dataset = "COVER_CODE,PREMIUM,POLICY_TERM,SURRENDER_VALUE\n" +
	"A1,1000,12,\n" +
	"B2,2000,10,500\n" +
	"ZZ,1,1,\n"

func testFormulas() []formulastore.Formula {
	return []formulastore.Formula{
		{
			ID:                       "f1",
			TermDescription:          "SURRENDER_VALUE",
			MathematicalRelationship: "SURRENDER_VALUE = PREMIUM * POLICY_TERM * 0.3",
			Variants:                 map[string]string{"Single": "PREMIUM * 0.5"},
		},
		{ID: "f2", TermDescription: "Total Paid", MathematicalRelationship: "premium * policy_term"},
		{ID: "f3", TermDescription: "Broken", MathematicalRelationship: "PREMIUM +"},
		{ID: "f4", TermDescription: "Skipped", MathematicalRelationship: "  "},
	}
}

func TestProcess(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(dataset))
	require.NoError(t, err)

	p := &Processor{
		Formulas: testFormulas(),
		Variants: map[string]string{"A1": "Regular", "B2": "Single"},
		Logger:   logger.Nop(),
	}
	res, err := p.Process(table)
	require.NoError(t, err)

	assert.Equal(t, []string{"COVER_CODE", "PREMIUM", "POLICY_TERM", "SURRENDER_VALUE", "total_paid"}, res.Table.Columns)
	assert.Equal(t, [][]string{
		{"A1", "1000", "12", "3600", "12000"},
		{"B2", "2000", "10", "500", "20000"},
		{"ZZ", "1", "1", "", ""},
	}, res.Table.Rows)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.ProcessedRows)
	assert.Equal(t, 4, res.SuccessfulCalculations)
	assert.Equal(t, []string{"total_paid"}, res.NewColumns)
	assert.Equal(t, []string{
		"Row 2: Could not evaluate formula 'Broken' with expression 'PREMIUM +'",
		"Row 3: Could not evaluate formula 'Broken' with expression 'PREMIUM +'",
		"Row 4: Unknown COVER_CODE 'ZZ'",
	}, res.Errors)

	sum := res.Summary()
	assert.Equal(t, "warning", sum.Status)
	assert.Equal(t, 4, sum.FormulasApplied)

	// input table is untouched
	assert.Len(t, table.Columns, 4)
	assert.Equal(t, "", table.Rows[0][3])
}

func TestProcessFillsMatchingColumnInPlace(t *testing.T) {
	formulas := []formulastore.Formula{
		{ID: "f1", TermDescription: "Surrender Value", MathematicalRelationship: "PREMIUM * 0.3"},
	}
	tests := []struct {
		name     string
		csv      string
		wantCols []string
		wantRows [][]string
	}{
		{
			name:     "lower case header",
			csv:      "premium,surrender_value\n1000,500\n2000,0\n3000,\n4000,NaN\n",
			wantCols: []string{"premium", "surrender_value"},
			wantRows: [][]string{{"1000", "500"}, {"2000", "600"}, {"3000", "900"}, {"4000", "1200"}},
		},
		{
			name:     "upper case header",
			csv:      "PREMIUM,SURRENDER_VALUE\n1000,500\n",
			wantCols: []string{"PREMIUM", "SURRENDER_VALUE"},
			wantRows: [][]string{{"1000", "500"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV(strings.NewReader(tt.csv))
			require.NoError(t, err)

			p := &Processor{Formulas: formulas, Logger: logger.Nop()}
			res, err := p.Process(table)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCols, res.Table.Columns)
			assert.Equal(t, tt.wantRows, res.Table.Rows)
			assert.Empty(t, res.NewColumns)
			assert.Equal(t, len(tt.wantRows), res.SuccessfulCalculations)
		})
	}
}

func TestProcessLaterFormulasSeeEarlierResults(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("PREMIUM\n10\n"))
	require.NoError(t, err)

	p := &Processor{Formulas: []formulastore.Formula{
		{ID: "a", TermDescription: "Third", MathematicalRelationship: "PREMIUM / 3"},
		{ID: "b", TermDescription: "Back", MathematicalRelationship: "THIRD * 3"},
	}}
	res, err := p.Process(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "3.33", "10"}, res.Table.Rows[0])
	assert.Equal(t, "success", res.Summary().Status)
}

func TestProcessErrors(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("PREMIUM\n10\n"))
	require.NoError(t, err)

	_, err = (&Processor{}).Process(table)
	assert.ErrorIs(t, err, ErrNoFormulas)

	_, err = (&Processor{Formulas: testFormulas(), Variants: map[string]string{}}).Process(table)
	assert.ErrorIs(t, err, ErrMissingVariantCol)
}

func TestReadCSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(" A , B\n1,2,3\n4\n")...)
	table, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, table.Columns)
	assert.Equal(t, [][]string{{"1", "2"}, {"4", ""}}, table.Rows)

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingHeader)

	_, err = ReadCSV(bytes.NewReader([]byte{'A', '\n', 0xff, 0xfe}))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestReadTableUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xls")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := ReadTable(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteWorkbookRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &Table{
		Columns: []string{"COVER_CODE", "PREMIUM", "total_paid"},
		Rows:    [][]string{{"A1", "1000", "12000.5"}, {"B2", "", "x"}},
	}
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	path, err := WriteWorkbook(dir, in, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processed_output_20240309_140507.xlsx"), path)

	out, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, in.Columns, out.Columns)
	assert.Equal(t, in.Rows, out.Rows)
}
