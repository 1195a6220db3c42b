package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"formulary/internal/formulastore"
	"formulary/internal/report"
	"formulary/internal/variables"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var generatedAt = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func bundle() Bundle {
	return Bundle{
		Formulas: []formulastore.Formula{
			{
				ID:                       "f-1",
				TermDescription:          "Surrender Value",
				MathematicalRelationship: "SURRENDER_VALUE = PREMIUM × POLICY_TERM × 0.3",
				BusinessContext:          "Early exit payout",
				FormulaExplanation:       "Thirty percent of premiums paid",
				Confidence:               0.9,
				ReasoningSteps:           []string{"read clause 4"},
				VariablesExplained:       map[string]string{"PREMIUM": "annual premium", "POLICY_TERM": "years"},
				SourceMethod:             "llm",
				VariantSpecific:          true,
				ApplicableVariants:       []string{"Variant 1", "Variant 2"},
				Editable:                 true,
			},
			{
				ID:                       "f-2",
				TermDescription:          "Maturity Benefit",
				MathematicalRelationship: "MATURITY_BENEFIT = SA",
				BusinessContext:          "Paid at term end",
				FormulaExplanation:       "Sum assured",
				Confidence:               0.6,
				ReasoningSteps:           []string{},
				VariablesExplained:       map[string]string{"SA": "sum assured"},
				SourceMethod:             "template_match",
			},
			{
				ID:                       "f-3",
				TermDescription:          "Death Benefit",
				MathematicalRelationship: "DEATH_BENEFIT = max(SA, 10 × PREMIUM)",
				Confidence:               0.3,
				ReasoningSteps:           []string{},
				VariablesExplained:       map[string]string{},
				SourceMethod:             "llm",
			},
		},
		Inputs:      variables.DefaultInputs(),
		Outputs:     variables.DefaultOutputs(),
		GeneratedAt: generatedAt,
	}
}

func TestLookup(t *testing.T) {
	for _, format := range Formats() {
		r, err := Lookup(format)
		require.NoError(t, err)
		assert.Equal(t, format, r.Format())
	}
	_, err := Lookup("pdf")
	assert.Error(t, err)
}

func TestFileNames(t *testing.T) {
	names := map[string]string{}
	for _, r := range Renderers() {
		names[r.Format()] = r.FileName(generatedAt)
	}
	assert.Equal(t, map[string]string{
		FormatWorkbook: "enhanced_formula_analysis_2024-06-01.xlsx",
		FormatJSON:     "formula_analysis_2024-06-01.json",
		FormatCSV:      "formula_analysis_2024-06-01.csv",
		FormatSummary:  "formula_analysis_summary_2024-06-01.txt",
	}, names)
}

func TestJSONRoundTrip(t *testing.T) {
	b := bundle()
	data, err := Export(JSON{}, b)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	if diff := cmp.Diff(b.Formulas, doc.Formulas); diff != "" {
		t.Fatalf("formulas mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(b.InputMap(), doc.InputVariables); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(b.Outputs, doc.OutputVariables); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Metadata{
		ExportDate:           "2024-06-01T09:30:00.000Z",
		TotalFormulas:        3,
		InputVariablesCount:  4,
		OutputVariablesCount: 3,
	}, doc.Metadata)
}

func TestCSV(t *testing.T) {
	data, err := Export(CSV{}, bundle())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"f-1",
		"Surrender Value",
		"SURRENDER_VALUE = PREMIUM × POLICY_TERM × 0.3",
		"Early exit payout",
		"Thirty percent of premiums paid",
		"90.0%",
		"POLICY_TERM: years; PREMIUM: annual premium",
		"llm",
		"Yes",
		"Variant 1;Variant 2",
		"Yes",
	}, rows[1])
	assert.Equal(t, "All", rows[2][9])
	assert.Equal(t, "No", rows[2][10])
	assert.Equal(t, "", rows[3][6])
}

func TestWorkbook(t *testing.T) {
	data, err := Export(Workbook{}, bundle())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetFormulas, SheetInputs, SheetOutputs}, f.GetSheetList())

	rows, err := f.GetRows(SheetFormulas)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Formula ID", rows[0][0])
	assert.Equal(t, "Editable", rows[0][10])
	assert.Equal(t, "POLICY_TERM: years | PREMIUM: annual premium", rows[1][6])
	assert.Equal(t, "Variant 1, Variant 2", rows[1][9])
	assert.Equal(t, "60.0%", rows[2][5])

	wantWidths := []float64{15, 25, 40, 35, 50, 15, 60, 20, 15, 25, 10}
	for i, want := range wantWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		got, err := f.GetColWidth(SheetFormulas, col)
		require.NoError(t, err)
		assert.Equal(t, want, got, "column %s", col)
	}

	inputs, err := f.GetRows(SheetInputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Variable Name", "Description"}, inputs[0])
	assert.Equal(t, "ENTRY_AGE", inputs[1][0])

	outputs, err := f.GetRows(SheetOutputs)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Variable Name"}, {"SURRENDER_VALUE"}, {"MATURITY_BENEFIT"}, {"DEATH_BENEFIT"}}, outputs)
}

func TestSummary(t *testing.T) {
	data, err := Export(Summary{}, bundle())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "FORMULA ANALYSIS SUMMARY REPORT\nGenerated: 2024-06-01T09:30:00.000Z\n"))
	for _, want := range []string{
		"Total Formulas Analyzed: 3\n",
		"Average Confidence Score: 60.0%\n",
		"Variant-Specific Formulas: 1 (33.3%)\n",
		"Editable Formulas: 1 (33.3%)\n",
		"SOURCE METHODS\n==============\n- llm\n- template_match\n",
		"High Confidence (>80%): 1\nMedium Confidence (50-80%): 1\nLow Confidence (<50%): 1\n",
		"ENTRY_AGE: Age of the policyholder at policy inception\n",
		"OUTPUT VARIABLES\n================\n- SURRENDER_VALUE\n",
		"\n1. Surrender Value\n   ID: f-1\n",
		"   Variables: POLICY_TERM (years), PREMIUM (annual premium)\n",
		"   Applicable Variants: All\n",
		"\n\n\n2. Maturity Benefit\n",
	} {
		assert.Contains(t, text, want)
	}
	assert.True(t, strings.HasSuffix(text, "   Variables: \n") || strings.HasSuffix(text, "   Variables:\n"))
}

func TestEmptyStoreIsDistinct(t *testing.T) {
	b := bundle()
	b.Formulas = nil
	for _, r := range Renderers() {
		_, err := Export(r, b)
		assert.ErrorIs(t, err, report.ErrEmptyStore, r.Format())
		assert.False(t, errors.Is(err, ErrSerialization))
	}

	dir := t.TempDir()
	w := &Writer{Dir: dir}
	_, err := w.WriteAll(context.Background(), b)
	assert.ErrorIs(t, err, report.ErrEmptyStore)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingRenderer struct{}

func (failingRenderer) Format() string            { return "broken" }
func (failingRenderer) FileName(time.Time) string { return "broken.out" }
func (failingRenderer) Render(io.Writer, Bundle, report.Statistics) error {
	return errors.New("encoder exploded")
}

func TestSerializationFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	b := bundle()
	before := b.Formulas[0].Clone()

	_, err := (&Writer{Dir: dir}).WriteFile(failingRenderer{}, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerialization)
	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "broken", serr.Format)

	_, statErr := os.Stat(filepath.Join(dir, "broken.out"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, before, b.Formulas[0])
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	paths, err := (&Writer{Dir: dir}).WriteAll(context.Background(), bundle())
	require.NoError(t, err)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join(dir, "enhanced_formula_analysis_2024-06-01.xlsx"), paths[0])
	assert.Equal(t, filepath.Join(dir, "formula_analysis_summary_2024-06-01.txt"), paths[3])
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestExportRecomputesEachCall(t *testing.T) {
	b := bundle()
	first, err := Export(Summary{}, b)
	require.NoError(t, err)
	b.Formulas = b.Formulas[:1]
	second, err := Export(Summary{}, b)
	require.NoError(t, err)
	assert.Contains(t, string(first), "Total Formulas Analyzed: 3")
	assert.Contains(t, string(second), "Total Formulas Analyzed: 1")
}
