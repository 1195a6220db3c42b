package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"formulary/internal/report"
)

const FormatWorkbook = "xlsx"

// Sheet names and the formula sheet layout.
const (
	SheetFormulas = "Formula Analysis"
	SheetInputs   = "Input Variables"
	SheetOutputs  = "Output Variables"
)

var formulaColumns = []struct {
	Header string
	Width  float64
}{
	{"Formula ID", 15},
	{"Term Description", 25},
	{"Mathematical Relationship", 40},
	{"Business Context", 35},
	{"Formula Explanation", 50},
	{"Confidence Score", 15},
	{"Variables", 60},
	{"Source Method", 20},
	{"Variant Specific", 15},
	{"Applicable Variants", 25},
	{"Editable", 10},
}

// Workbook renders a three-sheet XLSX file.
type Workbook struct{}

func (Workbook) Format() string { return FormatWorkbook }

func (Workbook) FileName(date time.Time) string {
	return datedName("enhanced_formula_analysis", "xlsx", date)
}

func (Workbook) Render(w io.Writer, b Bundle, _ report.Statistics) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetFormulas); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, 0, len(formulaColumns))
	for i, col := range formulaColumns {
		header = append(header, col.Header)
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetFormulas, name, name, col.Width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	rows := [][]interface{}{header}
	for _, formula := range b.Formulas {
		rows = append(rows, []interface{}{
			formula.ID,
			formula.TermDescription,
			formula.MathematicalRelationship,
			formula.BusinessContext,
			formula.FormulaExplanation,
			report.FormatConfidence(formula.Confidence),
			joinExplained(formula.VariablesExplained, colonPair, " | "),
			formula.SourceMethod,
			yesNo(formula.VariantSpecific),
			joinVariants(formula.ApplicableVariants, ", "),
			yesNo(formula.Editable),
		})
	}
	if err := writeRows(f, SheetFormulas, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetInputs); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	inputs := [][]interface{}{{"Variable Name", "Description"}}
	for _, v := range b.Inputs {
		inputs = append(inputs, []interface{}{v.Name, v.Description})
	}
	if err := writeRows(f, SheetInputs, inputs); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetOutputs); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	outputs := [][]interface{}{{"Variable Name"}}
	for _, name := range b.Outputs {
		outputs = append(outputs, []interface{}{name})
	}
	if err := writeRows(f, SheetOutputs, outputs); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
