package export

import (
	"encoding/csv"
	"io"
	"time"

	"formulary/internal/report"
)

const FormatCSV = "csv"

var csvHeader = []string{
	"id",
	"term_description",
	"mathematical_relationship",
	"business_context",
	"formula_explanation",
	"confidence",
	"variables_explained",
	"source_method",
	"variant_specific",
	"applicable_variants",
	"editable",
}

// CSV renders one row per record. List values are joined with ";".
type CSV struct{}

func (CSV) Format() string { return FormatCSV }

func (CSV) FileName(date time.Time) string {
	return datedName("formula_analysis", "csv", date)
}

func (CSV) Render(w io.Writer, b Bundle, _ report.Statistics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range b.Formulas {
		row := []string{
			f.ID,
			f.TermDescription,
			f.MathematicalRelationship,
			f.BusinessContext,
			f.FormulaExplanation,
			report.FormatConfidence(f.Confidence),
			joinExplained(f.VariablesExplained, colonPair, "; "),
			f.SourceMethod,
			yesNo(f.VariantSpecific),
			joinVariants(f.ApplicableVariants, ";"),
			yesNo(f.Editable),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
