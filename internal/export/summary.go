package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"formulary/internal/report"
)

const FormatSummary = "summary"

// Summary renders the fixed-section plain-text report.
type Summary struct{}

func (Summary) Format() string { return FormatSummary }

func (Summary) FileName(date time.Time) string {
	return datedName("formula_analysis_summary", "txt", date)
}

func (Summary) Render(w io.Writer, b Bundle, stats report.Statistics) error {
	var sb strings.Builder

	fmt.Fprintln(&sb, "FORMULA ANALYSIS SUMMARY REPORT")
	fmt.Fprintf(&sb, "Generated: %s\n", b.GeneratedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))

	section(&sb, "OVERVIEW", "========")
	fmt.Fprintf(&sb, "Total Formulas Analyzed: %d\n", stats.Total)
	fmt.Fprintf(&sb, "Input Variables: %d\n", stats.InputCount)
	fmt.Fprintf(&sb, "Output Variables: %d\n", stats.OutputCount)
	fmt.Fprintf(&sb, "Average Confidence Score: %s\n", report.FormatConfidence(stats.AverageConfidence))

	section(&sb, "FORMULA BREAKDOWN", "================")
	fmt.Fprintf(&sb, "Variant-Specific Formulas: %d (%s)\n", stats.VariantSpecificCount, report.FormatPercent(stats.VariantSpecificPercent()))
	fmt.Fprintf(&sb, "Editable Formulas: %d (%s)\n", stats.EditableCount, report.FormatPercent(stats.EditablePercent()))

	section(&sb, "SOURCE METHODS", "==============")
	for _, method := range stats.SourceMethods {
		fmt.Fprintf(&sb, "- %s\n", method)
	}

	section(&sb, "CONFIDENCE DISTRIBUTION", "======================")
	fmt.Fprintf(&sb, "High Confidence (>80%%): %d\n", stats.Buckets.High)
	fmt.Fprintf(&sb, "Medium Confidence (50-80%%): %d\n", stats.Buckets.Medium)
	fmt.Fprintf(&sb, "Low Confidence (<50%%): %d\n", stats.Buckets.Low)

	section(&sb, "INPUT VARIABLES", "===============")
	for _, v := range b.Inputs {
		fmt.Fprintf(&sb, "%s: %s\n", v.Name, v.Description)
	}

	section(&sb, "OUTPUT VARIABLES", "================")
	for _, name := range b.Outputs {
		fmt.Fprintf(&sb, "- %s\n", name)
	}

	section(&sb, "DETAILED FORMULAS", "=================")
	for i, f := range b.Formulas {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, f.TermDescription)
		fmt.Fprintf(&sb, "   ID: %s\n", f.ID)
		fmt.Fprintf(&sb, "   Mathematical Relationship: %s\n", f.MathematicalRelationship)
		fmt.Fprintf(&sb, "   Business Context: %s\n", f.BusinessContext)
		fmt.Fprintf(&sb, "   Confidence: %s\n", report.FormatConfidence(f.Confidence))
		fmt.Fprintf(&sb, "   Source Method: %s\n", f.SourceMethod)
		fmt.Fprintf(&sb, "   Variant Specific: %s\n", yesNo(f.VariantSpecific))
		fmt.Fprintf(&sb, "   Applicable Variants: %s\n", joinVariants(f.ApplicableVariants, ", "))
		fmt.Fprintf(&sb, "   Variables: %s\n", joinExplained(f.VariablesExplained, func(k, v string) string {
			return k + " (" + v + ")"
		}, ", "))
	}

	_, err := io.WriteString(w, strings.TrimSpace(sb.String())+"\n")
	return err
}

func section(sb *strings.Builder, title, rule string) {
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(rule)
	sb.WriteString("\n")
}
