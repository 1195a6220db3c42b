package export

import (
	"encoding/json"
	"io"
	"time"

	"formulary/internal/formulastore"
	"formulary/internal/report"
)

const FormatJSON = "json"

// Document is the JSON export layout.
type Document struct {
	Metadata        Metadata               `json:"metadata"`
	Formulas        []formulastore.Formula `json:"formulas"`
	InputVariables  map[string]string      `json:"input_variables"`
	OutputVariables []string               `json:"output_variables"`
}

type Metadata struct {
	ExportDate           string `json:"export_date"`
	TotalFormulas        int    `json:"total_formulas"`
	InputVariablesCount  int    `json:"input_variables_count"`
	OutputVariablesCount int    `json:"output_variables_count"`
}

// JSON renders the bundle as an indented document.
type JSON struct{}

func (JSON) Format() string { return FormatJSON }

func (JSON) FileName(date time.Time) string {
	return datedName("formula_analysis", "json", date)
}

func (JSON) Render(w io.Writer, b Bundle, stats report.Statistics) error {
	outputs := b.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	doc := Document{
		Metadata: Metadata{
			ExportDate:           b.GeneratedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			TotalFormulas:        stats.Total,
			InputVariablesCount:  stats.InputCount,
			OutputVariablesCount: stats.OutputCount,
		},
		Formulas:        b.Formulas,
		InputVariables:  b.InputMap(),
		OutputVariables: outputs,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
