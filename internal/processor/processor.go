package processor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"formulary/internal/formulastore"
)

// DefaultVariantColumn holds the product variant code of each row.
const DefaultVariantColumn = "COVER_CODE"

var (
	ErrNoFormulas        = errors.New("no formulas to apply")
	ErrMissingVariantCol = errors.New("dataset is missing the variant column")
)

// Processor applies formulas to every row of a dataset.
type Processor struct {
	Formulas []formulastore.Formula
	// VariantColumn names the column carrying the variant code. Empty means
	// DefaultVariantColumn.
	VariantColumn string
	// Variants maps a variant code to the variant name used in
	// Formula.Variants. A nil map disables variant lookup.
	Variants map[string]string
	Logger   *zap.Logger
}

// Result is the processed dataset plus its bookkeeping.
type Result struct {
	Table                  *Table
	TotalRows              int
	ProcessedRows          int
	SuccessfulCalculations int
	Errors                 []string
	NewColumns             []string
	FormulasUsed           int
}

// Summary is the JSON-facing digest of a processing run.
type Summary struct {
	Status                 string   `json:"status"`
	TotalRows              int      `json:"total_rows"`
	ProcessedRows          int      `json:"processed_rows"`
	SuccessfulCalculations int      `json:"successful_calculations"`
	FormulasApplied        int      `json:"formulas_applied"`
	NewColumns             []string `json:"new_columns"`
	Errors                 []string `json:"errors"`
}

// Summary reports "success" when no row produced an error and "warning" otherwise.
func (r *Result) Summary() Summary {
	s := Summary{
		Status:                 "success",
		TotalRows:              r.TotalRows,
		ProcessedRows:          r.ProcessedRows,
		SuccessfulCalculations: r.SuccessfulCalculations,
		FormulasApplied:        r.FormulasUsed,
		NewColumns:             append([]string{}, r.NewColumns...),
		Errors:                 append([]string{}, r.Errors...),
	}
	if len(r.Errors) > 0 {
		s.Status = "warning"
	}
	return s
}

// Process evaluates every formula against every row of in and returns a new
// table. Results are rounded to two decimals; later formulas in a row see
// the unrounded value of earlier ones. A dataset column whose cleaned name
// matches the formula is filled only where it is blank, NaN or 0; other
// values are kept. Formulas without a matching column get a new one.
func (p *Processor) Process(in *Table) (*Result, error) {
	if len(p.Formulas) == 0 {
		return nil, ErrNoFormulas
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	variantCol := p.VariantColumn
	if variantCol == "" {
		variantCol = DefaultVariantColumn
	}
	out := in.Clone()
	codeIdx := -1
	if p.Variants != nil {
		codeIdx = out.ColumnIndex(variantCol)
		if codeIdx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingVariantCol, variantCol)
		}
	}

	// cleaned column name -> original column index
	cleanedCols := make(map[string]int, len(out.Columns))
	for i, c := range out.Columns {
		if _, dup := cleanedCols[CleanName(c)]; !dup {
			cleanedCols[CleanName(c)] = i
		}
	}
	originalCount := len(out.Columns)

	res := &Result{Table: out, TotalRows: len(out.Rows), FormulasUsed: len(p.Formulas)}
	eval := NewEvaluator()
	added := make(map[string]int)

	for r := range out.Rows {
		label := r + 2
		variant := ""
		if codeIdx >= 0 {
			code := strings.TrimSpace(out.Rows[r][codeIdx])
			v, ok := p.Variants[code]
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Unknown %s '%s'", label, variantCol, code))
				continue
			}
			variant = v
		}

		context := make(map[string]float64, len(out.Columns))
		for i := 0; i < originalCount; i++ {
			context[CleanName(out.Columns[i])] = parseNumber(out.Rows[r][i])
		}

		for _, f := range p.Formulas {
			expression := strings.TrimSpace(f.ExpressionFor(variant))
			if expression == "" {
				continue
			}
			value, err := eval.Eval(expression, context)
			if err != nil {
				log.Debug("formula evaluation failed",
					zap.Int("row", label),
					zap.String("formula", f.TermDescription),
					zap.Error(err))
				res.Errors = append(res.Errors, fmt.Sprintf(
					"Row %d: Could not evaluate formula '%s' with expression '%s'",
					label, f.TermDescription, expression))
				continue
			}

			key := CleanName(f.TermDescription)
			cell := decimal.NewFromFloat(value).Round(2).String()
			switch idx, ok := cleanedCols[key]; {
			case ok && isBlankOrZero(out.Rows[r][idx]):
				out.Rows[r][idx] = cell
			case ok:
				log.Debug("existing value kept",
					zap.Int("row", label),
					zap.String("column", out.Columns[idx]))
			default:
				idx, ok := added[key]
				if !ok {
					idx = out.AddColumn(key)
					res.NewColumns = append(res.NewColumns, key)
					added[key] = idx
				}
				out.Rows[r][idx] = cell
			}
			context[key] = value
			res.SuccessfulCalculations++
		}
		res.ProcessedRows++
	}

	log.Info("dataset processed",
		zap.Int("rows", res.TotalRows),
		zap.Int("processed", res.ProcessedRows),
		zap.Int("calculations", res.SuccessfulCalculations),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func isBlankOrZero(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && (f == 0 || math.IsNaN(f))
}
