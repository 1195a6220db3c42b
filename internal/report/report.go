// Package report derives summary statistics from a formula store.
package report

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"formulary/internal/formulastore"
	"formulary/internal/variables"
)

// ErrEmptyStore is returned when a report or export is requested with no records.
var ErrEmptyStore = errors.New("no formulas to report")

// Confidence bucket bounds. High is strictly above HighThreshold, low is
// strictly below LowThreshold, and medium is the closed range between.
const (
	HighThreshold = 0.8
	LowThreshold  = 0.5
)

type Buckets struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Statistics summarises one snapshot of the store. Empty is set when there
// are no records; AverageConfidence is then 0 rather than NaN.
type Statistics struct {
	Total                int      `json:"total"`
	AverageConfidence    float64  `json:"average_confidence"`
	Empty                bool     `json:"empty"`
	SourceMethods        []string `json:"source_methods"`
	VariantSpecificCount int      `json:"variant_specific_count"`
	EditableCount        int      `json:"editable_count"`
	Buckets              Buckets  `json:"confidence_buckets"`
	InputCount           int      `json:"input_variables_count"`
	OutputCount          int      `json:"output_variables_count"`
}

// Aggregate computes statistics over records. It never fails; callers that
// must not proceed on an empty store use Require.
func Aggregate(records []formulastore.Formula, inputs []variables.Variable, outputs []string) Statistics {
	stats := Statistics{
		Total:         len(records),
		Empty:         len(records) == 0,
		SourceMethods: []string{},
		InputCount:    len(inputs),
		OutputCount:   len(outputs),
	}

	seen := make(map[string]struct{})
	var sum float64
	for _, f := range records {
		sum += f.Confidence
		if _, ok := seen[f.SourceMethod]; !ok {
			seen[f.SourceMethod] = struct{}{}
			stats.SourceMethods = append(stats.SourceMethods, f.SourceMethod)
		}
		if f.VariantSpecific {
			stats.VariantSpecificCount++
		}
		if f.Editable {
			stats.EditableCount++
		}
		switch {
		case f.Confidence > HighThreshold:
			stats.Buckets.High++
		case f.Confidence >= LowThreshold:
			stats.Buckets.Medium++
		default:
			stats.Buckets.Low++
		}
	}

	if stats.Total > 0 {
		stats.AverageConfidence = ratio(sum, float64(stats.Total))
	}
	return stats
}

// Require returns ErrEmptyStore when the statistics cover no records.
func (s Statistics) Require() error {
	if s.Empty {
		return ErrEmptyStore
	}
	return nil
}

// VariantSpecificPercent is the variant-specific share in [0, 100].
func (s Statistics) VariantSpecificPercent() float64 {
	return ratio(float64(s.VariantSpecificCount), float64(s.Total)) * 100
}

// EditablePercent is the editable share in [0, 100].
func (s Statistics) EditablePercent() float64 {
	return ratio(float64(s.EditableCount), float64(s.Total)) * 100
}

func ratio(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	r := n / d
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// FormatPercent renders a percentage with one decimal place, e.g. 61.5 as "61.5%".
func FormatPercent(percent float64) string {
	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		percent = 0
	}
	return decimal.NewFromFloat(percent).StringFixed(1) + "%"
}

// FormatConfidence renders a confidence in [0, 1] as a percentage.
func FormatConfidence(confidence float64) string {
	return FormatPercent(confidence * 100)
}
