// Package export renders a formula store and its registry into workbook,
// JSON, CSV and plain-text summary artifacts.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"formulary/internal/formulastore"
	"formulary/internal/report"
	"formulary/internal/variables"
)

var ErrSerialization = errors.New("serialization failed")

// SerializationError reports a renderer failure. It matches both
// ErrSerialization and the underlying cause.
type SerializationError struct {
	Format string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() []error { return []error{ErrSerialization, e.Err} }

// Bundle is the read-only input of every export.
type Bundle struct {
	Formulas    []formulastore.Formula
	Inputs      []variables.Variable
	Outputs     []string
	GeneratedAt time.Time
}

// InputMap returns the inputs as name -> description.
func (b Bundle) InputMap() map[string]string {
	out := make(map[string]string, len(b.Inputs))
	for _, v := range b.Inputs {
		out[v.Name] = v.Description
	}
	return out
}

// Statistics recomputes the aggregate for the bundle.
func (b Bundle) Statistics() report.Statistics {
	return report.Aggregate(b.Formulas, b.Inputs, b.Outputs)
}

// Renderer serializes a bundle in one format.
type Renderer interface {
	Format() string
	FileName(date time.Time) string
	Render(w io.Writer, b Bundle, stats report.Statistics) error
}

// Formats lists the supported format names in rendering order.
func Formats() []string {
	return []string{FormatWorkbook, FormatJSON, FormatCSV, FormatSummary}
}

// Renderers returns one renderer per supported format.
func Renderers() []Renderer {
	return []Renderer{Workbook{}, JSON{}, CSV{}, Summary{}}
}

// Lookup returns the renderer for a format name.
func Lookup(format string) (Renderer, error) {
	for _, r := range Renderers() {
		if r.Format() == format {
			return r, nil
		}
	}
	return nil, fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats(), ", "))
}

// Export recomputes statistics and renders the bundle. An empty store yields
// report.ErrEmptyStore; a renderer failure yields a *SerializationError.
func Export(r Renderer, b Bundle) ([]byte, error) {
	stats := b.Statistics()
	if err := stats.Require(); err != nil {
		return nil, err
	}
	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now()
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, b, stats); err != nil {
		var serr *SerializationError
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, &SerializationError{Format: r.Format(), Err: err}
	}
	return buf.Bytes(), nil
}

func datedName(prefix, ext string, date time.Time) string {
	return prefix + "_" + date.UTC().Format("2006-01-02") + "." + ext
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func joinVariants(variants []string, sep string) string {
	if len(variants) == 0 {
		return "All"
	}
	return strings.Join(variants, sep)
}

// joinExplained renders variables_explained in sorted key order.
func joinExplained(m map[string]string, pair func(k, v string) string, sep string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, pair(k, m[k]))
	}
	return strings.Join(parts, sep)
}

func colonPair(k, v string) string { return k + ": " + v }
