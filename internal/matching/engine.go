// Package matching scores a variable registry against the template catalog.
package matching

import (
	"strings"

	"github.com/google/uuid"

	"formulary/internal/catalog"
	"formulary/internal/formulastore"
	"formulary/internal/variables"
)

// MinMatchedVariables is the fewest matched required tokens a template needs
// to be reported.
const MinMatchedVariables = 2

// SourceMethod tags records produced by the engine.
const SourceMethod = "template_match"

// Result is one accepted template.
type Result struct {
	Template         catalog.Template `json:"template"`
	MatchedVariables []string         `json:"matched_variables"`
	Confidence       float64          `json:"confidence"`
}

// MatchedCount returns the number of required tokens that matched.
func (r Result) MatchedCount() int { return len(r.MatchedVariables) }

// Engine matches registries against a fixed catalog. It holds no mutable state.
type Engine struct {
	catalog *catalog.Catalog
	newID   func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDFunc overrides record id generation.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine returns an engine over cat, or over the default catalog when cat is nil.
func NewEngine(cat *catalog.Catalog, opts ...Option) *Engine {
	if cat == nil {
		cat = catalog.Default()
	}
	e := &Engine{
		catalog: cat,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Match returns the templates whose required tokens are matched by at least
// MinMatchedVariables registered names, in catalog order. A required token
// matches when some registered name contains it or is contained by it.
func (e *Engine) Match(reg *variables.Registry) []Result {
	names := reg.Names()
	if len(names) == 0 {
		return []Result{}
	}

	results := []Result{}
	for _, tmpl := range e.catalog.Templates() {
		var matched []string
		for _, token := range tmpl.RequiredVariables {
			if containsEither(names, token) {
				matched = append(matched, token)
			}
		}
		if len(matched) < MinMatchedVariables {
			continue
		}
		results = append(results, Result{
			Template:         tmpl,
			MatchedVariables: matched,
			Confidence:       confidence(len(matched), len(tmpl.RequiredVariables)),
		})
	}
	return results
}

func containsEither(names []string, token string) bool {
	for _, name := range names {
		if name == "" {
			continue
		}
		if strings.Contains(name, token) || strings.Contains(token, name) {
			return true
		}
	}
	return false
}

func confidence(matched, required int) float64 {
	if required == 0 {
		return 0
	}
	c := float64(matched) / float64(required)
	if c > 1 {
		return 1
	}
	return c
}

// Records converts results into editable store records. Variable
// explanations come from the registry's input descriptions when available.
func (e *Engine) Records(reg *variables.Registry, results []Result) []formulastore.Formula {
	records := make([]formulastore.Formula, 0, len(results))
	for _, r := range results {
		explained := make(map[string]string, len(r.MatchedVariables))
		for _, token := range r.MatchedVariables {
			explained[token] = explain(reg, token)
		}
		records = append(records, formulastore.Formula{
			ID:                       e.newID(),
			TermDescription:          r.Template.Context,
			MathematicalRelationship: r.Template.Expression,
			BusinessContext:          r.Template.Context,
			FormulaExplanation:       "Matched " + strings.Join(r.MatchedVariables, ", ") + " against registered variables",
			Confidence:               r.Confidence,
			ReasoningSteps: []string{
				"Required variables: " + strings.Join(r.Template.RequiredVariables, ", "),
				"Matched variables: " + strings.Join(r.MatchedVariables, ", "),
			},
			VariablesExplained: explained,
			SourceMethod:       SourceMethod,
			Editable:           true,
		})
	}
	return records
}

func explain(reg *variables.Registry, token string) string {
	if desc, ok := reg.Description(token); ok && desc != "" {
		return desc
	}
	for _, v := range reg.Inputs() {
		if strings.Contains(v.Name, token) || strings.Contains(token, v.Name) {
			if v.Description != "" {
				return v.Description
			}
			return v.Name
		}
	}
	for _, out := range reg.Outputs() {
		if strings.Contains(out, token) || strings.Contains(token, out) {
			return "Output variable " + out
		}
	}
	return token
}
