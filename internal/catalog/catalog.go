// Package catalog holds the read-only formula templates the matching engine
// scores registries against, plus the generic term lists offered as
// suggestions when building a registry.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"formulary/internal/variables"
)

var ErrInvalidTemplate = errors.New("invalid template")

//go:embed templates.yml
var defaultTemplates []byte

// Template is a candidate formula and the variable tokens it needs.
type Template struct {
	Expression        string   `json:"expression" yaml:"expression"`
	Context           string   `json:"context" yaml:"context"`
	RequiredVariables []string `json:"required_variables" yaml:"required"`
}

// Catalog is an ordered, immutable list of templates.
type Catalog struct {
	templates []Template
}

type rawCatalog struct {
	Templates []Template `yaml:"templates"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It is parsed once per process.
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Parse(defaultTemplates, "templates.yml")
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded templates: %v", err))
		}
		defaultCatalog = cat
	})
	return defaultCatalog
}

// New builds a catalog from templates after validating them.
func New(templates []Template) (*Catalog, error) {
	return build(templates, "")
}

// Parse reads a catalog from YAML of the form `templates: [{expression, context, required}]`.
func Parse(data []byte, source string) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, variables.ValidationErrors{{
			File:    source,
			Field:   "yaml",
			Message: err.Error(),
		}})
	}
	return build(raw.Templates, source)
}

// LoadFile reads a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, path)
}

func build(templates []Template, source string) (*Catalog, error) {
	var errs variables.ValidationErrors
	out := make([]Template, 0, len(templates))
	for i, t := range templates {
		field := fmt.Sprintf("templates[%d]", i)
		t.Expression = strings.TrimSpace(t.Expression)
		t.Context = strings.TrimSpace(t.Context)
		if t.Expression == "" {
			errs = append(errs, variables.ValidationError{File: source, Field: field + ".expression", Message: "required"})
		}
		if len(t.RequiredVariables) == 0 {
			errs = append(errs, variables.ValidationError{File: source, Field: field + ".required", Message: "at least one variable required"})
		}
		seen := make(map[string]struct{}, len(t.RequiredVariables))
		required := make([]string, 0, len(t.RequiredVariables))
		for j, token := range t.RequiredVariables {
			if !variables.ValidName(token) {
				errs = append(errs, variables.ValidationError{
					File:    source,
					Field:   fmt.Sprintf("%s.required[%d]", field, j),
					Message: fmt.Sprintf("token %q must match ^[A-Z][A-Z0-9_]*$", token),
				})
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			required = append(required, token)
		}
		t.RequiredVariables = required
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, errs)
	}
	return &Catalog{templates: out}, nil
}

// Templates returns a copy of the templates in catalog order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	for i, t := range c.templates {
		t.RequiredVariables = append([]string(nil), t.RequiredVariables...)
		out[i] = t
	}
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }
