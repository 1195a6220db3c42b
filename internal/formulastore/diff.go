package formulastore

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// RenderDiff returns a unified diff between two record lists rendered as
// YAML. Identical inputs produce an empty string.
func RenderDiff(before, after []Formula) (string, error) {
	a, err := renderYAML(before)
	if err != nil {
		return "", err
	}
	b, err := renderYAML(after)
	if err != nil {
		return "", err
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "formulas (before)",
		ToFile:   "formulas (after)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff formulas: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

func renderYAML(records []Formula) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode formulas: %w", err)
	}
	return string(data), nil
}
