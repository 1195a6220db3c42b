// Package formulastore holds the editable collection of formula records
// produced by template matching or ingested from the extraction service.
package formulastore

// Formula is one extracted or matched formula record. Field names follow the
// extraction service's wire format.
type Formula struct {
	ID                       string            `json:"id" yaml:"id" validate:"required"`
	TermDescription          string            `json:"term_description" yaml:"term_description"`
	MathematicalRelationship string            `json:"mathematical_relationship" yaml:"mathematical_relationship"`
	BusinessContext          string            `json:"business_context" yaml:"business_context"`
	FormulaExplanation       string            `json:"formula_explanation" yaml:"formula_explanation"`
	Confidence               float64           `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	ReasoningSteps           []string          `json:"reasoning_steps" yaml:"reasoning_steps"`
	VariablesExplained       map[string]string `json:"variables_explained" yaml:"variables_explained"`
	SourceMethod             string            `json:"source_method" yaml:"source_method"`
	VariantSpecific          bool              `json:"variant_specific,omitempty" yaml:"variant_specific,omitempty"`
	ApplicableVariants       []string          `json:"applicable_variants,omitempty" yaml:"applicable_variants,omitempty" validate:"omitempty,dive,required"`
	Editable                 bool              `json:"editable,omitempty" yaml:"editable,omitempty"`
	Variants                 map[string]string `json:"variants,omitempty" yaml:"variants,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// Clone returns a deep copy of f.
func (f Formula) Clone() Formula {
	out := f
	if f.ReasoningSteps != nil {
		out.ReasoningSteps = append([]string{}, f.ReasoningSteps...)
	}
	if f.ApplicableVariants != nil {
		out.ApplicableVariants = append([]string{}, f.ApplicableVariants...)
	}
	out.VariablesExplained = cloneMap(f.VariablesExplained)
	out.Variants = cloneMap(f.Variants)
	return out
}

// ExpressionFor returns the variant-specific expression when one exists,
// and the base relationship otherwise.
func (f Formula) ExpressionFor(variant string) string {
	if expr, ok := f.Variants[variant]; ok && expr != "" {
		return expr
	}
	return f.MathematicalRelationship
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
