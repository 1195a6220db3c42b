package variables

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"formulary/internal/fileutil"
)

type rawRegistry struct {
	Inputs  []rawVariable `yaml:"inputs"`
	Outputs []string      `yaml:"outputs"`
}

type rawVariable struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Parse builds a registry from YAML. Every entry goes through the same add
// paths as interactive edits; all failures are reported together.
func Parse(data []byte, source string, opts ...Option) (*Registry, error) {
	var raw rawRegistry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{
			File:    source,
			Field:   "yaml",
			Message: err.Error(),
		}}
	}

	reg := New(opts...)
	var errs ValidationErrors
	for i, in := range raw.Inputs {
		if _, err := reg.AddInput(in.Name, in.Description); err != nil {
			errs = append(errs, ValidationError{
				File:    source,
				Field:   fmt.Sprintf("inputs[%d]", i),
				Message: err.Error(),
			})
		}
	}
	for i, out := range raw.Outputs {
		if _, err := reg.AddOutput(out); err != nil {
			errs = append(errs, ValidationError{
				File:    source,
				Field:   fmt.Sprintf("outputs[%d]", i),
				Message: err.Error(),
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return reg, nil
}

// Load reads a registry file. A missing file returns an error satisfying os.IsNotExist.
func Load(path string, opts ...Option) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path, opts...)
}

// Marshal renders the registry as YAML.
func (r *Registry) Marshal() ([]byte, error) {
	raw := rawRegistry{
		Inputs:  make([]rawVariable, 0, len(r.inputs)),
		Outputs: append([]string{}, r.outputs...),
	}
	for _, v := range r.inputs {
		raw.Inputs = append(raw.Inputs, rawVariable{Name: v.Name, Description: v.Description})
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}
	return data, nil
}

// Save writes the registry to path atomically.
func (r *Registry) Save(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write variables: %w", err)
	}
	return nil
}
