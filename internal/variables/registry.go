package variables

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMinDescriptionLength is the minimum trimmed length of an input description.
const DefaultMinDescriptionLength = 5

// Variable is a named, described quantity.
type Variable struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Registry holds the input and output variables of one workflow. Inputs and
// outputs are separate namespaces. A Registry is not safe for concurrent use.
type Registry struct {
	inputs         []Variable
	outputs        []string
	minDescription int
}

// Option configures a Registry.
type Option func(*Registry)

// WithMinDescriptionLength sets the minimum trimmed description length for
// inputs. Zero disables the check.
func WithMinDescriptionLength(n int) Option {
	return func(r *Registry) {
		if n < 0 {
			n = 0
		}
		r.minDescription = n
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{minDescription: DefaultMinDescriptionLength}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefault returns a registry seeded with the default insurance variables.
func NewDefault(opts ...Option) *Registry {
	r := New(opts...)
	r.inputs = append(r.inputs, DefaultInputs()...)
	r.outputs = append(r.outputs, DefaultOutputs()...)
	return r
}

// DefaultInputs are the input variables a new workspace starts with.
func DefaultInputs() []Variable {
	return []Variable{
		{Name: "ENTRY_AGE", Description: "Age of the policyholder at policy inception"},
		{Name: "PREMIUM", Description: "Premium amount (annual/monthly/quarterly)"},
		{Name: "POLICY_TERM", Description: "Total duration of the policy"},
		{Name: "SA", Description: "Sum Assured - guaranteed amount on maturity/death"},
	}
}

// DefaultOutputs are the output variables a new workspace starts with.
func DefaultOutputs() []string {
	return []string{"SURRENDER_VALUE", "MATURITY_BENEFIT", "DEATH_BENEFIT"}
}

// AddInput registers an input variable and returns its normalized name.
func (r *Registry) AddInput(name, description string) (string, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return "", &Error{Op: "add input", Name: name, Err: err}
	}
	if r.inputIndex(normalized) >= 0 {
		return "", &Error{Op: "add input", Name: normalized, Err: ErrDuplicateVariable}
	}
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) < r.minDescription {
		return "", &Error{
			Op:     "add input",
			Name:   normalized,
			Detail: "description must be at least " + strconv.Itoa(r.minDescription) + " characters",
			Err:    ErrInvalidDescription,
		}
	}
	r.inputs = append(r.inputs, Variable{Name: normalized, Description: description})
	return normalized, nil
}

// RemoveInput deletes an input variable. It reports whether anything was removed.
func (r *Registry) RemoveInput(name string) bool {
	normalized, err := NormalizeName(name)
	if err != nil {
		return false
	}
	idx := r.inputIndex(normalized)
	if idx < 0 {
		return false
	}
	r.inputs = append(r.inputs[:idx], r.inputs[idx+1:]...)
	return true
}

// AddOutput appends an output variable and returns its normalized name.
func (r *Registry) AddOutput(name string) (string, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return "", &Error{Op: "add output", Name: name, Err: err}
	}
	for _, existing := range r.outputs {
		if existing == normalized {
			return "", &Error{Op: "add output", Name: normalized, Err: ErrDuplicateVariable}
		}
	}
	r.outputs = append(r.outputs, normalized)
	return normalized, nil
}

// RemoveOutput removes the output at index and returns its name.
func (r *Registry) RemoveOutput(index int) (string, error) {
	if index < 0 || index >= len(r.outputs) {
		return "", &Error{
			Op:     "remove output",
			Detail: "index " + strconv.Itoa(index) + ", have " + strconv.Itoa(len(r.outputs)),
			Err:    ErrIndexOutOfRange,
		}
	}
	name := r.outputs[index]
	r.outputs = append(r.outputs[:index], r.outputs[index+1:]...)
	return name, nil
}

// IsConfigured reports whether at least one input and one output exist.
func (r *Registry) IsConfigured() bool {
	return len(r.inputs) > 0 && len(r.outputs) > 0
}

// Inputs returns the input variables in registration order.
func (r *Registry) Inputs() []Variable {
	return append([]Variable(nil), r.inputs...)
}

// InputMap returns the inputs as name -> description.
func (r *Registry) InputMap() map[string]string {
	out := make(map[string]string, len(r.inputs))
	for _, v := range r.inputs {
		out[v.Name] = v.Description
	}
	return out
}

// Outputs returns the output names in insertion order.
func (r *Registry) Outputs() []string {
	return append([]string(nil), r.outputs...)
}

// Names returns input names followed by output names, each in registration
// order. A name present in both namespaces appears twice.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.inputs)+len(r.outputs))
	for _, v := range r.inputs {
		names = append(names, v.Name)
	}
	return append(names, r.outputs...)
}

// Description returns the description of an input variable.
func (r *Registry) Description(name string) (string, bool) {
	idx := r.inputIndex(name)
	if idx < 0 {
		return "", false
	}
	return r.inputs[idx].Description, true
}

// HasOutput reports whether name is a registered output.
func (r *Registry) HasOutput(name string) bool {
	for _, o := range r.outputs {
		if o == name {
			return true
		}
	}
	return false
}

func (r *Registry) inputIndex(name string) int {
	for i, v := range r.inputs {
		if v.Name == name {
			return i
		}
	}
	return -1
}
