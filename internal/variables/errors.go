package variables

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateVariable  = errors.New("duplicate variable")
	ErrInvalidName        = errors.New("invalid variable name")
	ErrInvalidDescription = errors.New("invalid variable description")
	ErrIndexOutOfRange    = errors.New("index out of range")
)

// Error describes a failed registry mutation. Err is one of the sentinel errors
// above, so callers can match with errors.Is.
type Error struct {
	Op     string
	Name   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError captures a single problem found while loading a registry file.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}
