package formulastore

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	ErrDuplicateID   = errors.New("duplicate formula id")
	ErrInvalidRecord = errors.New("invalid formula record")
)

// RecordError reports the fields of one record that failed validation.
type RecordError struct {
	Index  int
	ID     string
	Fields []FieldError
}

// FieldError is a single failed constraint.
type FieldError struct {
	Field   string
	Message string
}

func (e *RecordError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	label := "record"
	switch {
	case e.ID != "":
		label = fmt.Sprintf("record %q", e.ID)
	case e.Index >= 0:
		label = fmt.Sprintf("record %d", e.Index)
	}
	return fmt.Sprintf("%s: %s", label, strings.Join(parts, "; "))
}

func (e *RecordError) Unwrap() error { return ErrInvalidRecord }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks a single record. The returned error wraps ErrInvalidRecord.
func Validate(f Formula) error {
	return validateAt(-1, f)
}

func validateAt(index int, f Formula) error {
	rec := &RecordError{Index: index, ID: f.ID}
	if strings.TrimSpace(f.ID) == "" && f.ID != "" {
		rec.Fields = append(rec.Fields, FieldError{Field: "id", Message: "must not be blank"})
	}
	if math.IsNaN(f.Confidence) || math.IsInf(f.Confidence, 0) {
		rec.Fields = append(rec.Fields, FieldError{Field: "confidence", Message: "must be a finite number"})
	} else if err := engine().Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate formula: %w", err)
		}
		for _, fe := range verrs {
			rec.Fields = append(rec.Fields, FieldError{Field: fe.Field(), Message: message(fe)})
		}
	}
	if len(rec.Fields) == 0 {
		return nil
	}
	return rec
}

// ValidateAll checks every record and that ids are unique. All problems are joined.
func ValidateAll(records []Formula) error {
	var errs []error
	seen := make(map[string]int, len(records))
	for i, f := range records {
		if err := validateAt(i, f); err != nil {
			errs = append(errs, err)
			continue
		}
		if first, dup := seen[f.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %q at %d and %d", ErrDuplicateID, f.ID, first, i))
			continue
		}
		seen[f.ID] = i
	}
	return errors.Join(errs...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
