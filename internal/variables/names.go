package variables

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var namePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// NormalizeName folds a user-typed name into canonical form: NFKC, trimmed,
// upper case, with each internal whitespace run replaced by a single
// underscore. The result must match ^[A-Z][A-Z0-9_]*$.
func NormalizeName(raw string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(norm.NFKC.String(raw)))
	name = strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "_")
	if !namePattern.MatchString(name) {
		return name, ErrInvalidName
	}
	return name, nil
}

// ValidName reports whether name is already in canonical form.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}
