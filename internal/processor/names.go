package processor

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// CleanName folds a column or term name into the key formulas refer to:
// trimmed, lower case, spaces to underscores, "%" to "percent", "*" dropped.
func CleanName(name string) string {
	name = lower.String(strings.TrimSpace(norm.NFKC.String(name)))
	return strings.NewReplacer(" ", "_", "%", "percent", "*", "").Replace(name)
}
