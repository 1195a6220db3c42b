package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"formulary/internal/variables"
)

// Term groups.
const (
	GroupBasic     = "basic"
	GroupInsurance = "insurance"
	GroupFinancial = "financial"
)

//go:embed terms.yml
var defaultTerms []byte

var (
	termsOnce sync.Once
	termSets  map[string][]variables.Variable
)

func loadTerms() {
	termsOnce.Do(func() {
		if err := yaml.Unmarshal(defaultTerms, &termSets); err != nil {
			panic(fmt.Sprintf("catalog: embedded terms: %v", err))
		}
	})
}

// Groups lists the known term groups in sorted order.
func Groups() []string {
	loadTerms()
	groups := make([]string, 0, len(termSets))
	for g := range termSets {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Terms returns the suggested variables of one group in their listed order.
func Terms(group string) ([]variables.Variable, bool) {
	loadTerms()
	terms, ok := termSets[group]
	if !ok {
		return nil, false
	}
	return append([]variables.Variable(nil), terms...), true
}

// AllTerms merges the insurance and financial groups into a name to description
// map. Financial descriptions win on overlap.
func AllTerms() map[string]string {
	loadTerms()
	out := make(map[string]string)
	for _, group := range []string{GroupInsurance, GroupFinancial} {
		for _, v := range termSets[group] {
			out[v.Name] = v.Description
		}
	}
	return out
}
