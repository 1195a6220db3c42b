package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formulary/internal/catalog"
	"formulary/internal/formulastore"
	"formulary/internal/variables"
)

func interestRegistry(t *testing.T) *variables.Registry {
	t.Helper()
	reg := variables.New()
	for _, v := range []variables.Variable{
		{Name: "PRINCIPAL", Description: "Amount borrowed"},
		{Name: "RATE", Description: "Annual interest rate"},
		{Name: "TIME", Description: "Loan duration in years"},
	} {
		_, err := reg.AddInput(v.Name, v.Description)
		require.NoError(t, err)
	}
	_, err := reg.AddOutput("INTEREST")
	require.NoError(t, err)
	return reg
}

func TestMatchSimpleInterest(t *testing.T) {
	results := NewEngine(nil).Match(interestRegistry(t))
	require.Len(t, results, 2)

	assert.Equal(t, "TOTAL = PRINCIPAL + INTEREST", results[0].Template.Expression)
	assert.Equal(t, []string{"PRINCIPAL", "INTEREST"}, results[0].MatchedVariables)
	assert.InDelta(t, 2.0/3.0, results[0].Confidence, 1e-9)

	interest := results[1]
	assert.Equal(t, "INTEREST = PRINCIPAL × RATE × TIME", interest.Template.Expression)
	assert.Equal(t, 4, interest.MatchedCount())
	assert.Equal(t, 1.0, interest.Confidence)
}

func TestMatchSubstringBothWays(t *testing.T) {
	reg := variables.New()
	_, err := reg.AddInput("DISCOUNT_RATE", "Discount rate applied")
	require.NoError(t, err)
	_, err = reg.AddOutput("AMOUNT")
	require.NoError(t, err)

	results := NewEngine(nil).Match(reg)
	var expressions []string
	for _, r := range results {
		expressions = append(expressions, r.Template.Expression)
	}
	// DISCOUNT_RATE contains DISCOUNT and RATE; AMOUNT matches exactly.
	assert.Contains(t, expressions, "DISCOUNT_AMOUNT = PRICE × DISCOUNT_RATE")
}

func TestMatchShortNameContainedInToken(t *testing.T) {
	cat, err := catalog.New([]catalog.Template{{
		Expression:        "TAX_TOTAL = PRICE_BASE × TAX_RATE",
		RequiredVariables: []string{"TAX_TOTAL", "PRICE_BASE", "TAX_RATE"},
	}})
	require.NoError(t, err)

	reg := variables.New(variables.WithMinDescriptionLength(0))
	_, err = reg.AddInput("TAX", "")
	require.NoError(t, err)

	results := NewEngine(cat).Match(reg)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"TAX_TOTAL", "TAX_RATE"}, results[0].MatchedVariables)
}

func TestMatchEmptyRegistry(t *testing.T) {
	results := NewEngine(nil).Match(variables.New())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMatchThresholdProperty(t *testing.T) {
	cat := catalog.Default()
	engine := NewEngine(cat)
	registries := []*variables.Registry{
		variables.New(),
		variables.NewDefault(),
		interestRegistry(t),
	}
	single := variables.New()
	_, err := single.AddOutput("TAX")
	require.NoError(t, err)
	registries = append(registries, single)

	for i, reg := range registries {
		accepted := map[string]bool{}
		for _, r := range engine.Match(reg) {
			assert.GreaterOrEqual(t, r.MatchedCount(), MinMatchedVariables, "registry %d", i)
			assert.GreaterOrEqual(t, r.Confidence, 0.0)
			assert.LessOrEqual(t, r.Confidence, 1.0)
			accepted[r.Template.Expression] = true
		}
		names := reg.Names()
		for _, tmpl := range cat.Templates() {
			if accepted[tmpl.Expression] {
				continue
			}
			count := 0
			for _, token := range tmpl.RequiredVariables {
				if containsEither(names, token) {
					count++
				}
			}
			assert.LessOrEqual(t, count, 1, "registry %d rejected %q", i, tmpl.Expression)
		}
	}
}

func TestMatchIsPure(t *testing.T) {
	reg := interestRegistry(t)
	engine := NewEngine(nil)
	first := engine.Match(reg)
	second := engine.Match(reg)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"PRINCIPAL", "RATE", "TIME", "INTEREST"}, reg.Names())
}

func TestRecords(t *testing.T) {
	n := 0
	engine := NewEngine(nil, WithIDFunc(func() string {
		n++
		return fmt.Sprintf("match-%d", n)
	}))
	reg := interestRegistry(t)
	records := engine.Records(reg, engine.Match(reg))
	require.Len(t, records, 2)

	rec := records[1]
	assert.Equal(t, "match-2", rec.ID)
	assert.Equal(t, SourceMethod, rec.SourceMethod)
	assert.True(t, rec.Editable)
	assert.Equal(t, "Amount borrowed", rec.VariablesExplained["PRINCIPAL"])
	assert.Equal(t, "Output variable INTEREST", rec.VariablesExplained["INTEREST"])
	for _, r := range records {
		require.NoError(t, formulastore.Validate(r))
	}
}

func TestProviderFeedsStore(t *testing.T) {
	reg := interestRegistry(t)
	records, err := formulastore.CollectAll(context.Background(), []formulastore.Provider{
		&Provider{Engine: NewEngine(nil), Registry: reg},
	})
	require.NoError(t, err)

	store := formulastore.NewStore()
	require.NoError(t, store.ReplaceAll(records))
	assert.Equal(t, 2, store.Len())
}
