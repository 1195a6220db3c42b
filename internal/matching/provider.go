package matching

import (
	"context"

	"formulary/internal/formulastore"
	"formulary/internal/variables"
)

// Provider exposes a matching run as a formula source.
type Provider struct {
	Engine   *Engine
	Registry *variables.Registry
}

func (p *Provider) Name() string { return SourceMethod }

func (p *Provider) Collect(ctx context.Context) ([]formulastore.Formula, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := p.Engine.Match(p.Registry)
	return p.Engine.Records(p.Registry, results), nil
}
