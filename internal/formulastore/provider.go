package formulastore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider produces formula records from a single source.
type Provider interface {
	Name() string
	Collect(ctx context.Context) ([]Formula, error)
}

// CollectAll runs providers in order and concatenates their records.
func CollectAll(ctx context.Context, providers []Provider) ([]Formula, error) {
	var all []Formula
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := provider.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s provider: %w", provider.Name(), err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// FileProvider reads records from a JSON or YAML file holding either a
// top-level list or a `formulas:` list.
type FileProvider struct {
	Path string
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Collect(ctx context.Context) ([]Formula, error) {
	_ = ctx

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read formulas: %w", err)
	}
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	if err := ValidateAll(records); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return records, nil
}

type formulaFile struct {
	Formulas []Formula `yaml:"formulas"`
}

// Decode parses a record list. JSON input is accepted since it is valid YAML.
func Decode(data []byte) ([]Formula, error) {
	var file formulaFile
	if err := yaml.Unmarshal(data, &file); err == nil && file.Formulas != nil {
		return file.Formulas, nil
	}

	var list []Formula
	if err := yaml.Unmarshal(data, &list); err == nil && list != nil {
		return list, nil
	}

	return nil, fmt.Errorf("formula file must contain `formulas:` list or a top-level list")
}
