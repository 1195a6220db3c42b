package extraction

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"formulary/internal/formulastore"
)

// ResponseProvider turns one extraction response into store records.
type ResponseProvider struct {
	Response *Response
	Logger   *zap.Logger
}

func (p *ResponseProvider) Name() string { return "extraction" }

// Collect returns the response records. An error status yields
// ErrExtractionFailed; a warning status is logged and its records returned.
func (p *ResponseProvider) Collect(ctx context.Context) ([]formulastore.Formula, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Response == nil {
		return nil, fmt.Errorf("%w: no response", ErrInvalidResponse)
	}
	if err := p.Response.Err(); err != nil {
		return nil, err
	}
	if p.Response.Status == StatusWarning && p.Logger != nil {
		p.Logger.Warn("extraction returned a warning",
			zap.String("message", p.Response.Message),
			zap.Int("formulas", len(p.Response.Formulas)),
		)
	}
	records := make([]formulastore.Formula, 0, len(p.Response.Formulas))
	for _, f := range p.Response.Formulas {
		records = append(records, f.Clone())
	}
	return records, nil
}

// FileResponseProvider reads a saved response body from disk.
type FileResponseProvider struct {
	Path   string
	Logger *zap.Logger
}

func (p *FileResponseProvider) Name() string { return "extraction-file" }

func (p *FileResponseProvider) Collect(ctx context.Context) ([]formulastore.Formula, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read extraction response: %w", err)
	}
	resp, err := ParseResponse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return (&ResponseProvider{Response: resp, Logger: p.Logger}).Collect(ctx)
}
