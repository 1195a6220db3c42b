package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"formulary/internal/fileutil"
)

// Writer stores rendered artifacts in Dir.
type Writer struct {
	Dir    string
	Logger *zap.Logger
}

func (w *Writer) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

// WriteFile renders b with r and writes it atomically under a date-stamped
// name. Nothing is written when rendering fails.
func (w *Writer) WriteFile(r Renderer, b Bundle) (string, error) {
	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now()
	}
	data, err := Export(r, b)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, r.FileName(b.GeneratedAt))
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s export: %w", r.Format(), err)
	}
	w.logger().Info("export written",
		zap.String("format", r.Format()),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Int("formulas", len(b.Formulas)),
	)
	return path, nil
}

// WriteAll renders every format concurrently. Paths are returned in Formats order.
func (w *Writer) WriteAll(ctx context.Context, b Bundle) ([]string, error) {
	if err := b.Statistics().Require(); err != nil {
		return nil, err
	}
	if b.GeneratedAt.IsZero() {
		b.GeneratedAt = time.Now()
	}
	renderers := Renderers()
	paths := make([]string, len(renderers))
	g, ctx := errgroup.WithContext(ctx)
	for i, r := range renderers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := w.WriteFile(r, b)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
