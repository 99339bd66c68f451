package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/pkg/logger"
)

// Source is the document a strategy renders.
type Source struct {
	Path string
	Kind domain.SourceKind
	// Pages are 1-based; nil means every page.
	Pages []int
}

// NewSource classifies path by extension.
func NewSource(path string, pages []int) Source {
	return Source{Path: path, Kind: domain.KindOf(path), Pages: pages}
}

// Strategy turns a document into content parts for the model.
// Implementations can be added without changing the service layer.
type Strategy interface {
	// CanRender returns true if this strategy applies to the source
	CanRender(src Source) bool

	// Render builds the content parts. An error wrapping
	// domain.ErrRenderFailure lets the next strategy try.
	Render(ctx context.Context, src Source, progress domain.ProgressFunc) (*domain.RenderedContent, error)

	// Name returns the strategy name for logging and audit events
	Name() string
}

// Registry holds strategies in priority order
type Registry struct {
	strategies []Strategy
	log        *logger.Logger
}

// NewRegistry creates a new strategy registry
func NewRegistry(log *logger.Logger, strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies, log: log}
}

// FindStrategies returns every strategy that applies to src, in
// registration order. The first is preferred and the rest are fallbacks.
func (r *Registry) FindStrategies(src Source) []Strategy {
	var result []Strategy
	for _, s := range r.strategies {
		if s.CanRender(src) {
			result = append(result, s)
		}
	}
	return result
}

// Render tries each applicable strategy in order. A render failure moves on
// to the next strategy; any other error is returned as is.
func (r *Registry) Render(ctx context.Context, src Source, progress domain.ProgressFunc) (*domain.RenderedContent, error) {
	strategies := r.FindStrategies(src)
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategy for %s", domain.ErrUnsupportedFileType, src.Path)
	}

	var lastErr error
	for _, s := range strategies {
		r.log.Info().
			Str("strategy", s.Name()).
			Str("kind", string(src.Kind)).
			Ints("pages", src.Pages).
			Msg("rendering document")

		content, err := s.Render(ctx, src, progress)
		if err == nil {
			content.Strategy = s.Name()
			return content, nil
		}
		if !errors.Is(err, domain.ErrRenderFailure) {
			return nil, err
		}
		lastErr = err
		r.log.Warn().Err(err).
			Str("strategy", s.Name()).
			Msg("strategy failed, trying next")
	}
	return nil, lastErr
}

func report(progress domain.ProgressFunc, percent int, message string) {
	if progress != nil {
		progress(domain.Progress{Percent: percent, Message: message})
	}
}
