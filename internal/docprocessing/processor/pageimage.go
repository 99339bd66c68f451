package processor

import (
	"context"
	"fmt"
	"os"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/pages"
)

// Rasterizer opens PDFs for page rendering.
type Rasterizer interface {
	Open(path string) (PDFDocument, error)
}

// PDFDocument is an open PDF.
type PDFDocument interface {
	NumPages() int
	// RenderJPEG renders the 0-based page to JPEG bytes.
	RenderJPEG(index int) ([]byte, error)
	Close() error
}

// PageImageStrategy sends page images to the model. It handles raster
// images directly and PDFs by rendering the selected pages one by one.
type PageImageStrategy struct {
	rasterizer Rasterizer
}

// NewPageImageStrategy creates the image strategy. rasterizer may be nil,
// in which case PDFs are rejected.
func NewPageImageStrategy(rasterizer Rasterizer) *PageImageStrategy {
	return &PageImageStrategy{rasterizer: rasterizer}
}

func (s *PageImageStrategy) Name() string { return "page-image" }

func (s *PageImageStrategy) CanRender(src Source) bool {
	return src.Kind == domain.SourceImage || src.Kind == domain.SourcePDF
}

func (s *PageImageStrategy) Render(ctx context.Context, src Source, progress domain.ProgressFunc) (*domain.RenderedContent, error) {
	if src.Kind == domain.SourceImage {
		return s.renderImage(src, progress)
	}
	return s.renderPDF(ctx, src, progress)
}

func (s *PageImageStrategy) renderImage(src Source, progress domain.ProgressFunc) (*domain.RenderedContent, error) {
	report(progress, 20, "preparing image")

	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &domain.RenderedContent{
		Parts: []domain.Part{
			domain.TextPart(Prompt),
			domain.ImagePart(data, domain.ImageMIMEType(src.Path)),
		},
	}, nil
}

// renderPDF renders sequentially; progress is proportional to the number
// of finished pages.
func (s *PageImageStrategy) renderPDF(ctx context.Context, src Source, progress domain.ProgressFunc) (*domain.RenderedContent, error) {
	if s.rasterizer == nil {
		return nil, fmt.Errorf("%w: pdf rendering is not available", domain.ErrUnsupportedFileType)
	}

	doc, err := s.rasterizer.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	indices, err := pages.Resolve(src.Pages, doc.NumPages())
	if err != nil {
		return nil, err
	}

	parts := make([]domain.Part, 0, 1+2*len(indices))
	parts = append(parts, domain.TextPart(Prompt))

	total := len(indices)
	for i, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(progress, 15+(i+1)*45/total, "rendering pages")

		img, err := doc.RenderJPEG(idx)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", idx+1, err)
		}
		parts = append(parts,
			domain.TextPart(fmt.Sprintf("\n[Page %d]", idx+1)),
			domain.ImagePart(img, "image/jpeg"),
		)
	}

	return &domain.RenderedContent{Parts: parts}, nil
}
