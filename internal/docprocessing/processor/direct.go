package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/storage"
	"github.com/medflow/medical-ocr/pkg/logger"
)

// Uploader is the file storage side of the model service.
type Uploader interface {
	Upload(ctx context.Context, path, mimeType string) (*domain.UploadedFile, error)
	GetFile(ctx context.Context, name string) (*domain.UploadedFile, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DirectStrategy uploads a whole PDF to the model service and references
// it, so the model reads the document natively.
type DirectStrategy struct {
	uploader     Uploader
	pollInterval time.Duration
	maxPolls     int
	sleep        SleepFunc
	log          *logger.Logger
}

// NewDirectStrategy creates the upload strategy. maxPolls bounds how many
// times a document still PROCESSING is checked before giving up.
func NewDirectStrategy(uploader Uploader, pollInterval time.Duration, maxPolls int, sleep SleepFunc, log *logger.Logger) *DirectStrategy {
	if sleep == nil {
		sleep = Sleep
	}
	return &DirectStrategy{
		uploader:     uploader,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		sleep:        sleep,
		log:          log,
	}
}

func (s *DirectStrategy) Name() string { return "direct" }

// CanRender applies to PDFs without an explicit page selection.
func (s *DirectStrategy) CanRender(src Source) bool {
	return src.Kind == domain.SourcePDF && len(src.Pages) == 0
}

// Render uploads the document and waits for it to become ACTIVE. Every
// error is wrapped in domain.ErrRenderFailure so the registry falls back.
func (s *DirectStrategy) Render(ctx context.Context, src Source, progress domain.ProgressFunc) (*domain.RenderedContent, error) {
	report(progress, 12, "preparing pdf upload")

	safePath, cleanup, err := storage.UploadSafeCopy(src.Path)
	defer cleanup()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
	}

	report(progress, 20, "uploading pdf")
	file, err := s.uploader.Upload(ctx, safePath, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: upload: %v", domain.ErrRenderFailure, err)
	}
	cleanup()

	polls := 0
	for file.State == domain.FileStateProcessing {
		if polls >= s.maxPolls {
			return nil, fmt.Errorf("%w: %s still processing after %d polls", domain.ErrRenderFailure, file.Name, polls)
		}
		polls++
		report(progress, min(60, 30+polls*5), "processing pdf")

		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
		}
		next, err := s.uploader.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: poll %s: %v", domain.ErrRenderFailure, file.Name, err)
		}
		file = next
	}

	if file.State == domain.FileStateFailed {
		return nil, fmt.Errorf("%w: pdf processing failed: %s", domain.ErrRenderFailure, file.Error)
	}

	s.log.Debug().
		Str("file", file.Name).
		Int("polls", polls).
		Msg("pdf upload active")

	mimeType := file.MIMEType
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return &domain.RenderedContent{
		Parts: []domain.Part{
			domain.FilePart(file.URI, mimeType),
			domain.TextPart(Prompt),
		},
	}, nil
}
