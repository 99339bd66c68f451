package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor"
	"github.com/medflow/medical-ocr/internal/docprocessing/schema"
	"github.com/medflow/medical-ocr/internal/docprocessing/storage"
	"github.com/medflow/medical-ocr/pkg/logger"
	"github.com/medflow/medical-ocr/pkg/messaging"
)

// Renderer builds model input from a document.
type Renderer interface {
	Render(ctx context.Context, src processor.Source, progress domain.ProgressFunc) (*domain.RenderedContent, error)
}

// Generator is the structured generation side of the model service.
type Generator interface {
	Generate(ctx context.Context, model domain.Model, content *domain.RenderedContent) (*domain.ModelResponse, error)
}

// EventPublisher publishes extraction audit events. May be nil.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Options tune the orchestrator. Zero values fall back to defaults.
type Options struct {
	APIKey string
	// DefaultModel is used when a request names no model.
	DefaultModel domain.Model
	MaxAttempts  int
	BaseDelay   time.Duration
	Sleep       processor.SleepFunc
	Now         func() time.Time
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
	publishTimeout     = 5 * time.Second
)

// Service orchestrates one extraction: render, generate with retry, then
// validate.
type Service struct {
	renderer  Renderer
	generator Generator
	events    EventPublisher
	opts      Options
	tracer    trace.Tracer
	log       *logger.Logger
}

// NewService creates a new extraction service
func NewService(renderer Renderer, generator Generator, events EventPublisher, opts Options, log *logger.Logger) *Service {
	if opts.DefaultModel == "" {
		opts.DefaultModel = domain.DefaultModel
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = processor.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		renderer:  renderer,
		generator: generator,
		events:    events,
		opts:      opts,
		tracer:    otel.Tracer("github.com/medflow/medical-ocr/docprocessing"),
		log:       log.WithComponent("extraction"),
	}
}

// Extract runs one extraction synchronously. A response that fails schema
// validation is returned as a result with Success false, not as an error.
// progress may be nil.
func (s *Service) Extract(ctx context.Context, req domain.Request, progress domain.ProgressFunc) (*domain.ExtractionResult, error) {
	return s.extract(ctx, req, newTracker(progress))
}

func (s *Service) extract(ctx context.Context, req domain.Request, progress *tracker) (*domain.ExtractionResult, error) {
	if s.opts.APIKey == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY", domain.ErrConfiguration)
	}
	if _, err := os.Stat(req.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, req.Name())
	}
	if req.Model == "" {
		req.Model = s.opts.DefaultModel
	}

	ctx, span := s.tracer.Start(ctx, "docprocessing.extract", trace.WithAttributes(
		attribute.String("ai.model", string(req.Model)),
		attribute.Int("document.pages_selected", len(req.Pages)),
	))
	defer span.End()

	log := s.log.WithRequestID(req.RequestID)
	start := s.opts.Now()
	outcome := messaging.ExtractionEvent{
		RequestID: req.RequestID,
		File:      req.Name(),
		Model:     string(req.Model),
	}

	result, err := s.run(ctx, req, progress, start, &outcome, log)

	outcome.DurationSeconds = s.opts.Now().Sub(start).Seconds()
	switch {
	case err != nil:
		outcome.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("file", req.Name()).Msg("extraction failed")
	case !result.Success:
		outcome.Error = result.Error
		span.SetStatus(codes.Error, "schema validation failed")
	default:
		outcome.Success = true
	}
	span.SetAttributes(attribute.String("document.strategy", outcome.Strategy))
	s.publish(ctx, outcome)

	return result, err
}

func (s *Service) run(ctx context.Context, req domain.Request, progress *tracker, start time.Time, outcome *messaging.ExtractionEvent, log *logger.Logger) (*domain.ExtractionResult, error) {
	log.Info().
		Str("file", req.Name()).
		Str("model", string(req.Model)).
		Ints("pages", req.Pages).
		Msg("processing document")
	progress.report(2, "starting")

	content, err := s.renderer.Render(ctx, processor.NewSource(req.Path, req.Pages), progress.fn())
	if err != nil {
		return nil, err
	}
	outcome.Strategy = content.Strategy
	defer zeroImages(content)

	log.Info().
		Str("strategy", content.Strategy).
		Int("parts", len(content.Parts)).
		Msg("sending request")
	progress.report(70, "analyzing document")

	resp, err := s.generate(ctx, req.Model, content, log)
	if err != nil {
		return nil, err
	}

	elapsed := s.opts.Now().Sub(start)
	outcome.PromptTokens = resp.Usage.PromptTokens
	outcome.OutputTokens = resp.Usage.OutputTokens

	progress.report(90, "parsing response")
	extraction, err := schema.Parse(resp.Text)
	if err != nil {
		log.Warn().Err(err).Msg("response failed schema validation")
		return &domain.ExtractionResult{
			Success:     false,
			Error:       err.Error(),
			RawResponse: resp.Text,
		}, nil
	}

	progress.report(100, "done")

	seconds := elapsed.Seconds()
	tps := 0.0
	if seconds > 0 {
		tps = float64(resp.Usage.OutputTokens) / seconds
	}
	usage := resp.Usage

	log.Info().
		Dur("duration", elapsed).
		Int("prompt_tokens", usage.PromptTokens).
		Int("output_tokens", usage.OutputTokens).
		Msg("extraction completed")

	return &domain.ExtractionResult{
		Success:    true,
		File:       req.Name(),
		Model:      req.Model,
		Extraction: extraction,
		Timing: &domain.Timing{
			TotalSeconds:    seconds,
			TokensPerSecond: tps,
		},
		Usage:     &usage,
		Timestamp: s.opts.Now().Format(time.RFC3339),
	}, nil
}

// generate dispatches the request, retrying transient failures with
// exponential backoff (base, 2*base, ...). There is no wait after the
// final attempt.
func (s *Service) generate(ctx context.Context, model domain.Model, content *domain.RenderedContent, log *logger.Logger) (*domain.ModelResponse, error) {
	var lastErr error
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		resp, err := s.generator.Generate(ctx, model, content)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, domain.ErrTransientUpstream) {
			return nil, err
		}
		lastErr = err

		if attempt == s.opts.MaxAttempts-1 {
			break
		}
		delay := s.opts.BaseDelay * time.Duration(1<<attempt)
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("model busy, retrying")
		if err := s.opts.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrUpstreamExhausted, s.opts.MaxAttempts, lastErr)
}

// publish sends the audit event in the background; failures are logged only.
func (s *Service) publish(ctx context.Context, outcome messaging.ExtractionEvent) {
	if s.events == nil {
		return
	}
	eventType := messaging.EventExtractionCompleted
	if !outcome.Success {
		eventType = messaging.EventExtractionFailed
	}

	ctx = messaging.WithCorrelationID(context.WithoutCancel(ctx), outcome.RequestID)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.events.Publish(ctx, eventType, outcome); err != nil {
			s.log.Warn().Err(err).
				Str("event_type", eventType).
				Str("request_id", outcome.RequestID).
				Msg("failed to publish extraction event")
		}
	}()
}

// zeroImages wipes page image bytes once the request is done.
func zeroImages(content *domain.RenderedContent) {
	for _, p := range content.Parts {
		if p.Kind == domain.PartImage {
			storage.ZeroBytes(p.Data)
		}
	}
}
