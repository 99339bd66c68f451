package service

import (
	"context"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
)

// streamBuffer bounds the queue between the extraction and the consumer.
const streamBuffer = 64

// Stream runs an extraction in its own goroutine and delivers progress
// events followed by exactly one result or error event, after which the
// channel is closed. The caller must drain the channel.
func (s *Service) Stream(ctx context.Context, req domain.Request) <-chan domain.Event {
	events := make(chan domain.Event, streamBuffer)

	go func() {
		defer close(events)

		progress := newTracker(func(p domain.Progress) {
			events <- domain.Event{Type: domain.EventProgress, Progress: &p}
		})
		progress.report(5, "file saved")

		result, err := s.extract(ctx, req, progress)
		switch {
		case err != nil:
			events <- domain.Event{Type: domain.EventError, Error: &domain.ErrorPayload{
				Error:  "Analysis failed",
				Detail: err.Error(),
			}}
		case !result.Success:
			events <- domain.Event{Type: domain.EventError, Error: &domain.ErrorPayload{
				Error:  result.Error,
				Detail: "extraction response failed schema validation",
			}}
		default:
			events <- domain.Event{Type: domain.EventResult, Result: result}
		}
	}()

	return events
}
