package gemini

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
)

type geminiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	uploadPolls     metric.Int64Counter
	tokens          metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metrics     *geminiMetrics
)

// ensureMetrics registers instruments on the global meter provider. Without
// an installed SDK they are no-ops.
func ensureMetrics() *geminiMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/medflow/medical-ocr/gemini")

		requestCount, err := meter.Int64Counter(
			"ai.gemini.request.count",
			metric.WithDescription("Number of Gemini requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.gemini.request.duration",
			metric.WithDescription("Gemini request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.gemini.request.errors",
			metric.WithDescription("Number of Gemini request errors"),
		)
		if err != nil {
			return
		}
		uploadPolls, err := meter.Int64Counter(
			"ai.gemini.upload.polls",
			metric.WithDescription("Number of upload status checks"),
		)
		if err != nil {
			return
		}
		tokens, err := meter.Int64Counter(
			"ai.gemini.tokens",
			metric.WithDescription("Tokens consumed, by direction"),
		)
		if err != nil {
			return
		}

		metrics = &geminiMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			uploadPolls:     uploadPolls,
			tokens:          tokens,
		}
	})
	return metrics
}

func recordRequest(ctx context.Context, model, operation string, duration time.Duration, err error) {
	m := ensureMetrics()
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.operation", operation),
	}
	if model != "" {
		attrs = append(attrs, attribute.String("ai.model", model))
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("ai.transient", IsTransient(err)))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordPoll(ctx context.Context) {
	if m := ensureMetrics(); m != nil {
		m.uploadPolls.Add(ctx, 1)
	}
}

func recordTokens(ctx context.Context, model string, usage domain.Usage) {
	m := ensureMetrics()
	if m == nil {
		return
	}
	m.tokens.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(
		attribute.String("ai.model", model), attribute.String("direction", "input")))
	m.tokens.Add(ctx, int64(usage.OutputTokens), metric.WithAttributes(
		attribute.String("ai.model", model), attribute.String("direction", "output")))
}
