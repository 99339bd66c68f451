package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor"
	"github.com/medflow/medical-ocr/internal/docprocessing/service"
	"github.com/medflow/medical-ocr/pkg/logger"
	"github.com/medflow/medical-ocr/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{"patient":{"name":"Mona Hassan","age":36},"history":{"patientMedications":[{"drugName":"Omeprazole"}]}}`

type fakeRenderer struct {
	err   error
	steps []int
}

func (r *fakeRenderer) Render(_ context.Context, src processor.Source, progress domain.ProgressFunc) (*domain.RenderedContent, error) {
	for _, pct := range r.steps {
		progress(domain.Progress{Percent: pct, Message: "rendering pages"})
	}
	if r.err != nil {
		return nil, r.err
	}
	return &domain.RenderedContent{
		Strategy: "page-image",
		Parts: []domain.Part{
			domain.TextPart(processor.Prompt),
			domain.ImagePart([]byte{0xff, 0xd8, 0xff}, "image/jpeg"),
		},
	}, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	errs     []error
	text     string
	attempts int
	model    domain.Model
}

func (g *fakeGenerator) Generate(_ context.Context, model domain.Model, _ *domain.RenderedContent) (*domain.ModelResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts++
	g.model = model
	if g.attempts <= len(g.errs) {
		return nil, g.errs[g.attempts-1]
	}
	return &domain.ModelResponse{
		Text:  g.text,
		Usage: domain.Usage{PromptTokens: 1500, OutputTokens: 400},
	}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	data   []messaging.ExtractionEvent
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.data = append(p.data, data.(messaging.ExtractionEvent))
	return nil
}

func (p *fakePublisher) snapshot() ([]string, []messaging.ExtractionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...), append([]messaging.ExtractionEvent(nil), p.data...)
}

type sleeper struct{ waits []time.Duration }

func (s *sleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

// steppingClock advances two seconds on every call.
func steppingClock() func() time.Time {
	t := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		now := t
		t = t.Add(2 * time.Second)
		return now
	}
}

func transient(code int) error {
	return fmt.Errorf("%w: Error %d", domain.ErrTransientUpstream, code)
}

type fixture struct {
	svc       *service.Service
	renderer  *fakeRenderer
	generator *fakeGenerator
	publisher *fakePublisher
	sleeper   *sleeper
	path      string
}

func newFixture(t *testing.T, opts ...func(*service.Options)) *fixture {
	t.Helper()
	f := &fixture{
		renderer:  &fakeRenderer{steps: []int{30, 60}},
		generator: &fakeGenerator{text: validResponse},
		publisher: &fakePublisher{},
		sleeper:   &sleeper{},
	}
	o := service.Options{
		APIKey: "test-key",
		Sleep:  f.sleeper.sleep,
		Now:    steppingClock(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.svc = service.NewService(f.renderer, f.generator, f.publisher, o, logger.Nop())

	f.path = filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(f.path, []byte("png"), 0o600))
	return f
}

func (f *fixture) request() domain.Request {
	return domain.Request{Path: f.path, Model: domain.ModelFlashLite, RequestID: "req-42"}
}

func TestExtract_Success(t *testing.T) {
	f := newFixture(t)

	var progress []domain.Progress
	result, err := f.svc.Extract(context.Background(), f.request(), func(p domain.Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "scan.png", result.File)
	assert.Equal(t, domain.ModelFlashLite, result.Model)
	assert.Equal(t, "Mona Hassan", result.Extraction.Patient.Name)
	assert.Equal(t, "0", *result.Extraction.History.Medications[0].Dosage)
	assert.Equal(t, &domain.Usage{PromptTokens: 1500, OutputTokens: 400}, result.Usage)
	assert.InDelta(t, 2.0, result.Timing.TotalSeconds, 0.001)
	assert.InDelta(t, 200.0, result.Timing.TokensPerSecond, 0.001)
	assert.NotEmpty(t, result.Timestamp)
	assert.Equal(t, 1, f.generator.attempts)
	assert.Empty(t, f.sleeper.waits)

	var pct []int
	for _, p := range progress {
		pct = append(pct, p.Percent)
	}
	assert.Equal(t, []int{2, 30, 60, 70, 90, 100}, pct)
}

func TestExtract_EmptyModelUsesConfiguredDefault(t *testing.T) {
	f := newFixture(t, func(o *service.Options) { o.DefaultModel = domain.ModelFlash })

	req := f.request()
	req.Model = ""
	result, err := f.svc.Extract(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ModelFlash, f.generator.model)
	assert.Equal(t, domain.ModelFlash, result.Model)
}

func TestExtract_ProgressIsMonotonic(t *testing.T) {
	f := newFixture(t)
	// a fallback strategy restarting its count below the previous value
	f.renderer.steps = []int{12, 20, 60, 15, 37, 60}

	var pct []int
	_, err := f.svc.Extract(context.Background(), f.request(), func(p domain.Progress) {
		pct = append(pct, p.Percent)
	})
	require.NoError(t, err)

	for i := 1; i < len(pct); i++ {
		assert.GreaterOrEqual(t, pct[i], pct[i-1], "progress went backwards: %v", pct)
	}
	assert.Equal(t, 100, pct[len(pct)-1])
}

func TestExtract_NilProgress(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Extract(context.Background(), f.request(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExtract_RetriesTransientThenSucceeds(t *testing.T) {
	f := newFixture(t)
	f.generator.errs = []error{transient(429), transient(503)}

	result, err := f.svc.Extract(context.Background(), f.request(), nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, f.generator.attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeper.waits)
}

func TestExtract_UpstreamExhausted(t *testing.T) {
	f := newFixture(t)
	f.generator.errs = []error{transient(503), transient(503), transient(503), transient(503)}

	result, err := f.svc.Extract(context.Background(), f.request(), nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrUpstreamExhausted)
	assert.Equal(t, 3, f.generator.attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeper.waits)
}

func TestExtract_NonTransientIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.generator.errs = []error{errors.New("400 INVALID_ARGUMENT")}

	_, err := f.svc.Extract(context.Background(), f.request(), nil)
	assert.ErrorContains(t, err, "INVALID_ARGUMENT")
	assert.NotErrorIs(t, err, domain.ErrUpstreamExhausted)
	assert.Equal(t, 1, f.generator.attempts)
	assert.Empty(t, f.sleeper.waits)
}

func TestExtract_SchemaFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	raw := `{"history":{}}`
	f.generator.text = raw

	var last domain.Progress
	result, err := f.svc.Extract(context.Background(), f.request(), func(p domain.Progress) { last = p })
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, raw, result.RawResponse)
	assert.Nil(t, result.Extraction)
	assert.Equal(t, 90, last.Percent)
}

func TestExtract_MissingAPIKey(t *testing.T) {
	f := newFixture(t, func(o *service.Options) { o.APIKey = "" })

	_, err := f.svc.Extract(context.Background(), f.request(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 0, f.generator.attempts)
}

func TestExtract_FileNotFound(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.Path = filepath.Join(t.TempDir(), "missing.pdf")

	_, err := f.svc.Extract(context.Background(), req, nil)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestExtract_RenderErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = fmt.Errorf("%w: document has 2 pages", domain.ErrNoValidPages)

	_, err := f.svc.Extract(context.Background(), f.request(), nil)
	assert.ErrorIs(t, err, domain.ErrNoValidPages)
	assert.Equal(t, 0, f.generator.attempts)
}

func TestExtract_ZeroElapsedMeansZeroThroughput(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, func(o *service.Options) { o.Now = func() time.Time { return fixed } })

	result, err := f.svc.Extract(context.Background(), f.request(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Timing.TotalSeconds)
	assert.Equal(t, 0.0, result.Timing.TokensPerSecond)
}

func TestExtract_PublishesAuditEvents(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Extract(context.Background(), f.request(), nil)
	require.NoError(t, err)

	f.generator.text = `not json`
	_, err = f.svc.Extract(context.Background(), f.request(), nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		events, _ := f.publisher.snapshot()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	events, data := f.publisher.snapshot()
	assert.ElementsMatch(t, []string{messaging.EventExtractionCompleted, messaging.EventExtractionFailed}, events)
	for _, d := range data {
		assert.Equal(t, "req-42", d.RequestID)
		assert.Equal(t, "page-image", d.Strategy)
		assert.Equal(t, 1500, d.PromptTokens)
	}
}

func collect(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestStream_Result(t *testing.T) {
	f := newFixture(t)

	events := collect(f.svc.Stream(context.Background(), f.request()))
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventResult, last.Type)
	assert.Equal(t, "Mona Hassan", last.Result.Extraction.Patient.Name)

	prev := 0
	for i, e := range events[:len(events)-1] {
		require.Equal(t, domain.EventProgress, e.Type, "event %d", i)
		assert.GreaterOrEqual(t, e.Progress.Percent, prev)
		prev = e.Progress.Percent
	}
	assert.Equal(t, 5, events[0].Progress.Percent)
	assert.Equal(t, "file saved", events[0].Progress.Message)
}

func TestStream_ErrorIsTerminal(t *testing.T) {
	f := newFixture(t, func(o *service.Options) { o.APIKey = "" })

	events := collect(f.svc.Stream(context.Background(), f.request()))
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Type)
	assert.Equal(t, "Analysis failed", last.Error.Error)
	assert.Contains(t, last.Error.Detail, "API key")

	terminal := 0
	for _, e := range events {
		if e.Terminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestStream_SoftFailureBecomesErrorEvent(t *testing.T) {
	f := newFixture(t)
	f.generator.text = `{"patient":{"name":"A"}}`

	events := collect(f.svc.Stream(context.Background(), f.request()))
	last := events[len(events)-1]
	require.Equal(t, domain.EventError, last.Type)
	assert.Contains(t, last.Error.Error, "schema validation failed")
}
