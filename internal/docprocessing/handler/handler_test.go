package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/handler"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor"
	"github.com/medflow/medical-ocr/internal/docprocessing/service"
	"github.com/medflow/medical-ocr/pkg/httputil"
	"github.com/medflow/medical-ocr/pkg/logger"
	"github.com/medflow/medical-ocr/pkg/testutil"
)

const extractionJSON = `{"patient":{"name":"Layla Mansour","age":41},"history":{}}`

type stubGenerator struct {
	text  string
	err   error
	calls int
	model domain.Model
}

func (g *stubGenerator) Generate(_ context.Context, model domain.Model, _ *domain.RenderedContent) (*domain.ModelResponse, error) {
	g.calls++
	g.model = model
	if g.err != nil {
		return nil, g.err
	}
	return &domain.ModelResponse{Text: g.text, Usage: domain.Usage{PromptTokens: 900, OutputTokens: 120}}, nil
}

type pagedRasterizer struct{ pages int }

func (r pagedRasterizer) Open(string) (processor.PDFDocument, error) {
	return &pagedDoc{pages: r.pages}, nil
}

type pagedDoc struct{ pages int }

func (d *pagedDoc) NumPages() int { return d.pages }

func (d *pagedDoc) RenderJPEG(index int) ([]byte, error) {
	return []byte{0xff, 0xd8, byte(index)}, nil
}

func (d *pagedDoc) Close() error { return nil }

type failingUploader struct{ uploads int }

func (u *failingUploader) Upload(context.Context, string, string) (*domain.UploadedFile, error) {
	u.uploads++
	return nil, errors.New("503 UNAVAILABLE: upload backend down")
}

func (u *failingUploader) GetFile(context.Context, string) (*domain.UploadedFile, error) {
	return nil, errors.New("unexpected poll")
}

func noSleep(context.Context, time.Duration) error { return nil }

type testServer struct {
	router  http.Handler
	gen     *stubGenerator
	tempDir string
}

// newTestServer wires a real service behind the handler. Without explicit
// strategies it renders through page images only.
func newTestServer(t *testing.T, opts handler.Options, strategies ...processor.Strategy) *testServer {
	t.Helper()

	log := logger.Nop()
	gen := &stubGenerator{text: extractionJSON}
	if len(strategies) == 0 {
		strategies = []processor.Strategy{processor.NewPageImageStrategy(pagedRasterizer{pages: 3})}
	}
	registry := processor.NewRegistry(log, strategies...)
	svc := service.NewService(registry, gen, nil, service.Options{APIKey: "test-key", Sleep: noSleep}, log)

	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	h := handler.NewHandler(svc, opts, log)

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	h.Routes(r)

	return &testServer{router: r, gen: gen, tempDir: opts.TempDir}
}

// workspaces counts request directories left under the temp dir.
func (s *testServer) workspaces() int {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		return -1
	}
	return len(entries)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	for _, path := range []string{"/", "/health"} {
		rr := testutil.ExecuteRequest(srv.router, httptest.NewRequest(http.MethodGet, path, nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var body map[string]string
		testutil.ParseJSONBody(t, rr, &body)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, handler.Version, body["version"])
		_, err := time.Parse(time.RFC3339, body["timestamp"])
		assert.NoError(t, err)
	}
}

func TestAnalyze_Success(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze", "scan.png", []byte("\x89PNG fake"))
	rr := testutil.ExecuteRequest(srv.router, testutil.WithRequestID(req, "req-1"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var result domain.ExtractionResult
	testutil.ParseJSONBody(t, rr, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "scan.png", result.File)
	assert.Equal(t, domain.DefaultModel, result.Model)
	require.NotNil(t, result.Extraction)
	assert.Equal(t, "Layla Mansour", result.Extraction.Patient.Name)
	assert.Equal(t, &domain.Usage{PromptTokens: 900, OutputTokens: 120}, result.Usage)
	assert.NotEmpty(t, result.Timestamp)

	assert.Equal(t, 0, srv.workspaces(), "workspace must be removed")
}

func TestAnalyze_ModelQuery(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze?model=gemini-2.5-flash&use_schema=false", "scan.jpg", []byte("jpeg"))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, domain.ModelFlash, srv.gen.model)
}

func TestAnalyze_ConfiguredDefaultModel(t *testing.T) {
	srv := newTestServer(t, handler.Options{DefaultModel: domain.ModelFlash})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze", "scan.png", []byte("png"))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, domain.ModelFlash, srv.gen.model)

	var result domain.ExtractionResult
	testutil.ParseJSONBody(t, rr, &result)
	assert.Equal(t, domain.ModelFlash, result.Model)
}

func TestAnalyze_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		filename string
		contains string
	}{
		{"unsupported extension", "/analyze", "notes.txt", "Unsupported file type"},
		{"unknown model", "/analyze?model=gpt-4", "scan.png", "gemini-2.5-flash-lite"},
		{"bad use_schema", "/analyze?use_schema=maybe", "scan.png", "use_schema"},
		{"bad pages", "/analyze?pages=3-1", "scan.pdf", "Invalid page selection"},
		{"oversized page range", "/analyze?pages=1-2000000000", "scan.pdf", "must not exceed"},
		{"stream unsupported extension", "/analyze/stream", "notes.txt", "Unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, handler.Options{})

			req := testutil.NewMultipartRequest(t, http.MethodPost, tt.target, tt.filename, []byte("data"))
			rr := testutil.ExecuteRequest(srv.router, req)
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			testutil.AssertBodyContains(t, rr, tt.contains)

			var body httputil.ErrorBody
			testutil.ParseJSONBody(t, rr, &body)
			assert.False(t, body.Success)
			assert.Equal(t, 0, srv.gen.calls)
		})
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze", "scan.png", []byte("x"))
	req.Header.Set("Content-Type", "application/json")
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "No file provided")
}

func TestAnalyze_TooLarge(t *testing.T) {
	srv := newTestServer(t, handler.Options{MaxUploadBytes: 1024})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze", "scan.png", make([]byte, 8192))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, 0, srv.gen.calls)
}

func TestAnalyze_SchemaFailure(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	srv.gen.text = `{"patient":{"age":"forty"}}`

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze", "scan.png", []byte("png"))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)

	var body httputil.ErrorBody
	testutil.ParseJSONBody(t, rr, &body)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "schema validation failed")
	assert.NotEmpty(t, body.Detail)
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	srv.gen.err = errors.New("400 INVALID_ARGUMENT: image too small")

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze", "scan.png", []byte("png"))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)

	var body httputil.ErrorBody
	testutil.ParseJSONBody(t, rr, &body)
	assert.False(t, body.Success)
	assert.Equal(t, "Analysis failed", body.Error)
	assert.Contains(t, body.Detail, "INVALID_ARGUMENT")
	assert.Equal(t, 0, srv.workspaces())
}

func TestAnalyzeStream_PDF(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze/stream?pages=1-3", "report.pdf", testutil.MinimalPDF(3))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	events := testutil.ParseSSE(t, rr.Body.String())
	require.GreaterOrEqual(t, len(events), 4)

	progress := events[:len(events)-1]
	prev := 0
	for _, ev := range progress {
		require.Equal(t, "progress", ev.Event)
		var p domain.Progress
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &p))
		assert.GreaterOrEqual(t, p.Percent, prev)
		prev = p.Percent
	}
	assert.GreaterOrEqual(t, len(progress), 3)

	last := events[len(events)-1]
	require.Equal(t, "result", last.Event)
	var result domain.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(last.Data), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "report.pdf", result.File)
	assert.Equal(t, "Layla Mansour", result.Extraction.Patient.Name)

	assert.Eventually(t, func() bool { return srv.workspaces() == 0 }, time.Second, 10*time.Millisecond)
}

func TestAnalyzeStream_FallsBackToPageImages(t *testing.T) {
	uploader := &failingUploader{}
	srv := newTestServer(t, handler.Options{},
		processor.NewDirectStrategy(uploader, time.Millisecond, 3, noSleep, logger.Nop()),
		processor.NewPageImageStrategy(pagedRasterizer{pages: 3}),
	)

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze/stream", "report.pdf", testutil.MinimalPDF(3))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, 1, uploader.uploads)

	events := testutil.ParseSSE(t, rr.Body.String())
	require.NotEmpty(t, events)

	var progress, results int
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, "progress", ev.Event)
		progress++
	}
	for _, ev := range events {
		if ev.Event == "result" {
			results++
		}
	}
	assert.GreaterOrEqual(t, progress, 3)
	assert.Equal(t, 1, results)

	last := events[len(events)-1]
	require.Equal(t, "result", last.Event)
	var result domain.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(last.Data), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, srv.gen.calls)

	assert.Eventually(t, func() bool { return srv.workspaces() == 0 }, time.Second, 10*time.Millisecond)
}

func TestAnalyzeStream_ErrorEvent(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze/stream?pages=7", "report.pdf", testutil.MinimalPDF(3))
	rr := testutil.ExecuteRequest(srv.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	events := testutil.ParseSSE(t, rr.Body.String())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, "error", last.Event)
	var payload domain.ErrorPayload
	require.NoError(t, json.Unmarshal([]byte(last.Data), &payload))
	assert.Equal(t, "Analysis failed", payload.Error)
	assert.Contains(t, payload.Detail, "no valid pages")

	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, "progress", ev.Event)
	}
	assert.Equal(t, 0, srv.gen.calls)
}

func TestAnalyzeStream_SchemaFailure(t *testing.T) {
	srv := newTestServer(t, handler.Options{})
	srv.gen.text = `not json at all`

	req := testutil.NewMultipartRequest(t, http.MethodPost, "/analyze/stream", "scan.webp", []byte("webp"))
	rr := testutil.ExecuteRequest(srv.router, req)

	events := testutil.ParseSSE(t, rr.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Event)
	assert.Contains(t, last.Data, "schema validation failed")
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, handler.Options{})

	rr := testutil.ExecuteRequest(srv.router, httptest.NewRequest(http.MethodGet, "/docs", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	var body httputil.ErrorBody
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, "NOT_FOUND", body.Code)
}
