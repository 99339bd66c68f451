package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/pages"
	"github.com/medflow/medical-ocr/internal/docprocessing/storage"
	"github.com/medflow/medical-ocr/pkg/errors"
	"github.com/medflow/medical-ocr/pkg/httputil"
	"github.com/medflow/medical-ocr/pkg/logger"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const defaultMaxUpload = 50 << 20 // 50MB

func init() {
	err := httputil.RegisterCustomValidation("supported_model", func(fl validator.FieldLevel) bool {
		return domain.Model(fl.Field().String()).IsSupported()
	})
	if err != nil {
		panic(err)
	}
}

// Extractor runs extractions. *service.Service implements it.
type Extractor interface {
	Extract(ctx context.Context, req domain.Request, progress domain.ProgressFunc) (*domain.ExtractionResult, error)
	Stream(ctx context.Context, req domain.Request) <-chan domain.Event
}

// Options configure upload handling.
type Options struct {
	// TempDir is the parent of per-request workspaces; empty means os.TempDir.
	TempDir        string
	MaxUploadBytes int64
	// DefaultModel is used when a request names no model.
	DefaultModel domain.Model
}

// Handler handles HTTP requests for document extraction
type Handler struct {
	svc  Extractor
	opts Options
	log  *logger.Logger
	now  func() time.Time
}

// NewHandler creates a new document extraction handler
func NewHandler(svc Extractor, opts Options, log *logger.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = domain.DefaultModel
	}
	return &Handler{
		svc:  svc,
		opts: opts,
		log:  log.WithComponent("http"),
		now:  time.Now,
	}
}

// Routes mounts the extraction endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Health)
	r.Get("/health", h.Health)
	r.Post("/analyze", h.Analyze)
	r.Post("/analyze/stream", h.AnalyzeStream)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, errors.NotFound("route"))
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Health handles GET / and GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now().Format(time.RFC3339),
		Version:   Version,
	})
}

// Analyze handles POST /analyze
// Accepts multipart form with:
// - file: PDF or image
// Query: model, use_schema, pages
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	up, err := h.receive(w, r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer up.close()

	result, err := h.svc.Extract(r.Context(), up.req, nil)
	if err != nil {
		h.log.Error().Err(err).
			Str("request_id", up.req.RequestID).
			Str("file", up.req.Name()).
			Msg("analysis failed")
		httputil.Error(w, errors.Wrap(err, "ANALYSIS_FAILED", "Analysis failed", http.StatusInternalServerError))
		return
	}
	if !result.Success {
		httputil.JSON(w, http.StatusInternalServerError, httputil.ErrorBody{
			Success: false,
			Error:   result.Error,
			Detail:  "extraction response failed schema validation",
			Code:    "SCHEMA_VALIDATION_FAILED",
		})
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// AnalyzeStream handles POST /analyze/stream
// Same inputs as Analyze; the response is a server-sent event stream of
// progress events ending with one result or error event.
func (h *Handler) AnalyzeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, errors.Internal("Streaming not supported"))
		return
	}

	up, err := h.receive(w, r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	// The extraction outlives a disconnected client; the workspace is
	// removed once the producer is done.
	events := h.svc.Stream(context.WithoutCancel(r.Context()), up.req)
	defer func() {
		go func() {
			for range events {
			}
			up.close()
		}()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Str("request_id", up.req.RequestID).Msg("client disconnected")
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.log.Warn().Err(err).Msg("failed to write event")
				return
			}
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev domain.Event) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

type analyzeQuery struct {
	Model     string `validate:"supported_model"`
	UseSchema bool
	Pages     []int
}

func (h *Handler) parseQuery(r *http.Request) (*analyzeQuery, error) {
	q := r.URL.Query()
	out := &analyzeQuery{
		Model:     string(h.opts.DefaultModel),
		UseSchema: true,
	}
	if m := q.Get("model"); m != "" {
		out.Model = m
	}
	if s := q.Get("use_schema"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.BadRequest("Invalid use_schema").WithDetail("use_schema must be true or false")
		}
		out.UseSchema = v
	}
	if p := q.Get("pages"); p != "" {
		sel, err := pages.Parse(p)
		if err != nil {
			return nil, errors.BadRequest("Invalid page selection").WithDetail(err.Error())
		}
		out.Pages = sel
	}

	if err := httputil.Validate(out); err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr.WithDetail("model must be one of: " + modelList())
		}
		return nil, err
	}
	if !out.UseSchema {
		// Output is always schema constrained.
		h.log.Debug().Msg("use_schema=false ignored")
	}
	return out, nil
}

// upload is a received document inside its own workspace.
type upload struct {
	ws  *storage.Workspace
	req domain.Request
}

func (u *upload) close() {
	u.ws.Close()
}

// receive validates the query and stores the uploaded file in a fresh
// workspace. The caller must close the returned upload.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) (*upload, error) {
	query, err := h.parseQuery(r)
	if err != nil {
		return nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.BadRequest("File too large").
				WithDetail(fmt.Sprintf("uploads are limited to %d bytes", h.opts.MaxUploadBytes))
		}
		return nil, errors.BadRequest("No file provided").WithDetail(err.Error())
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if !domain.IsAllowedFile(header.Filename) {
		return nil, errors.BadRequest("Unsupported file type").
			WithDetail("allowed extensions: " + extensionList())
	}

	ws, err := storage.NewWorkspace(h.opts.TempDir)
	if err != nil {
		return nil, err
	}
	path, err := ws.Save(header.Filename, file, h.opts.MaxUploadBytes)
	if err != nil {
		ws.Close()
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, errors.BadRequest("File too large").WithDetail(err.Error())
		}
		return nil, err
	}

	return &upload{
		ws: ws,
		req: domain.Request{
			Path:        path,
			DisplayName: header.Filename,
			Model:       domain.Model(query.Model),
			Pages:       query.Pages,
			RequestID:   httputil.GetRequestID(r.Context()),
		},
	}, nil
}

func modelList() string {
	names := make([]string, len(domain.SupportedModels))
	for i, m := range domain.SupportedModels {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func extensionList() string {
	exts := make([]string, 0, len(domain.AllowedExtensions))
	for ext := range domain.AllowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
