package domain

import (
	"path/filepath"
	"strings"

	"github.com/medflow/medical-ocr/internal/docprocessing/schema"
)

// Model identifies a supported model tier.
type Model string

const (
	ModelFlashPreview Model = "gemini-3-flash-preview"
	ModelFlash        Model = "gemini-2.5-flash"
	ModelFlashLite    Model = "gemini-2.5-flash-lite"

	DefaultModel = ModelFlashLite
)

// SupportedModels lists the models the API accepts, in display order.
var SupportedModels = []Model{ModelFlashPreview, ModelFlash, ModelFlashLite}

// IsSupported reports whether m is one of SupportedModels.
func (m Model) IsSupported() bool {
	for _, s := range SupportedModels {
		if m == s {
			return true
		}
	}
	return false
}

// SourceKind separates PDFs from raster images.
type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceImage SourceKind = "image"
)

// AllowedExtensions is the upload allow-list (lower case, with dot).
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsAllowedFile checks the file extension case-insensitively.
func IsAllowedFile(name string) bool {
	return AllowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// KindOf classifies a path by extension.
func KindOf(path string) SourceKind {
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		return SourcePDF
	}
	return SourceImage
}

// ImageMIMEType picks the MIME type sent with a raster image.
func ImageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// PartKind tags a content part.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
	PartFile  PartKind = "file"
)

// Part is one unit of multimodal input.
type Part struct {
	Kind     PartKind
	Text     string
	Data     []byte
	MIMEType string
	URI      string
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func ImagePart(data []byte, mimeType string) Part {
	return Part{Kind: PartImage, Data: data, MIMEType: mimeType}
}

func FilePart(uri, mimeType string) Part {
	return Part{Kind: PartFile, URI: uri, MIMEType: mimeType}
}

// RenderedContent is the ordered input for a single model request.
type RenderedContent struct {
	Parts []Part
	// Strategy names the renderer that produced the parts.
	Strategy string
}

// FileState is the processing state of an uploaded document.
type FileState string

const (
	FileStateProcessing FileState = "PROCESSING"
	FileStateActive     FileState = "ACTIVE"
	FileStateFailed     FileState = "FAILED"
)

// UploadedFile is the model service's view of an uploaded document.
type UploadedFile struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
	Error    string
}

// Usage reports token counts for one request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Timing reports wall clock and throughput for one extraction.
type Timing struct {
	TotalSeconds    float64 `json:"total_seconds"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// ExtractionResult is the outcome of one extraction. Success false with a
// RawResponse is the soft schema failure; hard failures are errors instead.
type ExtractionResult struct {
	Success     bool                      `json:"success"`
	File        string                    `json:"file,omitempty"`
	Model       Model                     `json:"model,omitempty"`
	Extraction  *schema.MedicalExtraction `json:"extraction,omitempty"`
	Timing      *Timing                   `json:"timing,omitempty"`
	Usage       *Usage                    `json:"usage,omitempty"`
	Timestamp   string                    `json:"timestamp,omitempty"`
	Error       string                    `json:"error,omitempty"`
	RawResponse string                    `json:"raw_response,omitempty"`
}

// Progress is a single progress report.
type Progress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressFunc receives progress reports. It may be nil.
type ProgressFunc func(Progress)

// EventType tags a streaming event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Event is one item on a streaming extraction channel. Exactly one of the
// payload fields is set, matching Type.
type Event struct {
	Type     EventType
	Progress *Progress
	Result   *ExtractionResult
	Error    *ErrorPayload
}

// Terminal reports whether no event follows this one.
func (e Event) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}

// Payload returns the value serialised as the event data.
func (e Event) Payload() interface{} {
	switch e.Type {
	case EventProgress:
		return e.Progress
	case EventResult:
		return e.Result
	default:
		return e.Error
	}
}

// Request describes one extraction.
type Request struct {
	// Path is the local file to analyse.
	Path string
	// DisplayName is reported as the result file; defaults to the base of Path.
	DisplayName string
	Model       Model
	// Pages are 1-based page numbers; nil means every page.
	Pages     []int
	RequestID string
}

// Name returns the file name reported in results.
func (r Request) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return filepath.Base(r.Path)
}

// ModelResponse is the raw answer of the model service.
type ModelResponse struct {
	Text  string
	Usage Usage
}
