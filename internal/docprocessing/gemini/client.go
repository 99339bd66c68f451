// Package gemini adapts the Google Gen AI SDK to the extraction pipeline:
// structured generation, document upload and upload status polling.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/pkg/logger"
)

// uploadDisplayName is the name documents carry in the file store.
const uploadDisplayName = "medical_document"

// Client talks to the Gemini API. A client built without an API key
// answers every call with domain.ErrConfiguration.
type Client struct {
	genai  *genai.Client
	schema map[string]any
	log    *logger.Logger
}

// New creates a Gemini API client. responseSchema constrains every
// generation to the extraction JSON Schema.
func New(ctx context.Context, apiKey string, responseSchema map[string]any, log *logger.Logger) (*Client, error) {
	c := &Client{schema: responseSchema, log: log.WithComponent("gemini")}
	if apiKey == "" {
		return c, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Generate sends one structured-output request at temperature 0.
// Rate limit and unavailability errors wrap domain.ErrTransientUpstream.
func (c *Client) Generate(ctx context.Context, model domain.Model, content *domain.RenderedContent) (*domain.ModelResponse, error) {
	if c.genai == nil {
		return nil, domain.ErrConfiguration
	}

	parts := make([]*genai.Part, 0, len(content.Parts))
	for _, p := range content.Parts {
		parts = append(parts, toPart(p))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: c.schema,
		Temperature:        genai.Ptr[float32](0),
	}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, string(model), contents, cfg)
	recordRequest(ctx, string(model), "generate", time.Since(start), err)
	if err != nil {
		return nil, classify(err)
	}

	out := &domain.ModelResponse{Text: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = domain.Usage{
			PromptTokens: int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	recordTokens(ctx, string(model), out.Usage)

	c.log.Debug().
		Str("model", string(model)).
		Int("prompt_tokens", out.Usage.PromptTokens).
		Int("output_tokens", out.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("generation complete")
	return out, nil
}

// Upload stores a local document in the Gemini file store.
func (c *Client) Upload(ctx context.Context, path, mimeType string) (*domain.UploadedFile, error) {
	if c.genai == nil {
		return nil, domain.ErrConfiguration
	}

	start := time.Now()
	f, err := c.genai.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		DisplayName: uploadDisplayName,
		MIMEType:    mimeType,
	})
	recordRequest(ctx, "", "upload", time.Since(start), err)
	if err != nil {
		return nil, classify(err)
	}
	return toUploadedFile(f), nil
}

// GetFile fetches the current state of an uploaded document.
func (c *Client) GetFile(ctx context.Context, name string) (*domain.UploadedFile, error) {
	if c.genai == nil {
		return nil, domain.ErrConfiguration
	}

	recordPoll(ctx)
	f, err := c.genai.Files.Get(ctx, name, nil)
	if err != nil {
		return nil, classify(err)
	}
	return toUploadedFile(f), nil
}

func toPart(p domain.Part) *genai.Part {
	switch p.Kind {
	case domain.PartImage:
		return genai.NewPartFromBytes(p.Data, p.MIMEType)
	case domain.PartFile:
		return genai.NewPartFromURI(p.URI, p.MIMEType)
	default:
		return genai.NewPartFromText(p.Text)
	}
}

func toUploadedFile(f *genai.File) *domain.UploadedFile {
	out := &domain.UploadedFile{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    domain.FileState(f.State),
	}
	if f.Error != nil {
		out.Error = f.Error.Message
	}
	return out
}

// classify marks rate limit and unavailability failures as transient.
func classify(err error) error {
	if IsTransient(err) {
		return fmt.Errorf("%w: %v", domain.ErrTransientUpstream, err)
	}
	return err
}

// IsTransient reports whether err is a 429 or 503 class failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return transientStatus(apiErr.Code, apiErr.Status)
	}

	// The SDK also surfaces API errors by value; their text carries the code.
	msg := err.Error()
	for _, marker := range []string{"429", "503", "RESOURCE_EXHAUSTED", "UNAVAILABLE"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func transientStatus(code int, status string) bool {
	return code == 429 || code == 503 || status == "RESOURCE_EXHAUSTED" || status == "UNAVAILABLE"
}
