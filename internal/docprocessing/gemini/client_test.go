package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/pkg/logger"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api 429", &genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, true},
		{"api 503", &genai.APIError{Code: 503, Status: "UNAVAILABLE"}, true},
		{"api 400", &genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, false},
		{"wrapped api 503", fmt.Errorf("call: %w", &genai.APIError{Code: 503}), true},
		{"text 429", errors.New("Error 429, Message: quota exceeded"), true},
		{"text unavailable", errors.New("rpc error: UNAVAILABLE"), true},
		{"other", errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	err := classify(errors.New("503 Service Unavailable"))
	assert.ErrorIs(t, err, domain.ErrTransientUpstream)

	err = classify(errors.New("bad request"))
	assert.NotErrorIs(t, err, domain.ErrTransientUpstream)
}

func TestClient_WithoutKey(t *testing.T) {
	c, err := New(context.Background(), "", map[string]any{}, logger.Nop())
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), domain.DefaultModel, &domain.RenderedContent{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = c.Upload(context.Background(), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = c.GetFile(context.Background(), "files/x")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestToPart(t *testing.T) {
	p := toPart(domain.TextPart("hello"))
	assert.Equal(t, "hello", p.Text)

	p = toPart(domain.ImagePart([]byte{1, 2}, "image/png"))
	require.NotNil(t, p.InlineData)
	assert.Equal(t, "image/png", p.InlineData.MIMEType)
	assert.Equal(t, []byte{1, 2}, p.InlineData.Data)

	p = toPart(domain.FilePart("https://files/abc", "application/pdf"))
	require.NotNil(t, p.FileData)
	assert.Equal(t, "https://files/abc", p.FileData.FileURI)
}

func TestToUploadedFile(t *testing.T) {
	f := toUploadedFile(&genai.File{
		Name:     "files/abc",
		URI:      "https://files/abc",
		MIMEType: "application/pdf",
		State:    genai.FileStateFailed,
		Error:    &genai.FileStatus{Message: "unreadable"},
	})
	assert.Equal(t, domain.FileStateFailed, f.State)
	assert.Equal(t, "unreadable", f.Error)
}
