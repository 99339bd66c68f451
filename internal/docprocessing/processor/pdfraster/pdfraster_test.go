package pdfraster_test

import (
	"bytes"
	"image/jpeg"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/medical-ocr/internal/docprocessing/processor/pdfraster"
	"github.com/medflow/medical-ocr/pkg/testutil"
)

func TestRasterizer_RendersPages(t *testing.T) {
	path := testutil.WriteFile(t, "three.pdf", testutil.MinimalPDF(3))

	doc, err := pdfraster.New().Open(path)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 3, doc.NumPages())

	data, err := doc.RenderJPEG(1)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// 200pt at 144 DPI
	assert.Equal(t, 400, img.Bounds().Dx())
}

func TestRasterizer_OpenFailure(t *testing.T) {
	_, err := pdfraster.New().Open(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
