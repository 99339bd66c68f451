// Package pdfraster renders PDF pages to JPEG with MuPDF (cgo).
package pdfraster

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/medflow/medical-ocr/internal/docprocessing/processor"
)

// DPI is twice the PDF base resolution of 72.
const DPI = 144

// Quality is the JPEG encoder quality.
const Quality = 85

// Rasterizer implements processor.Rasterizer.
type Rasterizer struct{}

// New returns a MuPDF rasteriser.
func New() *Rasterizer {
	return &Rasterizer{}
}

func (Rasterizer) Open(path string) (processor.PDFDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("fitz open: %w", err)
	}
	return &document{doc: doc}, nil
}

type document struct {
	doc *fitz.Document
}

func (d *document) NumPages() int {
	return d.doc.NumPage()
}

func (d *document) RenderJPEG(index int) ([]byte, error) {
	img, err := d.doc.ImageDPI(index, DPI)
	if err != nil {
		return nil, fmt.Errorf("fitz render page %d: %w", index, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", index, err)
	}
	return buf.Bytes(), nil
}

func (d *document) Close() error {
	return d.doc.Close()
}
