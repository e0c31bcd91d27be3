// Package fitz renders PDF pages to images with MuPDF via go-fitz.
package fitz

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"

	"github.com/gen2brain/go-fitz"
)

// Backend implements domain.RasterBackend
type Backend struct {
	logger domain.Logger
}

// NewBackend creates a go-fitz raster backend
func NewBackend(logger domain.Logger) *Backend {
	return &Backend{logger: logger}
}

// Document wraps an open go-fitz document.
type Document struct {
	doc    *fitz.Document
	path   string
	logger domain.Logger
}

// Open opens the PDF at path for rendering.
func (b *Backend) Open(path string) (domain.RasterPDF, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("PDF file not found", err)
		}
		return nil, apperrors.NewProcessingError("cannot open PDF", err)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, apperrors.NewProcessingError("cannot open PDF", err)
	}
	return &Document{doc: doc, path: path, logger: b.logger}, nil
}

// NumPage returns the number of pages MuPDF sees.
func (d *Document) NumPage() int {
	return d.doc.NumPage()
}

// Render rasterizes a 1-based page at dpi.
func (d *Document) Render(pageNumber int, dpi int) (image.Image, error) {
	total := d.doc.NumPage()
	if pageNumber < 1 || pageNumber > total {
		return nil, apperrors.NewRenderError(pageNumber, fmt.Errorf("%w: document has %d pages", domain.ErrInvalidPage, total))
	}
	if dpi <= 0 {
		dpi = domain.DefaultDPI
	}

	d.logger.Debug("Rendering page", "page", pageNumber, "dpi", dpi, "path", d.path)
	img, err := d.doc.ImageDPI(pageNumber-1, float64(dpi))
	if err != nil {
		return nil, apperrors.NewRenderError(pageNumber, err)
	}
	return img, nil
}

// Close releases the MuPDF document.
func (d *Document) Close() error {
	return d.doc.Close()
}
