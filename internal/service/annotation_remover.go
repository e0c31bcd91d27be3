package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

// AnnotationRemover produces a clean render of a page with its markup
// annotations removed. The source PDF is never modified.
type AnnotationRemover struct {
	annotations domain.AnnotationBackend
	raster      domain.RasterBackend
	logger      domain.Logger
}

// NewAnnotationRemover creates a remover over the two PDF backends
func NewAnnotationRemover(annotations domain.AnnotationBackend, raster domain.RasterBackend, logger domain.Logger) *AnnotationRemover {
	return &AnnotationRemover{
		annotations: annotations,
		raster:      raster,
		logger:      logger,
	}
}

// StripAndRender writes page{N}_no_highlights.png under outputDir and returns
// its path together with the number of annotations removed.
func (r *AnnotationRemover) StripAndRender(ctx context.Context, pdfPath string, pageNumber int, outputDir string, dpi int) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if _, err := os.Stat(pdfPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, apperrors.NewNotFoundError("PDF file not found", err)
		}
		return "", 0, apperrors.NewProcessingError("cannot open PDF", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", 0, apperrors.NewInternalError("cannot create clean image dir", err)
	}

	scratch, err := os.CreateTemp(outputDir, fmt.Sprintf("page%d-*.pdf", pageNumber))
	if err != nil {
		return "", 0, apperrors.NewInternalError("cannot create scratch copy", err)
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	removed, err := r.annotations.StripAnnotations(pdfPath, pageNumber, scratchPath)
	if err != nil {
		return "", 0, err
	}

	doc, err := r.raster.Open(scratchPath)
	if err != nil {
		return "", 0, apperrors.NewRenderError(pageNumber, err)
	}
	defer doc.Close()

	img, err := doc.Render(pageNumber, dpi)
	if err != nil {
		return "", 0, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", 0, apperrors.NewRenderError(pageNumber, err)
	}

	outPath := filepath.Join(outputDir, cleanImageName(pageNumber))
	if err := writeImageFile(outPath, data); err != nil {
		return "", 0, apperrors.NewInternalError("cannot write clean image", err)
	}

	r.logger.Info("Removed highlights from page", "page", pageNumber, "removed", removed, "image", outPath)
	return outPath, removed, nil
}
