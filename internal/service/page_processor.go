package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

// PageProcessor runs the per-page extraction pipeline: annotation inspection,
// rendering, optional annotation removal and OCR.
type PageProcessor struct {
	annotations domain.AnnotationBackend
	raster      domain.RasterBackend
	remover     *AnnotationRemover
	ocr         *TextRecognition
	assembler   *DocumentAssembler
	lang        domain.LanguageSpec
	logger      domain.Logger
}

// NewPageProcessor creates a new page processor
func NewPageProcessor(
	annotations domain.AnnotationBackend,
	raster domain.RasterBackend,
	ocr *TextRecognition,
	assembler *DocumentAssembler,
	lang domain.LanguageSpec,
	logger domain.Logger,
) *PageProcessor {
	return &PageProcessor{
		annotations: annotations,
		raster:      raster,
		remover:     NewAnnotationRemover(annotations, raster, logger),
		ocr:         ocr,
		assembler:   assembler,
		lang:        lang,
		logger:      logger,
	}
}

// DefaultOutputPath is where results go when the caller names no output:
// next to the PDF, as <base>_ocr_results.json.
func DefaultOutputPath(pdfPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(filepath.Dir(pdfPath), base+"_ocr_results.json")
}

type nopSink struct{}

func (nopSink) Report(domain.ProgressEvent) {}

// Process runs the pipeline over req.Pages (all pages when empty) and
// persists the result document. A page that fails is recorded with its
// error and the job continues. The returned document is non-nil whenever the
// PDF could be opened, even if an error is returned.
func (p *PageProcessor) Process(ctx context.Context, req domain.ProcessRequest) (*domain.ResultDocument, error) {
	sink := req.Sink
	if sink == nil {
		sink = nopSink{}
	}
	if req.DPI <= 0 {
		req.DPI = domain.DefaultDPI
	}
	if req.OutputPath == "" {
		req.OutputPath = DefaultOutputPath(req.PDFPath)
	}

	if _, err := os.Stat(req.PDFPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, p.fail(sink, "PDF file not found", apperrors.NewNotFoundError("PDF file not found", err))
		}
		return nil, p.fail(sink, "Cannot open PDF", apperrors.NewProcessingError("cannot open PDF", err))
	}

	cleanDir := ""
	if req.ImageDir != "" {
		cleanDir = filepath.Join(req.ImageDir, cleanImagesDir)
		if err := os.MkdirAll(cleanDir, 0o755); err != nil {
			return nil, p.fail(sink, "Cannot create image directory", apperrors.NewInternalError("cannot create image directory", err))
		}
	}

	sink.Report(domain.ProgressEvent{Status: domain.StatusInitializing, Message: "Opening PDF document..."})

	annotated, err := p.annotations.Open(req.PDFPath)
	if err != nil {
		return nil, p.fail(sink, "Cannot open PDF", err)
	}
	defer annotated.Close()

	raster, err := p.raster.Open(req.PDFPath)
	if err != nil {
		return nil, p.fail(sink, "Cannot open PDF", err)
	}
	defer raster.Close()

	totalInDocument := annotated.PageCount()
	if n := raster.NumPage(); n != totalInDocument {
		p.logger.Warn("Page count mismatch between backends", "path", req.PDFPath, "annotations", totalInDocument, "raster", n)
	}
	pages := req.Pages
	if len(pages) == 0 {
		pages = make([]int, totalInDocument)
		for i := range pages {
			pages[i] = i + 1
		}
	} else {
		pages = append([]int(nil), pages...)
	}
	total := len(pages)

	p.logger.Info("Processing PDF", "path", req.PDFPath, "pages", total, "total_in_document", totalInDocument, "dpi", req.DPI)
	sink.Report(domain.ProgressEvent{TotalPages: total, Status: domain.StatusProcessing, Message: "Starting PDF processing..."})

	job := pageJob{
		pdfPath:   req.PDFPath,
		dpi:       req.DPI,
		imageDir:  req.ImageDir,
		cleanDir:  cleanDir,
		annotated: annotated,
		raster:    raster,
	}

	results := make([]domain.PageResult, 0, total)
	cancelled := false
	for i, pageNumber := range pages {
		if ctx.Err() != nil {
			if !cancelled {
				p.logger.Warn("Processing cancelled", "path", req.PDFPath, "remaining_pages", total-i)
				cancelled = true
			}
			results = append(results, failedPage(domain.PageRecord{PageNumber: pageNumber}, domain.ErrCancelled))
			continue
		}

		sink.Report(domain.ProgressEvent{
			CurrentPage: i,
			TotalPages:  total,
			Status:      domain.StatusProcessing,
			Message:     fmt.Sprintf("Processing page %d of %d...", pageNumber, total),
		})

		res := p.processPage(ctx, job, pageNumber)
		if res.Failed() {
			p.logger.Error("Error processing page", res.Err, "page", pageNumber)
			sink.Report(domain.ProgressEvent{
				CurrentPage: i,
				TotalPages:  total,
				Status:      domain.StatusError,
				Error:       fmt.Sprintf("Error processing page %d: %v", pageNumber, res.Err),
			})
		}
		results = append(results, res)
	}

	records := make([]domain.PageRecord, len(results))
	for i, r := range results {
		records[i] = r.Record
	}
	doc := p.assembler.Assemble(domain.DocumentMetadata{
		DocumentName:         filepath.Base(req.PDFPath),
		TotalPagesInDocument: totalInDocument,
		PageNumbers:          pages,
		Language:             p.lang,
	}, records)

	if !p.assembler.Persist(doc, req.OutputPath) {
		return doc, p.fail(sink, "Failed to save results", fmt.Errorf("%w: %s", domain.ErrResultNotWritten, req.OutputPath))
	}

	if cancelled {
		sink.Report(domain.ProgressEvent{
			CurrentPage: total,
			TotalPages:  total,
			Status:      domain.StatusError,
			Message:     "Processing cancelled",
			Error:       domain.ErrCancelled.Error(),
		})
		return doc, domain.ErrCancelled
	}

	sink.Report(domain.ProgressEvent{
		CurrentPage: total,
		TotalPages:  total,
		Status:      domain.StatusCompleted,
		Message:     "PDF processing completed successfully.",
	})
	p.logger.Info("PDF processing completed", "path", req.PDFPath, "output", req.OutputPath)
	return doc, nil
}

// fail reports a job-fatal error as a single error event and returns err.
func (p *PageProcessor) fail(sink domain.ProgressSink, message string, err error) error {
	p.logger.Error(message, err)
	sink.Report(domain.ProgressEvent{
		Status:  domain.StatusError,
		Message: message,
		Error:   err.Error(),
	})
	return err
}

type pageJob struct {
	pdfPath   string
	dpi       int
	imageDir  string
	cleanDir  string
	annotated domain.AnnotatedPDF
	raster    domain.RasterPDF
}

func (p *PageProcessor) processPage(ctx context.Context, job pageJob, pageNumber int) domain.PageResult {
	record := domain.PageRecord{PageNumber: pageNumber, AnnotationTypes: []string{}}

	labels, err := job.annotated.Annotations(pageNumber)
	if err != nil {
		return failedPage(record, err)
	}
	if len(labels) > 0 {
		record.HasAnnotations = true
		record.AnnotationTypes = labels
		p.logger.Info("Page has annotations", "page", pageNumber, "types", strings.Join(labels, ","))
	}

	img, err := job.raster.Render(pageNumber, job.dpi)
	if err != nil {
		return failedPage(record, err)
	}
	data, err := encodePNG(img)
	if err != nil {
		return failedPage(record, apperrors.NewRenderError(pageNumber, err))
	}

	if job.imageDir != "" {
		imagePath := PageImagePath(job.imageDir, pageNumber)
		if err := writeImageFile(imagePath, data); err != nil {
			return failedPage(record, err)
		}
		record.ImagePath = imagePath
	}

	if !record.HasAnnotations || job.imageDir == "" {
		return p.recognize(ctx, record, data)
	}

	record.HighlightedImagePath = record.ImagePath
	cleanPath, removed, err := p.remover.StripAndRender(ctx, job.pdfPath, pageNumber, job.cleanDir, job.dpi)
	if err != nil {
		p.logger.Error("Error removing highlights, using highlighted image", err, "page", pageNumber)
		return p.recognize(ctx, record, data)
	}
	clean, err := os.ReadFile(cleanPath)
	if err != nil {
		p.logger.Error("Error reading clean image, using highlighted image", err, "page", pageNumber)
		return p.recognize(ctx, record, data)
	}

	record.CleanImagePath = cleanPath
	record.RemovedHighlightsCount = &removed
	return p.recognize(ctx, record, clean)
}

func (p *PageProcessor) recognize(ctx context.Context, record domain.PageRecord, img []byte) domain.PageResult {
	text, err := p.ocr.Recognize(ctx, img, record.PageNumber)
	record.Text = text
	if err != nil {
		return failedPage(record, err)
	}
	return domain.PageResult{Record: record}
}

func failedPage(record domain.PageRecord, err error) domain.PageResult {
	record.Text = ""
	record.Error = err.Error()
	if record.AnnotationTypes == nil {
		record.AnnotationTypes = []string{}
	}
	return domain.PageResult{Record: record, Err: err}
}
