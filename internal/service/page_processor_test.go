package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

type processorFixture struct {
	processor   *PageProcessor
	annotations *MockAnnotationBackend
	raster      *MockRasterBackend
	recognizer  *MockRecognizer
	logger      *MockLogger
	pdfPath     string
	dir         string
}

func newProcessorFixture(t *testing.T, pages int, annotations map[int][]string, recordOCRErrors bool) *processorFixture {
	t.Helper()
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-fake"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	logger := NewMockLogger()
	ab := NewMockAnnotationBackend(pages, annotations)
	rb := NewMockRasterBackend(pages)
	rec := NewMockRecognizer()
	ocr := NewTextRecognition(rec, domain.HebrewEnglish, recordOCRErrors, logger)
	processor := NewPageProcessor(ab, rb, ocr, NewDocumentAssembler(logger), domain.HebrewEnglish, logger)

	return &processorFixture{
		processor:   processor,
		annotations: ab,
		raster:      rb,
		recognizer:  rec,
		logger:      logger,
		pdfPath:     pdfPath,
		dir:         dir,
	}
}

func (f *processorFixture) request(pages []int, sink domain.ProgressSink) domain.ProcessRequest {
	return domain.ProcessRequest{
		PDFPath:    f.pdfPath,
		Pages:      pages,
		OutputPath: filepath.Join(f.dir, "out", "result.json"),
		DPI:        300,
		ImageDir:   filepath.Join(f.dir, "images"),
		Sink:       sink,
	}
}

func TestPageProcessor_AnnotatedPagesUseCleanImage(t *testing.T) {
	f := newProcessorFixture(t, 5, map[int][]string{2: {"Highlight"}, 4: {"Highlight"}}, false)
	tracker := NewProgressTracker(time.Hour, domain.SweepCompleted, f.logger)
	tracker.Begin("job-1", 0)

	doc, err := f.processor.Process(context.Background(), f.request(nil, tracker.Sink("job-1")))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(doc.Pages) != 5 {
		t.Fatalf("expected 5 page records, got %d", len(doc.Pages))
	}
	if !reflect.DeepEqual(doc.PageNumbersProcessed, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("unexpected page numbers %v", doc.PageNumbersProcessed)
	}
	for _, page := range doc.Pages {
		annotated := page.PageNumber == 2 || page.PageNumber == 4
		if page.HasAnnotations != annotated {
			t.Fatalf("page %d: has_annotations = %v", page.PageNumber, page.HasAnnotations)
		}
		if page.Error != "" {
			t.Fatalf("page %d: unexpected error %q", page.PageNumber, page.Error)
		}
		if !annotated {
			if page.RemovedHighlightsCount != nil || page.CleanImagePath != "" {
				t.Fatalf("page %d: unexpected clean image fields", page.PageNumber)
			}
			if len(page.AnnotationTypes) != 0 {
				t.Fatalf("page %d: expected no annotation types, got %v", page.PageNumber, page.AnnotationTypes)
			}
			continue
		}
		if page.RemovedHighlightsCount == nil || *page.RemovedHighlightsCount != 1 {
			t.Fatalf("page %d: expected one removed highlight, got %v", page.PageNumber, page.RemovedHighlightsCount)
		}
		if page.CleanImagePath == "" || page.CleanImagePath == page.HighlightedImagePath {
			t.Fatalf("page %d: expected distinct clean image, got %q", page.PageNumber, page.CleanImagePath)
		}
		if _, err := os.Stat(page.CleanImagePath); err != nil {
			t.Fatalf("page %d: clean image missing: %v", page.PageNumber, err)
		}
		if !strings.Contains(page.Text, "clean=true") {
			t.Fatalf("page %d: OCR should run on the clean image, got %q", page.PageNumber, page.Text)
		}
	}

	state, ok := tracker.Query("job-1")
	if !ok {
		t.Fatalf("expected tracked job")
	}
	if state.Status != domain.StatusCompleted || state.Percentage != 100 {
		t.Fatalf("expected completed at 100%%, got %s at %d", state.Status, state.Percentage)
	}
	if f.raster.opened != f.raster.closed {
		t.Fatalf("raster handles leaked: opened %d closed %d", f.raster.opened, f.raster.closed)
	}
}

func TestPageProcessor_OutOfRangePageIsPageLocal(t *testing.T) {
	f := newProcessorFixture(t, 5, nil, false)

	doc, err := f.processor.Process(context.Background(), f.request([]int{10}, nil))
	if err != nil {
		t.Fatalf("expected job success, got %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected one record, got %d", len(doc.Pages))
	}
	page := doc.Pages[0]
	if page.PageNumber != 10 || page.Error == "" || page.Text != "" {
		t.Fatalf("unexpected record %+v", page)
	}
	if doc.TotalPagesInDocument != 5 {
		t.Fatalf("expected 5 pages in document, got %d", doc.TotalPagesInDocument)
	}
}

func TestPageProcessor_OCRFailureIsSwallowed(t *testing.T) {
	f := newProcessorFixture(t, 5, nil, false)
	f.recognizer.failPages[3] = true

	doc, err := f.processor.Process(context.Background(), f.request(nil, nil))
	if err != nil {
		t.Fatalf("expected job success, got %v", err)
	}
	for _, page := range doc.Pages {
		if page.Error != "" {
			t.Fatalf("page %d: OCR failure should not surface an error, got %q", page.PageNumber, page.Error)
		}
		if page.PageNumber == 3 && page.Text != "" {
			t.Fatalf("page 3: expected empty text, got %q", page.Text)
		}
		if page.PageNumber != 3 && page.Text == "" {
			t.Fatalf("page %d: expected text", page.PageNumber)
		}
	}
	if !f.logger.contains("WARN: Error performing OCR") {
		t.Fatalf("expected OCR warning to be logged")
	}
}

func TestPageProcessor_OCRFailureRecordedWhenEnabled(t *testing.T) {
	f := newProcessorFixture(t, 3, nil, true)
	f.recognizer.failPages[3] = true

	doc, err := f.processor.Process(context.Background(), f.request(nil, nil))
	if err != nil {
		t.Fatalf("expected job success, got %v", err)
	}
	if doc.Pages[2].Error == "" || doc.Pages[2].Text != "" {
		t.Fatalf("expected recorded OCR error on page 3, got %+v", doc.Pages[2])
	}
	if doc.Pages[0].Error != "" {
		t.Fatalf("page 1 should be unaffected, got %q", doc.Pages[0].Error)
	}
}

func TestPageProcessor_RequestOrderIsKept(t *testing.T) {
	f := newProcessorFixture(t, 5, nil, false)

	doc, err := f.processor.Process(context.Background(), f.request([]int{5, 1, 3}, nil))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !reflect.DeepEqual(doc.PageNumbersProcessed, []int{5, 1, 3}) {
		t.Fatalf("unexpected page numbers %v", doc.PageNumbersProcessed)
	}
	got := []int{doc.Pages[0].PageNumber, doc.Pages[1].PageNumber, doc.Pages[2].PageNumber}
	if !reflect.DeepEqual(got, []int{5, 1, 3}) {
		t.Fatalf("unexpected record order %v", got)
	}
	if doc.PagesProcessed != 3 {
		t.Fatalf("expected 3 pages processed, got %d", doc.PagesProcessed)
	}
}

func TestPageProcessor_ProgressIsMonotonic(t *testing.T) {
	f := newProcessorFixture(t, 4, map[int][]string{2: {"Highlight"}}, false)
	f.raster.renderErr[3] = errors.New("corrupt page")
	sink := &recordingSink{}

	if _, err := f.processor.Process(context.Background(), f.request(nil, sink)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	events := sink.snapshot()
	if len(events) == 0 {
		t.Fatalf("expected progress events")
	}
	last := -1
	sawPageError := false
	for _, ev := range events {
		if ev.CurrentPage < last {
			t.Fatalf("current page went backwards: %v", events)
		}
		last = ev.CurrentPage
		if ev.Status == domain.StatusError && strings.Contains(ev.Error, "Error processing page 3") {
			sawPageError = true
		}
	}
	if !sawPageError {
		t.Fatalf("expected a page error event, got %v", events)
	}
	final := events[len(events)-1]
	if final.Status != domain.StatusCompleted || final.CurrentPage != final.TotalPages {
		t.Fatalf("unexpected final event %+v", final)
	}
	if events[0].Status != domain.StatusInitializing {
		t.Fatalf("expected initializing first, got %+v", events[0])
	}
}

func TestPageProcessor_RemovalFailureFallsBack(t *testing.T) {
	f := newProcessorFixture(t, 2, map[int][]string{1: {"Highlight", "Underline"}}, false)
	f.annotations.stripErr = errors.New("cannot strip")

	doc, err := f.processor.Process(context.Background(), f.request(nil, nil))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	page := doc.Pages[0]
	if page.Error != "" {
		t.Fatalf("fallback should not record an error, got %q", page.Error)
	}
	if !strings.Contains(page.Text, "clean=false") {
		t.Fatalf("expected OCR on the highlighted image, got %q", page.Text)
	}
	if page.RemovedHighlightsCount != nil || page.CleanImagePath != "" {
		t.Fatalf("expected no clean image fields, got %+v", page)
	}
	if !reflect.DeepEqual(page.AnnotationTypes, []string{"Highlight", "Underline"}) {
		t.Fatalf("unexpected annotation types %v", page.AnnotationTypes)
	}
}

func TestPageProcessor_NoImageDirSkipsRemoval(t *testing.T) {
	f := newProcessorFixture(t, 2, map[int][]string{1: {"Highlight"}}, false)
	req := f.request(nil, nil)
	req.ImageDir = ""

	doc, err := f.processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(f.annotations.stripCalls) != 0 {
		t.Fatalf("expected no annotation removal, got %v", f.annotations.stripCalls)
	}
	if !doc.Pages[0].HasAnnotations || doc.Pages[0].ImagePath != "" {
		t.Fatalf("unexpected record %+v", doc.Pages[0])
	}
}

func TestPageProcessor_MissingPDFIsJobFatal(t *testing.T) {
	f := newProcessorFixture(t, 2, nil, false)
	sink := &recordingSink{}
	req := f.request(nil, sink)
	req.PDFPath = filepath.Join(f.dir, "missing.pdf")

	doc, err := f.processor.Process(context.Background(), req)
	if err == nil {
		t.Fatalf("expected error")
	}
	if doc != nil {
		t.Fatalf("expected no document")
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("expected not_found error, got %v", err)
	}
	events := sink.snapshot()
	if len(events) != 1 || events[0].Status != domain.StatusError || events[0].CurrentPage != 0 || events[0].TotalPages != 0 {
		t.Fatalf("expected a single error event, got %v", events)
	}
}

func TestPageProcessor_PersistFailureIsDistinguishable(t *testing.T) {
	f := newProcessorFixture(t, 2, nil, false)
	blocker := filepath.Join(f.dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	sink := &recordingSink{}
	req := f.request(nil, sink)
	req.OutputPath = filepath.Join(blocker, "result.json")

	doc, err := f.processor.Process(context.Background(), req)
	if !errors.Is(err, domain.ErrResultNotWritten) {
		t.Fatalf("expected ErrResultNotWritten, got %v", err)
	}
	if doc == nil || len(doc.Pages) != 2 || doc.Pages[0].Text == "" {
		t.Fatalf("expected processed document to be returned, got %+v", doc)
	}
	events := sink.snapshot()
	final := events[len(events)-1]
	if final.Status != domain.StatusError {
		t.Fatalf("expected final error event, got %+v", final)
	}
	if final.CurrentPage != 0 || final.TotalPages != 0 {
		t.Fatalf("expected job-fatal event to carry (0,0), got (%d,%d)", final.CurrentPage, final.TotalPages)
	}
	if final.Message != "Failed to save results" {
		t.Fatalf("unexpected message %q", final.Message)
	}
}

func TestPageProcessor_WarnsOnPageCountMismatch(t *testing.T) {
	f := newProcessorFixture(t, 2, nil, false)
	f.raster.pages = 3

	doc, err := f.processor.Process(context.Background(), f.request(nil, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.TotalPagesInDocument != 2 {
		t.Fatalf("expected annotation backend page count, got %d", doc.TotalPagesInDocument)
	}
	if !f.logger.contains("WARN: Page count mismatch") {
		t.Fatalf("expected mismatch warning, got %v", f.logger.messages)
	}
}

func TestPageProcessor_MatchingPageCountsDoNotWarn(t *testing.T) {
	f := newProcessorFixture(t, 2, nil, false)

	if _, err := f.processor.Process(context.Background(), f.request(nil, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.logger.contains("WARN: Page count mismatch") {
		t.Fatalf("unexpected mismatch warning")
	}
}

func TestPageProcessor_CancelledJobRecordsEveryPage(t *testing.T) {
	f := newProcessorFixture(t, 3, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := f.request(nil, nil)
	doc, err := f.processor.Process(ctx, req)
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 records, got %d", len(doc.Pages))
	}
	for _, page := range doc.Pages {
		if page.Error != domain.ErrCancelled.Error() {
			t.Fatalf("page %d: expected cancelled error, got %q", page.PageNumber, page.Error)
		}
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		t.Fatalf("expected result to be persisted: %v", err)
	}
}

func TestPageProcessor_Idempotent(t *testing.T) {
	f := newProcessorFixture(t, 3, map[int][]string{2: {"Highlight"}}, false)

	first, err := f.processor.Process(context.Background(), f.request(nil, nil))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := f.processor.Process(context.Background(), f.request(nil, nil))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first.Pages {
		if first.Pages[i].Text != second.Pages[i].Text || first.Pages[i].HasAnnotations != second.Pages[i].HasAnnotations {
			t.Fatalf("page %d differs between runs", first.Pages[i].PageNumber)
		}
	}
}

func TestDefaultOutputPath(t *testing.T) {
	got := DefaultOutputPath(filepath.Join("in", "report.pdf"))
	want := filepath.Join("in", "report_ocr_results.json")
	if got != want {
		t.Fatalf("DefaultOutputPath() = %q, want %q", got, want)
	}
}
