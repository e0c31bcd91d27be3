package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"time"

	"pdf-ocr-server/internal/domain"
)

type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		messages: []string{},
	}
}

func (m *MockLogger) add(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.add("INFO: " + msg)
}

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	m.add("ERROR: " + msg + " - " + fmt.Sprint(err))
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.add("DEBUG: " + msg)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.add("WARN: " + msg)
}

func (m *MockLogger) contains(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.messages {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// strippedMarker is what the fake annotation backend writes as a stripped copy.
const strippedMarker = "%PDF-stripped"

// MockAnnotationBackend serves a fixed page count and per-page annotations.
type MockAnnotationBackend struct {
	pages       int
	annotations map[int][]string
	stripErr    error
	openErr     error

	mu         sync.Mutex
	stripCalls []int
}

func NewMockAnnotationBackend(pages int, annotations map[int][]string) *MockAnnotationBackend {
	if annotations == nil {
		annotations = map[int][]string{}
	}
	return &MockAnnotationBackend{pages: pages, annotations: annotations}
}

func (m *MockAnnotationBackend) Open(path string) (domain.AnnotatedPDF, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &mockAnnotatedPDF{backend: m}, nil
}

func (m *MockAnnotationBackend) StripAnnotations(path string, pageNumber int, outPath string) (int, error) {
	m.mu.Lock()
	m.stripCalls = append(m.stripCalls, pageNumber)
	m.mu.Unlock()

	if m.stripErr != nil {
		return 0, m.stripErr
	}
	if err := os.WriteFile(outPath, []byte(strippedMarker), 0o644); err != nil {
		return 0, err
	}
	return len(m.annotations[pageNumber]), nil
}

type mockAnnotatedPDF struct {
	backend *MockAnnotationBackend
	closed  bool
}

func (d *mockAnnotatedPDF) PageCount() int {
	return d.backend.pages
}

func (d *mockAnnotatedPDF) Annotations(pageNumber int) ([]string, error) {
	if pageNumber < 1 || pageNumber > d.backend.pages {
		return nil, fmt.Errorf("%w: page %d of %d", domain.ErrInvalidPage, pageNumber, d.backend.pages)
	}
	return append([]string{}, d.backend.annotations[pageNumber]...), nil
}

func (d *mockAnnotatedPDF) Close() error {
	d.closed = true
	return nil
}

// MockRasterBackend renders a tiny image whose first pixel encodes the page
// number (red) and whether the document was a stripped copy (green).
type MockRasterBackend struct {
	pages     int
	renderErr map[int]error

	mu     sync.Mutex
	opened int
	closed int
}

func NewMockRasterBackend(pages int) *MockRasterBackend {
	return &MockRasterBackend{pages: pages, renderErr: map[int]error{}}
}

func (m *MockRasterBackend) Open(path string) (domain.RasterPDF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	return &mockRasterPDF{backend: m, clean: string(data) == strippedMarker}, nil
}

type mockRasterPDF struct {
	backend *MockRasterBackend
	clean   bool
}

func (d *mockRasterPDF) NumPage() int {
	return d.backend.pages
}

func (d *mockRasterPDF) Render(pageNumber int, dpi int) (image.Image, error) {
	if err := d.backend.renderErr[pageNumber]; err != nil {
		return nil, err
	}
	if pageNumber < 1 || pageNumber > d.backend.pages {
		return nil, fmt.Errorf("%w: page %d", domain.ErrInvalidPage, pageNumber)
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var g uint8
	if d.clean {
		g = 255
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(pageNumber), G: g, B: 0, A: 255})
		}
	}
	return img, nil
}

func (d *mockRasterPDF) Close() error {
	d.backend.mu.Lock()
	d.backend.closed++
	d.backend.mu.Unlock()
	return nil
}

// MockRecognizer decodes the page marker written by MockRasterBackend.
type MockRecognizer struct {
	failPages map[int]bool
	block     chan struct{}
}

func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{failPages: map[int]bool{}}
}

func (m *MockRecognizer) Recognize(ctx context.Context, img []byte, lang domain.LanguageSpec) (string, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	page, clean, err := decodeMarker(img)
	if err != nil {
		return "", err
	}
	if m.failPages[page] {
		return "", errors.New("tesseract crashed")
	}
	return fmt.Sprintf("page %d clean=%t %s", page, clean, lang.String()), nil
}

func decodeMarker(data []byte) (int, bool, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, false, err
	}
	r, g, _, _ := img.At(0, 0).RGBA()
	return int(r >> 8), g>>8 == 255, nil
}

// recordingSink collects every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (s *recordingSink) Report(event domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []domain.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProgressEvent(nil), s.events...)
}

type MockJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.JobRecord
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{jobs: make(map[string]*domain.JobRecord)}
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		return errors.New("job ID is required")
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MockJobRepository) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *MockJobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	job.FinishedAt = &finishedAt
	return nil
}

func (m *MockJobRepository) List(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.JobRecord, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockJobRepository) Close() error {
	return nil
}

type MockResultStore struct {
	mu       sync.Mutex
	enabled  bool
	uploads  map[string]string
	failWith error
}

func NewMockResultStore() *MockResultStore {
	return &MockResultStore{enabled: true, uploads: make(map[string]string)}
}

func (m *MockResultStore) Enabled() bool {
	return m.enabled
}

func (m *MockResultStore) UploadFile(ctx context.Context, localPath, remotePath, contentType string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[remotePath] = localPath
	return nil
}

func (m *MockResultStore) uploaded(remotePath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.uploads[remotePath]
	return ok
}

// MockWordLocator returns fixed word boxes.
type MockWordLocator struct {
	boxes []domain.WordBox
	err   error
	calls int
}

func (m *MockWordLocator) WordBoxes(ctx context.Context, img []byte, lang domain.LanguageSpec) ([]domain.WordBox, error) {
	m.calls++
	return m.boxes, m.err
}
