package handler

import (
	"context"
	"sync"
	"time"

	"pdf-ocr-server/internal/domain"
)

type MockHandlerLogger struct {
	mu     sync.Mutex
	errors []string
}

func NewMockHandlerLogger() *MockHandlerLogger {
	return &MockHandlerLogger{}
}

func (l *MockHandlerLogger) Info(msg string, fields ...interface{}) {}
func (l *MockHandlerLogger) Error(msg string, err error, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *MockHandlerLogger) Debug(msg string, fields ...interface{}) {}
func (l *MockHandlerLogger) Warn(msg string, fields ...interface{})  {}

type MockJobService struct {
	mu        sync.Mutex
	launched  []domain.LaunchRequest
	launchErr error
	result    *domain.JobResult
	running   map[string]bool
	records   map[string]*domain.JobRecord
	listed    []*domain.JobRecord
	listErr   error
	lastLimit int
}

func NewMockJobService() *MockJobService {
	return &MockJobService{
		running: make(map[string]bool),
		records: make(map[string]*domain.JobRecord),
	}
}

func (m *MockJobService) Launch(ctx context.Context, req domain.LaunchRequest) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.launchErr != nil {
		return nil, m.launchErr
	}
	m.launched = append(m.launched, req)
	m.records[req.JobID] = &domain.JobRecord{
		ID:               req.JobID,
		OriginalFilename: req.OriginalFilename,
		PDFPath:          req.PDFPath,
		ResultPath:       req.ResultPath,
		ImageDir:         req.ImageDir,
		Status:           domain.JobRunning,
	}

	done := make(chan domain.JobResult, 1)
	if m.result != nil {
		res := *m.result
		res.JobID = req.JobID
		done <- res
		close(done)
	}
	return domain.NewJob(req.JobID, done), nil
}

func (m *MockJobService) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running[jobID] {
		return false
	}
	delete(m.running, jobID)
	return true
}

func (m *MockJobService) Lookup(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return rec, nil
}

func (m *MockJobService) List(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.listed) > limit {
		return m.listed[:limit], nil
	}
	return m.listed, nil
}

type MockResultService struct {
	docs       map[string]*domain.ResultDocument
	records    map[string]*domain.JobRecord
	images     map[string]string
	searchErr  error
	lastWords  []string
	lastFilter string
}

func NewMockResultService() *MockResultService {
	return &MockResultService{
		docs:    make(map[string]*domain.ResultDocument),
		records: make(map[string]*domain.JobRecord),
		images:  make(map[string]string),
	}
}

func (m *MockResultService) Result(ctx context.Context, jobID string) (*domain.ResultDocument, *domain.JobRecord, error) {
	doc, ok := m.docs[jobID]
	if !ok {
		return nil, nil, domain.ErrResultNotFound
	}
	copied := *doc
	copied.Pages = append([]domain.PageRecord(nil), doc.Pages...)
	return &copied, m.records[jobID], nil
}

func (m *MockResultService) Search(ctx context.Context, jobID string, words []string, filterType string) (*domain.ResultDocument, error) {
	m.lastWords = words
	m.lastFilter = filterType
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	doc, ok := m.docs[jobID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return doc, nil
}

func (m *MockResultService) PageImage(ctx context.Context, jobID string, pageNumber int) (string, error) {
	path, ok := m.images[jobID]
	if !ok {
		return "", domain.ErrImageNotFound
	}
	return path, nil
}

type MockHighlightService struct {
	path  string
	count int
	err   error
}

func (m *MockHighlightService) HighlightPage(ctx context.Context, jobID string, pageNumber int, words []string) (string, int, error) {
	if m.err != nil {
		return "", 0, m.err
	}
	return m.path, m.count, nil
}

type MockProgressService struct {
	mu     sync.Mutex
	states map[string]domain.ProgressState
	subs   []chan domain.ProgressUpdate
	ready  chan struct{}
}

func NewMockProgressService() *MockProgressService {
	return &MockProgressService{
		states: make(map[string]domain.ProgressState),
		ready:  make(chan struct{}, 1),
	}
}

func (m *MockProgressService) Query(jobID string) (domain.ProgressState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[jobID]
	return state, ok
}

func (m *MockProgressService) Subscribe() (<-chan domain.ProgressUpdate, func()) {
	m.mu.Lock()
	ch := make(chan domain.ProgressUpdate, 16)
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return ch, func() {}
}

func (m *MockProgressService) publish(update domain.ProgressUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		ch <- update
	}
}

func finishedState(jobID string) domain.ProgressState {
	now := time.Now()
	return domain.ProgressState{
		JobID:       jobID,
		CurrentPage: 2,
		TotalPages:  2,
		Percentage:  100,
		Status:      domain.StatusCompleted,
		Message:     "Processing completed",
		Errors:      []string{},
		FinishedAt:  &now,
	}
}
