package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"

	"github.com/google/uuid"
)

// DocumentProcessor runs the extraction pipeline for one request.
type DocumentProcessor interface {
	Process(ctx context.Context, req domain.ProcessRequest) (*domain.ResultDocument, error)
}

// JobRunner launches one background worker per job and reports through the
// shared progress tracker.
type JobRunner struct {
	processor DocumentProcessor
	tracker   *ProgressTracker
	repo      domain.JobRepository
	store     domain.ResultStore
	maxPages  int
	logger    domain.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobRunner creates a new job runner. store may be nil. maxPages bounds
// the explicit page list of a request; zero or less means DefaultMaxPages.
func NewJobRunner(processor DocumentProcessor, tracker *ProgressTracker, repo domain.JobRepository, store domain.ResultStore, maxPages int, logger domain.Logger) *JobRunner {
	if maxPages <= 0 {
		maxPages = domain.DefaultMaxPages
	}
	return &JobRunner{
		processor: processor,
		tracker:   tracker,
		repo:      repo,
		store:     store,
		maxPages:  maxPages,
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Launch records the job and starts it. The job outlives ctx; use Cancel to stop it.
func (r *JobRunner) Launch(ctx context.Context, req domain.LaunchRequest) (*domain.Job, error) {
	if req.PDFPath == "" {
		return nil, apperrors.NewValidationError("PDF path is required")
	}
	if req.ResultPath == "" {
		return nil, apperrors.NewValidationError("result path is required")
	}
	if len(req.Pages) > r.maxPages {
		return nil, apperrors.NewValidationError("too many pages requested", fmt.Sprintf("%d pages, max %d", len(req.Pages), r.maxPages))
	}
	for _, p := range req.Pages {
		if p < 1 {
			return nil, apperrors.NewValidationError("page numbers start at 1", fmt.Sprintf("got %d", p))
		}
	}
	if req.DPI <= 0 {
		req.DPI = domain.DefaultDPI
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	record := &domain.JobRecord{
		ID:               jobID,
		OriginalFilename: req.OriginalFilename,
		PDFPath:          req.PDFPath,
		ResultPath:       req.ResultPath,
		ImageDir:         req.ImageDir,
		Pages:            append([]int(nil), req.Pages...),
		DPI:              req.DPI,
		Status:           domain.JobRunning,
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	r.tracker.Begin(jobID, len(req.Pages))

	jobCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[jobID] = cancel
	r.mu.Unlock()

	done := make(chan domain.JobResult, 1)
	r.wg.Add(1)
	go r.run(jobCtx, jobID, req, done)

	r.logger.Info("Job launched", "job_id", jobID, "pdf", req.PDFPath, "pages", len(req.Pages))
	return domain.NewJob(jobID, done), nil
}

func (r *JobRunner) run(ctx context.Context, jobID string, req domain.LaunchRequest, done chan<- domain.JobResult) {
	defer r.wg.Done()
	defer close(done)
	defer r.forget(jobID)

	result := domain.JobResult{JobID: jobID}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				result.Err = fmt.Errorf("job panicked: %v", rec)
			}
		}()
		result.Document, result.Err = r.processor.Process(ctx, domain.ProcessRequest{
			PDFPath:    req.PDFPath,
			Pages:      req.Pages,
			OutputPath: req.ResultPath,
			DPI:        req.DPI,
			ImageDir:   req.ImageDir,
			Sink:       r.tracker.Sink(jobID),
		})
	}()

	success := result.Err == nil
	if success {
		r.mirror(jobID, req, result.Document)
	} else {
		r.logger.Error("Job failed", result.Err, "job_id", jobID)
	}

	status := domain.JobCompleted
	if !success {
		status = domain.JobFailed
	}
	if err := r.repo.UpdateStatus(context.Background(), jobID, status, time.Now().UTC()); err != nil {
		r.logger.Error("Failed to update job status", err, "job_id", jobID)
	}

	r.tracker.Finish(jobID, success)
	done <- result
}

func (r *JobRunner) forget(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[jobID]; ok {
		cancel()
		delete(r.cancels, jobID)
	}
}

// Cancel stops a running job. Pages not yet processed are recorded as cancelled.
func (r *JobRunner) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	r.logger.Info("Job cancellation requested", "job_id", jobID)
	return true
}

// Lookup returns the stored record of a job.
func (r *JobRunner) Lookup(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return r.repo.Get(ctx, jobID)
}

// List returns up to limit stored jobs, newest first.
func (r *JobRunner) List(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	return r.repo.List(ctx, limit)
}

// Wait blocks until every launched job has finished.
func (r *JobRunner) Wait() {
	r.wg.Wait()
}

// CancelAll cancels every running job.
func (r *JobRunner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

// mirror uploads the result and page images to remote storage. Failures are
// logged only.
func (r *JobRunner) mirror(jobID string, req domain.LaunchRequest, doc *domain.ResultDocument) {
	if r.store == nil || !r.store.Enabled() || doc == nil {
		return
	}
	ctx := context.Background()

	if err := r.store.UploadFile(ctx, req.ResultPath, path.Join(jobID, "result.json"), "application/json"); err != nil {
		r.logger.Error("Failed to mirror result", err, "job_id", jobID)
		return
	}

	var errs []error
	for _, page := range doc.Pages {
		for _, local := range []string{page.ImagePath, page.CleanImagePath} {
			if local == "" {
				continue
			}
			remote := path.Join(jobID, "images", filepath.Base(local))
			if err := r.store.UploadFile(ctx, local, remote, "image/png"); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.Error("Failed to mirror page images", err, "job_id", jobID, "failed", len(errs))
		return
	}
	r.logger.Info("Job artifacts mirrored", "job_id", jobID)
}
