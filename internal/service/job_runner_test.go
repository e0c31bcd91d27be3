package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

func waitForJob(t *testing.T, job *domain.Job) domain.JobResult {
	t.Helper()
	select {
	case res := <-job.Done():
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for job %s", job.ID)
	}
	return domain.JobResult{}
}

func TestJobRunner_LaunchRunsToCompletion(t *testing.T) {
	f := newProcessorFixture(t, 3, map[int][]string{2: {"Highlight"}}, false)
	repo := NewMockJobRepository()
	store := NewMockResultStore()
	tracker := NewProgressTracker(time.Hour, domain.SweepCompleted, f.logger)
	runner := NewJobRunner(f.processor, tracker, repo, store, domain.DefaultMaxPages, f.logger)

	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	job, err := runner.Launch(context.Background(), domain.LaunchRequest{
		OriginalFilename: "scan.pdf",
		PDFPath:          f.pdfPath,
		ResultPath:       filepath.Join(f.dir, "results", "scan_ocr_results.json"),
		ImageDir:         filepath.Join(f.dir, "images"),
	})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if job.ID == "" {
		t.Fatalf("expected job id")
	}

	res := waitForJob(t, job)
	if res.Err != nil {
		t.Fatalf("job failed: %v", res.Err)
	}
	if res.Document == nil || res.Document.PagesProcessed != 3 {
		t.Fatalf("unexpected document %+v", res.Document)
	}
	runner.Wait()

	state, ok := tracker.Query(job.ID)
	if !ok || state.Status != domain.StatusCompleted || state.Percentage != 100 {
		t.Fatalf("unexpected progress %+v", state)
	}

	record, err := runner.Lookup(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if record.Status != domain.JobCompleted || record.FinishedAt == nil {
		t.Fatalf("unexpected record %+v", record)
	}

	if !store.uploaded(job.ID + "/result.json") {
		t.Fatalf("expected result to be mirrored")
	}
	if !store.uploaded(job.ID + "/images/page2_no_highlights.png") {
		t.Fatalf("expected clean image to be mirrored, got %v", store.uploads)
	}

	var last domain.ProgressUpdate
	for {
		select {
		case u := <-updates:
			if u.JobID == job.ID {
				last = u
			}
			continue
		default:
		}
		break
	}
	if last.State.Status != domain.StatusCompleted || last.State.FinishedAt == nil {
		t.Fatalf("expected finish to be the last update, got %+v", last.State)
	}
}

func TestJobRunner_FailedJobMarksError(t *testing.T) {
	f := newProcessorFixture(t, 1, nil, false)
	repo := NewMockJobRepository()
	tracker := NewProgressTracker(time.Hour, domain.SweepCompleted, f.logger)
	runner := NewJobRunner(f.processor, tracker, repo, nil, domain.DefaultMaxPages, f.logger)

	job, err := runner.Launch(context.Background(), domain.LaunchRequest{
		PDFPath:    filepath.Join(f.dir, "missing.pdf"),
		ResultPath: filepath.Join(f.dir, "out.json"),
	})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	res := waitForJob(t, job)
	if !apperrors.IsType(res.Err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("expected not_found, got %v", res.Err)
	}
	runner.Wait()

	state, _ := tracker.Query(job.ID)
	if state.Status != domain.StatusError || len(state.Errors) != 1 {
		t.Fatalf("unexpected progress %+v", state)
	}
	record, _ := repo.Get(context.Background(), job.ID)
	if record.Status != domain.JobFailed {
		t.Fatalf("expected failed record, got %s", record.Status)
	}
}

func TestJobRunner_ListReturnsLaunchedJobs(t *testing.T) {
	f := newProcessorFixture(t, 1, nil, false)
	repo := NewMockJobRepository()
	tracker := NewProgressTracker(time.Hour, domain.SweepCompleted, f.logger)
	runner := NewJobRunner(f.processor, tracker, repo, nil, domain.DefaultMaxPages, f.logger)

	job, err := runner.Launch(context.Background(), domain.LaunchRequest{
		PDFPath:          f.pdfPath,
		OriginalFilename: "scan.pdf",
		ResultPath:       filepath.Join(f.dir, "out.json"),
	})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	waitForJob(t, job)
	runner.Wait()

	jobs, err := runner.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != job.ID || jobs[0].Status != domain.JobCompleted {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestJobRunner_CancelStopsRemainingPages(t *testing.T) {
	f := newProcessorFixture(t, 3, nil, false)
	f.recognizer.block = make(chan struct{})
	repo := NewMockJobRepository()
	tracker := NewProgressTracker(time.Hour, domain.SweepCompleted, f.logger)
	runner := NewJobRunner(f.processor, tracker, repo, nil, domain.DefaultMaxPages, f.logger)

	job, err := runner.Launch(context.Background(), domain.LaunchRequest{
		PDFPath:    f.pdfPath,
		ResultPath: filepath.Join(f.dir, "out.json"),
	})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if !runner.Cancel(job.ID) {
		t.Fatalf("expected running job to be cancellable")
	}

	res := waitForJob(t, job)
	if !errors.Is(res.Err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", res.Err)
	}
	if res.Document == nil || len(res.Document.Pages) != 3 {
		t.Fatalf("expected every page recorded, got %+v", res.Document)
	}
	runner.Wait()
	if runner.Cancel(job.ID) {
		t.Fatalf("finished job should not be cancellable")
	}
}

func TestJobRunner_LaunchValidation(t *testing.T) {
	runner := NewJobRunner(nil, NewProgressTracker(time.Hour, domain.SweepCompleted, NewMockLogger()), NewMockJobRepository(), nil, 5, NewMockLogger())

	_, err := runner.Launch(context.Background(), domain.LaunchRequest{PDFPath: "a.pdf", ResultPath: "a.json", Pages: []int{0}})
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = runner.Launch(context.Background(), domain.LaunchRequest{ResultPath: "a.json"})
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = runner.Launch(context.Background(), domain.LaunchRequest{PDFPath: "a.pdf", ResultPath: "a.json", Pages: domain.PageRange(1, 6)})
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error for six pages over a limit of five, got %v", err)
	}
}

type panickingProcessor struct{}

func (panickingProcessor) Process(ctx context.Context, req domain.ProcessRequest) (*domain.ResultDocument, error) {
	panic("native crash")
}

func TestJobRunner_PanicFailsJob(t *testing.T) {
	logger := NewMockLogger()
	tracker := NewProgressTracker(time.Hour, domain.SweepCompleted, logger)
	runner := NewJobRunner(panickingProcessor{}, tracker, NewMockJobRepository(), nil, domain.DefaultMaxPages, logger)

	job, err := runner.Launch(context.Background(), domain.LaunchRequest{PDFPath: "a.pdf", ResultPath: "a.json"})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	res := waitForJob(t, job)
	if res.Err == nil {
		t.Fatalf("expected error from panicking job")
	}
	state, _ := tracker.Query(job.ID)
	if state.Status != domain.StatusError {
		t.Fatalf("expected error status, got %s", state.Status)
	}
}
