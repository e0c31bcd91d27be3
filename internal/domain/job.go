package domain

import "context"

// LaunchRequest describes a job to start in the background.
type LaunchRequest struct {
	// JobID is generated when empty.
	JobID            string
	OriginalFilename string
	PDFPath          string
	Pages            []int
	ResultPath       string
	ImageDir         string
	DPI              int
}

// JobResult is delivered once when a job ends. Document may be non-nil even
// when Err is set (for example when the result could not be written).
type JobResult struct {
	JobID    string
	Document *ResultDocument
	Err      error
}

// Job is a handle on a launched job.
type Job struct {
	ID   string
	done <-chan JobResult
}

// NewJob creates a job handle delivering its result on done.
func NewJob(id string, done <-chan JobResult) *Job {
	return &Job{ID: id, done: done}
}

// Done returns a channel that receives the job result and is then closed.
func (j *Job) Done() <-chan JobResult {
	return j.done
}

// JobService launches and controls extraction jobs.
type JobService interface {
	Launch(ctx context.Context, req LaunchRequest) (*Job, error)
	Cancel(jobID string) bool
	Lookup(ctx context.Context, jobID string) (*JobRecord, error)
	List(ctx context.Context, limit int) ([]*JobRecord, error)
}

// ProgressService exposes live job progress.
type ProgressService interface {
	Query(jobID string) (ProgressState, bool)
	Subscribe() (<-chan ProgressUpdate, func())
}

// ResultService reads finished job output.
type ResultService interface {
	Result(ctx context.Context, jobID string) (*ResultDocument, *JobRecord, error)
	Search(ctx context.Context, jobID string, words []string, filterType string) (*ResultDocument, error)
	PageImage(ctx context.Context, jobID string, pageNumber int) (string, error)
}

// HighlightService paints search words onto page images.
type HighlightService interface {
	HighlightPage(ctx context.Context, jobID string, pageNumber int, words []string) (string, int, error)
}
