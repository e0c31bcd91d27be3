package domain

import "time"

// ProgressStatus is the lifecycle state of a job's progress entry.
type ProgressStatus string

const (
	StatusInitializing ProgressStatus = "initializing"
	StatusProcessing   ProgressStatus = "processing"
	StatusCompleted    ProgressStatus = "completed"
	StatusError        ProgressStatus = "error"
)

// SweepPolicy selects which finished progress entries the sweeper prunes.
type SweepPolicy string

const (
	// SweepCompleted prunes only successfully completed entries.
	SweepCompleted SweepPolicy = "completed"
	// SweepTerminal prunes completed and failed entries alike.
	SweepTerminal SweepPolicy = "terminal"
)

// ProgressEvent is emitted by the page processor.
type ProgressEvent struct {
	CurrentPage int
	TotalPages  int
	Status      ProgressStatus
	Message     string
	Error       string
}

// ProgressState is the live progress of one job.
type ProgressState struct {
	JobID       string         `json:"job_id"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
	Percentage  int            `json:"percentage"`
	Status      ProgressStatus `json:"status"`
	Message     string         `json:"message,omitempty"`
	Errors      []string       `json:"errors"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

// ProgressUpdate is pushed to subscribers whenever a job's state changes.
type ProgressUpdate struct {
	JobID string        `json:"job_id"`
	State ProgressState `json:"data"`
}

// JobStatus is the persisted state of a job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobRecord is the bookkeeping row for one extraction job.
type JobRecord struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	PDFPath          string     `json:"pdf_path"`
	ResultPath       string     `json:"result_path"`
	ImageDir         string     `json:"image_dir,omitempty"`
	Pages            []int      `json:"pages,omitempty"`
	DPI              int        `json:"dpi"`
	Status           JobStatus  `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}
