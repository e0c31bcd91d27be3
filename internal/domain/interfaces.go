package domain

import (
	"context"
	"image"
	"time"
)

// AnnotatedPDF is an open document that can enumerate page annotations.
type AnnotatedPDF interface {
	PageCount() int
	// Annotations returns the subtype label of every annotation on a 1-based page.
	Annotations(pageNumber int) ([]string, error)
	Close() error
}

// AnnotationBackend opens documents for annotation inspection and removal.
type AnnotationBackend interface {
	Open(path string) (AnnotatedPDF, error)
	// StripAnnotations deletes every annotation on the page and writes the
	// result to outPath. It returns how many annotations were removed.
	StripAnnotations(path string, pageNumber int, outPath string) (int, error)
}

// RasterPDF is an open document that can be rendered page by page.
type RasterPDF interface {
	NumPage() int
	Render(pageNumber int, dpi int) (image.Image, error)
	Close() error
}

// RasterBackend opens documents for rasterization.
type RasterBackend interface {
	Open(path string) (RasterPDF, error)
}

// TextRecognizer runs OCR on an encoded image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img []byte, lang LanguageSpec) (string, error)
}

// WordBox is a recognized word and its pixel bounds.
type WordBox struct {
	Text       string
	Confidence float64
	Left       int
	Top        int
	Right      int
	Bottom     int
}

// WordLocator returns word-level OCR boxes for an image.
type WordLocator interface {
	WordBoxes(ctx context.Context, img []byte, lang LanguageSpec) ([]WordBox, error)
}

// ProgressSink receives progress events from a running pipeline.
type ProgressSink interface {
	Report(event ProgressEvent)
}

// JobRepository persists job bookkeeping.
type JobRepository interface {
	Create(ctx context.Context, job *JobRecord) error
	Get(ctx context.Context, jobID string) (*JobRecord, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, finishedAt time.Time) error
	List(ctx context.Context, limit int) ([]*JobRecord, error)
	Close() error
}

// ResultStore mirrors job artifacts to remote storage.
type ResultStore interface {
	Enabled() bool
	UploadFile(ctx context.Context, localPath, remotePath, contentType string) error
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetUploadPath() string
	GetResultsPath() string
	GetImagesPath() string
	GetMaxFileSize() int64
	GetMaxPages() int
	GetLogLevel() string
	GetLogFile() string
	GetDPI() int
	GetLanguages() []string
	GetRecordOCRErrors() bool
	GetProgressRetention() time.Duration
	GetSweepPolicy() SweepPolicy
	GetDatabasePath() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseBucket() string
	GetCORSOrigins() []string
}
