package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdf-ocr-server/internal/domain"

	_ "modernc.org/sqlite"
)

const jobsSchema = `CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL DEFAULT '',
	pdf_path TEXT NOT NULL,
	result_path TEXT NOT NULL,
	image_dir TEXT NOT NULL DEFAULT '',
	pages TEXT NOT NULL DEFAULT '[]',
	dpi INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	finished_at INTEGER
)`

// SQLiteJobRepository implements domain.JobRepository on a local SQLite file
type SQLiteJobRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewSQLiteJobRepository opens (and creates if needed) the job database.
func NewSQLiteJobRepository(ctx context.Context, dbPath string, logger domain.Logger) (*SQLiteJobRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, jobsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	logger.Info("Job database ready", "path", dbPath)
	return &SQLiteJobRepository{db: db, logger: logger}, nil
}

// Create inserts a new job record
func (r *SQLiteJobRepository) Create(ctx context.Context, job *domain.JobRecord) error {
	if job.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "job ID is required"}
	}
	pages, err := json.Marshal(job.Pages)
	if err != nil {
		return fmt.Errorf("encode pages: %w", err)
	}
	if job.Pages == nil {
		pages = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, original_filename, pdf_path, result_path, image_dir, pages, dpi, status, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.OriginalFilename, job.PDFPath, job.ResultPath, job.ImageDir, string(pages),
		job.DPI, string(job.Status), job.CreatedAt.UnixMilli(), nullableMillis(job.FinishedAt))
	if err != nil {
		r.logger.Error("Failed to create job record", err, "job_id", job.ID)
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns a job by id or domain.ErrJobNotFound
func (r *SQLiteJobRepository) Get(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, original_filename, pdf_path, result_path, image_dir, pages, dpi, status, created_at, finished_at
		FROM jobs WHERE id = ?`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// UpdateStatus sets the final status of a job
func (r *SQLiteJobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, finishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), finishedAt.UnixMilli(), jobID)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// List returns the most recent jobs first
func (r *SQLiteJobRepository) List(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, original_filename, pdf_path, result_path, image_dir, pages, dpi, status, created_at, finished_at
		FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.JobRecord, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Close closes the database
func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.JobRecord, error) {
	var (
		job        domain.JobRecord
		pages      string
		status     string
		createdAt  int64
		finishedAt sql.NullInt64
	)
	if err := row.Scan(&job.ID, &job.OriginalFilename, &job.PDFPath, &job.ResultPath, &job.ImageDir,
		&pages, &job.DPI, &status, &createdAt, &finishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pages), &job.Pages); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}
	if len(job.Pages) == 0 {
		job.Pages = nil
	}
	job.Status = domain.JobStatus(status)
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		job.FinishedAt = &t
	}
	return &job, nil
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
