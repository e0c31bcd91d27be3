package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

// ResultService serves finished job output.
type ResultService struct {
	repo      domain.JobRepository
	assembler *DocumentAssembler
	logger    domain.Logger
}

// NewResultService creates a new result service
func NewResultService(repo domain.JobRepository, assembler *DocumentAssembler, logger domain.Logger) *ResultService {
	return &ResultService{
		repo:      repo,
		assembler: assembler,
		logger:    logger,
	}
}

// Result loads the result document of a job.
func (s *ResultService) Result(ctx context.Context, jobID string) (*domain.ResultDocument, *domain.JobRecord, error) {
	record, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	doc, err := s.assembler.Load(record.ResultPath)
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			return nil, record, apperrors.NewNotFoundError("Results not found", err)
		}
		return nil, record, apperrors.NewInternalError("cannot read results", err)
	}
	return doc, record, nil
}

// Search filters a job's result document.
func (s *ResultService) Search(ctx context.Context, jobID string, words []string, filterType string) (*domain.ResultDocument, error) {
	if len(NormalizeWords(words)) == 0 && filterType != domain.FilterHighlights {
		return nil, apperrors.NewValidationError("search words are required")
	}
	doc, _, err := s.Result(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return Filter(doc, words, filterType), nil
}

// PageImage returns the path of a page's viewable image.
func (s *ResultService) PageImage(ctx context.Context, jobID string, pageNumber int) (string, error) {
	if pageNumber < 1 {
		return "", apperrors.NewValidationError("invalid page number", fmt.Sprintf("got %d", pageNumber))
	}
	record, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if record.ImageDir == "" {
		return "", apperrors.NewNotFoundError("Image not found", domain.ErrImageNotFound)
	}

	imagePath := PageImagePath(record.ImageDir, pageNumber)
	if _, err := os.Stat(imagePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NewNotFoundError("Image not found", domain.ErrImageNotFound)
		}
		return "", apperrors.NewInternalError("cannot stat image", err)
	}
	return imagePath, nil
}
