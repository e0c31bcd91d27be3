package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pdf-ocr-server/internal/domain"
)

// DocumentAssembler builds and persists result documents.
type DocumentAssembler struct {
	logger domain.Logger
}

// NewDocumentAssembler creates a new document assembler
func NewDocumentAssembler(logger domain.Logger) *DocumentAssembler {
	return &DocumentAssembler{logger: logger}
}

// Assemble combines document metadata with page records, keeping page order.
func (a *DocumentAssembler) Assemble(meta domain.DocumentMetadata, pages []domain.PageRecord) *domain.ResultDocument {
	pageNumbers := make([]int, len(meta.PageNumbers))
	copy(pageNumbers, meta.PageNumbers)

	records := make([]domain.PageRecord, len(pages))
	copy(records, pages)
	for i := range records {
		if records[i].AnnotationTypes == nil {
			records[i].AnnotationTypes = []string{}
		}
	}

	return &domain.ResultDocument{
		DocumentName:         meta.DocumentName,
		TotalPagesInDocument: meta.TotalPagesInDocument,
		PagesProcessed:       len(pageNumbers),
		PageNumbersProcessed: pageNumbers,
		Language:             meta.Language.Label,
		Pages:                records,
	}
}

// Persist writes doc as indented UTF-8 JSON. The file is replaced atomically
// so readers never see a partial document.
func (a *DocumentAssembler) Persist(doc *domain.ResultDocument, path string) bool {
	if err := a.write(doc, path); err != nil {
		a.logger.Error("Failed to save results", err, "path", path)
		return false
	}
	a.logger.Info("Results saved", "path", path, "pages", doc.PagesProcessed)
	return true
}

func (a *DocumentAssembler) write(doc *domain.ResultDocument, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".result-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := EncodeDocument(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace result file: %w", err)
	}
	return nil
}

// Load reads a persisted result document.
func (a *DocumentAssembler) Load(path string) (*domain.ResultDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrResultNotFound, path)
		}
		return nil, fmt.Errorf("read result: %w", err)
	}

	var doc domain.ResultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", path, err)
	}
	return &doc, nil
}
