package service

import (
	"context"

	"pdf-ocr-server/internal/domain"
)

// TextRecognition is the OCR boundary of the pipeline. Engine failures never
// abort a page: they are logged and the page gets empty text.
type TextRecognition struct {
	engine       domain.TextRecognizer
	lang         domain.LanguageSpec
	recordErrors bool
	logger       domain.Logger
}

// NewTextRecognition creates the OCR boundary. With recordErrors set, the
// failure is also returned so the caller can put it on the page record.
func NewTextRecognition(engine domain.TextRecognizer, lang domain.LanguageSpec, recordErrors bool, logger domain.Logger) *TextRecognition {
	return &TextRecognition{
		engine:       engine,
		lang:         lang,
		recordErrors: recordErrors,
		logger:       logger,
	}
}

// Recognize always returns a string. The error is non-nil only when error
// recording is enabled and the engine failed.
func (t *TextRecognition) Recognize(ctx context.Context, img []byte, pageNumber int) (string, error) {
	text, err := t.engine.Recognize(ctx, img, t.lang)
	if err != nil {
		t.logger.Warn("Error performing OCR", "page", pageNumber, "lang", t.lang.String(), "error", err)
		if t.recordErrors {
			return "", err
		}
		return "", nil
	}
	return text, nil
}
