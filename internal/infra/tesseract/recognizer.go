// Package tesseract runs OCR through gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"pdf-ocr-server/internal/domain"

	"github.com/otiai10/gosseract/v2"
)

// Engine implements domain.TextRecognizer and domain.WordLocator.
// A fresh client is created per call; gosseract clients are not safe for
// concurrent use.
type Engine struct {
	pageSegMode gosseract.PageSegMode
}

// NewEngine creates an engine that treats each page as a single column of
// text of variable sizes (tesseract --psm 4).
func NewEngine() *Engine {
	return &Engine{pageSegMode: gosseract.PSM_SINGLE_COLUMN}
}

// Recognize returns the text found in an encoded image.
func (e *Engine) Recognize(ctx context.Context, img []byte, lang domain.LanguageSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client, err := e.newClient(img, lang)
	if err != nil {
		return "", err
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// WordBoxes returns word-level boxes with their confidence.
func (e *Engine) WordBoxes(ctx context.Context, img []byte, lang domain.LanguageSpec) ([]domain.WordBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := e.newClient(img, lang)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract word boxes: %w", err)
	}

	words := make([]domain.WordBox, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, domain.WordBox{
			Text:       b.Word,
			Confidence: b.Confidence,
			Left:       b.Box.Min.X,
			Top:        b.Box.Min.Y,
			Right:      b.Box.Max.X,
			Bottom:     b.Box.Max.Y,
		})
	}
	return words, nil
}

func (e *Engine) newClient(img []byte, lang domain.LanguageSpec) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if len(lang.Codes) > 0 {
		if err := client.SetLanguage(lang.Codes...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set language %s: %w", lang, err)
		}
	}
	if err := client.SetPageSegMode(e.pageSegMode); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		client.Close()
		return nil, fmt.Errorf("load image: %w", err)
	}
	return client, nil
}
