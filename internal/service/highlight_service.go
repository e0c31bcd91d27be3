package service

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"
)

const (
	minWordConfidence = 30
	highlightPadding  = 2
)

// highlightColor is a semi-transparent pink.
var highlightColor = color.NRGBA{R: 255, G: 20, B: 147, A: 160}

// Highlighter paints search words onto rendered page images.
type Highlighter struct {
	repo    domain.JobRepository
	locator domain.WordLocator
	lang    domain.LanguageSpec
	logger  domain.Logger
}

// NewHighlighter creates a new highlighter
func NewHighlighter(repo domain.JobRepository, locator domain.WordLocator, lang domain.LanguageSpec, logger domain.Logger) *Highlighter {
	return &Highlighter{
		repo:    repo,
		locator: locator,
		lang:    lang,
		logger:  logger,
	}
}

// HighlightPage writes a highlighted copy of a job's page image and returns
// its path with the number of highlighted words. A previously generated
// image for the same words is reused and reported with count -1.
func (h *Highlighter) HighlightPage(ctx context.Context, jobID string, pageNumber int, words []string) (string, int, error) {
	words = NormalizeWords(words)
	if len(words) == 0 {
		return "", 0, apperrors.NewValidationError("search words are required")
	}
	if pageNumber < 1 {
		return "", 0, apperrors.NewValidationError("invalid page number", fmt.Sprintf("got %d", pageNumber))
	}

	record, err := h.repo.Get(ctx, jobID)
	if err != nil {
		return "", 0, err
	}
	if record.ImageDir == "" {
		return "", 0, apperrors.NewNotFoundError("Image not found", domain.ErrImageNotFound)
	}

	source := PageImagePath(record.ImageDir, pageNumber)
	data, err := os.ReadFile(source)
	if err != nil {
		return "", 0, apperrors.NewNotFoundError("Image not found", domain.ErrImageNotFound)
	}

	outPath := filepath.Join(record.ImageDir, domain.HighlightedImagesDir,
		fmt.Sprintf("page_%d_highlighted_%s.png", pageNumber, wordsHash(words)))
	if _, err := os.Stat(outPath); err == nil {
		h.logger.Debug("Using cached highlighted image", "job_id", jobID, "page", pageNumber)
		return outPath, -1, nil
	}

	count, err := h.Highlight(ctx, data, words, outPath)
	if err != nil {
		return "", 0, err
	}
	h.logger.Info("Highlighted page", "job_id", jobID, "page", pageNumber, "matches", count)
	return outPath, count, nil
}

// Highlight runs word-level OCR over an encoded image, paints every word
// matching one of words and writes the result to outPath.
func (h *Highlighter) Highlight(ctx context.Context, data []byte, words []string, outPath string) (int, error) {
	boxes, err := h.locator.WordBoxes(ctx, data, h.lang)
	if err != nil {
		return 0, apperrors.NewProcessingError("cannot locate words", err)
	}
	boxes = confidentWords(boxes)
	if len(boxes) == 0 {
		return 0, apperrors.NewProcessingError("no words recognized on page", nil)
	}

	matches := matchingWords(boxes, NormalizeWords(words))
	if len(matches) == 0 {
		if err := writeImageFile(outPath, data); err != nil {
			return 0, apperrors.NewInternalError("cannot write highlighted image", err)
		}
		return 0, nil
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, apperrors.NewProcessingError("cannot decode page image", err)
	}
	out, err := encodePNG(drawHighlights(img, matches, highlightColor))
	if err != nil {
		return 0, apperrors.NewInternalError("cannot encode highlighted image", err)
	}
	if err := writeImageFile(outPath, out); err != nil {
		return 0, apperrors.NewInternalError("cannot write highlighted image", err)
	}
	return len(matches), nil
}

func confidentWords(boxes []domain.WordBox) []domain.WordBox {
	out := make([]domain.WordBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence > minWordConfidence && strings.TrimSpace(b.Text) != "" {
			b.Text = strings.TrimSpace(b.Text)
			out = append(out, b)
		}
	}
	return out
}

func matchingWords(boxes []domain.WordBox, words []string) []domain.WordBox {
	var out []domain.WordBox
	for _, b := range boxes {
		text := normalizeText(b.Text)
		for _, w := range words {
			if containsWholeWord(text, w) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// containsWholeWord reports whether word occurs in text bounded by non-word
// runes. Letters of every script count as word runes, so Hebrew words match
// the same way Latin ones do.
func containsWholeWord(text, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(word); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func drawHighlights(src image.Image, boxes []domain.WordBox, c color.Color) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	fill := image.NewUniform(c)
	for _, b := range boxes {
		rect := image.Rect(
			b.Left-highlightPadding,
			b.Top-highlightPadding,
			b.Right+highlightPadding,
			b.Bottom+highlightPadding,
		).Add(bounds.Min).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		draw.Draw(dst, rect, fill, image.Point{}, draw.Over)
	}
	return dst
}

func wordsHash(words []string) string {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	h := fnv.New64a()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	return fmt.Sprintf("%016x", h.Sum64())
}
