package service

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

const cleanImagesDir = "clean_images"

// pageImageName is the viewable render of a page inside a job's image dir.
func pageImageName(pageNumber int) string {
	return fmt.Sprintf("page_%d.png", pageNumber)
}

func cleanImageName(pageNumber int) string {
	return fmt.Sprintf("page%d_no_highlights.png", pageNumber)
}

// PageImagePath returns where the viewable render of a page is stored.
func PageImagePath(imageDir string, pageNumber int) string {
	return filepath.Join(imageDir, pageImageName(pageNumber))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func writeImageFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
