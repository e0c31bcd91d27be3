// Package pdfcpu inspects and strips page annotations using pdfcpu.
package pdfcpu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"pdf-ocr-server/internal/domain"
	apperrors "pdf-ocr-server/pkg/errors"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Subtypes that are not markup annotations. Links and form widgets are
// part of the page content; popups belong to their parent annotation.
var structuralSubtypes = map[string]bool{
	"Link":   true,
	"Widget": true,
	"Popup":  true,
}

// Backend implements domain.AnnotationBackend
type Backend struct {
	conf *model.Configuration
}

// NewBackend creates a pdfcpu backend with relaxed validation, since scanned
// documents often come out of tooling that bends the PDF grammar.
func NewBackend() *Backend {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Backend{conf: conf}
}

// Document is an open, fully read PDF.
type Document struct {
	ctx *model.Context
}

// Open reads and validates the PDF at path.
func (b *Backend) Open(path string) (domain.AnnotatedPDF, error) {
	ctx, err := b.read(path)
	if err != nil {
		return nil, err
	}
	return &Document{ctx: ctx}, nil
}

func (b *Backend) read(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("PDF file not found", err)
		}
		return nil, apperrors.NewProcessingError("cannot open PDF", err)
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, b.conf)
	if err != nil {
		return nil, apperrors.NewProcessingError("cannot read PDF", err)
	}
	return ctx, nil
}

// PageCount returns the structural page count.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Annotations returns the subtype of each markup annotation on the page, in /Annots order.
func (d *Document) Annotations(pageNumber int) ([]string, error) {
	pageDict, err := pageDict(d.ctx, pageNumber)
	if err != nil {
		return nil, err
	}

	entries, err := annotationEntries(d.ctx.XRefTable, pageDict)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, err)
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if !structuralSubtypes[e.subtype] {
			labels = append(labels, e.subtype)
		}
	}
	return labels, nil
}

// Close is a no-op: the whole document is read into memory by Open.
func (d *Document) Close() error {
	return nil
}

// StripAnnotations removes the markup annotations of one page and writes the
// resulting document to outPath.
func (b *Backend) StripAnnotations(path string, pageNumber int, outPath string) (int, error) {
	ctx, err := b.read(path)
	if err != nil {
		return 0, err
	}

	pd, err := pageDict(ctx, pageNumber)
	if err != nil {
		return 0, apperrors.NewRenderError(pageNumber, err)
	}

	entries, err := annotationEntries(ctx.XRefTable, pd)
	if err != nil {
		return 0, apperrors.NewRenderError(pageNumber, err)
	}

	removed := 0
	kept := types.Array{}
	for _, e := range entries {
		switch {
		case e.subtype == "Link" || e.subtype == "Widget":
			kept = append(kept, e.obj)
		case e.subtype == "Popup":
		default:
			removed++
		}
	}

	if len(kept) == 0 {
		delete(pd, "Annots")
	} else {
		pd["Annots"] = kept
	}

	if err := api.WriteContextFile(ctx, outPath); err != nil {
		return 0, apperrors.NewRenderError(pageNumber, fmt.Errorf("write stripped copy: %w", err))
	}
	return removed, nil
}

type annotationEntry struct {
	obj     types.Object
	subtype string
}

func pageDict(ctx *model.Context, pageNumber int) (types.Dict, error) {
	if pageNumber < 1 || pageNumber > ctx.PageCount {
		return nil, fmt.Errorf("%w: page %d of %d", domain.ErrInvalidPage, pageNumber, ctx.PageCount)
	}
	pd, _, _, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, err)
	}
	if pd == nil {
		return nil, fmt.Errorf("%w: page %d has no page dictionary", domain.ErrInvalidPage, pageNumber)
	}
	return pd, nil
}

func annotationEntries(xRefTable *model.XRefTable, pageDict types.Dict) ([]annotationEntry, error) {
	obj, found := pageDict.Find("Annots")
	if !found || obj == nil {
		return nil, nil
	}

	arr, err := xRefTable.DereferenceArray(obj)
	if err != nil {
		return nil, fmt.Errorf("dereference annotations: %w", err)
	}

	entries := make([]annotationEntry, 0, len(arr))
	for _, o := range arr {
		d, err := xRefTable.DereferenceDict(o)
		if err != nil {
			return nil, fmt.Errorf("dereference annotation: %w", err)
		}
		if d == nil {
			continue
		}
		subtype := "Unknown"
		if st := d.NameEntry("Subtype"); st != nil {
			subtype = *st
		}
		entries = append(entries, annotationEntry{obj: o, subtype: subtype})
	}
	return entries, nil
}
