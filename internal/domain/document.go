package domain

import "strings"

// DefaultDPI is the rasterization resolution used when none is given.
const DefaultDPI = 300

// DefaultMaxPages bounds the page range of a single job.
const DefaultMaxPages = 2000

// HighlightedImagesDir is the subdirectory of a job's image directory that
// holds word-highlighted page images.
const HighlightedImagesDir = "highlighted_images"

// LanguageSpec configures OCR languages.
type LanguageSpec struct {
	Codes []string
	Label string
}

// HebrewEnglish is the combined right-to-left/left-to-right OCR mode.
var HebrewEnglish = LanguageSpec{
	Codes: []string{"heb", "eng"},
	Label: "Hebrew and English",
}

// String returns the tesseract form of the language list, e.g. "heb+eng".
func (l LanguageSpec) String() string {
	return strings.Join(l.Codes, "+")
}

// PageRecord is the result of processing one page.
type PageRecord struct {
	PageNumber             int      `json:"page_number"`
	HasAnnotations         bool     `json:"has_annotations"`
	AnnotationTypes        []string `json:"annotation_types"`
	ImagePath              string   `json:"image_path,omitempty"`
	HighlightedImagePath   string   `json:"highlighted_image_path,omitempty"`
	CleanImagePath         string   `json:"clean_image_path,omitempty"`
	RemovedHighlightsCount *int     `json:"removed_highlights_count,omitempty"`
	Text                   string   `json:"text"`
	Error                  string   `json:"error,omitempty"`

	// ImageURL is attached by the HTTP layer when serving results.
	ImageURL string `json:"image_url,omitempty"`
	// ContainsSearchWords is attached by result search.
	ContainsSearchWords *bool `json:"contains_search_words,omitempty"`
}

// PageResult pairs a page record with the failure that produced its error field.
type PageResult struct {
	Record PageRecord
	Err    error
}

// Failed reports whether the page hit a page-local failure.
func (r PageResult) Failed() bool {
	return r.Err != nil
}

// DocumentMetadata is the document-level summary of a job.
type DocumentMetadata struct {
	DocumentName         string
	TotalPagesInDocument int
	PageNumbers          []int
	Language             LanguageSpec
}

// ResultDocument is the persisted output of one pipeline run.
type ResultDocument struct {
	DocumentName         string       `json:"document_name"`
	TotalPagesInDocument int          `json:"total_pages_in_document"`
	PagesProcessed       int          `json:"pages_processed"`
	PageNumbersProcessed []int        `json:"page_numbers_processed"`
	Language             string       `json:"language"`
	Pages                []PageRecord `json:"pages"`

	// FilteredPages and SearchInformation are set only on search responses.
	FilteredPages     []PageRecord       `json:"filtered_pages,omitempty"`
	SearchInformation *SearchInformation `json:"search_information,omitempty"`
}

// SearchInformation describes a search applied to a result document.
type SearchInformation struct {
	SearchWords        []string `json:"search_words"`
	FilterType         string   `json:"filter_type,omitempty"`
	TotalMatchingPages int      `json:"total_matching_pages"`
}

// ProcessRequest is one invocation of the page processor.
type ProcessRequest struct {
	PDFPath    string
	Pages      []int
	OutputPath string
	DPI        int
	ImageDir   string
	Sink       ProgressSink
}

// Filter types accepted by result search.
const (
	FilterHighlights = "highlights"
	FilterWords      = "words"
	FilterBoth       = "both"
)

// RangeLength returns how many pages PageRange(start, end) selects without
// allocating them. Zero means all pages.
func RangeLength(start, end int) int {
	if start <= 0 {
		return 0
	}
	if end < start {
		return 1
	}
	return end - start + 1
}

// PageRange expands a start/end pair into page numbers. A start of zero or
// less means all pages (nil). An end before the start selects only start.
func PageRange(start, end int) []int {
	if start <= 0 {
		return nil
	}
	if end < start {
		return []int{start}
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
