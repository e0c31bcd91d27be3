package service

import (
	"sort"
	"strings"

	"pdf-ocr-server/internal/domain"
)

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeWords lower-cases, trims and de-duplicates search words, keeping
// first-seen order.
func NormalizeWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = normalizeText(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// SearchWords reports, per page number, whether any of words occurs in the
// page text. Matching is a case-insensitive substring test.
func SearchWords(doc *domain.ResultDocument, words []string) map[int]bool {
	normalized := NormalizeWords(words)
	results := make(map[int]bool, len(doc.Pages))
	for _, page := range doc.Pages {
		text := normalizeText(page.Text)
		found := false
		for _, w := range normalized {
			if strings.Contains(text, w) {
				found = true
				break
			}
		}
		results[page.PageNumber] = found
	}
	return results
}

// MarkMatches returns a copy of doc whose pages are tagged with
// contains_search_words, plus search information.
func MarkMatches(doc *domain.ResultDocument, words []string) *domain.ResultDocument {
	matches := SearchWords(doc, words)
	out := *doc
	out.Pages = make([]domain.PageRecord, len(doc.Pages))
	total := 0
	for i, page := range doc.Pages {
		found := matches[page.PageNumber]
		page.ContainsSearchWords = &found
		out.Pages[i] = page
		if found {
			total++
		}
	}
	out.SearchInformation = &domain.SearchInformation{
		SearchWords:        NormalizeWords(words),
		TotalMatchingPages: total,
	}
	return &out
}

// Filter selects pages by annotation presence, search word presence or
// either, depending on filterType. Unknown filter types behave as "both".
func Filter(doc *domain.ResultDocument, words []string, filterType string) *domain.ResultDocument {
	switch filterType {
	case domain.FilterHighlights, domain.FilterWords, domain.FilterBoth:
	default:
		filterType = domain.FilterBoth
	}

	matches := map[int]bool{}
	if filterType != domain.FilterHighlights {
		matches = SearchWords(doc, words)
	}

	filtered := make([]domain.PageRecord, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		found := matches[page.PageNumber]
		include := false
		switch filterType {
		case domain.FilterHighlights:
			include = page.HasAnnotations
		case domain.FilterWords:
			include = found
		default:
			include = page.HasAnnotations || found
		}
		if include {
			page.ContainsSearchWords = &found
			filtered = append(filtered, page)
		}
	}

	out := *doc
	out.FilteredPages = filtered
	out.SearchInformation = &domain.SearchInformation{
		SearchWords:        NormalizeWords(words),
		FilterType:         filterType,
		TotalMatchingPages: len(filtered),
	}
	return &out
}

// MatchingPages returns the sorted page numbers that contain a search word.
func MatchingPages(matches map[int]bool) []int {
	pages := make([]int, 0, len(matches))
	for page, found := range matches {
		if found {
			pages = append(pages, page)
		}
	}
	sort.Ints(pages)
	return pages
}
