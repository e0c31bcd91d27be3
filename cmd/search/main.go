// Command search looks for words in a saved OCR result document.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"unicode"

	"pdf-ocr-server/internal/domain"
	"pdf-ocr-server/internal/service"
	"pdf-ocr-server/pkg/logger"
)

func main() {
	var (
		jsonPath string
		words    string
		output   string
	)
	flag.StringVar(&jsonPath, "json-path", "", "path to the OCR results JSON")
	flag.StringVar(&words, "words", "", "words to search for, separated by commas or spaces")
	flag.StringVar(&output, "output", "", "write the tagged results to this file")
	flag.StringVar(&output, "o", "", "shorthand for --output")
	flag.Parse()

	if jsonPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	appLogger := logger.NewLogger(os.Getenv("LOG_LEVEL"))

	searchWords := splitWords(words)
	if len(searchWords) == 0 {
		fmt.Print("Enter search words (separated by commas or spaces): ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		searchWords = splitWords(line)
	}
	if len(searchWords) == 0 {
		appLogger.Warn("No search words given")
		os.Exit(1)
	}

	doc, err := service.NewDocumentAssembler(appLogger).Load(jsonPath)
	if err != nil {
		appLogger.Error("Failed to load results", err, "path", jsonPath)
		os.Exit(1)
	}

	matches := service.SearchWords(doc, searchWords)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Page Number\tContains Search Words\tHas Annotations")
	fmt.Fprintln(tw, "-----------\t---------------------\t---------------")
	for _, page := range doc.Pages {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", page.PageNumber, yesNo(matches[page.PageNumber]), yesNo(page.HasAnnotations))
	}
	tw.Flush()

	found := service.MatchingPages(matches)
	fmt.Printf("\nSearch words: %s\n", strings.Join(searchWords, ", "))
	fmt.Printf("Found on %d of %d pages: %v\n", len(found), len(doc.Pages), found)

	if output == "" {
		return
	}
	if err := writeTagged(output, service.MarkMatches(doc, searchWords)); err != nil {
		appLogger.Error("Failed to write results", err, "path", output)
		os.Exit(1)
	}
	fmt.Printf("Tagged results saved to %s\n", output)
}

// writeTagged encodes doc to path. A failed close is reported like a failed write.
func writeTagged(path string, doc *domain.ResultDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := service.EncodeDocument(f, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
