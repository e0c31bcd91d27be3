// Command ocr extracts annotation metadata and Hebrew/English text from a
// scanned PDF and writes the result document as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pdf-ocr-server/internal/config"
	"pdf-ocr-server/internal/domain"
	"pdf-ocr-server/internal/infra/tesseract"
	"pdf-ocr-server/internal/service"
)

type progressPrinter struct{}

func (progressPrinter) Report(event domain.ProgressEvent) {
	switch {
	case event.Error != "":
		fmt.Fprintf(os.Stderr, "%s\n", event.Error)
	case event.Message != "":
		fmt.Println(event.Message)
	}
}

func main() {
	var (
		pdfPath   string
		output    string
		startPage int
		endPage   int
		dpi       int
		imageDir  string
	)
	flag.StringVar(&pdfPath, "pdf-path", "", "path to the PDF file")
	flag.StringVar(&output, "output", "", "output JSON file (default: <pdf>_ocr_results.json)")
	flag.StringVar(&output, "o", "", "shorthand for --output")
	flag.IntVar(&startPage, "start-page", 0, "first page to process (1-based)")
	flag.IntVar(&endPage, "end-page", 0, "last page to process")
	flag.IntVar(&dpi, "dpi", domain.DefaultDPI, "rasterization resolution")
	flag.StringVar(&imageDir, "image-dir", "", "directory for rendered page images")
	flag.Parse()

	if pdfPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.NewConfig()
	logger, closer, err := config.NewAppLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, limit := domain.RangeLength(startPage, endPage), cfg.GetMaxPages(); n > limit {
		logger.Warn("Too many pages requested", "pages", n, "max", limit)
		os.Exit(2)
	}

	if output == "" {
		output = service.DefaultOutputPath(pdfPath)
	}

	processor := config.NewPageProcessor(cfg, logger, tesseract.NewEngine())
	doc, err := processor.Process(ctx, domain.ProcessRequest{
		PDFPath:    pdfPath,
		Pages:      domain.PageRange(startPage, endPage),
		OutputPath: output,
		DPI:        dpi,
		ImageDir:   imageDir,
		Sink:       progressPrinter{},
	})
	if err != nil {
		logger.Error("Processing failed", err, "pdf", pdfPath)
		os.Exit(1)
	}

	fmt.Printf("Processed %d of %d pages. Results saved to %s\n",
		doc.PagesProcessed, doc.TotalPagesInDocument, output)
}
