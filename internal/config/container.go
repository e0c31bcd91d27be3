package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pdf-ocr-server/internal/domain"
	"pdf-ocr-server/internal/infra/fitz"
	"pdf-ocr-server/internal/infra/pdfcpu"
	"pdf-ocr-server/internal/infra/supabase"
	"pdf-ocr-server/internal/infra/tesseract"
	"pdf-ocr-server/internal/repository"
	"pdf-ocr-server/internal/service"
	"pdf-ocr-server/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config        domain.Config
	Logger        domain.Logger
	JobRepository domain.JobRepository
	ResultStore   domain.ResultStore
	Tracker       *service.ProgressTracker
	Processor     *service.PageProcessor
	JobRunner     *service.JobRunner
	ResultService *service.ResultService
	Highlighter   *service.Highlighter

	closers []io.Closer
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context) (*Container, error) {
	config := NewConfig()
	appLogger, logCloser, err := NewAppLogger(config)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: config, Logger: appLogger}
	if logCloser != nil {
		c.closers = append(c.closers, logCloser)
	}

	jobRepo, err := repository.NewSQLiteJobRepository(ctx, config.GetDatabasePath(), appLogger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.JobRepository = jobRepo
	c.closers = append(c.closers, jobRepo)

	settings := supabase.SettingsFromConfig(config)
	store, err := repository.NewSupabaseResultStore(settings, appLogger)
	if err != nil {
		appLogger.Warn("Result mirroring disabled", "error", err)
		store, _ = repository.NewSupabaseResultStore(supabase.Settings{Bucket: settings.Bucket}, appLogger)
	}
	c.ResultStore = store

	engine := tesseract.NewEngine()
	lang := Languages(config)
	assembler := service.NewDocumentAssembler(appLogger)

	c.Tracker = service.NewProgressTracker(config.GetProgressRetention(), config.GetSweepPolicy(), appLogger)
	c.Processor = NewPageProcessor(config, appLogger, engine)
	c.JobRunner = service.NewJobRunner(c.Processor, c.Tracker, c.JobRepository, c.ResultStore, config.GetMaxPages(), appLogger)
	c.ResultService = service.NewResultService(c.JobRepository, assembler, appLogger)
	c.Highlighter = service.NewHighlighter(c.JobRepository, engine, lang, appLogger)

	return c, nil
}

// NewAppLogger builds the console logger, or the file plus console pair when
// LOG_FILE is set. The closer is nil for console-only logging.
func NewAppLogger(config domain.Config) (domain.Logger, io.Closer, error) {
	if path := config.GetLogFile(); path != "" {
		l, closer, err := logger.NewFileLogger(config.GetLogLevel(), path)
		if err != nil {
			return nil, nil, fmt.Errorf("init logger: %w", err)
		}
		return l, closer, nil
	}
	return logger.NewLogger(config.GetLogLevel()), nil, nil
}

// NewPageProcessor wires the extraction pipeline onto the pdfcpu, go-fitz and
// tesseract backends.
func NewPageProcessor(config domain.Config, appLogger domain.Logger, engine domain.TextRecognizer) *service.PageProcessor {
	lang := Languages(config)
	ocr := service.NewTextRecognition(engine, lang, config.GetRecordOCRErrors(), appLogger)
	return service.NewPageProcessor(
		pdfcpu.NewBackend(),
		fitz.NewBackend(appLogger),
		ocr,
		service.NewDocumentAssembler(appLogger),
		lang,
		appLogger,
	)
}

// Languages returns the configured OCR language spec. The label stays
// "Hebrew and English" for the default pair.
func Languages(config domain.Config) domain.LanguageSpec {
	codes := config.GetLanguages()
	if len(codes) == 0 {
		return domain.HebrewEnglish
	}
	label := domain.HebrewEnglish.Label
	if !sameCodes(codes, domain.HebrewEnglish.Codes) {
		label = domain.LanguageSpec{Codes: codes}.String()
	}
	return domain.LanguageSpec{Codes: append([]string(nil), codes...), Label: label}
}

func sameCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close releases the database and log file
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}
