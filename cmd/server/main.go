package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-ocr-server/internal/config"
	"pdf-ocr-server/internal/handler"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring
	container, err := config.NewContainer(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer container.Close()

	for _, dir := range []string{
		container.Config.GetUploadPath(),
		container.Config.GetResultsPath(),
		container.Config.GetImagesPath(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			container.Logger.Error("Failed to create data directory", err, "path", dir)
			os.Exit(1)
		}
	}

	// Handlers
	ocrHandler := handler.NewOCRHandler(
		container.JobRunner,
		container.ResultService,
		container.Highlighter,
		container.Config,
		container.Logger,
	)
	progressHandler := handler.NewProgressHandler(
		container.Tracker,
		container.Logger,
	)

	// Router
	router := handler.NewRouter(
		ocrHandler,
		progressHandler,
		container.Config.GetCORSOrigins(),
		handler.RequestLogger(container.Logger),
	)

	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return container.Tracker.RunSweeper(gctx, sweepInterval)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		container.Logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		container.JobRunner.CancelAll()
		container.JobRunner.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		container.Logger.Error("Server stopped with error", err)
		container.Close()
		os.Exit(1)
	}
	container.Logger.Info("Server exited")
}
