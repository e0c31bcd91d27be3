package repository

import (
	"context"
	"fmt"
	"os"

	"pdf-ocr-server/internal/domain"
	supabaseinfra "pdf-ocr-server/internal/infra/supabase"
	apperrors "pdf-ocr-server/pkg/errors"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseResultStore implements domain.ResultStore on Supabase Storage.
// Without a URL and key it stays disabled and every upload is a no-op.
type SupabaseResultStore struct {
	client *supabase.Client
	bucket string
	logger domain.Logger
}

// NewSupabaseResultStore creates a store for settings.Bucket. Missing
// credentials yield a disabled store rather than an error.
func NewSupabaseResultStore(settings supabaseinfra.Settings, logger domain.Logger) (*SupabaseResultStore, error) {
	store := &SupabaseResultStore{bucket: settings.Bucket, logger: logger}

	if !settings.Configured() {
		logger.Info("Supabase not configured, result mirroring disabled")
		return store, nil
	}

	client, err := supabaseinfra.NewClient(settings, logger)
	if err != nil {
		return nil, err
	}
	store.client = client
	return store, nil
}

// Enabled reports whether uploads reach Supabase
func (s *SupabaseResultStore) Enabled() bool {
	return s.client != nil
}

// UploadFile uploads a local file to the bucket, replacing any existing object.
func (s *SupabaseResultStore) UploadFile(ctx context.Context, localPath, remotePath, contentType string) error {
	if !s.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	upsert := true
	_, err = s.client.Storage.UploadFile(s.bucket, remotePath, f, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		s.logger.Error("Failed to upload to Supabase storage", err, "bucket", s.bucket, "path", remotePath)
		return apperrors.NewNetworkError("upload "+remotePath, err)
	}
	s.logger.Debug("Uploaded to Supabase storage", "bucket", s.bucket, "path", remotePath)
	return nil
}
