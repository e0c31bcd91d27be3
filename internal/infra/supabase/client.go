package supabase

import (
	"fmt"

	"pdf-ocr-server/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// Settings names the Supabase project used for result mirroring.
type Settings struct {
	URL    string
	Key    string
	Bucket string
}

// Configured reports whether both URL and key are present.
func (s Settings) Configured() bool {
	return s.URL != "" && s.Key != ""
}

// SettingsFromConfig reads Supabase settings from the application config.
func SettingsFromConfig(config domain.Config) Settings {
	return Settings{
		URL:    config.GetSupabaseURL(),
		Key:    config.GetSupabaseKey(),
		Bucket: config.GetSupabaseBucket(),
	}
}

// NewClient establishes a Supabase client for the given settings
func NewClient(settings Settings, logger domain.Logger) (*supabase.Client, error) {
	if !settings.Configured() {
		return nil, fmt.Errorf("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(settings.URL, settings.Key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	logger.Info("Supabase client initialized successfully", "url", settings.URL, "bucket", settings.Bucket)
	return client, nil
}
