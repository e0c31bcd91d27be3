package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"pdf-ocr-server/internal/domain"

	"github.com/BurntSushi/toml"
)

const defaultConfigFile = "ocr-server.toml"

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort        string             `toml:"server_port"`
	UploadPath        string             `toml:"upload_path"`
	ResultsPath       string             `toml:"results_path"`
	ImagesPath        string             `toml:"images_path"`
	MaxFileSize       int64              `toml:"max_file_size"`
	MaxPages          int                `toml:"max_pages"`
	LogLevel          string             `toml:"log_level"`
	LogFile           string             `toml:"log_file"`
	DPI               int                `toml:"dpi"`
	Languages         []string           `toml:"languages"`
	RecordOCRErrors   bool               `toml:"record_ocr_errors"`
	ProgressRetention duration           `toml:"progress_retention"`
	SweepPolicy       domain.SweepPolicy `toml:"sweep_policy"`
	DatabasePath      string             `toml:"database_path"`
	SupabaseURL       string             `toml:"supabase_url"`
	SupabaseKey       string             `toml:"supabase_key"`
	SupabaseBucket    string             `toml:"supabase_bucket"`
	CORSOrigins       []string           `toml:"cors_origins"`
}

// duration lets TOML files spell retention as "90m" or "1h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns a configuration with all defaults applied.
func Default() *AppConfig {
	return &AppConfig{
		ServerPort:        "8080",
		UploadPath:        "./uploads",
		ResultsPath:       "./results",
		ImagesPath:        "./images",
		MaxFileSize:       16 * 1024 * 1024, // 16MB
		MaxPages:          domain.DefaultMaxPages,
		LogLevel:          "info",
		DPI:               domain.DefaultDPI,
		Languages:         append([]string(nil), domain.HebrewEnglish.Codes...),
		ProgressRetention: duration{time.Hour},
		SweepPolicy:       domain.SweepCompleted,
		DatabasePath:      "ocr-jobs.db",
		SupabaseBucket:    "ocr-results",
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
	}
}

// NewConfig reads defaults, then CONFIG_FILE (TOML), then environment variables.
func NewConfig() domain.Config {
	return Load(getEnvOrDefault("CONFIG_FILE", defaultConfigFile))
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) *AppConfig {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, cfg)
	}

	// Cloud Run (and many PaaS) provide the listening port via PORT.
	// Keep SERVER_PORT for local/dev compatibility.
	cfg.ServerPort = getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", cfg.ServerPort))
	cfg.UploadPath = getEnvOrDefault("UPLOAD_PATH", cfg.UploadPath)
	cfg.ResultsPath = getEnvOrDefault("RESULTS_PATH", cfg.ResultsPath)
	cfg.ImagesPath = getEnvOrDefault("IMAGES_PATH", cfg.ImagesPath)
	cfg.MaxFileSize = getEnvInt64OrDefault("MAX_FILE_SIZE", cfg.MaxFileSize)
	cfg.MaxPages = int(getEnvInt64OrDefault("MAX_PAGES", int64(cfg.MaxPages)))
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnvOrDefault("LOG_FILE", cfg.LogFile)
	cfg.DPI = int(getEnvInt64OrDefault("OCR_DPI", int64(cfg.DPI)))
	cfg.Languages = getEnvListOrDefault("OCR_LANGUAGES", "+", cfg.Languages)
	cfg.RecordOCRErrors = getEnvBoolOrDefault("OCR_RECORD_ERRORS", cfg.RecordOCRErrors)
	cfg.ProgressRetention.Duration = getEnvDurationOrDefault("PROGRESS_RETENTION", cfg.ProgressRetention.Duration)
	cfg.SweepPolicy = domain.SweepPolicy(getEnvOrDefault("PROGRESS_SWEEP_POLICY", string(cfg.SweepPolicy)))
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", cfg.DatabasePath)
	cfg.SupabaseURL = getEnvOrDefault("SUPABASE_URL", cfg.SupabaseURL)
	cfg.SupabaseKey = getEnvOrDefault("SUPABASE_KEY", cfg.SupabaseKey)
	cfg.SupabaseBucket = getEnvOrDefault("SUPABASE_BUCKET", cfg.SupabaseBucket)
	cfg.CORSOrigins = getEnvListOrDefault("CORS_ORIGINS", ",", cfg.CORSOrigins)

	// Fallbacks
	if cfg.DPI <= 0 {
		cfg.DPI = domain.DefaultDPI
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = domain.DefaultMaxPages
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = append([]string(nil), domain.HebrewEnglish.Codes...)
	}
	if cfg.SweepPolicy != domain.SweepCompleted && cfg.SweepPolicy != domain.SweepTerminal {
		cfg.SweepPolicy = domain.SweepCompleted
	}
	if cfg.ProgressRetention.Duration <= 0 {
		cfg.ProgressRetention.Duration = time.Hour
	}

	return cfg
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetUploadPath returns the upload directory path
func (c *AppConfig) GetUploadPath() string {
	return c.UploadPath
}

// GetResultsPath returns the directory for result documents
func (c *AppConfig) GetResultsPath() string {
	return c.ResultsPath
}

// GetImagesPath returns the root directory for rendered page images
func (c *AppConfig) GetImagesPath() string {
	return c.ImagesPath
}

// GetMaxFileSize returns the maximum allowed file size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetMaxPages returns the largest page range a single job may request
func (c *AppConfig) GetMaxPages() int {
	return c.MaxPages
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetLogFile returns the optional log file path
func (c *AppConfig) GetLogFile() string {
	return c.LogFile
}

// GetDPI returns the rasterization resolution
func (c *AppConfig) GetDPI() int {
	return c.DPI
}

// GetLanguages returns the OCR language codes
func (c *AppConfig) GetLanguages() []string {
	return c.Languages
}

func (c *AppConfig) GetRecordOCRErrors() bool {
	return c.RecordOCRErrors
}

// GetProgressRetention returns how long finished progress entries are kept
func (c *AppConfig) GetProgressRetention() time.Duration {
	return c.ProgressRetention.Duration
}

func (c *AppConfig) GetSweepPolicy() domain.SweepPolicy {
	return c.SweepPolicy
}

// GetDatabasePath returns the SQLite job database path
func (c *AppConfig) GetDatabasePath() string {
	return c.DatabasePath
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase service key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

func (c *AppConfig) GetSupabaseBucket() string {
	return c.SupabaseBucket
}

func (c *AppConfig) GetCORSOrigins() []string {
	return c.CORSOrigins
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
