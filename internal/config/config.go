// Package config builds the single process-wide configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendBadger    = "badger"
)

// Config holds everything the clients and services need. It is created once at
// process start and handed to each constructor.
type Config struct {
	ProjectID    string
	RawPDFBucket string
	SignedURLTTL time.Duration

	DocumentAILocation    string
	DocumentAIProcessorID string
	LayoutTimeout         time.Duration
	LayoutPageLimit       int

	VertexAIRegion string
	GeminiModel    string

	StoreBackend                 string
	FirestoreDatabase            string
	FirestorePartitionCollection string
	FirestoreCollection          string
	BadgerPath                   string
	QueryMaxResults              int

	LogFormat string
	LogLevel  string
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a duration: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not an int: %w", key, v, err)
	}
	return n, nil
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ProjectID:                    GetEnv("PROJECT_ID", ""),
		RawPDFBucket:                 GetEnv("RAW_PDF_BUCKET", ""),
		DocumentAILocation:           GetEnv("DOCUMENTAI_LOCATION", "us"),
		DocumentAIProcessorID:        GetEnv("DOCUMENTAI_PROCESSOR_ID", ""),
		VertexAIRegion:               GetEnv("VERTEX_AI_REGION", "us-central1"),
		GeminiModel:                  GetEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		StoreBackend:                 strings.ToLower(GetEnv("STORE_BACKEND", BackendFirestore)),
		FirestoreDatabase:            GetEnv("FIRESTORE_DATABASE", ""),
		FirestorePartitionCollection: GetEnv("FIRESTORE_PARTITION_COLLECTION", "clientes"),
		FirestoreCollection:          GetEnv("FIRESTORE_COLLECTION", "monitoreos"),
		BadgerPath:                   GetEnv("BADGER_PATH", "./data/badger"),
		LogFormat:                    GetEnv("LOG_FORMAT", "json"),
		LogLevel:                     GetEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SignedURLTTL, err = getDuration("SIGNED_URL_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.LayoutTimeout, err = getDuration("LAYOUT_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LayoutPageLimit, err = getInt("LAYOUT_PAGE_LIMIT", 15); err != nil {
		return nil, err
	}
	if cfg.QueryMaxResults, err = getInt("QUERY_MAX_RESULTS", 500); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every entry point needs. Settings only some
// components need (the Document AI processor) are checked by RequireLayout.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if c.RawPDFBucket == "" {
		return fmt.Errorf("RAW_PDF_BUCKET environment variable must be set")
	}
	switch c.StoreBackend {
	case BackendFirestore, BackendBadger:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendFirestore, BackendBadger, c.StoreBackend)
	}
	if c.LayoutPageLimit < 0 {
		return fmt.Errorf("LAYOUT_PAGE_LIMIT must not be negative, got %d", c.LayoutPageLimit)
	}
	if c.QueryMaxResults <= 0 {
		return fmt.Errorf("QUERY_MAX_RESULTS must be positive, got %d", c.QueryMaxResults)
	}
	return nil
}

// RequireLayout checks the Document AI settings used by ingestion.
func (c *Config) RequireLayout() error {
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENTAI_PROCESSOR_ID environment variable must be set")
	}
	return nil
}

// NewLogger builds the slog logger selected by LOG_FORMAT and LOG_LEVEL.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
