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

// Record and blob backends understood by Load.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"

	BlobGCS   = "gcs"
	BlobLocal = "local"
)

// Config is the environment configuration shared by every entry point.
type Config struct {
	ProjectID string

	RecordBackend       string
	FirestoreDatabase   string
	FirestoreCollection string
	DatabaseURL         string

	BlobBackend     string
	DocumentsBucket string
	LocalBlobDir    string
	PublicBaseURL   string

	WorkerPoolSize    int
	ProcessingTimeout time.Duration
	StaleAfter        time.Duration
	SweepInterval     time.Duration
	MaxUploadBytes    int64

	JWTSecret string

	EnableAnalysis bool
	VertexAIRegion string
	AnalysisModel  string

	WorkflowID       string
	WorkflowLocation string
	EventSinkURL     string

	Port           string
	LogLevel       slog.Level
	AnalysisAPIURL string
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		ProjectID:           GetEnv("PROJECT_ID", ""),
		RecordBackend:       strings.ToLower(GetEnv("RECORD_BACKEND", BackendFirestore)),
		FirestoreDatabase:   GetEnv("FIRESTORE_DATABASE", ""),
		FirestoreCollection: GetEnv("FIRESTORE_COLLECTION", "processed_documents"),
		DatabaseURL:         GetEnv("DATABASE_URL", ""),
		BlobBackend:         strings.ToLower(GetEnv("BLOB_BACKEND", BlobGCS)),
		DocumentsBucket:     GetEnv("DOCUMENTS_BUCKET", "documents"),
		LocalBlobDir:        GetEnv("LOCAL_BLOB_DIR", "./storage"),
		PublicBaseURL:       GetEnv("PUBLIC_BASE_URL", ""),
		JWTSecret:           GetEnv("JWT_SECRET", ""),
		VertexAIRegion:      GetEnv("VERTEX_AI_REGION", "us-central1"),
		AnalysisModel:       GetEnv("ANALYSIS_MODEL", "gemini-1.5-pro"),
		WorkflowID:          GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation:    GetEnv("WORKFLOW_LOCATION", "us-central1"),
		EventSinkURL:        GetEnv("EVENT_SINK_URL", ""),
		Port:                GetEnv("PORT", "8080"),
		AnalysisAPIURL:      GetEnv("ANALYSIS_API_URL", ""),
	}

	var err error
	if cfg.WorkerPoolSize, err = envInt("WORKER_POOL_SIZE", 8); err != nil {
		return nil, err
	}
	if cfg.ProcessingTimeout, err = envDuration("PROCESSING_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = envDuration("STALE_AFTER", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	if cfg.EnableAnalysis, err = envBool("ENABLE_ANALYSIS", false); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLevel(GetEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need and that
// the sweeper cannot fail a record that is still within its processing time.
func (c *Config) Validate() error {
	switch c.RecordBackend {
	case BackendFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID environment variable must be set")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable must be set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown RECORD_BACKEND %q", c.RecordBackend)
	}

	switch c.BlobBackend {
	case BlobGCS:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID environment variable must be set")
		}
		if c.DocumentsBucket == "" {
			return fmt.Errorf("DOCUMENTS_BUCKET environment variable must be set")
		}
	case BlobLocal:
		if c.LocalBlobDir == "" {
			return fmt.Errorf("LOCAL_BLOB_DIR environment variable must be set")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if c.EnableAnalysis && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set when ENABLE_ANALYSIS is true")
	}
	if c.WorkflowID != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set when WORKFLOW_ID is set")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	// Records younger than the processing timeout may still complete.
	if c.StaleAfter <= 0 {
		return fmt.Errorf("STALE_AFTER must be positive, got %s", c.StaleAfter)
	}
	if c.ProcessingTimeout > 0 && c.StaleAfter <= c.ProcessingTimeout {
		return fmt.Errorf("STALE_AFTER (%s) must be greater than PROCESSING_TIMEOUT (%s)", c.StaleAfter, c.ProcessingTimeout)
	}
	return nil
}

// NewLogger returns the JSON logger used by every entry point.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func envInt(key string, fallback int) (int, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}
