// Package config loads vetclinic settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvStorageDriver     = "VETCLINIC_STORAGE_DRIVER"
	EnvSQLitePath        = "VETCLINIC_SQLITE_PATH"
	EnvPostgresDSN       = "VETCLINIC_POSTGRES_DSN"
	EnvBlobDriver        = "VETCLINIC_BLOB_DRIVER"
	EnvBlobFSRoot        = "VETCLINIC_BLOB_FS_ROOT"
	EnvS3Bucket          = "VETCLINIC_BLOB_S3_BUCKET"
	EnvS3Region          = "VETCLINIC_BLOB_S3_REGION"
	EnvS3Endpoint        = "VETCLINIC_BLOB_S3_ENDPOINT"
	EnvS3PathStyle       = "VETCLINIC_BLOB_S3_PATH_STYLE"
	EnvS3AccessKeyID     = "VETCLINIC_BLOB_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "VETCLINIC_BLOB_S3_SECRET_ACCESS_KEY"
	EnvLogLevel          = "VETCLINIC_LOG_LEVEL"
	EnvLogFormat         = "VETCLINIC_LOG_FORMAT"
	EnvMetricsFile       = "VETCLINIC_METRICS_FILE"
	EnvTraceFile         = "VETCLINIC_TRACE_FILE"
)

// Storage driver names.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob driver names.
const (
	BlobFilesystem = "fs"
	BlobMemory     = "memory"
	BlobS3         = "s3"
)

const (
	defaultSQLitePath = "vet_clinic.db"
	defaultFSRoot     = "./exports"
	defaultS3Region   = "us-east-1"
)

// Config is the full process configuration.
type Config struct {
	Storage Storage
	Blob    Blob
	Log     Log
	// MetricsFile receives the Prometheus registry in text format on exit when set.
	MetricsFile string
	// TraceFile receives one JSON line per service span when set.
	TraceFile string
}

// Storage selects the relational store.
type Storage struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Blob selects the export destination.
type Blob struct {
	Driver string
	FSRoot string
	S3     S3
}

// S3 holds bucket settings for the s3 blob driver. Empty credentials fall
// back to the AWS default chain.
type S3 struct {
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Log configures the process logger.
type Log struct {
	Level  string
	Format string
}

// Load reads the named .env files (".env" when none are given), ignoring
// missing ones, then builds the configuration from the process environment.
// Variables already set in the environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from a lookup function and validates it.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		Storage: Storage{
			Driver:      strings.ToLower(get(EnvStorageDriver, StorageSQLite)),
			SQLitePath:  get(EnvSQLitePath, defaultSQLitePath),
			PostgresDSN: get(EnvPostgresDSN, ""),
		},
		Blob: Blob{
			Driver: strings.ToLower(get(EnvBlobDriver, BlobFilesystem)),
			FSRoot: get(EnvBlobFSRoot, defaultFSRoot),
			S3: S3{
				Bucket:          get(EnvS3Bucket, ""),
				Region:          get(EnvS3Region, defaultS3Region),
				Endpoint:        get(EnvS3Endpoint, ""),
				AccessKeyID:     get(EnvS3AccessKeyID, ""),
				SecretAccessKey: get(EnvS3SecretAccessKey, ""),
			},
		},
		Log: Log{
			Level:  strings.ToLower(get(EnvLogLevel, "info")),
			Format: strings.ToLower(get(EnvLogFormat, "text")),
		},
		MetricsFile: get(EnvMetricsFile, ""),
		TraceFile:   get(EnvTraceFile, ""),
	}

	if raw := get(EnvS3PathStyle, ""); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid boolean %q", EnvS3PathStyle, raw)
		}
		cfg.Blob.S3.PathStyle = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%s is required when %s=postgres", EnvPostgresDSN, EnvStorageDriver)
		}
	default:
		return fmt.Errorf("%s: unknown storage driver %q", EnvStorageDriver, c.Storage.Driver)
	}

	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("%s is required when %s=s3", EnvS3Bucket, EnvBlobDriver)
		}
		if (c.Blob.S3.AccessKeyID == "") != (c.Blob.S3.SecretAccessKey == "") {
			return fmt.Errorf("%s and %s must be set together", EnvS3AccessKeyID, EnvS3SecretAccessKey)
		}
	default:
		return fmt.Errorf("%s: unknown blob driver %q", EnvBlobDriver, c.Blob.Driver)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s: unknown level %q", EnvLogLevel, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%s: unknown format %q", EnvLogFormat, c.Log.Format)
	}
	return nil
}
