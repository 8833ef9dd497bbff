package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"idfcore/internal/archive"
	blobcore "idfcore/internal/blob/core"
	"idfcore/internal/infra/blob/s3"
	"idfcore/pkg/domain"
)

// StorageDriver identifies a snapshot persistence backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Config collects the environment-driven settings.
type Config struct {
	Strictness    domain.Strictness
	FastNaming    bool
	StorageDriver StorageDriver
	SQLitePath    string
	PostgresDSN   string
	BlobDriver    blobcore.Driver
	S3            s3.Config
	Compression   archive.Compression
}

// DefaultConfig is the configuration with every variable unset.
func DefaultConfig() Config {
	return Config{
		Strictness:    domain.StrictnessDraft,
		StorageDriver: StorageMemory,
		BlobDriver:    blobcore.DriverMemory,
		Compression:   archive.CompressionZstd,
	}
}

// LoadConfig reads the process environment.
//
//	IDFCORE_STRICTNESS: none|draft|final (default draft)
//	IDFCORE_FAST_NAMING: true|false
//	IDFCORE_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	IDFCORE_SQLITE_PATH: path to sqlite file (default ./idfcore.db)
//	IDFCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	IDFCORE_BLOB_DRIVER: memory|s3 (default memory)
//	IDFCORE_BLOB_S3_BUCKET, IDFCORE_BLOB_S3_REGION, IDFCORE_BLOB_S3_ENDPOINT,
//	IDFCORE_BLOB_S3_PATH_STYLE: S3 settings when driver=s3
//	IDFCORE_ARCHIVE_COMPRESSION: none|lz4|zstd (default zstd)
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if v := getenv("IDFCORE_STRICTNESS"); v != "" {
		if cfg.Strictness, err = domain.ParseStrictness(strings.ToLower(v)); err != nil {
			return Config{}, fmt.Errorf("IDFCORE_STRICTNESS: %w", err)
		}
	}
	if v := getenv("IDFCORE_FAST_NAMING"); v != "" {
		if cfg.FastNaming, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("IDFCORE_FAST_NAMING: %w", err)
		}
	}
	if v := getenv("IDFCORE_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = StorageDriver(strings.ToLower(v))
	}
	cfg.SQLitePath = getenv("IDFCORE_SQLITE_PATH")
	cfg.PostgresDSN = getenv("IDFCORE_POSTGRES_DSN")
	if v := getenv("IDFCORE_BLOB_DRIVER"); v != "" {
		cfg.BlobDriver = blobcore.Driver(strings.ToLower(v))
	}
	cfg.S3 = s3.Config{
		Bucket:    getenv("IDFCORE_BLOB_S3_BUCKET"),
		Region:    getenv("IDFCORE_BLOB_S3_REGION"),
		Endpoint:  getenv("IDFCORE_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(getenv("IDFCORE_BLOB_S3_PATH_STYLE"), "true"),
	}
	if v := getenv("IDFCORE_ARCHIVE_COMPRESSION"); v != "" {
		if cfg.Compression, err = archive.ParseCompression(v); err != nil {
			return Config{}, fmt.Errorf("IDFCORE_ARCHIVE_COMPRESSION: %w", err)
		}
	}
	return cfg, nil
}
