package core

import (
	"context"
	"errors"
	"fmt"

	"idfcore/internal/archive"
	blobcore "idfcore/internal/blob/core"
	blobmemory "idfcore/internal/infra/blob/memory"
	"idfcore/internal/infra/blob/s3"
	"idfcore/internal/infra/persistence/memory"
	"idfcore/internal/infra/persistence/postgres"
	"idfcore/internal/infra/persistence/sqlite"
	"idfcore/internal/workspace"
	"idfcore/pkg/domain"
)

// OpenSnapshotStore selects a snapshot backend from cfg.
func OpenSnapshotStore(ctx context.Context, cfg Config) (domain.SnapshotStore, error) {
	switch cfg.StorageDriver {
	case StorageMemory, "":
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// OpenBlobStore selects a blob backend from cfg.
func OpenBlobStore(ctx context.Context, cfg Config) (blobcore.Store, error) {
	switch cfg.BlobDriver {
	case blobcore.DriverMemory, "":
		return blobmemory.New(), nil
	case blobcore.DriverS3:
		if cfg.S3.Bucket == "" {
			return nil, errors.New("IDFCORE_BLOB_S3_BUCKET required for s3 driver")
		}
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.BlobDriver)
	}
}

// Open wires a Service from cfg: a fresh store at the configured strictness,
// the snapshot backend, and an archiver over the blob backend. Any persisted
// snapshot is loaded before Open returns.
func Open(ctx context.Context, schema domain.Schema, cfg Config, opts ...Option) (*Service, error) {
	snapshots, err := OpenSnapshotStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		_ = snapshots.Close()
		return nil, err
	}
	base := []Option{
		WithSnapshotStore(snapshots),
		WithArchive(archive.NewArchiver(blobs, archive.WithCompression(cfg.Compression))),
	}
	svc := NewService(nil, append(base, opts...)...)
	svc.store = workspace.New(schema,
		workspace.WithStrictness(cfg.Strictness),
		workspace.WithFastNaming(cfg.FastNaming),
		workspace.WithLogger(svc.logger),
	)
	if _, err := svc.Load(ctx); err != nil {
		_ = snapshots.Close()
		return nil, err
	}
	return svc, nil
}
