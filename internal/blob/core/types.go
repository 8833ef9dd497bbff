// Package core defines the blob storage abstraction that snapshot archives
// are written to.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names an archive backend; it is the value of IDFCORE_BLOB_DRIVER.
type Driver string

const (
	DriverS3     Driver = "s3"
	DriverMemory Driver = "memory"
)

// PutOptions carries the content type and the flat user metadata stored
// alongside an archive (record count, strictness).
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored object. LastModified is zero when the backend does
// not report it.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a thin S3-like object store. Put is create-only and fails with
// ErrExists when the key is taken; Get and Head fail with ErrNotFound.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("blobstore: not found")
	// ErrExists is returned by Put when the key is already taken.
	ErrExists = errors.New("blobstore: already exists")
)
