package archive

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"idfcore/internal/blob/core"
	"idfcore/pkg/domain"
)

// ContentType tags archives written to a blob store.
const ContentType = "application/vnd.idfcore.snapshot"

// DefaultPrefix namespaces archive keys inside a shared bucket.
const DefaultPrefix = "archives/"

// Archiver exports and imports snapshots through a blob store.
type Archiver struct {
	store       core.Store
	compression Compression
	prefix      string
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithCompression selects the codec used by Export. Defaults to zstd.
func WithCompression(c Compression) Option {
	return func(a *Archiver) { a.compression = c }
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) { a.prefix = prefix }
}

// NewArchiver wraps a blob store.
func NewArchiver(store core.Store, opts ...Option) *Archiver {
	a := &Archiver{store: store, compression: CompressionZstd, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compression reports the configured codec.
func (a *Archiver) Compression() Compression { return a.compression }

// Export encodes snapshot and stores it under key. Keys are create-only.
func (a *Archiver) Export(ctx context.Context, key string, snapshot domain.Snapshot) (core.Info, error) {
	data, err := Marshal(snapshot, a.compression)
	if err != nil {
		return core.Info{}, err
	}
	info, err := a.store.Put(ctx, a.prefix+key, bytes.NewReader(data), core.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"records":    strconv.Itoa(len(snapshot.Records)),
			"strictness": snapshot.Strictness.String(),
		},
	})
	if err != nil {
		return core.Info{}, fmt.Errorf("export %s: %w", key, err)
	}
	info.Key = strings.TrimPrefix(info.Key, a.prefix)
	return info, nil
}

// Import fetches and decodes the archive stored under key.
func (a *Archiver) Import(ctx context.Context, key string) (domain.Snapshot, error) {
	_, rc, err := a.store.Get(ctx, a.prefix+key)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("import %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	snapshot, _, err := Decode(rc)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("import %s: %w", key, err)
	}
	return snapshot, nil
}

// List returns the stored archives with keys relative to the prefix.
func (a *Archiver) List(ctx context.Context) ([]core.Info, error) {
	infos, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		infos[i].Key = strings.TrimPrefix(infos[i].Key, a.prefix)
	}
	return infos, nil
}

// Delete removes an archive.
func (a *Archiver) Delete(ctx context.Context, key string) (bool, error) {
	return a.store.Delete(ctx, a.prefix+key)
}
