// Package core exposes the workspace through a context-aware Service that
// serializes access, persists every committed mutation and reports metrics.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"idfcore/internal/archive"
	blobcore "idfcore/internal/blob/core"
	"idfcore/internal/workspace"
	"idfcore/pkg/domain"
)

var (
	// ErrNoSnapshotStore is returned by Load when no snapshot store is configured.
	ErrNoSnapshotStore = errors.New("core: no snapshot store configured")
	// ErrNoArchive is returned by the archive operations when no archiver is configured.
	ErrNoArchive = errors.New("core: no archive configured")
)

// Service wraps a workspace Store. The Store itself is single-threaded; the
// Service holds a mutex around every operation.
type Service struct {
	mu        sync.Mutex
	store     *workspace.Store
	snapshots domain.SnapshotStore
	archiver  *archive.Archiver
	logger    Logger
	metrics   MetricsRecorder
	now       func() time.Time

	observers map[int]domain.Observer
	unsub     map[int]func()
	nextObs   int
}

// NewService constructs a service around store.
func NewService(store *workspace.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    noopLogger{},
		metrics:   noopMetricsRecorder{},
		now:       time.Now,
		observers: make(map[int]domain.Observer),
		unsub:     make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View runs fn against the store under the service lock. fn must not retain
// the store or its record views.
func (s *Service) View(ctx context.Context, fn func(*workspace.Store) error) error {
	return s.run(ctx, "view", false, fn)
}

// Snapshot exports the current workspace.
func (s *Service) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Export()
}

// Subscribe registers an observer. Subscriptions survive Load and
// ImportArchive, which replace the underlying store.
func (s *Service) Subscribe(o domain.Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.unsub[id] = s.store.Subscribe(o)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if fn, ok := s.unsub[id]; ok {
			fn()
		}
		delete(s.unsub, id)
		delete(s.observers, id)
	}
}

// AddRecords adds a batch atomically and returns the new handles in batch order.
func (s *Service) AddRecords(ctx context.Context, batch []domain.RecordData, opts ...workspace.AddOption) ([]domain.Handle, error) {
	var out []domain.Handle
	err := s.run(ctx, "add_records", true, func(st *workspace.Store) error {
		recs, err := st.AddRecords(batch, opts...)
		out = handles(recs)
		if err != nil && len(recs) > 0 {
			return partialCommit{err}
		}
		return err
	})
	return out, err
}

// AddRecord adds one record.
func (s *Service) AddRecord(ctx context.Context, data domain.RecordData) (domain.Handle, error) {
	var out domain.Handle
	err := s.run(ctx, "add_record", true, func(st *workspace.Store) error {
		rec, err := st.AddRecord(data)
		out = rec.Handle()
		return err
	})
	return out, err
}

// MergeRecords adds the batch, reusing equivalent existing records.
func (s *Service) MergeRecords(ctx context.Context, batch []domain.RecordData) ([]domain.Handle, error) {
	var out []domain.Handle
	err := s.run(ctx, "merge_records", true, func(st *workspace.Store) error {
		recs, err := st.MergeRecords(batch)
		out = handles(recs)
		return err
	})
	return out, err
}

// RemoveRecords removes the handles as one batch.
func (s *Service) RemoveRecords(ctx context.Context, hs []domain.Handle) error {
	return s.run(ctx, "remove_records", true, func(st *workspace.Store) error {
		return st.RemoveRecords(hs)
	})
}

// SwapRecord replaces the content of h in place and returns the previous data.
func (s *Service) SwapRecord(ctx context.Context, h domain.Handle, data domain.RecordData, keepTargets bool) (domain.RecordData, error) {
	var prev domain.RecordData
	err := s.run(ctx, "swap_record", true, func(st *workspace.Store) error {
		var err error
		prev, err = st.SwapRecord(h, data, keepTargets)
		return err
	})
	return prev, err
}

// SetPointer points field of source at target.
func (s *Service) SetPointer(ctx context.Context, source domain.Handle, field int, target domain.Handle) error {
	return s.run(ctx, "set_pointer", true, func(st *workspace.Store) error {
		rec, ok := st.Record(source)
		if !ok {
			return fmt.Errorf("record %s: %w", source, domain.ErrNotMember)
		}
		return rec.SetPointer(field, target)
	})
}

// SetString assigns a field value through the record view.
func (s *Service) SetString(ctx context.Context, h domain.Handle, field int, value string) error {
	return s.run(ctx, "set_string", true, func(st *workspace.Store) error {
		rec, ok := st.Record(h)
		if !ok {
			return fmt.Errorf("record %s: %w", h, domain.ErrNotMember)
		}
		return rec.SetString(field, value)
	})
}

// Validate reports every validity error at level.
func (s *Service) Validate(ctx context.Context, level domain.Strictness) (domain.ValidityReport, error) {
	var rep domain.ValidityReport
	err := s.run(ctx, "validate", false, func(st *workspace.Store) error {
		rep = st.ValidityReport(level)
		return nil
	})
	return rep, err
}

// CloneSubset copies the handles into a new, independent store. Pointers to
// records outside hs are dropped.
func (s *Service) CloneSubset(ctx context.Context, hs []domain.Handle, keepHandles bool) (*workspace.Store, map[domain.Handle]domain.Handle, error) {
	var (
		out     *workspace.Store
		mapping map[domain.Handle]domain.Handle
	)
	err := s.run(ctx, "clone_subset", false, func(st *workspace.Store) error {
		out, mapping = st.CloneSubset(hs, keepHandles)
		return nil
	})
	return out, mapping, err
}

// Load replaces the workspace with the last persisted snapshot. It reports
// false and leaves the store untouched when nothing was saved.
func (s *Service) Load(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, ErrNoSnapshotStore
	}
	var loaded bool
	err := s.run(ctx, "load", false, func(st *workspace.Store) error {
		snap, ok, err := s.snapshots.Load(ctx)
		if err != nil || !ok {
			return err
		}
		if err := s.replaceLocked(st.Schema(), snap); err != nil {
			return err
		}
		loaded = true
		return nil
	})
	return loaded, err
}

// ExportArchive writes the current workspace to the archive under key.
func (s *Service) ExportArchive(ctx context.Context, key string) (blobcore.Info, error) {
	if s.archiver == nil {
		return blobcore.Info{}, ErrNoArchive
	}
	var info blobcore.Info
	err := s.run(ctx, "export_archive", false, func(st *workspace.Store) error {
		var err error
		info, err = s.archiver.Export(ctx, key, st.Export())
		return err
	})
	return info, err
}

// ImportArchive replaces the workspace with the archive stored under key
// and persists the result.
func (s *Service) ImportArchive(ctx context.Context, key string) error {
	if s.archiver == nil {
		return ErrNoArchive
	}
	return s.run(ctx, "import_archive", true, func(st *workspace.Store) error {
		snap, err := s.archiver.Import(ctx, key)
		if err != nil {
			return err
		}
		return s.replaceLocked(st.Schema(), snap)
	})
}

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}

func (s *Service) replaceLocked(schema domain.Schema, snap domain.Snapshot) error {
	next, err := workspace.Import(schema, snap, workspace.WithLogger(s.logger))
	if err != nil {
		return err
	}
	for id, fn := range s.unsub {
		fn()
		s.unsub[id] = next.Subscribe(s.observers[id])
	}
	s.store = next
	return nil
}

// partialCommit marks an error from an operation that still committed part
// of its work, so the store must be persisted anyway.
type partialCommit struct{ err error }

func (p partialCommit) Error() string { return p.err.Error() }
func (p partialCommit) Unwrap() error { return p.err }

func (s *Service) run(ctx context.Context, op string, mutates bool, fn func(*workspace.Store) error) (err error) {
	start := s.now()
	defer func() {
		duration := s.now().Sub(start)
		s.metrics.Observe(ctx, op, err == nil, duration)
		if err != nil {
			s.logger.Warn("workspace operation failed", "operation", op, "error", err, "duration", duration)
			return
		}
		s.logger.Debug("workspace operation", "operation", op, "duration", duration)
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	opErr := fn(s.store)
	var pc partialCommit
	if errors.As(opErr, &pc) {
		opErr = pc.err
	} else if opErr != nil {
		return opErr
	}
	if !mutates {
		return opErr
	}
	if sr, ok := s.metrics.(sizeRecorder); ok {
		sr.SetRecords(s.store.NumRecords())
	}
	if s.snapshots == nil {
		return opErr
	}
	if err := s.snapshots.Save(ctx, s.store.Export()); err != nil {
		return errors.Join(opErr, fmt.Errorf("persist snapshot: %w", err))
	}
	return opErr
}

func handles(recs []workspace.Record) []domain.Handle {
	if recs == nil {
		return nil
	}
	out := make([]domain.Handle, len(recs))
	for i, r := range recs {
		out[i] = r.Handle()
	}
	return out
}
