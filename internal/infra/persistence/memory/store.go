// Package memory provides an in-memory snapshot store used for tests and
// ephemeral environments. Payloads go through the same bucket encoding as
// the SQL drivers so a snapshot read back is a deep copy of what was saved.
package memory

import (
	"context"
	"errors"
	"sync"

	"idfcore/internal/infra/persistence"
	"idfcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.SnapshotStore = (*Store)(nil)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory snapshot store closed")

// Store keeps the latest saved buckets in memory.
type Store struct {
	mu      sync.RWMutex
	buckets map[string][]byte
	saves   int
	closed  bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[string][]byte)}
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payloads, err := persistence.EncodeBuckets(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for bucket, data := range payloads {
		s.buckets[bucket] = data
	}
	s.saves++
	return nil
}

// Load returns the last saved snapshot, or false when nothing was saved.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Snapshot{}, false, ErrClosed
	}
	return persistence.DecodeBuckets(s.buckets)
}

// Saves reports how many snapshots were written.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close releases the stored payloads.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}
