package domain

import "context"

// Snapshot is the persisted form of a workspace. Records appear in insertion
// order and Order carries the direct sequence when one is kept. Object-list
// fields hold the target Handle string so pointers survive renames.
type Snapshot struct {
	Strictness  Strictness   `json:"strictness"`
	FastNaming  bool         `json:"fast_naming,omitempty"`
	DirectOrder bool         `json:"direct_order,omitempty"`
	Order       []Handle     `json:"order,omitempty"`
	Records     []RecordData `json:"records"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Order = append([]Handle(nil), s.Order...)
	cp.Records = make([]RecordData, len(s.Records))
	for i, r := range s.Records {
		cp.Records[i] = r.Clone()
	}
	return cp
}

// SnapshotStore is a durable backend for workspace snapshots. Load reports
// false when nothing has been saved yet.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
	Close() error
}
