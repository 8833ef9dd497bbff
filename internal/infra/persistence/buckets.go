// Package persistence holds the bucket layout shared by the snapshot drivers.
// A snapshot is split into a small "meta" bucket and a "records" bucket so a
// backend can upsert each payload independently.
package persistence

import (
	"encoding/json"
	"fmt"

	"idfcore/pkg/domain"
)

// Bucket names in the order drivers write them.
const (
	BucketMeta    = "meta"
	BucketRecords = "records"
)

// Buckets lists every bucket a snapshot occupies.
var Buckets = []string{BucketMeta, BucketRecords}

type meta struct {
	Strictness  domain.Strictness `json:"strictness"`
	FastNaming  bool              `json:"fast_naming,omitempty"`
	DirectOrder bool              `json:"direct_order,omitempty"`
	Order       []domain.Handle   `json:"order,omitempty"`
}

// EncodeBuckets splits a snapshot into JSON payloads keyed by bucket name.
func EncodeBuckets(snapshot domain.Snapshot) (map[string][]byte, error) {
	m, err := json.Marshal(meta{
		Strictness:  snapshot.Strictness,
		FastNaming:  snapshot.FastNaming,
		DirectOrder: snapshot.DirectOrder,
		Order:       snapshot.Order,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketMeta, err)
	}
	records := snapshot.Records
	if records == nil {
		records = []domain.RecordData{}
	}
	r, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketRecords, err)
	}
	return map[string][]byte{BucketMeta: m, BucketRecords: r}, nil
}

// DecodeBuckets reassembles a snapshot. It reports false when the meta bucket
// is absent, meaning nothing was ever saved. Unknown buckets are ignored.
func DecodeBuckets(payloads map[string][]byte) (domain.Snapshot, bool, error) {
	raw, ok := payloads[BucketMeta]
	if !ok || len(raw) == 0 {
		return domain.Snapshot{}, false, nil
	}
	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode %s: %w", BucketMeta, err)
	}
	snapshot := domain.Snapshot{
		Strictness:  m.Strictness,
		FastNaming:  m.FastNaming,
		DirectOrder: m.DirectOrder,
		Order:       m.Order,
	}
	if raw := payloads[BucketRecords]; len(raw) > 0 {
		if err := json.Unmarshal(raw, &snapshot.Records); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode %s: %w", BucketRecords, err)
		}
	}
	return snapshot, true, nil
}
