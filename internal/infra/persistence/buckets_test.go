package persistence

import (
	"strings"
	"testing"

	"idfcore/pkg/domain"
)

func TestBucketsRoundTrip(t *testing.T) {
	h := domain.NewHandle()
	snap := domain.Snapshot{
		Strictness:  domain.StrictnessFinal,
		DirectOrder: true,
		Order:       []domain.Handle{h},
		Records:     []domain.RecordData{{Handle: h, Type: "OS:Zone", Fields: []string{"Core", ""}}},
	}
	payloads, err := EncodeBuckets(snap)
	if err != nil {
		t.Fatalf("EncodeBuckets: %v", err)
	}
	if len(payloads) != len(Buckets) {
		t.Fatalf("expected %d buckets, got %d", len(Buckets), len(payloads))
	}
	if !strings.Contains(string(payloads[BucketMeta]), `"final"`) {
		t.Fatalf("strictness should encode by name: %s", payloads[BucketMeta])
	}
	got, ok, err := DecodeBuckets(payloads)
	if err != nil || !ok {
		t.Fatalf("DecodeBuckets: ok=%v err=%v", ok, err)
	}
	if got.Strictness != domain.StrictnessFinal || !got.DirectOrder || len(got.Order) != 1 || got.Order[0] != h {
		t.Fatalf("meta not restored: %+v", got)
	}
	if len(got.Records) != 1 || got.Records[0].Handle != h || got.Records[0].Fields[0] != "Core" {
		t.Fatalf("records not restored: %+v", got.Records)
	}
}

func TestDecodeBucketsEmptyAndCorrupt(t *testing.T) {
	if _, ok, err := DecodeBuckets(nil); ok || err != nil {
		t.Fatalf("empty payloads should report nothing saved, ok=%v err=%v", ok, err)
	}
	if _, _, err := DecodeBuckets(map[string][]byte{BucketMeta: []byte("{")}); err == nil {
		t.Fatalf("expected meta decode error")
	}
	bad := map[string][]byte{BucketMeta: []byte(`{"strictness":"draft"}`), BucketRecords: []byte("[1]")}
	if _, _, err := DecodeBuckets(bad); err == nil || !strings.Contains(err.Error(), BucketRecords) {
		t.Fatalf("expected records decode error, got %v", err)
	}
	snap, ok, err := DecodeBuckets(map[string][]byte{BucketMeta: []byte(`{"strictness":"none"}`)})
	if err != nil || !ok || snap.Strictness != domain.StrictnessNone || len(snap.Records) != 0 {
		t.Fatalf("meta alone is a valid empty snapshot: %+v ok=%v err=%v", snap, ok, err)
	}
}
