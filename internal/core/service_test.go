package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"idfcore/internal/archive"
	blobmemory "idfcore/internal/infra/blob/memory"
	promrecorder "idfcore/internal/infra/metrics/prometheus"
	"idfcore/internal/infra/persistence/memory"
	"idfcore/internal/workspace"
	"idfcore/pkg/domain"
)

func seedBatch() []domain.RecordData {
	return []domain.RecordData{
		rd(tBuilding, "HQ"),
		rd(tZone, "Core", "2", "HQ"),
		rd(tSpace, "Office", "Core"),
	}
}

func TestAddRecordsPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewStore()
	metrics := &captureMetricsRecorder{}
	svc := newTestService(t, WithSnapshotStore(snaps), WithMetrics(metrics), WithClock(stepClock()))

	hs, err := svc.AddRecords(ctx, seedBatch())
	if err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	if len(hs) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(hs))
	}
	if snaps.Saves() != 1 {
		t.Fatalf("expected one save, got %d", snaps.Saves())
	}
	if !metrics.has("add_records", true) || metrics.calls[0].duration != time.Millisecond {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}
	if metrics.records != 3 {
		t.Fatalf("size gauge not updated, got %d", metrics.records)
	}

	reloaded := newTestService(t, WithSnapshotStore(snaps))
	ok, err := reloaded.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	err = reloaded.View(ctx, func(st *workspace.Store) error {
		office, ok := st.Record(hs[2])
		if !ok {
			return errors.New("office missing")
		}
		zone, ok := office.GetTarget(spaceZone)
		if !ok || zone.Handle() != hs[1] {
			return errors.New("pointer not restored")
		}
		return st.CheckInvariants()
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestFailedMutationIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewStore()
	metrics := &captureMetricsRecorder{}
	logger := &captureLogger{}
	svc := newTestService(t, WithSnapshotStore(snaps), WithMetrics(metrics), WithLogger(logger))

	if _, err := svc.AddRecord(ctx, rd(tZone, "Bad", "zero")); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected validity failure, got %v", err)
	}
	if snaps.Saves() != 0 {
		t.Fatalf("failed add must not be persisted")
	}
	if !metrics.has("add_record", false) {
		t.Fatalf("failure not recorded: %+v", metrics.calls)
	}
	if logger.count("warn") != 1 || logger.count("error") != 0 {
		t.Fatalf("expected one warning, got %+v", logger.entries)
	}
}

func TestPersistFailureKeepsCommittedState(t *testing.T) {
	ctx := context.Background()
	failing := &failingSnapshotStore{}
	svc := newTestService(t, WithSnapshotStore(failing))
	_, err := svc.AddRecord(ctx, rd(tBuilding, "HQ"))
	if !errors.Is(err, errSaveFailed) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if n := len(svc.Snapshot().Records); n != 1 {
		t.Fatalf("in-memory commit should stand, got %d records", n)
	}
	if _, err := svc.Load(ctx); !errors.Is(err, errSaveFailed) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestIndependentAddPersistsPartialSuccess(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewStore()
	svc := newTestService(t, WithSnapshotStore(snaps))
	hs, err := svc.AddRecords(ctx, []domain.RecordData{
		rd(tBuilding, "HQ"),
		rd(tZone, "Bad", "zero"),
	}, workspace.Independently())
	if err == nil || !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected the invalid record to be reported, got %v", err)
	}
	if len(hs) != 1 {
		t.Fatalf("expected one committed record, got %d", len(hs))
	}
	snap, ok, _ := snaps.Load(ctx)
	if !ok || len(snap.Records) != 1 {
		t.Fatalf("partial success should be persisted")
	}
}

func TestEditingOperations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	hs, err := svc.AddRecords(ctx, seedBatch())
	if err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	building, zone, space := hs[0], hs[1], hs[2]

	if err := svc.SetPointer(ctx, space, spaceZone, building); !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	if err := svc.SetPointer(ctx, domain.NewHandle(), spaceZone, zone); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if err := svc.SetString(ctx, zone, zoneMultiplier, "3"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	prev, err := svc.SwapRecord(ctx, zone, rd(tZone, "Core", "4"), true)
	if err != nil {
		t.Fatalf("SwapRecord: %v", err)
	}
	if prev.Fields[zoneMultiplier] != "3" {
		t.Fatalf("previous data should carry the edit, got %+v", prev)
	}
	rep, err := svc.Validate(ctx, domain.StrictnessFinal)
	if err != nil || !rep.Valid() {
		t.Fatalf("Validate: %v %s", err, rep)
	}

	clone, mapping, err := svc.CloneSubset(ctx, []domain.Handle{space, zone}, true)
	if err != nil {
		t.Fatalf("CloneSubset: %v", err)
	}
	if clone.NumRecords() != 2 || mapping[space] != space {
		t.Fatalf("clone should hold the subset with kept handles, got %d records", clone.NumRecords())
	}
	if r, _ := clone.Record(space); !r.IsMember() {
		t.Fatalf("space missing from clone")
	} else if tgt, ok := r.GetTarget(spaceZone); !ok || tgt.Handle() != zone {
		t.Fatalf("pointer inside the subset should be kept")
	}

	if err := svc.RemoveRecords(ctx, []domain.Handle{space}); err != nil {
		t.Fatalf("RemoveRecords: %v", err)
	}
	if n := len(svc.Snapshot().Records); n != 2 {
		t.Fatalf("expected 2 records after removal, got %d", n)
	}
}

func TestArchiveRoundTripKeepsSubscriptions(t *testing.T) {
	ctx := context.Background()
	a := archive.NewArchiver(blobmemory.New())
	snaps := memory.NewStore()
	svc := newTestService(t, WithArchive(a), WithSnapshotStore(snaps))
	hs, err := svc.MergeRecords(ctx, seedBatch())
	if err != nil {
		t.Fatalf("MergeRecords: %v", err)
	}
	if _, err := svc.ExportArchive(ctx, "site.idfs"); err != nil {
		t.Fatalf("ExportArchive: %v", err)
	}

	var adds, removes int
	unsubscribe := svc.Subscribe(domain.ObserverFuncs{
		Add:    func(domain.Handle, domain.TypeID) { adds++ },
		Remove: func(domain.Handle, domain.TypeID) { removes++ },
	})
	if err := svc.RemoveRecords(ctx, hs); err != nil {
		t.Fatalf("RemoveRecords: %v", err)
	}
	if removes != 3 {
		t.Fatalf("expected 3 removals, got %d", removes)
	}

	if err := svc.ImportArchive(ctx, "site.idfs"); err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if n := len(svc.Snapshot().Records); n != 3 {
		t.Fatalf("expected 3 records after import, got %d", n)
	}
	if snap, _, _ := snaps.Load(ctx); len(snap.Records) != 3 {
		t.Fatalf("import should be persisted")
	}

	if _, err := svc.AddRecord(ctx, rd(tZone, "Perimeter")); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if adds != 1 {
		t.Fatalf("subscription should follow the imported store, got %d adds", adds)
	}
	unsubscribe()
	if _, err := svc.AddRecord(ctx, rd(tZone, "East")); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if adds != 1 {
		t.Fatalf("unsubscribed observer still notified")
	}

	if err := svc.ImportArchive(ctx, "missing.idfs"); err == nil {
		t.Fatalf("expected error for a missing archive")
	}
}

func TestUnconfiguredCollaborators(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	if _, err := svc.Load(ctx); !errors.Is(err, ErrNoSnapshotStore) {
		t.Fatalf("expected ErrNoSnapshotStore, got %v", err)
	}
	if _, err := svc.ExportArchive(ctx, "x"); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
	if err := svc.ImportArchive(ctx, "x"); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close without snapshot store: %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	metrics := &captureMetricsRecorder{}
	svc := newTestService(t, WithMetrics(metrics))
	if _, err := svc.AddRecord(ctx, rd(tBuilding, "HQ")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(svc.Snapshot().Records) != 0 {
		t.Fatalf("canceled call must not mutate")
	}
	if !metrics.has("add_record", false) {
		t.Fatalf("canceled call should be observed as a failure")
	}
}

func TestPrometheusRecorderWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := promrecorder.NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	svc := newTestService(t, WithMetrics(rec))
	if _, err := svc.AddRecords(context.Background(), seedBatch()); err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var gauge float64
	var found bool
	for _, mf := range families {
		if mf.GetName() == "idfcore_workspace_records" {
			gauge = mf.GetMetric()[0].GetGauge().GetValue()
			found = true
		}
	}
	if !found || gauge != 3 {
		t.Fatalf("expected records gauge 3, found=%v value=%v", found, gauge)
	}
}
