package workspace

import (
	"errors"
	"slices"
	"testing"

	"idfcore/pkg/domain"
)

func TestRemoveUnknownHandleIsNoop(t *testing.T) {
	s := newTestStore(t)
	z := mustAdd(t, s, rd(tZone, "Z"))
	if err := s.RemoveRecord(domain.NewHandle()); err != nil {
		t.Fatalf("removing an unknown handle: %v", err)
	}
	if err := s.RemoveRecord(z.Handle()); err != nil {
		t.Fatalf("RemoveRecord: %v", err)
	}
	if err := s.RemoveRecord(z.Handle()); err != nil {
		t.Fatalf("second removal should be a no-op: %v", err)
	}
	if s.NumRecords() != 0 {
		t.Fatalf("expected empty store")
	}
	if !errors.Is(z.Remove(), domain.ErrNotMember) {
		t.Fatalf("stale view should report ErrNotMember")
	}
}

func TestRemoveUnlinksReferrers(t *testing.T) {
	s := newTestStore(t)
	b := mustAdd(t, s, rd(tBuilding, "HQ"))
	z := mustAdd(t, s, rd(tZone, "Z", "1", "HQ"))
	sp := mustAdd(t, s, rd(tSpace, "S", "Z"))
	note := mustAdd(t, s, rd(tNote, "see space", "S"))

	if err := z.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := sp.GetTarget(spaceZone); ok {
		t.Fatalf("referrer should be nulled")
	}
	if got, _ := sp.GetString(spaceZone); got != "" {
		t.Fatalf("nulled pointer should read empty, got %q", got)
	}
	if len(b.ReversePointers()) != 0 {
		t.Fatalf("target of removed record keeps a reverse pointer")
	}
	if tgt, ok := note.GetTarget(noteSubject); !ok || tgt.Handle() != sp.Handle() {
		t.Fatalf("unrelated pointer lost")
	}
	mustInvariants(t, s)
}

func TestRemovingRequiredRecordInvalidatesFinal(t *testing.T) {
	s := newTestStore(t)
	b := mustAdd(t, s, rd(tBuilding, "HQ"))
	if rep := s.ValidityReport(domain.StrictnessFinal); !rep.Valid() {
		t.Fatalf("store with its building should be valid at Final: %s", rep)
	}
	if err := s.RemoveRecord(b.Handle()); err != nil {
		t.Fatalf("RemoveRecord at Draft: %v", err)
	}
	rep := s.ValidityReport(domain.StrictnessFinal)
	if rep.ErrorCount() != 1 || rep.Count(domain.ErrorNullAndRequired) != 1 {
		t.Fatalf("expected exactly one NullAndRequired, got %s", rep)
	}
}

func TestRemoveRollsBackAtFinal(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStore(t, WithStrictness(domain.StrictnessFinal), WithDirectOrder(), WithObserver(obs))
	recs, err := s.AddRecords([]domain.RecordData{
		rd(tZone, "A", "1", "HQ"),
		rd(tBuilding, "HQ"),
		rd(tZone, "B", "1", "HQ"),
	})
	if err != nil {
		t.Fatalf("AddRecords: %v", err)
	}
	b := recs[1]
	order := s.DirectOrder()
	before := s.Export()
	obs.events = nil

	err = s.RemoveRecord(b.Handle())
	var verr domain.ValidityError
	if !errors.As(err, &verr) || verr.Report.Count(domain.ErrorNullAndRequired) != 1 {
		t.Fatalf("expected removal to be refused, got %v", err)
	}
	if !b.IsMember() {
		t.Fatalf("building should be restored")
	}
	if !slices.Equal(s.DirectOrder(), order) {
		t.Fatalf("order position not restored")
	}
	for _, z := range []Record{recs[0], recs[2]} {
		if tgt, ok := z.GetTarget(zoneBuilding); !ok || tgt.Handle() != b.Handle() {
			t.Fatalf("referrer pointer not restored")
		}
	}
	if got := s.Export(); !slices.EqualFunc(got.Records, before.Records, recordDataEqual) {
		t.Fatalf("store content changed")
	}
	if len(obs.events) != 0 {
		t.Fatalf("refused removal must not notify, got %v", obs.events)
	}
	mustInvariants(t, s)
}

func TestRemoveRecordsBatch(t *testing.T) {
	s := newTestStore(t, WithDirectOrder())
	z := mustAdd(t, s, rd(tZone, "Z"))
	sp := mustAdd(t, s, rd(tSpace, "S", "Z"))
	keep := mustAdd(t, s, rd(tSchedule, "Keep"))
	if err := s.RemoveRecords([]domain.Handle{z.Handle(), sp.Handle(), z.Handle()}); err != nil {
		t.Fatalf("RemoveRecords: %v", err)
	}
	if s.NumRecords() != 1 || !keep.IsMember() {
		t.Fatalf("expected only the schedule to remain")
	}
	if got := s.DirectOrder(); len(got) != 1 || got[0] != keep.Handle() {
		t.Fatalf("direct order not maintained: %v", got)
	}
	mustInvariants(t, s)
}
