package workspace

import (
	"slices"
	"testing"

	"idfcore/pkg/domain"
)

func handles(n int) []domain.Handle {
	out := make([]domain.Handle, n)
	for i := range out {
		out[i] = domain.NewHandle()
	}
	return out
}

func identity(hs []domain.Handle) []domain.Handle { return append([]domain.Handle(nil), hs...) }

func TestOrderIndexNaturalRejectsDirectOperations(t *testing.T) {
	var o OrderIndex
	h := domain.NewHandle()
	if o.PushBack(h) {
		t.Fatalf("push_back must fail in natural mode")
	}
	if o.Insert(h, 0) {
		t.Fatalf("insert must fail in natural mode")
	}
	if got := o.Sequence(); len(got) != 0 {
		t.Fatalf("expected empty sequence, got %v", got)
	}
}

func TestOrderIndexDirectSequence(t *testing.T) {
	hs := handles(4)
	var o OrderIndex
	o.SetDirectOrder(hs[:3])
	if !o.PushBack(hs[3]) {
		t.Fatalf("push_back in direct mode")
	}
	if pos := o.Erase(hs[1]); pos != 1 {
		t.Fatalf("expected erase position 1, got %d", pos)
	}
	if pos := o.Erase(hs[1]); pos != -1 {
		t.Fatalf("second erase should report -1, got %d", pos)
	}
	o.Insert(hs[1], 1)
	if !slices.Equal(o.Sequence(), hs) {
		t.Fatalf("insert did not restore sequence")
	}
	if !o.Move(hs[0], 10) {
		t.Fatalf("move should clamp")
	}
	want := []domain.Handle{hs[1], hs[2], hs[3], hs[0]}
	if !slices.Equal(o.Sequence(), want) {
		t.Fatalf("unexpected sequence after move")
	}
}

func TestOrderIndexSortFiltersToRequest(t *testing.T) {
	hs := handles(4)
	var o OrderIndex
	o.SetDirectOrder([]domain.Handle{hs[3], hs[1], hs[0], hs[2]})
	got := o.Sort([]domain.Handle{hs[0], hs[3]}, identity)
	if !slices.Equal(got, []domain.Handle{hs[3], hs[0]}) {
		t.Fatalf("expected direct order subset")
	}
}

func TestOrderIndexSortFallsBackWhenDamaged(t *testing.T) {
	hs := handles(3)
	tests := []struct {
		name    string
		seq     []domain.Handle
		request []domain.Handle
	}{
		{"duplicate in sequence", []domain.Handle{hs[0], hs[0], hs[1]}, []domain.Handle{hs[1], hs[0]}},
		{"incomplete sequence", []domain.Handle{hs[1]}, []domain.Handle{hs[1], hs[0]}},
		{"duplicate request", []domain.Handle{hs[1], hs[0]}, []domain.Handle{hs[0], hs[0]}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var o OrderIndex
			o.SetDirectOrder(tc.seq)
			got := o.Sort(tc.request, identity)
			if !slices.Equal(got, tc.request) {
				t.Fatalf("expected natural fallback %v, got %v", tc.request, got)
			}
		})
	}
}

func TestStoreSortedRecordsFollowDirectOrder(t *testing.T) {
	s := newTestStore(t, WithDirectOrder())
	a := mustAdd(t, s, rd(tSchedule, "A"))
	b := mustAdd(t, s, rd(tSchedule, "B"))
	c := mustAdd(t, s, rd(tSchedule, "C"))
	if !s.MoveInOrder(c.Handle(), 0) {
		t.Fatalf("move in order")
	}
	want := []domain.Handle{c.Handle(), a.Handle(), b.Handle()}
	if got := s.Handles(true); !slices.Equal(got, want) {
		t.Fatalf("sorted handles %v, want %v", got, want)
	}
	if got := s.Handles(false); !slices.Equal(got, []domain.Handle{a.Handle(), b.Handle(), c.Handle()}) {
		t.Fatalf("natural handles should keep insertion order")
	}
	s.SetNaturalOrder()
	if s.IsDirectOrder() || len(s.DirectOrder()) != 0 {
		t.Fatalf("natural order should drop the sequence")
	}
	mustInvariants(t, s)
}
