package workspace

import (
	"math/rand/v2"
	"testing"

	"idfcore/pkg/domain"
)

// TestRandomMutationsKeepInvariants drives a store through random adds,
// removals, pointer edits and swaps. After each step it checks every index
// and that an Export/Import round trip rebuilds the same graph.
func TestRandomMutationsKeepInvariants(t *testing.T) {
	levels := []domain.Strictness{domain.StrictnessNone, domain.StrictnessDraft, domain.StrictnessFinal}
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(7, uint64(level)))
			s := newTestStore(t, WithDirectOrder())
			mustAdd(t, s, rd(tBuilding, "HQ"))
			if err := s.SetStrictness(level); err != nil {
				t.Fatalf("SetStrictness(%s): %v", level, err)
			}
			names := []string{"A", "B", "C", "A 2", ""}

			pick := func() (Record, bool) {
				hs := s.Handles(false)
				if len(hs) == 0 {
					return Record{}, false
				}
				return s.Record(hs[rng.IntN(len(hs))])
			}
			name := func() string { return names[rng.IntN(len(names))] }

			for step := range 400 {
				switch op := rng.IntN(9); op {
				case 0, 1:
					_, _ = s.AddRecord(rd(tZone, name(), "1", "HQ", name()))
				case 2:
					_, _ = s.AddRecords([]domain.RecordData{
						rd(tSpace, name(), name()),
						rd(tZone, name()),
						rd(tSchedule, name(), "1"),
					})
				case 3:
					_, _ = s.AddRecord(rd(tThermostat, name(), name()))
				case 4:
					if r, ok := pick(); ok {
						_ = s.RemoveRecord(r.Handle())
					}
				case 5:
					src, ok1 := pick()
					tgt, ok2 := pick()
					if ok1 && ok2 && src.NumFields() > 1 {
						_ = src.SetPointer(rng.IntN(src.NumFields()), tgt.Handle())
					}
				case 6:
					if r, ok := pick(); ok && r.NumFields() > 1 {
						_ = r.ClearPointer(rng.IntN(r.NumFields()))
					}
				case 7:
					if r, ok := pick(); ok {
						repl := rd(tIdealZone, name(), "HQ")
						if rng.IntN(2) == 0 {
							repl = rd(tZone, name(), "2")
						}
						_, _ = s.SwapRecord(r.Handle(), repl, rng.IntN(2) == 0)
					}
				case 8:
					hs := s.Handles(false)
					if len(hs) > 2 {
						_, _ = s.MergeRecords(nil)
						_ = s.RemoveRecords(hs[:2])
					}
				}
				if err := s.CheckInvariants(); err != nil {
					t.Fatalf("step %d: %v", step, err)
				}
				restored, err := Import(s.Schema(), s.Export())
				if err != nil {
					t.Fatalf("step %d: Import: %v", step, err)
				}
				if restored.NumRecords() != s.NumRecords() {
					t.Fatalf("step %d: import rebuilt %d of %d records", step, restored.NumRecords(), s.NumRecords())
				}
				identity := make(map[domain.Handle]domain.Handle, s.NumRecords())
				for _, h := range s.Handles(false) {
					identity[h] = h
				}
				assertIsomorphic(t, s, restored, identity)
				if err := restored.CheckInvariants(); err != nil {
					t.Fatalf("step %d: imported store: %v", step, err)
				}
			}

			c, mapping := s.Clone(false)
			assertIsomorphic(t, s, c, mapping)
			mustInvariants(t, c)
		})
	}
}
