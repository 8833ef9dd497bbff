package workspace

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"idfcore/pkg/domain"
)

// CheckInvariants verifies the internal consistency of the store: the arena
// and primary map agree, the type index partitions the live records, the
// reference index holds exactly the published and forwarded memberships,
// forward and reverse pointers form a bijection, the name index covers every
// name, and a direct sequence is a permutation of the live Handles. A
// violation is a programming error; it is reported, never repaired.
func (s *Store) CheckInvariants() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	live := 0
	for i, rec := range s.slots {
		if rec == nil {
			continue
		}
		live++
		if int(rec.slot) != i {
			fail("record %s in slot %d claims slot %d", rec.handle, i, rec.slot)
		}
		if s.records[rec.handle] != rec {
			fail("slot %d holds %s which is not in the primary map", i, rec.handle)
		}
	}
	if live != len(s.records) {
		fail("arena holds %d records, primary map %d", live, len(s.records))
	}

	var typed uint64
	for t, bm := range s.types {
		typed += bm.GetCardinality()
		it := bm.Iterator()
		for it.HasNext() {
			slot := it.Next()
			if int(slot) >= len(s.slots) || s.slots[slot] == nil || s.slots[slot].typ != t {
				fail("type index %s holds slot %d of another type", t, slot)
			}
		}
	}
	if typed != uint64(len(s.records)) {
		fail("type index covers %d records, store holds %d", typed, len(s.records))
	}

	for ref, bm := range s.refs {
		it := bm.Iterator()
		for it.HasNext() {
			slot := it.Next()
			if int(slot) >= len(s.slots) || s.slots[slot] == nil {
				fail("reference index %q holds free slot %d", ref, slot)
				continue
			}
			rec := s.slots[slot]
			if !slices.Contains(s.publishedRefs(rec.typ), ref) && !s.stillForwarded(rec, ref) {
				fail("reference index %q holds %s without publishing or forwarding", ref, rec.handle)
			}
		}
	}

	for _, rec := range s.naturalRecords() {
		for _, ref := range s.publishedRefs(rec.typ) {
			if !s.inReference(rec, ref) {
				fail("%s publishes %q but is missing from the reference index", rec.handle, ref)
			}
		}
		for f, h := range rec.targets {
			tgt, ok := s.records[h]
			if !ok {
				fail("%s field %d points at missing record %s", rec.handle, f, h)
				continue
			}
			if _, ok := tgt.sources[pointerRef{source: rec.handle, field: f}]; !ok {
				fail("%s field %d -> %s has no reverse entry", rec.handle, f, h)
			}
			for _, ref := range s.schema.ReferencesForwardedByField(rec.typ, f) {
				if !s.inReference(tgt, ref) {
					fail("%s field %d forwards %q but %s is not indexed under it", rec.handle, f, ref, h)
				}
			}
		}
		for pr := range rec.sources {
			src, ok := s.records[pr.source]
			if !ok {
				fail("%s has reverse entry from missing record %s", rec.handle, pr.source)
				continue
			}
			if src.targets[pr.field] != rec.handle {
				fail("%s has reverse entry from %s field %d with no forward pointer", rec.handle, pr.source, pr.field)
			}
		}
		if name, ok := s.nameOf(rec); ok && name != "" && !slices.Contains(s.names.exact(name), rec.handle) {
			fail("%s named %q is missing from the name index", rec.handle, name)
		}
	}
	for key, set := range s.names.byName {
		for h := range set {
			rec, ok := s.records[h]
			if !ok {
				fail("name index %q holds missing record %s", key, h)
				continue
			}
			if name, _ := s.nameOf(rec); strings.ToLower(name) != key {
				fail("name index %q holds %s named %q", key, h, name)
			}
		}
	}

	if s.order.IsDirect() {
		seq := s.order.seq
		if len(seq) != len(s.records) {
			fail("direct order has %d entries, store holds %d", len(seq), len(s.records))
		}
		seen := make(map[domain.Handle]struct{}, len(seq))
		for _, h := range seq {
			if _, dup := seen[h]; dup {
				fail("direct order repeats %s", h)
			}
			seen[h] = struct{}{}
			if !s.IsMember(h) {
				fail("direct order holds missing record %s", h)
			}
		}
	}
	return errors.Join(errs...)
}
