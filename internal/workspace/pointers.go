package workspace

import (
	"slices"

	"idfcore/pkg/domain"
)

// accepts reports whether field of src may point at tgt: tgt must be present
// in one of the reference lists the field accepts.
func (s *Store) accepts(srcType domain.TypeID, field int, tgt *record) bool {
	for _, ref := range s.schema.ObjectListsAcceptedByField(srcType, field) {
		if s.inReference(tgt, ref) {
			return true
		}
	}
	return false
}

func (s *Store) isPointerField(t domain.TypeID, field int) bool {
	return len(s.schema.ObjectListsAcceptedByField(t, field)) > 0
}

// setPointerImpl links src[field] to tgt on both sides and forwards the
// field's references onto tgt. Legality is the caller's concern.
func (s *Store) setPointerImpl(src *record, field int, tgt *record) {
	if old, ok := src.targets[field]; ok {
		if old == tgt.handle {
			return
		}
		s.nullifyPointer(src, field)
	}
	src.targets[field] = tgt.handle
	if field < len(src.fields) {
		src.fields[field] = ""
	}
	tgt.sources[pointerRef{source: src.handle, field: field}] = struct{}{}
	for _, ref := range s.schema.ReferencesForwardedByField(src.typ, field) {
		s.refBitmap(ref).Add(tgt.slot)
	}
}

// nullifyPointer unlinks src[field] and returns the former target.
func (s *Store) nullifyPointer(src *record, field int) (domain.Handle, bool) {
	old, ok := src.targets[field]
	if !ok {
		return domain.NilHandle, false
	}
	delete(src.targets, field)
	if tgt, live := s.records[old]; live {
		delete(tgt.sources, pointerRef{source: src.handle, field: field})
		s.removeForwardedReferences(src, field, tgt)
	}
	return old, true
}

// removeForwardedReferences drops tgt from the lists src[field] forwarded,
// unless tgt's type publishes the list or another live pointer forwards it.
func (s *Store) removeForwardedReferences(src *record, field int, tgt *record) {
	forwarded := s.schema.ReferencesForwardedByField(src.typ, field)
	if len(forwarded) == 0 {
		return
	}
	published := s.publishedRefs(tgt.typ)
	for _, ref := range forwarded {
		if slices.Contains(published, ref) || s.stillForwarded(tgt, ref) {
			continue
		}
		if bm, ok := s.refs[ref]; ok {
			bm.Remove(tgt.slot)
			if bm.IsEmpty() {
				delete(s.refs, ref)
			}
		}
	}
}

func (s *Store) stillForwarded(tgt *record, ref string) bool {
	for pr := range tgt.sources {
		other, ok := s.records[pr.source]
		if !ok {
			continue
		}
		if slices.Contains(s.schema.ReferencesForwardedByField(other.typ, pr.field), ref) {
			return true
		}
	}
	return false
}

// resolveTarget finds the record a string value of field names: a live
// Handle first, then a record of an accepted list by name. skip is never
// returned.
func (s *Store) resolveTarget(srcType domain.TypeID, field int, value string, skip *record) *record {
	if value == "" {
		return nil
	}
	if h, err := domain.ParseHandle(value); err == nil {
		if rec, ok := s.records[h]; ok {
			if rec != skip && s.accepts(srcType, field, rec) {
				return rec
			}
			return nil
		}
	}
	return s.findByNameAndReference(value, s.schema.ObjectListsAcceptedByField(srcType, field), skip)
}

// resolvePointers turns the string values of rec's object-list fields into
// links. Unresolvable values are dropped with a warning.
func (s *Store) resolvePointers(rec *record) {
	for i, value := range rec.fields {
		if value == "" || !s.isPointerField(rec.typ, i) {
			continue
		}
		if tgt := s.resolveTarget(rec.typ, i, value, nil); tgt != nil {
			s.setPointerImpl(rec, i, tgt)
			continue
		}
		s.logger.Warn("pointer target not found", "handle", rec.handle.String(), "type", rec.typ, "field", i, "value", value)
		rec.fields[i] = ""
	}
}

func (s *Store) sortedTargets(rec *record) []int {
	fields := make([]int, 0, len(rec.targets))
	for f := range rec.targets {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

func (s *Store) sortedSources(rec *record) []pointerRef {
	refs := make([]pointerRef, 0, len(rec.sources))
	for pr := range rec.sources {
		refs = append(refs, pr)
	}
	slices.SortFunc(refs, func(a, b pointerRef) int {
		sa, sb := s.slotOf(a.source), s.slotOf(b.source)
		if sa != sb {
			return sa - sb
		}
		return a.field - b.field
	})
	return refs
}

func (s *Store) slotOf(h domain.Handle) int {
	if rec, ok := s.records[h]; ok {
		return int(rec.slot)
	}
	return -1
}

// displayValue renders a pointer target the way it appears in field data:
// the target name, or its Handle string for unnamed types.
func (s *Store) displayValue(tgt *record) string {
	if name, ok := s.nameOf(tgt); ok && name != "" {
		return name
	}
	return tgt.handle.String()
}
