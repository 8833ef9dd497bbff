package workspace

import "idfcore/pkg/domain"

// Clone copies the whole store. See CloneSubset.
func (s *Store) Clone(keepHandles bool) (*Store, map[domain.Handle]domain.Handle) {
	return s.CloneSubset(s.Handles(false), keepHandles)
}

// CloneSubset builds a new store holding copies of the requested records plus
// any record of the schema's version type. Copies keep their Handles when
// keepHandles is set and get fresh ones otherwise; the returned map takes each
// original Handle to its copy. Pointers to records outside the subset are
// dropped. Observers are not carried over.
func (s *Store) CloneSubset(handles []domain.Handle, keepHandles bool) (*Store, map[domain.Handle]domain.Handle) {
	out := New(s.schema,
		WithStrictness(s.strictness),
		WithLogger(s.logger),
		WithFastNaming(s.fastNaming),
	)

	selected := make(map[domain.Handle]struct{}, len(handles))
	for _, h := range handles {
		if _, ok := s.records[h]; ok {
			selected[h] = struct{}{}
		}
	}
	for t := range s.types {
		if s.schema.IsVersion(t) {
			for _, rec := range s.fromBitmap(s.types[t]) {
				selected[rec.handle] = struct{}{}
			}
		}
	}

	mapping := make(map[domain.Handle]domain.Handle, len(selected))
	var copies []*record
	var sources []*record
	for _, rec := range s.naturalRecords() {
		if _, ok := selected[rec.handle]; !ok {
			continue
		}
		h := rec.handle
		if !keepHandles {
			h = domain.NewHandle()
		}
		mapping[rec.handle] = h
		cp := newRecord(h, rec.typ, append([]string(nil), rec.fields...))
		cp.slot = out.nextSlot()
		out.attach(cp, -1)
		copies = append(copies, cp)
		sources = append(sources, rec)
	}

	for i, rec := range sources {
		for _, f := range s.sortedTargets(rec) {
			newTarget, ok := mapping[rec.targets[f]]
			if !ok {
				continue
			}
			out.setPointerImpl(copies[i], f, out.records[newTarget])
		}
	}

	if s.order.IsDirect() {
		seq := make([]domain.Handle, 0, len(mapping))
		for _, h := range s.order.seq {
			if mapped, ok := mapping[h]; ok {
				seq = append(seq, mapped)
			}
		}
		out.order.SetDirectOrder(seq)
	}
	return out, mapping
}
