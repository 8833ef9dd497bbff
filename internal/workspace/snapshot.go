package workspace

import (
	"fmt"

	"idfcore/pkg/domain"
)

// Export captures the store as a Snapshot. Pointer fields are written as
// target Handle strings.
func (s *Store) Export() domain.Snapshot {
	snap := domain.Snapshot{
		Strictness:  s.strictness,
		FastNaming:  s.fastNaming,
		DirectOrder: s.order.IsDirect(),
		Records:     make([]domain.RecordData, 0, len(s.records)),
	}
	if snap.DirectOrder {
		snap.Order = s.order.Sequence()
	}
	for _, rec := range s.naturalRecords() {
		d := domain.RecordData{Handle: rec.handle, Type: rec.typ, Fields: append([]string(nil), rec.fields...)}
		for f, h := range rec.targets {
			d.Fields[f] = h.String()
		}
		snap.Records = append(snap.Records, d)
	}
	return snap
}

// Import rebuilds a store from a snapshot. Handles are kept, pointers are
// linked by Handle string and then by name, and the direct order is
// restored. Records of types the schema does not know are kept as they are
// and reported as NoSchema by validation. Import applies no validity gate:
// a snapshot is a previously committed state. opts are applied after the
// snapshot's own settings.
func Import(schema domain.Schema, snap domain.Snapshot, opts ...Option) (*Store, error) {
	base := []Option{WithStrictness(snap.Strictness), WithFastNaming(snap.FastNaming)}
	s := New(schema, append(base, opts...)...)
	s.order.SetNatural()

	recs := make([]*record, 0, len(snap.Records))
	for i, d := range snap.Records {
		if schema.HasType(d.Type) {
			nd, err := d.Normalize(schema)
			if err != nil {
				return nil, fmt.Errorf("import record %d (%s): %w", i, d.Type, err)
			}
			d = nd
		} else {
			d = d.Clone()
			s.logger.Warn("imported record of unknown type", "index", i, "type", d.Type)
		}
		if d.Handle.IsNil() {
			d.Handle = domain.NewHandle()
		}
		if s.IsMember(d.Handle) {
			return nil, domain.AddError{Kind: domain.AddDuplicateHandle, Handle: d.Handle, Type: d.Type}
		}
		rec := newRecord(d.Handle, d.Type, d.Fields)
		rec.slot = s.nextSlot()
		s.attach(rec, -1)
		recs = append(recs, rec)
	}
	s.linkImported(recs)
	if snap.DirectOrder {
		s.order.SetDirectOrder(snap.Order)
	}
	s.logger.Debug("snapshot imported", "records", len(recs))
	return s, nil
}

// linkImported links the pointer fields of freshly attached records. A
// Handle names a committed link and is applied without the accepts check:
// the lists a field accepts may be fed by forwarded references of records
// linked later. Name values are then resolved in passes until no pass makes
// progress, so forwarding done by one name link is visible to the next.
func (s *Store) linkImported(recs []*record) {
	type pending struct {
		rec   *record
		field int
	}
	var byName []pending
	for i, rec := range recs {
		for f, value := range rec.fields {
			if value == "" || !s.isPointerField(rec.typ, f) {
				continue
			}
			if h, err := domain.ParseHandle(value); err == nil {
				if tgt, ok := s.records[h]; ok {
					s.setPointerImpl(rec, f, tgt)
					continue
				}
			}
			byName = append(byName, pending{rec: rec, field: f})
		}
		if s.progress != nil {
			s.progress(i+1, len(recs))
		}
	}
	for progressed := true; progressed && len(byName) > 0; {
		progressed = false
		rest := byName[:0]
		for _, p := range byName {
			if tgt := s.resolveTarget(p.rec.typ, p.field, p.rec.fields[p.field], nil); tgt != nil {
				s.setPointerImpl(p.rec, p.field, tgt)
				progressed = true
				continue
			}
			rest = append(rest, p)
		}
		byName = rest
	}
	for _, p := range byName {
		s.logger.Warn("pointer target not found", "handle", p.rec.handle.String(), "type", p.rec.typ, "field", p.field, "value", p.rec.fields[p.field])
		p.rec.fields[p.field] = ""
	}
}
