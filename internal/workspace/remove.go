package workspace

import (
	"slices"

	"idfcore/pkg/domain"
)

// savedRecord is the undo record captured before a removal.
type savedRecord struct {
	rec      *record
	orderPos int
	targets  map[int]domain.Handle
	sources  []pointerRef
}

func (s *Store) save(rec *record) savedRecord {
	saved := savedRecord{
		rec:      rec,
		orderPos: -1,
		targets:  make(map[int]domain.Handle, len(rec.targets)),
		sources:  s.sortedSources(rec),
	}
	if s.order.IsDirect() {
		saved.orderPos = s.order.IndexOf(rec.handle)
	}
	for f, h := range rec.targets {
		saved.targets[f] = h
	}
	return saved
}

// nominalRemove unlinks every pointer from and to rec and detaches it. It
// returns the referrers whose pointers were nulled.
func (s *Store) nominalRemove(rec *record) []pointerRef {
	for _, f := range s.sortedTargets(rec) {
		s.nullifyPointer(rec, f)
	}
	srcs := s.sortedSources(rec)
	for _, pr := range srcs {
		if src, ok := s.records[pr.source]; ok {
			s.nullifyPointer(src, pr.field)
		}
	}
	s.detach(rec)
	return srcs
}

// restore is the inverse of nominalRemove for a batch of saved records.
// Records are reattached first so pointers among them can be relinked.
func (s *Store) restore(saved []savedRecord) {
	byPos := slices.Clone(saved)
	slices.SortStableFunc(byPos, func(a, b savedRecord) int { return a.orderPos - b.orderPos })
	for _, sv := range byPos {
		sv.rec.targets = make(map[int]domain.Handle)
		sv.rec.sources = make(map[pointerRef]struct{})
		pos := sv.orderPos
		if pos < 0 {
			pos = len(s.order.seq)
		}
		s.attach(sv.rec, pos)
	}
	for _, sv := range saved {
		for f, h := range sv.targets {
			if tgt, ok := s.records[h]; ok {
				s.setPointerImpl(sv.rec, f, tgt)
			}
		}
		for _, pr := range sv.sources {
			if src, ok := s.records[pr.source]; ok {
				s.setPointerImpl(src, pr.field, sv.rec)
			}
		}
	}
}

// RemoveRecord removes h. Removing a Handle that is not live succeeds
// without effect. At Final strictness the removal is undone, and a
// ValidityError returned, when the store would become invalid.
func (s *Store) RemoveRecord(h domain.Handle) error {
	return s.RemoveRecords([]domain.Handle{h})
}

// RemoveRecords removes a set of records as one unit.
func (s *Store) RemoveRecords(handles []domain.Handle) error {
	var saved []savedRecord
	seen := make(map[domain.Handle]struct{}, len(handles))
	for _, h := range handles {
		rec, ok := s.records[h]
		if !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		saved = append(saved, s.save(rec))
	}
	if len(saved) == 0 {
		return nil
	}

	var referrers []domain.Handle
	for _, sv := range saved {
		for _, pr := range s.nominalRemove(sv.rec) {
			if _, removed := seen[pr.source]; !removed && !slices.Contains(referrers, pr.source) {
				referrers = append(referrers, pr.source)
			}
		}
	}

	if s.strictness >= domain.StrictnessFinal {
		if rep := s.ValidityReport(s.strictness); !rep.Valid() {
			s.logger.Warn("remove rolled back", "records", len(saved), "errors", rep.ErrorCount())
			s.restore(saved)
			return domain.ValidityError{Report: rep}
		}
	}

	s.logger.Debug("records removed", "records", len(saved))
	for _, sv := range saved {
		s.emitRemove(sv.rec.handle, sv.rec.typ)
	}
	s.emitChange(referrers...)
	return nil
}
