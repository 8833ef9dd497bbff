package workspace

import (
	"fmt"
	"strings"

	"idfcore/pkg/domain"
)

// SwapRecord replaces the content of h with replacement, which may be of a
// different type. h keeps its Handle, arena position and order position, and
// every record pointing at h keeps pointing at it. The swap fails without
// effect when a referrer cannot point at the replacement type, or, with
// keepTargets set, when an outward pointer of h has no compatible field in
// the replacement. The replacement's name defaults to the current name. It
// returns the data h held before.
func (s *Store) SwapRecord(h domain.Handle, replacement domain.RecordData, keepTargets bool) (domain.RecordData, error) {
	cur, ok := s.records[h]
	if !ok {
		return domain.RecordData{}, domain.ErrNotMember
	}
	if !s.schema.HasType(replacement.Type) {
		return domain.RecordData{}, domain.AddError{Kind: domain.AddSchemaTypeUnknown, Type: replacement.Type}
	}
	previous := s.data(cur)

	normalized, err := replacement.Normalize(s.schema)
	if err != nil {
		return domain.RecordData{}, fmt.Errorf("stage replacement: %w", err)
	}

	// Stage in isolation: synthesizes a name and runs the field checks
	// without touching this store.
	staged := normalized.Clone()
	staged.Handle = domain.NilHandle
	for i := range staged.Fields {
		if s.isPointerField(staged.Type, i) {
			staged.Fields[i] = ""
		}
	}
	scratch := New(s.schema, WithStrictness(min(s.strictness, domain.StrictnessDraft)), WithLogger(s.logger))
	staged = s.withCurrentName(cur, staged)
	scratchRec, err := scratch.AddRecord(staged)
	if err != nil {
		return domain.RecordData{}, fmt.Errorf("stage replacement: %w", err)
	}
	fields := scratch.records[scratchRec.Handle()].fields
	newType := replacement.Type

	if err := s.checkReferrers(cur, newType); err != nil {
		return domain.RecordData{}, err
	}
	targets, err := s.planTargets(cur, newType, normalized, keepTargets)
	if err != nil {
		return domain.RecordData{}, err
	}

	if idx, named := s.schema.NameFieldIndex(newType); named {
		// The current name is checked too: it may clash under the lists
		// newType publishes.
		name := fields[idx]
		if s.nameConflict(name, newType, h) {
			renamed := s.nextName(name, false)
			s.logger.Warn("renamed swapped record to avoid name conflict", "handle", h.String(), "requested", name, "name", renamed)
			fields[idx] = renamed
		}
	}

	saved := s.save(cur)
	oldType := cur.typ
	srcs := s.nominalRemove(cur)

	next := newRecord(h, newType, append([]string(nil), fields...))
	next.slot = cur.slot
	s.attach(next, saved.orderPos)
	for f, tgt := range targets {
		if t, live := s.records[tgt]; live {
			s.setPointerImpl(next, f, t)
		}
	}
	for _, pr := range srcs {
		if pr.source == h {
			continue
		}
		if src, live := s.records[pr.source]; live {
			s.setPointerImpl(src, pr.field, next)
		}
	}

	var rep domain.ValidityReport
	switch {
	case s.strictness >= domain.StrictnessFinal:
		rep = s.ValidityReport(s.strictness)
	case s.strictness > domain.StrictnessNone:
		rep = s.recordReport(next, s.strictness, true)
	}
	if !rep.Valid() {
		s.logger.Warn("swap rolled back", "handle", h.String(), "errors", rep.ErrorCount())
		s.nominalRemove(next)
		s.restore([]savedRecord{saved})
		return domain.RecordData{}, domain.ValidityError{Report: rep}
	}

	s.logger.Debug("record swapped", "handle", h.String(), "from", oldType, "to", newType)
	s.emitRemove(h, oldType)
	s.emitAdd([]*record{next})
	return previous, nil
}

// withCurrentName carries the current name over when the replacement leaves
// its name empty.
func (s *Store) withCurrentName(cur *record, data domain.RecordData) domain.RecordData {
	name, ok := data.Name(s.schema)
	if !ok || name != "" {
		return data
	}
	curName, _ := s.nameOf(cur)
	if curName == "" {
		return data
	}
	return data.WithName(s.schema, curName)
}

// checkReferrers verifies every pointer at cur can point at newType.
func (s *Store) checkReferrers(cur *record, newType domain.TypeID) error {
	available := append([]string(nil), s.publishedRefs(newType)...)
	for _, pr := range s.sortedSources(cur) {
		if src, ok := s.records[pr.source]; ok {
			available = append(available, s.schema.ReferencesForwardedByField(src.typ, pr.field)...)
		}
	}
	for _, pr := range s.sortedSources(cur) {
		src, ok := s.records[pr.source]
		if !ok || src == cur {
			continue
		}
		if !intersects(s.schema.ObjectListsAcceptedByField(src.typ, pr.field), available) {
			return domain.SwapError{Kind: domain.SwapIncompatibleReferrer, Handle: pr.source, Field: pr.field}
		}
	}
	return nil
}

// planTargets decides the outward pointers of the replacement: kept targets
// of cur first (when keepTargets), then pointer values of the replacement
// resolved against this store.
func (s *Store) planTargets(cur *record, newType domain.TypeID, data domain.RecordData, keepTargets bool) (map[int]domain.Handle, error) {
	planned := make(map[int]domain.Handle)
	if keepTargets {
		for _, f := range s.sortedTargets(cur) {
			tgt := s.records[cur.targets[f]]
			found := false
			for i, value := range data.Fields {
				if _, taken := planned[i]; taken || !s.isPointerField(newType, i) {
					continue
				}
				if value != "" && !strings.EqualFold(value, s.displayValue(tgt)) && value != tgt.handle.String() {
					continue
				}
				if s.accepts(newType, i, tgt) {
					planned[i] = tgt.handle
					found = true
					break
				}
			}
			if !found {
				return nil, domain.SwapError{Kind: domain.SwapIncompatibleTarget, Handle: tgt.handle, Field: f}
			}
		}
	}
	for i, value := range data.Fields {
		if _, taken := planned[i]; taken || value == "" || !s.isPointerField(newType, i) {
			continue
		}
		if tgt := s.resolveTarget(newType, i, value, cur); tgt != nil {
			planned[i] = tgt.handle
			continue
		}
		s.logger.Warn("swap pointer target not found", "handle", cur.handle.String(), "field", i, "value", value)
	}
	return planned, nil
}
