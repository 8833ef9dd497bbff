package workspace

import (
	"strconv"
	"strings"

	"idfcore/pkg/domain"
)

// InsertRecord returns the live record equivalent to data, adding data when
// there is none.
func (s *Store) InsertRecord(data domain.RecordData) (Record, error) {
	recs, err := s.AddAndInsertRecords(nil, []domain.RecordData{data})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// MergeRecords inserts a batch with add-or-reuse semantics.
func (s *Store) MergeRecords(batch []domain.RecordData) ([]Record, error) {
	return s.AddAndInsertRecords(nil, batch)
}

// batchLookup returns the incoming record that carried Handle h, if any.
type batchLookup func(h domain.Handle) (domain.RecordData, bool)

// equivalentRecord finds a live record data can stand for: the version
// record for the version type, otherwise a record of the same type with equal
// field data and pointer fields that do not conflict. batch resolves pointer
// values that name other incoming records by Handle.
func (s *Store) equivalentRecord(data domain.RecordData, batch batchLookup) *record {
	if s.schema.IsVersion(data.Type) {
		if recs := s.fromBitmap(s.types[data.Type]); len(recs) > 0 {
			return recs[0]
		}
		return nil
	}
	var candidates []*record
	if name, ok := data.Name(s.schema); ok && name != "" {
		for _, rec := range s.recordsOf(s.names.exact(name)) {
			if rec.typ == data.Type {
				candidates = append(candidates, rec)
			}
		}
	} else {
		candidates = s.fromBitmap(s.types[data.Type])
	}
	for _, rec := range candidates {
		if s.dataFieldsEqual(rec, data) && s.objectListsNonConflicting(rec, data, batch) {
			return rec
		}
	}
	return nil
}

// dataFieldsEqual compares every non-pointer field. Numeric fields compare
// by value, everything else case-insensitively.
func (s *Store) dataFieldsEqual(rec *record, data domain.RecordData) bool {
	if len(rec.fields) != len(data.Fields) {
		return false
	}
	for i, have := range rec.fields {
		spec, _ := s.schema.Field(rec.typ, i)
		if spec.Kind == domain.FieldObjectList {
			continue
		}
		want := data.Fields[i]
		if spec.Kind == domain.FieldReal || spec.Kind == domain.FieldInteger {
			a, errA := strconv.ParseFloat(strings.TrimSpace(have), 64)
			b, errB := strconv.ParseFloat(strings.TrimSpace(want), 64)
			if errA == nil && errB == nil {
				if a != b {
					return false
				}
				continue
			}
		}
		if !strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}

// objectListsNonConflicting reports whether every pointer field is unset on
// at least one side or names the same target. An incoming Handle of another
// batch record matches when that record's data equals the live target's,
// which is how copies with fresh Handles of unnamed records line up.
func (s *Store) objectListsNonConflicting(rec *record, data domain.RecordData, batch batchLookup) bool {
	for f, h := range rec.targets {
		if f >= len(data.Fields) || data.Fields[f] == "" {
			continue
		}
		tgt, ok := s.records[h]
		if !ok {
			continue
		}
		want := data.Fields[f]
		if parsed, err := domain.ParseHandle(want); err == nil {
			if parsed == tgt.handle {
				continue
			}
			if batch != nil {
				if other, found := batch(parsed); found && other.Type == tgt.typ && s.dataFieldsEqual(tgt, other) {
					continue
				}
			}
		}
		name, _ := s.nameOf(tgt)
		if !strings.EqualFold(name, want) {
			return false
		}
	}
	return true
}
