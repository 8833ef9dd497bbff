package workspace

import (
	"slices"
	"strings"

	"idfcore/pkg/domain"
)

// PointerRef names a pointer by its source record and field index.
type PointerRef struct {
	Source domain.Handle
	Field  int
}

// Record is a lightweight view of one record: its Handle and owning Store.
// Views are revalidated on every call; a view whose record was removed
// reports ErrNotMember.
type Record struct {
	store  *Store
	handle domain.Handle
}

// Handle returns the record's identity. It stays valid after removal.
func (r Record) Handle() domain.Handle { return r.handle }

// Store returns the owning store.
func (r Record) Store() *Store { return r.store }

// IsMember reports whether the record is still live.
func (r Record) IsMember() bool {
	return r.store != nil && r.store.IsMember(r.handle)
}

func (r Record) live() (*record, error) {
	if r.store == nil {
		return nil, domain.ErrNotMember
	}
	rec, ok := r.store.records[r.handle]
	if !ok {
		return nil, domain.ErrNotMember
	}
	return rec, nil
}

// Type returns the schema type, or "" for a stale view.
func (r Record) Type() domain.TypeID {
	rec, err := r.live()
	if err != nil {
		return ""
	}
	return rec.typ
}

// NumFields returns the number of fields of the record's type.
func (r Record) NumFields() int {
	rec, err := r.live()
	if err != nil {
		return 0
	}
	return len(rec.fields)
}

// Name returns the record's name, or "" when its type has no name field.
func (r Record) Name() string {
	rec, err := r.live()
	if err != nil {
		return ""
	}
	name, _ := r.store.nameOf(rec)
	return name
}

// SetName renames the record and returns the name it ended up with: a name
// already used by a record of a type sharing a reference list is moved to the
// next free suffix.
func (r Record) SetName(name string) (string, error) {
	rec, err := r.live()
	if err != nil {
		return "", err
	}
	s := r.store
	idx, ok := s.schema.NameFieldIndex(rec.typ)
	if !ok {
		return "", domain.ErrNoNameField
	}
	name = strings.TrimSpace(name)
	if name == "" {
		if spec, _ := s.schema.Field(rec.typ, idx); spec.Required && s.strictness >= domain.StrictnessDraft {
			return "", domain.ErrRequiredField
		}
	}
	if name == rec.fields[idx] {
		return name, nil
	}
	if s.nameConflict(name, rec.typ, rec.handle) {
		name = s.nextName(name, false)
	}
	s.rename(rec, name)
	s.emitChange(rec.handle)
	return name, nil
}

// GetField returns the raw value of field i, or the target Handle when the
// field holds a pointer.
func (r Record) GetField(i int) (string, domain.Handle, error) {
	rec, err := r.live()
	if err != nil {
		return "", domain.NilHandle, err
	}
	if i < 0 || i >= len(rec.fields) {
		return "", domain.NilHandle, domain.ErrFieldIndex
	}
	if h, ok := rec.targets[i]; ok {
		return "", h, nil
	}
	return rec.fields[i], domain.NilHandle, nil
}

// GetString returns field i as text. Pointer fields render the target's
// name, or its Handle string when the target type has no name.
func (r Record) GetString(i int) (string, error) {
	rec, err := r.live()
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(rec.fields) {
		return "", domain.ErrFieldIndex
	}
	return r.store.fieldString(rec, i), nil
}

// GetTarget returns the record field i points at.
func (r Record) GetTarget(i int) (Record, bool) {
	rec, err := r.live()
	if err != nil {
		return Record{}, false
	}
	h, ok := rec.targets[i]
	if !ok {
		return Record{}, false
	}
	return r.store.Record(h)
}

// SetPointer points field i at target. It fails with a PointerError, and
// changes nothing, when target is not live or the field cannot reference its
// type.
func (r Record) SetPointer(i int, target domain.Handle) error {
	rec, err := r.live()
	if err != nil {
		return err
	}
	s := r.store
	if i < 0 || i >= len(rec.fields) {
		return domain.ErrFieldIndex
	}
	tgt, ok := s.records[target]
	if !ok {
		return domain.PointerError{Kind: domain.PointerTargetNotFound, Source: rec.handle, Field: i, Target: target}
	}
	if !s.accepts(rec.typ, i, tgt) {
		return domain.PointerError{Kind: domain.PointerTypeMismatch, Source: rec.handle, Field: i, Target: target}
	}
	if cur, set := rec.targets[i]; set && cur == target {
		return nil
	}
	s.setPointerImpl(rec, i, tgt)
	s.emitChange(rec.handle)
	return nil
}

// ClearPointer unlinks field i. Clearing an unset field does nothing. At
// Final strictness a required field cannot be cleared.
func (r Record) ClearPointer(i int) error {
	rec, err := r.live()
	if err != nil {
		return err
	}
	s := r.store
	if i < 0 || i >= len(rec.fields) {
		return domain.ErrFieldIndex
	}
	if _, set := rec.targets[i]; !set {
		return nil
	}
	if spec, _ := s.schema.Field(rec.typ, i); spec.Required && s.strictness >= domain.StrictnessFinal {
		return domain.ErrRequiredField
	}
	s.nullifyPointer(rec, i)
	s.emitChange(rec.handle)
	return nil
}

// SetString assigns field i from text. Pointer fields resolve value as a
// Handle string or a name; the name field goes through SetName; other
// fields are checked at the store's strictness and left unchanged when the
// check fails.
func (r Record) SetString(i int, value string) error {
	rec, err := r.live()
	if err != nil {
		return err
	}
	s := r.store
	if i < 0 || i >= len(rec.fields) {
		return domain.ErrFieldIndex
	}
	if s.isPointerField(rec.typ, i) {
		if value == "" {
			return r.ClearPointer(i)
		}
		tgt := s.resolveTarget(rec.typ, i, value, nil)
		if tgt == nil {
			if h, perr := domain.ParseHandle(value); perr == nil {
				if _, live := s.records[h]; live {
					return domain.PointerError{Kind: domain.PointerTypeMismatch, Source: rec.handle, Field: i, Target: h}
				}
			}
			return domain.PointerError{Kind: domain.PointerTargetNotFound, Source: rec.handle, Field: i}
		}
		return r.SetPointer(i, tgt.handle)
	}
	if idx, ok := s.schema.NameFieldIndex(rec.typ); ok && idx == i {
		_, err := r.SetName(value)
		return err
	}
	old := rec.fields[i]
	if old == value {
		return nil
	}
	rec.fields[i] = value
	if s.strictness > domain.StrictnessNone {
		if e, bad := s.fieldError(rec, i, s.strictness); bad {
			rec.fields[i] = old
			rep := domain.ValidityReport{Level: s.strictness}
			rep.Add(e)
			return domain.ValidityError{Report: rep}
		}
	}
	s.emitChange(rec.handle)
	return nil
}

// SourceFieldIndices returns the fields of this record pointing at target.
func (r Record) SourceFieldIndices(target domain.Handle) []int {
	rec, err := r.live()
	if err != nil {
		return nil
	}
	var out []int
	for _, f := range r.store.sortedTargets(rec) {
		if rec.targets[f] == target {
			out = append(out, f)
		}
	}
	return out
}

// ReversePointers returns every pointer at this record, ordered by source
// insertion then field.
func (r Record) ReversePointers() []PointerRef {
	rec, err := r.live()
	if err != nil {
		return nil
	}
	srcs := r.store.sortedSources(rec)
	out := make([]PointerRef, len(srcs))
	for i, pr := range srcs {
		out[i] = PointerRef{Source: pr.source, Field: pr.field}
	}
	return out
}

// Sources returns the distinct records pointing at this one.
func (r Record) Sources() []Record {
	rec, err := r.live()
	if err != nil {
		return nil
	}
	var hs []domain.Handle
	for _, pr := range r.store.sortedSources(rec) {
		if !slices.Contains(hs, pr.source) {
			hs = append(hs, pr.source)
		}
	}
	return r.store.views(r.store.recordsOf(hs))
}

// Targets returns the records this one points at, in field order. A record
// pointed at from several fields appears once per field.
func (r Record) Targets() []Record {
	rec, err := r.live()
	if err != nil {
		return nil
	}
	var out []Record
	for _, f := range r.store.sortedTargets(rec) {
		if tgt, ok := r.store.records[rec.targets[f]]; ok {
			out = append(out, r.store.view(tgt))
		}
	}
	return out
}

// CanBeSource reports whether field i accepts any of the reference lists.
func (r Record) CanBeSource(i int, refs ...string) bool {
	rec, err := r.live()
	if err != nil {
		return false
	}
	return intersects(r.store.schema.ObjectListsAcceptedByField(rec.typ, i), canonicalRefs(refs))
}

// Data returns a copy of the record's content with pointer fields rendered
// as GetString does.
func (r Record) Data() (domain.RecordData, error) {
	rec, err := r.live()
	if err != nil {
		return domain.RecordData{}, err
	}
	return r.store.data(rec), nil
}

// ValidityReport evaluates this record alone at level, including name
// conflicts with other records.
func (r Record) ValidityReport(level domain.Strictness) (domain.ValidityReport, error) {
	rec, err := r.live()
	if err != nil {
		return domain.ValidityReport{}, err
	}
	return r.store.recordReport(rec, level, true), nil
}

// Remove removes the record from its store.
func (r Record) Remove() error {
	if _, err := r.live(); err != nil {
		return err
	}
	return r.store.RemoveRecord(r.handle)
}

func (s *Store) fieldString(rec *record, i int) string {
	if h, ok := rec.targets[i]; ok {
		if tgt, live := s.records[h]; live {
			return s.displayValue(tgt)
		}
	}
	return rec.fields[i]
}

func (s *Store) data(rec *record) domain.RecordData {
	out := domain.RecordData{Handle: rec.handle, Type: rec.typ, Fields: make([]string, len(rec.fields))}
	for i := range rec.fields {
		out.Fields[i] = s.fieldString(rec, i)
	}
	return out
}
