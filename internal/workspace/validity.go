package workspace

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"idfcore/pkg/domain"
)

// ValidityReport evaluates the whole store at level.
func (s *Store) ValidityReport(level domain.Strictness) domain.ValidityReport {
	rep := domain.ValidityReport{Level: level}
	if level <= domain.StrictnessNone {
		return rep
	}
	for _, rec := range s.naturalRecords() {
		rep.Merge(s.recordReport(rec, level, true))
	}
	if level >= domain.StrictnessFinal {
		for _, t := range s.schema.Types() {
			n := s.NumRecordsOfType(t)
			if s.schema.IsRequired(t) && n == 0 {
				rep.Add(domain.DataError{Kind: domain.ErrorNullAndRequired, Type: t, Field: -1, Message: "required type has no instance"})
			}
			if s.schema.IsUnique(t) && n > 1 {
				rep.Add(domain.DataError{Kind: domain.ErrorDuplicate, Type: t, Field: -1, Message: fmt.Sprintf("unique type has %d instances", n)})
			}
		}
	}
	return rep
}

// IsValid reports whether the store has no errors at level.
func (s *Store) IsValid(level domain.Strictness) bool {
	return s.ValidityReport(level).Valid()
}

func (s *Store) recordReport(rec *record, level domain.Strictness, checkNames bool) domain.ValidityReport {
	rep := domain.ValidityReport{Level: level}
	if level <= domain.StrictnessNone {
		return rep
	}
	if !s.schema.HasType(rec.typ) {
		rep.Add(domain.DataError{Kind: domain.ErrorNoSchema, Handle: rec.handle, Type: rec.typ, Field: -1})
		return rep
	}
	for i := range rec.fields {
		if e, bad := s.fieldError(rec, i, level); bad {
			rep.Add(e)
		}
	}
	if checkNames {
		if name, ok := s.nameOf(rec); ok && s.nameConflict(name, rec.typ, rec.handle) {
			rep.Add(domain.DataError{Kind: domain.ErrorNameConflict, Handle: rec.handle, Type: rec.typ, Field: -1, Message: name})
		}
	}
	return rep
}

func (s *Store) fieldError(rec *record, i int, level domain.Strictness) (domain.DataError, bool) {
	spec, ok := s.schema.Field(rec.typ, i)
	if !ok {
		return domain.DataError{}, false
	}
	fail := func(kind domain.ErrorKind, msg string) (domain.DataError, bool) {
		return domain.DataError{Kind: kind, Handle: rec.handle, Type: rec.typ, Field: i, Message: msg}, true
	}
	if spec.Kind == domain.FieldObjectList {
		h, set := rec.targets[i]
		if !set {
			if spec.Required && level >= domain.StrictnessFinal {
				return fail(domain.ErrorNullAndRequired, spec.Name)
			}
			return domain.DataError{}, false
		}
		if tgt, live := s.records[h]; !live || !s.accepts(rec.typ, i, tgt) {
			return fail(domain.ErrorPointerType, spec.Name)
		}
		return domain.DataError{}, false
	}
	value := strings.TrimSpace(rec.fields[i])
	if value == "" {
		if spec.Required && level >= domain.StrictnessFinal {
			return fail(domain.ErrorNullAndRequired, spec.Name)
		}
		return domain.DataError{}, false
	}
	switch spec.Kind {
	case domain.FieldReal, domain.FieldInteger:
		var v float64
		var err error
		if spec.Kind == domain.FieldInteger {
			var n int64
			n, err = strconv.ParseInt(value, 10, 64)
			v = float64(n)
		} else {
			v, err = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return fail(domain.ErrorDataType, fmt.Sprintf("%s: %q is not %s", spec.Name, value, spec.Kind))
		}
		if spec.Min != nil && v < *spec.Min {
			return fail(domain.ErrorNumericBound, fmt.Sprintf("%s: %v below %v", spec.Name, v, *spec.Min))
		}
		if spec.Max != nil && v > *spec.Max {
			return fail(domain.ErrorNumericBound, fmt.Sprintf("%s: %v above %v", spec.Name, v, *spec.Max))
		}
	case domain.FieldChoice:
		if !slices.ContainsFunc(spec.Keys, func(k string) bool { return strings.EqualFold(k, value) }) {
			return fail(domain.ErrorDataType, fmt.Sprintf("%s: %q is not a valid key", spec.Name, value))
		}
	}
	return domain.DataError{}, false
}
