package workspace

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"idfcore/pkg/domain"
)

// endpoint names one side of a link: a record of the batch being added
// (batch >= 0) or a live record.
type endpoint struct {
	batch  int
	handle domain.Handle
}

func batchEndpoint(i int) endpoint          { return endpoint{batch: i} }
func liveEndpoint(h domain.Handle) endpoint { return endpoint{batch: -1, handle: h} }
func (e endpoint) isBatch() bool            { return e.batch >= 0 }

// link is a pointer supplied alongside a batch rather than encoded by name.
type link struct {
	from  endpoint
	field int
	to    endpoint
}

type priorTarget struct {
	source domain.Handle
	field  int
	target domain.Handle
	had    bool
}

// AddOption tunes AddRecords.
type AddOption func(*addConfig)

type addConfig struct {
	independent bool
}

// Independently validates and commits each record of a bulk add on its own;
// failures are joined and the successes returned.
func Independently() AddOption {
	return func(c *addConfig) { c.independent = true }
}

// AddRecord adds one record. See AddRecords.
func (s *Store) AddRecord(data domain.RecordData) (Record, error) {
	recs, err := s.AddRecords([]domain.RecordData{data})
	if err != nil {
		return Record{}, err
	}
	return recs[0], nil
}

// AddRecords adds a batch atomically: names are settled, the records indexed,
// string pointers resolved (batch members first, then live records), and the
// result validated at the store's strictness. On any failure the store is
// left exactly as before and no record is returned.
func (s *Store) AddRecords(batch []domain.RecordData, opts ...AddOption) ([]Record, error) {
	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.independent {
		return s.AddAndInsertRecords(batch, nil)
	}
	progress := s.progress
	s.progress = nil
	defer func() { s.progress = progress }()
	var out []Record
	var errs []error
	for i, d := range batch {
		recs, err := s.AddAndInsertRecords([]domain.RecordData{d}, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		} else {
			out = append(out, recs[0])
		}
		if progress != nil {
			progress(i+1, len(batch))
		}
	}
	return out, errors.Join(errs...)
}

// AddAndInsertRecords adds toAdd unconditionally and inserts toInsert with
// add-or-reuse semantics: an incoming record equivalent to a live one reuses
// it. Pointers between batch members are kept through the batch, and reused
// records gain pointers their incoming copies carried where they had none.
// The returned views follow toAdd then toInsert order.
func (s *Store) AddAndInsertRecords(toAdd, toInsert []domain.RecordData) ([]Record, error) {
	nAdd := len(toAdd)
	items := make([]domain.RecordData, 0, nAdd+len(toInsert))
	for _, d := range slices.Concat(toAdd, toInsert) {
		if !s.schema.HasType(d.Type) {
			return nil, domain.AddError{Kind: domain.AddSchemaTypeUnknown, Handle: d.Handle, Type: d.Type}
		}
		nd, err := d.Normalize(s.schema)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", d.Type, err)
		}
		items = append(items, nd)
	}

	byHandle := make(map[domain.Handle]int, len(items))
	for i, d := range items {
		if !d.Handle.IsNil() {
			byHandle[d.Handle] = i
		}
	}
	lookup := func(h domain.Handle) (domain.RecordData, bool) {
		i, ok := byHandle[h]
		if !ok {
			return domain.RecordData{}, false
		}
		return items[i], true
	}
	reuse := make([]*record, len(items))
	for i := nAdd; i < len(items); i++ {
		reuse[i] = s.equivalentRecord(items[i], lookup)
	}

	orig := make([]domain.Handle, len(items))
	origName := make([]string, len(items))
	for i, d := range items {
		orig[i] = d.Handle
		origName[i], _ = d.Name(s.schema)
	}

	newIdx := make([]int, len(items))
	var fresh []domain.RecordData
	seen := make(map[domain.Handle]struct{})
	for i := range items {
		newIdx[i] = -1
		if reuse[i] != nil {
			continue
		}
		h := items[i].Handle
		if !h.IsNil() {
			_, dup := seen[h]
			if dup || s.IsMember(h) {
				if i < nAdd {
					return nil, domain.AddError{Kind: domain.AddDuplicateHandle, Handle: h, Type: items[i].Type}
				}
				s.logger.Info("assigned fresh handle to inserted record", "handle", h.String(), "type", items[i].Type)
				h = domain.NilHandle
			}
		}
		if h.IsNil() {
			h = domain.NewHandle()
		}
		seen[h] = struct{}{}
		items[i].Handle = h
		newIdx[i] = len(fresh)
		fresh = append(fresh, items[i])
	}

	target := func(i, field int, value string) (endpoint, bool) {
		srcType := items[i].Type
		lists := s.schema.ObjectListsAcceptedByField(srcType, field)
		parsed, perr := domain.ParseHandle(value)
		for j := range items {
			byHandle := perr == nil && (orig[j] == parsed || items[j].Handle == parsed)
			byName := origName[j] != "" && strings.EqualFold(origName[j], value)
			if !byHandle && !byName {
				continue
			}
			if reuse[j] != nil {
				if s.accepts(srcType, field, reuse[j]) {
					return liveEndpoint(reuse[j].handle), true
				}
				continue
			}
			if intersects(lists, s.publishedRefs(items[j].Type)) {
				return batchEndpoint(newIdx[j]), true
			}
		}
		return endpoint{}, false
	}

	var links []link
	for i := range items {
		srcType := items[i].Type
		for f, value := range items[i].Fields {
			if value == "" || !s.isPointerField(srcType, f) {
				continue
			}
			if reuse[i] == nil {
				if to, ok := target(i, f, value); ok {
					links = append(links, link{from: batchEndpoint(newIdx[i]), field: f, to: to})
					fresh[newIdx[i]].Fields[f] = ""
				}
				continue
			}
			if _, set := reuse[i].targets[f]; set {
				continue
			}
			if to, ok := target(i, f, value); ok {
				links = append(links, link{from: liveEndpoint(reuse[i].handle), field: f, to: to})
			} else if tgt := s.resolveTarget(srcType, f, value, nil); tgt != nil {
				links = append(links, link{from: liveEndpoint(reuse[i].handle), field: f, to: liveEndpoint(tgt.handle)})
			}
		}
	}

	s.settleNames(fresh)
	recs, changed, err := s.commitAdd(fresh, links)
	if err != nil {
		return nil, err
	}

	out := make([]Record, len(items))
	reused := 0
	for i := range items {
		if reuse[i] != nil {
			out[i] = s.view(reuse[i])
			reused++
			continue
		}
		out[i] = s.view(recs[newIdx[i]])
	}
	s.logger.Debug("records committed", "added", len(recs), "reused", reused)
	s.emitAdd(recs)
	s.emitChange(changed...)
	return out, nil
}

// commitAdd attaches batch, applies links, resolves string pointers and
// validates. It returns the new records and the live records whose pointers
// changed. On failure every step is unwound.
func (s *Store) commitAdd(batch []domain.RecordData, links []link) ([]*record, []domain.Handle, error) {
	recs := make([]*record, 0, len(batch))
	for _, d := range batch {
		rec := newRecord(d.Handle, d.Type, append([]string(nil), d.Fields...))
		rec.slot = s.nextSlot()
		s.attach(rec, -1)
		recs = append(recs, rec)
	}

	var priors []priorTarget
	unwind := func() {
		for i := len(recs) - 1; i >= 0; i-- {
			s.nominalRemove(recs[i])
		}
		for i := len(priors) - 1; i >= 0; i-- {
			p := priors[i]
			src, ok := s.records[p.source]
			if !ok {
				continue
			}
			s.nullifyPointer(src, p.field)
			if tgt, live := s.records[p.target]; p.had && live {
				s.setPointerImpl(src, p.field, tgt)
			}
		}
		s.trimSlots()
	}
	resolve := func(e endpoint) *record {
		if e.isBatch() {
			if e.batch < len(recs) {
				return recs[e.batch]
			}
			return nil
		}
		return s.records[e.handle]
	}

	var changed []domain.Handle
	for _, l := range links {
		src, tgt := resolve(l.from), resolve(l.to)
		if src == nil || tgt == nil {
			unwind()
			return nil, nil, domain.PointerError{Kind: domain.PointerTargetNotFound, Source: l.from.handle, Field: l.field, Target: l.to.handle}
		}
		if !s.accepts(src.typ, l.field, tgt) {
			unwind()
			return nil, nil, domain.PointerError{Kind: domain.PointerTypeMismatch, Source: src.handle, Field: l.field, Target: tgt.handle}
		}
		if !l.from.isBatch() {
			old, had := src.targets[l.field]
			priors = append(priors, priorTarget{source: src.handle, field: l.field, target: old, had: had})
			if !slices.Contains(changed, src.handle) {
				changed = append(changed, src.handle)
			}
		}
		s.setPointerImpl(src, l.field, tgt)
	}
	// Links go first: they can forward references that string pointers
	// resolve through.
	for i, rec := range recs {
		s.resolvePointers(rec)
		if s.progress != nil {
			s.progress(i+1, len(recs))
		}
	}

	if rep := s.checkAdded(recs, changed); !rep.Valid() {
		s.logger.Warn("add rolled back", "records", len(recs), "errors", rep.ErrorCount())
		unwind()
		return nil, nil, domain.ValidityError{Report: rep}
	}
	return recs, changed, nil
}

// checkAdded validates the whole store at Final, or when the batch is the
// whole store; otherwise the new records and the live records whose pointers
// the batch changed.
func (s *Store) checkAdded(recs []*record, changed []domain.Handle) domain.ValidityReport {
	if s.strictness <= domain.StrictnessNone {
		return domain.ValidityReport{Level: s.strictness}
	}
	if s.strictness >= domain.StrictnessFinal || len(s.records) == len(recs) {
		return s.ValidityReport(s.strictness)
	}
	rep := domain.ValidityReport{Level: s.strictness}
	for _, rec := range recs {
		rep.Merge(s.recordReport(rec, s.strictness, true))
	}
	for _, h := range changed {
		if rec, ok := s.records[h]; ok {
			rep.Merge(s.recordReport(rec, s.strictness, true))
		}
	}
	return rep
}

// trimSlots drops trailing free arena slots.
func (s *Store) trimSlots() {
	for len(s.slots) > 0 && s.slots[len(s.slots)-1] == nil {
		s.slots = s.slots[:len(s.slots)-1]
	}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
