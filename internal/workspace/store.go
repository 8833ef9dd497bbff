// Package workspace implements the in-memory, schema-validated object-graph
// store. Records are typed field lists keyed by Handle; object-list fields hold
// pointers to other records. The Store keeps forward and reverse pointers,
// the type index, the reference index and the name index consistent across
// every mutation and unwinds partially applied mutations on failure.
//
// A Store is single-threaded and not reentrant.
package workspace

import (
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"idfcore/pkg/domain"
)

type pointerRef struct {
	source domain.Handle
	field  int
}

type record struct {
	handle  domain.Handle
	typ     domain.TypeID
	slot    uint32
	fields  []string
	targets map[int]domain.Handle
	sources map[pointerRef]struct{}
}

func newRecord(h domain.Handle, t domain.TypeID, fields []string) *record {
	return &record{
		handle:  h,
		typ:     t,
		fields:  fields,
		targets: make(map[int]domain.Handle),
		sources: make(map[pointerRef]struct{}),
	}
}

type observerEntry struct {
	id int
	o  domain.Observer
}

// Store owns a set of records and every index derived from them.
type Store struct {
	schema     domain.Schema
	strictness domain.Strictness
	fastNaming bool

	records map[domain.Handle]*record
	// slots is the record arena; natural order is slot order.
	slots []*record
	types map[domain.TypeID]*roaring.Bitmap
	refs  map[string]*roaring.Bitmap
	names names
	order OrderIndex

	published map[domain.TypeID][]string

	observers    []observerEntry
	nextObserver int
	logger       Logger
	progress     ProgressFunc
}

// New returns an empty Store over schema. The default strictness is Draft.
func New(schema domain.Schema, opts ...Option) *Store {
	s := &Store{
		schema:     schema,
		strictness: domain.StrictnessDraft,
		records:    make(map[domain.Handle]*record),
		types:      make(map[domain.TypeID]*roaring.Bitmap),
		refs:       make(map[string]*roaring.Bitmap),
		names:      newNames(),
		published:  make(map[domain.TypeID][]string),
		logger:     noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the schema the store validates against.
func (s *Store) Schema() domain.Schema { return s.schema }

// Strictness returns the enforced validity level.
func (s *Store) Strictness() domain.Strictness { return s.strictness }

// SetStrictness changes the enforced level. Raising the level fails with a
// ValidityError when the store is not valid at the new level.
func (s *Store) SetStrictness(level domain.Strictness) error {
	if level > s.strictness {
		if rep := s.ValidityReport(level); !rep.Valid() {
			return domain.ValidityError{Report: rep}
		}
	}
	s.strictness = level
	return nil
}

// FastNaming reports whether synthesized names are uuid strings.
func (s *Store) FastNaming() bool { return s.fastNaming }

// SetFastNaming toggles uuid naming.
func (s *Store) SetFastNaming(on bool) { s.fastNaming = on }

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(o domain.Observer) func() {
	id := s.subscribe(o)
	return func() {
		s.observers = slices.DeleteFunc(s.observers, func(e observerEntry) bool { return e.id == id })
	}
}

func (s *Store) subscribe(o domain.Observer) int {
	s.nextObserver++
	s.observers = append(s.observers, observerEntry{id: s.nextObserver, o: o})
	return s.nextObserver
}

func (s *Store) publishedRefs(t domain.TypeID) []string {
	refs, ok := s.published[t]
	if !ok {
		refs = s.schema.ReferencesPublishedBy(t)
		s.published[t] = refs
	}
	return refs
}

func (s *Store) sharesReference(a, b domain.TypeID) bool {
	pa := s.publishedRefs(a)
	if len(pa) == 0 {
		return false
	}
	for _, r := range s.publishedRefs(b) {
		if slices.Contains(pa, r) {
			return true
		}
	}
	return false
}

func (s *Store) typeBitmap(t domain.TypeID) *roaring.Bitmap {
	bm, ok := s.types[t]
	if !ok {
		bm = roaring.New()
		s.types[t] = bm
	}
	return bm
}

func (s *Store) refBitmap(ref string) *roaring.Bitmap {
	bm, ok := s.refs[ref]
	if !ok {
		bm = roaring.New()
		s.refs[ref] = bm
	}
	return bm
}

func (s *Store) inReference(rec *record, ref string) bool {
	bm, ok := s.refs[ref]
	return ok && bm.Contains(rec.slot)
}

func (s *Store) nameOf(rec *record) (string, bool) {
	idx, ok := s.schema.NameFieldIndex(rec.typ)
	if !ok || idx >= len(rec.fields) {
		return "", false
	}
	return rec.fields[idx], true
}

// attach inserts rec into the primary map, arena and indices. orderPos < 0
// appends in direct mode.
func (s *Store) attach(rec *record, orderPos int) {
	s.records[rec.handle] = rec
	for int(rec.slot) >= len(s.slots) {
		s.slots = append(s.slots, nil)
	}
	s.slots[rec.slot] = rec
	s.typeBitmap(rec.typ).Add(rec.slot)
	for _, ref := range s.publishedRefs(rec.typ) {
		s.refBitmap(ref).Add(rec.slot)
	}
	if name, ok := s.nameOf(rec); ok {
		s.names.add(name, rec.handle)
	}
	if s.order.IsDirect() {
		if orderPos >= 0 {
			s.order.Insert(rec.handle, orderPos)
		} else {
			s.order.PushBack(rec.handle)
		}
	}
}

// detach is the inverse of attach. Pointers must already be nulled.
func (s *Store) detach(rec *record) {
	if name, ok := s.nameOf(rec); ok {
		s.names.remove(name, rec.handle)
	}
	if bm, ok := s.types[rec.typ]; ok {
		bm.Remove(rec.slot)
		if bm.IsEmpty() {
			delete(s.types, rec.typ)
		}
	}
	for ref, bm := range s.refs {
		bm.Remove(rec.slot)
		if bm.IsEmpty() {
			delete(s.refs, ref)
		}
	}
	s.order.Erase(rec.handle)
	delete(s.records, rec.handle)
	if int(rec.slot) < len(s.slots) {
		s.slots[rec.slot] = nil
	}
}

func (s *Store) nextSlot() uint32 {
	return uint32(len(s.slots))
}

func (s *Store) view(rec *record) Record {
	return Record{store: s, handle: rec.handle}
}

func (s *Store) views(recs []*record) []Record {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = s.view(rec)
	}
	return out
}

func (s *Store) fromBitmap(bm *roaring.Bitmap) []*record {
	if bm == nil {
		return nil
	}
	out := make([]*record, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		if rec := s.slots[it.Next()]; rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) naturalRecords() []*record {
	out := make([]*record, 0, len(s.records))
	for _, rec := range s.slots {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) naturalHandles(hs []domain.Handle) []domain.Handle {
	out := make([]domain.Handle, 0, len(hs))
	for _, h := range hs {
		if _, ok := s.records[h]; ok {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b domain.Handle) int {
		return int(s.records[a].slot) - int(s.records[b].slot)
	})
	return out
}

func (s *Store) sortRecords(recs []*record) []*record {
	if !s.order.IsDirect() {
		return recs
	}
	hs := make([]domain.Handle, len(recs))
	for i, rec := range recs {
		hs[i] = rec.handle
	}
	sorted := s.order.Sort(hs, s.naturalHandles)
	out := make([]*record, 0, len(sorted))
	for _, h := range sorted {
		out = append(out, s.records[h])
	}
	return out
}

// NumRecords returns the number of live records.
func (s *Store) NumRecords() int { return len(s.records) }

// NumRecordsOfType returns the number of live records of type t.
func (s *Store) NumRecordsOfType(t domain.TypeID) int {
	bm, ok := s.types[t]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// IsMember reports whether h identifies a live record.
func (s *Store) IsMember(h domain.Handle) bool {
	_, ok := s.records[h]
	return ok
}

// Record returns a view of h.
func (s *Store) Record(h domain.Handle) (Record, bool) {
	rec, ok := s.records[h]
	if !ok {
		return Record{}, false
	}
	return s.view(rec), true
}

// Records returns every record. With sorted set, records follow the direct
// order when it is intact; otherwise insertion order.
func (s *Store) Records(sorted bool) []Record {
	recs := s.naturalRecords()
	if sorted {
		recs = s.sortRecords(recs)
	}
	return s.views(recs)
}

// Handles returns every live Handle, ordered as Records.
func (s *Store) Handles(sorted bool) []domain.Handle {
	recs := s.naturalRecords()
	if sorted {
		recs = s.sortRecords(recs)
	}
	out := make([]domain.Handle, len(recs))
	for i, rec := range recs {
		out[i] = rec.handle
	}
	return out
}

// RecordsByType returns the records of type t in insertion order.
func (s *Store) RecordsByType(t domain.TypeID) []Record {
	return s.views(s.fromBitmap(s.types[t]))
}

// RecordsByName returns records whose name equals name case-insensitively.
// With exact unset, records sharing the base name (ignoring a numeric
// suffix) are returned too.
func (s *Store) RecordsByName(name string, exact bool) []Record {
	var hs []domain.Handle
	if exact {
		hs = s.names.exact(name)
	} else {
		hs = s.names.sameBase(name)
	}
	return s.views(s.recordsOf(hs))
}

// RecordByTypeAndName returns the first record of type t named name.
func (s *Store) RecordByTypeAndName(t domain.TypeID, name string) (Record, bool) {
	for _, rec := range s.recordsOf(s.names.exact(name)) {
		if rec.typ == t {
			return s.view(rec), true
		}
	}
	return Record{}, false
}

// RecordsByReference returns records present in any of the reference lists.
func (s *Store) RecordsByReference(refs ...string) []Record {
	return s.views(s.fromBitmap(s.referenceUnion(refs)))
}

// RecordByNameAndReference returns the first record named name present in
// any of the reference lists.
func (s *Store) RecordByNameAndReference(name string, refs ...string) (Record, bool) {
	rec := s.findByNameAndReference(name, canonicalRefs(refs), nil)
	if rec == nil {
		return Record{}, false
	}
	return s.view(rec), true
}

// VersionRecord returns the record of the first version type, in schema
// order, that has an instance.
func (s *Store) VersionRecord() (Record, bool) {
	for _, t := range s.schema.Types() {
		if !s.schema.IsVersion(t) {
			continue
		}
		if recs := s.fromBitmap(s.types[t]); len(recs) > 0 {
			return s.view(recs[0]), true
		}
	}
	return Record{}, false
}

// SetDirectOrder switches to direct order with the given sequence.
func (s *Store) SetDirectOrder(handles []domain.Handle) { s.order.SetDirectOrder(handles) }

// SetNaturalOrder drops the direct sequence.
func (s *Store) SetNaturalOrder() { s.order.SetNatural() }

// IsDirectOrder reports whether a direct sequence is maintained.
func (s *Store) IsDirectOrder() bool { return s.order.IsDirect() }

// DirectOrder returns a copy of the direct sequence.
func (s *Store) DirectOrder() []domain.Handle { return s.order.Sequence() }

// MoveInOrder moves h to pos in the direct sequence.
func (s *Store) MoveInOrder(h domain.Handle, pos int) bool { return s.order.Move(h, pos) }

func (s *Store) recordsOf(hs []domain.Handle) []*record {
	out := make([]*record, 0, len(hs))
	for _, h := range hs {
		if rec, ok := s.records[h]; ok {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b *record) int { return int(a.slot) - int(b.slot) })
	return out
}

func (s *Store) referenceUnion(refs []string) *roaring.Bitmap {
	union := roaring.New()
	for _, ref := range canonicalRefs(refs) {
		if bm, ok := s.refs[ref]; ok {
			union.Or(bm)
		}
	}
	return union
}

// findByNameAndReference returns the first record named name in any of refs,
// skipping skip.
func (s *Store) findByNameAndReference(name string, refs []string, skip *record) *record {
	if name == "" {
		return nil
	}
	for _, rec := range s.recordsOf(s.names.exact(name)) {
		if rec == skip {
			continue
		}
		for _, ref := range refs {
			if s.inReference(rec, ref) {
				return rec
			}
		}
	}
	return nil
}

func canonicalRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) emitAdd(recs []*record) {
	for _, rec := range recs {
		for _, e := range s.observers {
			e.o.OnAdd(rec.handle, rec.typ)
		}
	}
}

func (s *Store) emitRemove(h domain.Handle, t domain.TypeID) {
	for _, e := range s.observers {
		e.o.OnRemove(h, t)
	}
}

func (s *Store) emitChange(hs ...domain.Handle) {
	for _, h := range hs {
		for _, e := range s.observers {
			e.o.OnChange(h)
		}
	}
}
