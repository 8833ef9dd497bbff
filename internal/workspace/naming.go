package workspace

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"idfcore/pkg/domain"
)

// names indexes record names case-insensitively, both by full name and by
// base name with the numeric suffix of each member.
type names struct {
	byName map[string]map[domain.Handle]struct{}
	byBase map[string]map[domain.Handle]int
}

func newNames() names {
	return names{
		byName: make(map[string]map[domain.Handle]struct{}),
		byBase: make(map[string]map[domain.Handle]int),
	}
}

func (n names) add(name string, h domain.Handle) {
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	set, ok := n.byName[key]
	if !ok {
		set = make(map[domain.Handle]struct{})
		n.byName[key] = set
	}
	set[h] = struct{}{}
	base, _, suffix := splitSuffix(name)
	baseKey := strings.ToLower(base)
	bs, ok := n.byBase[baseKey]
	if !ok {
		bs = make(map[domain.Handle]int)
		n.byBase[baseKey] = bs
	}
	bs[h] = suffix
}

func (n names) remove(name string, h domain.Handle) {
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	if set, ok := n.byName[key]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(n.byName, key)
		}
	}
	base, _, _ := splitSuffix(name)
	baseKey := strings.ToLower(base)
	if bs, ok := n.byBase[baseKey]; ok {
		delete(bs, h)
		if len(bs) == 0 {
			delete(n.byBase, baseKey)
		}
	}
}

func (n names) exact(name string) []domain.Handle {
	set := n.byName[strings.ToLower(name)]
	out := make([]domain.Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}

func (n names) sameBase(name string) []domain.Handle {
	base, _, _ := splitSuffix(name)
	bs := n.byBase[strings.ToLower(base)]
	out := make([]domain.Handle, 0, len(bs))
	for h := range bs {
		out = append(out, h)
	}
	return out
}

// suffixesOf returns the suffixes taken under base. An unsuffixed name takes 1.
func (n names) suffixesOf(base string) map[int]bool {
	taken := make(map[int]bool)
	for _, suffix := range n.byBase[strings.ToLower(base)] {
		taken[max(suffix, 1)] = true
	}
	return taken
}

// splitSuffix splits "Zone 12" into ("Zone", " ", 12) and "Coil_3" into
// ("Coil", "_", 3). Names without a positive numeric suffix come back whole.
func splitSuffix(name string) (base, sep string, suffix int) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) || i < 2 {
		return name, "", 0
	}
	if c := name[i-1]; c != ' ' && c != '_' {
		return name, "", 0
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil || n <= 0 {
		return name, "", 0
	}
	return name[:i-1], name[i-1 : i], n
}

// nextName returns a name with base of name that no record or reserved name
// uses. With fill set, the lowest free suffix is chosen; otherwise one past
// the highest taken suffix.
func (s *Store) nextName(name string, fill bool, reserved ...string) string {
	if s.fastNaming {
		return uuid.NewString()
	}
	base, sep, _ := splitSuffix(name)
	if sep == "" {
		sep = " "
	}
	taken := s.names.suffixesOf(base)
	for _, r := range reserved {
		rb, _, rs := splitSuffix(r)
		if strings.EqualFold(rb, base) {
			taken[max(rs, 1)] = true
		}
	}
	n := 1
	if fill {
		for taken[n] {
			n++
		}
	} else {
		for k := range taken {
			n = max(n, k+1)
		}
	}
	return base + sep + strconv.Itoa(n)
}

// NextName returns the name nextName would assign for name.
func (s *Store) NextName(name string, fill bool) string {
	return s.nextName(name, fill)
}

// NextNameForType returns a fresh name derived from the type's default name.
func (s *Store) NextNameForType(t domain.TypeID) string {
	return s.nextName(s.schema.DefaultName(t), true)
}

// nameConflict reports whether another live record of a type sharing a
// reference list with t is called name.
func (s *Store) nameConflict(name string, t domain.TypeID, exclude domain.Handle) bool {
	if name == "" {
		return false
	}
	for _, h := range s.names.exact(name) {
		if h == exclude {
			continue
		}
		if other, ok := s.records[h]; ok && s.sharesReference(t, other.typ) {
			return true
		}
	}
	return false
}

func (s *Store) rename(rec *record, name string) {
	idx, ok := s.schema.NameFieldIndex(rec.typ)
	if !ok {
		return
	}
	old := rec.fields[idx]
	s.names.remove(old, rec.handle)
	rec.fields[idx] = name
	s.names.add(name, rec.handle)
}

type reservedName struct {
	name string
	typ  domain.TypeID
}

// settleNames assigns final names to a batch about to be added: empty names
// are synthesized, and names colliding with live records or earlier batch
// members of types sharing a reference list are moved to the next free
// suffix.
func (s *Store) settleNames(batch []domain.RecordData) {
	var reserved []reservedName
	reservedNames := func() []string {
		out := make([]string, len(reserved))
		for i, r := range reserved {
			out[i] = r.name
		}
		return out
	}
	for i := range batch {
		d := &batch[i]
		idx, ok := s.schema.NameFieldIndex(d.Type)
		if !ok {
			continue
		}
		name := d.Fields[idx]
		switch {
		case name == "":
			name = s.nextName(s.schema.DefaultName(d.Type), true, reservedNames()...)
		case s.nameConflict(name, d.Type, domain.NilHandle) || slices.ContainsFunc(reserved, func(r reservedName) bool {
			return strings.EqualFold(r.name, name) && s.sharesReference(r.typ, d.Type)
		}):
			renamed := s.nextName(name, false, reservedNames()...)
			s.logger.Warn("renamed record to avoid name conflict", "type", d.Type, "requested", name, "name", renamed)
			name = renamed
		}
		d.Fields[idx] = name
		reserved = append(reserved, reservedName{name: name, typ: d.Type})
	}
}
