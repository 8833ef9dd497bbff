// Package schema provides an in-memory field-definition catalog implementing
// domain.Schema. Reference list names are canonicalised to lower case.
package schema

import (
	"sort"
	"strings"

	"idfcore/pkg/domain"
)

// TypeSpec declares one schema type.
type TypeSpec struct {
	Name       domain.TypeID `json:"name"`
	Required   bool          `json:"required,omitempty"`
	Unique     bool          `json:"unique,omitempty"`
	Version    bool          `json:"version,omitempty"`
	References []string      `json:"references,omitempty"`
	Fields     []FieldDef    `json:"fields"`
}

// FieldDef declares one field of a type.
type FieldDef struct {
	Name        string           `json:"name"`
	Kind        domain.FieldKind `json:"kind,omitempty"`
	Required    bool             `json:"required,omitempty"`
	IsName      bool             `json:"is_name,omitempty"`
	Min         *float64         `json:"min,omitempty"`
	Max         *float64         `json:"max,omitempty"`
	Keys        []string         `json:"keys,omitempty"`
	ObjectLists []string         `json:"object_lists,omitempty"`
	References  []string         `json:"references,omitempty"`
}

type typeEntry struct {
	spec      TypeSpec
	nameField int
	published []string
	accepted  [][]string
	forwarded [][]string
}

// Catalog is an immutable domain.Schema.
type Catalog struct {
	types map[domain.TypeID]*typeEntry
	order []domain.TypeID
}

var _ domain.Schema = (*Catalog)(nil)

func canonical(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) entry(t domain.TypeID) (*typeEntry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.types[t]
	return e, ok
}

// HasType reports whether t is defined.
func (c *Catalog) HasType(t domain.TypeID) bool {
	_, ok := c.entry(t)
	return ok
}

// Types lists all types in declaration order.
func (c *Catalog) Types() []domain.TypeID {
	return append([]domain.TypeID(nil), c.order...)
}

// FieldCount returns the number of fields of t, or 0 for unknown types.
func (c *Catalog) FieldCount(t domain.TypeID) int {
	e, ok := c.entry(t)
	if !ok {
		return 0
	}
	return len(e.spec.Fields)
}

// Field returns the definition of field index of t.
func (c *Catalog) Field(t domain.TypeID, index int) (domain.FieldSpec, bool) {
	e, ok := c.entry(t)
	if !ok || index < 0 || index >= len(e.spec.Fields) {
		return domain.FieldSpec{}, false
	}
	f := e.spec.Fields[index]
	kind := f.Kind
	if kind == "" {
		kind = domain.FieldAlpha
	}
	return domain.FieldSpec{
		Name:        f.Name,
		Kind:        kind,
		Required:    f.Required,
		Min:         f.Min,
		Max:         f.Max,
		Keys:        append([]string(nil), f.Keys...),
		ObjectLists: append([]string(nil), e.accepted[index]...),
		References:  append([]string(nil), e.forwarded[index]...),
	}, true
}

// IsRequired reports whether at least one instance of t must exist at Final strictness.
func (c *Catalog) IsRequired(t domain.TypeID) bool {
	e, ok := c.entry(t)
	return ok && e.spec.Required
}

// IsUnique reports whether at most one instance of t may exist at Final strictness.
func (c *Catalog) IsUnique(t domain.TypeID) bool {
	e, ok := c.entry(t)
	return ok && e.spec.Unique
}

// IsVersion reports whether t is the version marker type.
func (c *Catalog) IsVersion(t domain.TypeID) bool {
	e, ok := c.entry(t)
	return ok && e.spec.Version
}

// NameFieldIndex returns the index of the name field of t.
func (c *Catalog) NameFieldIndex(t domain.TypeID) (int, bool) {
	e, ok := c.entry(t)
	if !ok || e.nameField < 0 {
		return 0, false
	}
	return e.nameField, true
}

// DefaultName derives a display base name from the type name, replacing
// colons with spaces.
func (c *Catalog) DefaultName(t domain.TypeID) string {
	parts := strings.FieldsFunc(string(t), func(r rune) bool { return r == ':' })
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, " ")
}

// ReferencesPublishedBy returns the reference lists records of t can be
// pointed at through.
func (c *Catalog) ReferencesPublishedBy(t domain.TypeID) []string {
	e, ok := c.entry(t)
	if !ok {
		return nil
	}
	return append([]string(nil), e.published...)
}

// ObjectListsAcceptedByField returns the reference lists field index of t
// accepts, empty for non-pointer fields.
func (c *Catalog) ObjectListsAcceptedByField(t domain.TypeID, index int) []string {
	e, ok := c.entry(t)
	if !ok || index < 0 || index >= len(e.accepted) {
		return nil
	}
	return append([]string(nil), e.accepted[index]...)
}

// ReferencesForwardedByField returns the reference lists a pointer in field
// index of t adds its target to.
func (c *Catalog) ReferencesForwardedByField(t domain.TypeID, index int) []string {
	e, ok := c.entry(t)
	if !ok || index < 0 || index >= len(e.forwarded) {
		return nil
	}
	return append([]string(nil), e.forwarded[index]...)
}

// TypesPublishing lists the types that publish any of refs.
func (c *Catalog) TypesPublishing(refs ...string) []domain.TypeID {
	want := canonical(refs)
	var out []domain.TypeID
	for _, t := range c.order {
		if intersects(c.types[t].published, want) {
			out = append(out, t)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
