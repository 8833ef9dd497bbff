package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"idfcore/pkg/domain"
)

// Builder accumulates type declarations and validates them into a Catalog.
type Builder struct {
	specs []TypeSpec
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Type appends a type declaration.
func (b *Builder) Type(spec TypeSpec) *Builder {
	b.specs = append(b.specs, spec)
	return b
}

// Build validates the declarations. Every object list accepted by a field must
// be published by some type or forwarded by some field.
func (b *Builder) Build() (*Catalog, error) {
	c := &Catalog{types: make(map[domain.TypeID]*typeEntry, len(b.specs))}
	known := make(map[string]struct{})
	var errs []error
	for _, spec := range b.specs {
		if strings.TrimSpace(string(spec.Name)) == "" {
			errs = append(errs, errors.New("type with empty name"))
			continue
		}
		if _, dup := c.types[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("type %s declared twice", spec.Name))
			continue
		}
		e := &typeEntry{
			spec:      spec,
			nameField: -1,
			published: canonical(spec.References),
			accepted:  make([][]string, len(spec.Fields)),
			forwarded: make([][]string, len(spec.Fields)),
		}
		e.spec.Fields = append([]FieldDef(nil), spec.Fields...)
		for i, f := range spec.Fields {
			if f.IsName {
				if e.nameField >= 0 {
					errs = append(errs, fmt.Errorf("type %s has more than one name field", spec.Name))
				}
				e.nameField = i
			}
			switch f.Kind {
			case "", domain.FieldAlpha, domain.FieldReal, domain.FieldInteger, domain.FieldChoice:
				if len(f.ObjectLists) > 0 {
					errs = append(errs, fmt.Errorf("type %s field %d: object lists on a %q field", spec.Name, i, f.Kind))
				}
			case domain.FieldObjectList:
				if len(f.ObjectLists) == 0 {
					errs = append(errs, fmt.Errorf("type %s field %d: object-list field accepts no lists", spec.Name, i))
				}
			default:
				errs = append(errs, fmt.Errorf("type %s field %d: unknown kind %q", spec.Name, i, f.Kind))
			}
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				errs = append(errs, fmt.Errorf("type %s field %d: min above max", spec.Name, i))
			}
			e.accepted[i] = canonical(f.ObjectLists)
			e.forwarded[i] = canonical(f.References)
			for _, r := range e.forwarded[i] {
				known[r] = struct{}{}
			}
		}
		for _, r := range e.published {
			known[r] = struct{}{}
		}
		c.types[spec.Name] = e
		c.order = append(c.order, spec.Name)
	}
	for _, t := range c.order {
		for i, lists := range c.types[t].accepted {
			for _, l := range lists {
				if _, ok := known[l]; !ok {
					errs = append(errs, fmt.Errorf("type %s field %d: object list %q is never published", t, i, l))
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// MustBuild is Build for fixtures; it panics on invalid declarations.
func (b *Builder) MustBuild() *Catalog {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

type catalogDocument struct {
	Version string     `json:"version"`
	Types   []TypeSpec `json:"types"`
}

// LoadJSON builds a catalog from a JSON document of the form
// {"version": "...", "types": [TypeSpec...]}.
func LoadJSON(r io.Reader) (*Catalog, error) {
	var doc catalogDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}
	b := NewBuilder()
	for _, spec := range doc.Types {
		b.Type(spec)
	}
	c, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build schema catalog: %w", err)
	}
	return c, nil
}

// LoadFile reads a catalog document from path.
func LoadFile(path string) (*Catalog, error) {
	// #nosec G304 -- catalog path is supplied by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read schema catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadJSON(f)
}

// Float returns a pointer to v, for Min/Max declarations.
func Float(v float64) *float64 { return &v }
