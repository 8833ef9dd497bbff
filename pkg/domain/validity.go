package domain

import (
	"fmt"
	"strings"
)

// Strictness controls how much validation gates a mutation.
type Strictness int

const (
	// StrictnessNone performs no checks.
	StrictnessNone Strictness = iota
	// StrictnessDraft checks field data and name conflicts.
	StrictnessDraft
	// StrictnessFinal adds required and unique type checks.
	StrictnessFinal
)

func (s Strictness) String() string {
	switch s {
	case StrictnessNone:
		return "none"
	case StrictnessDraft:
		return "draft"
	case StrictnessFinal:
		return "final"
	default:
		return fmt.Sprintf("strictness(%d)", int(s))
	}
}

// ParseStrictness accepts the names produced by String, case-insensitively.
func ParseStrictness(s string) (Strictness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return StrictnessNone, nil
	case "draft", "":
		return StrictnessDraft, nil
	case "final":
		return StrictnessFinal, nil
	}
	return StrictnessNone, fmt.Errorf("unknown strictness %q", s)
}

// MarshalText encodes the level by name.
func (s Strictness) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a level produced by MarshalText.
func (s *Strictness) UnmarshalText(b []byte) error {
	parsed, err := ParseStrictness(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ErrorKind classifies validity errors.
type ErrorKind string

const (
	// ErrorNoSchema marks a record whose type the schema does not define.
	ErrorNoSchema ErrorKind = "NoSchema"
	// ErrorNameConflict marks records of types sharing a reference list with the same name.
	ErrorNameConflict ErrorKind = "NameConflict"
	// ErrorNullAndRequired marks an empty required field, or a missing required type.
	ErrorNullAndRequired ErrorKind = "NullAndRequired"
	// ErrorDuplicate marks more than one instance of a unique type.
	ErrorDuplicate ErrorKind = "Duplicate"
	// ErrorDataType marks a value that does not parse as its field kind.
	ErrorDataType ErrorKind = "DataType"
	// ErrorNumericBound marks a number outside its field bounds.
	ErrorNumericBound ErrorKind = "NumericBound"
	// ErrorPointerType marks a pointer whose target the field cannot accept.
	ErrorPointerType ErrorKind = "PointerType"
)

// DataError is one validity finding. Field is -1 for record and collection
// level findings; Handle is nil for collection level findings.
type DataError struct {
	Kind    ErrorKind
	Handle  Handle
	Type    TypeID
	Field   int
	Message string
}

func (e DataError) String() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Type != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Type))
	}
	if !e.Handle.IsNil() {
		b.WriteString(" ")
		b.WriteString(e.Handle.String())
	}
	if e.Field >= 0 {
		fmt.Fprintf(&b, " field %d", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// ValidityReport aggregates the errors found at one strictness level.
type ValidityReport struct {
	Level  Strictness
	Errors []DataError
}

// Merge appends errors from another report.
func (r *ValidityReport) Merge(other ValidityReport) {
	if len(other.Errors) == 0 {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// Add appends one error.
func (r *ValidityReport) Add(e DataError) {
	r.Errors = append(r.Errors, e)
}

// ErrorCount returns the number of errors.
func (r ValidityReport) ErrorCount() int { return len(r.Errors) }

// Valid reports whether the report holds no errors.
func (r ValidityReport) Valid() bool { return len(r.Errors) == 0 }

// Count returns the number of errors of the given kind.
func (r ValidityReport) Count(kind ErrorKind) int {
	n := 0
	for _, e := range r.Errors {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r ValidityReport) String() string {
	if r.Valid() {
		return fmt.Sprintf("valid at %s", r.Level)
	}
	lines := make([]string, 0, len(r.Errors)+1)
	lines = append(lines, fmt.Sprintf("%d error(s) at %s", len(r.Errors), r.Level))
	for _, e := range r.Errors {
		lines = append(lines, "  "+e.String())
	}
	return strings.Join(lines, "\n")
}
