package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateHandle is returned when a record is added with a Handle that is already live.
	ErrDuplicateHandle = errors.New("duplicate handle")
	// ErrUnknownType is returned for a type the schema does not define.
	ErrUnknownType = errors.New("schema type unknown")
	// ErrTypeMismatch is returned when a pointer target cannot be referenced from a field.
	ErrTypeMismatch = errors.New("pointer type mismatch")
	// ErrTargetNotFound is returned when a pointer target is not in the workspace.
	ErrTargetNotFound = errors.New("pointer target not found")
	// ErrIncompatibleReferrer is returned when a swap would orphan an existing referrer.
	ErrIncompatibleReferrer = errors.New("incompatible referrer")
	// ErrIncompatibleTarget is returned when a swap cannot keep an outward pointer.
	ErrIncompatibleTarget = errors.New("incompatible target")
	// ErrNotMember is returned when a record view outlived its record.
	ErrNotMember = errors.New("record is not a member of the workspace")
	// ErrFieldIndex is returned for an out of range field index.
	ErrFieldIndex = errors.New("field index out of range")
	// ErrFieldCount is returned when record data has more values than its type has fields.
	ErrFieldCount = errors.New("too many field values for type")
	// ErrNoNameField is returned when naming a record whose type has no name field.
	ErrNoNameField = errors.New("type has no name field")
	// ErrRequiredField is returned when clearing a required field at Final strictness.
	ErrRequiredField = errors.New("required field cannot be empty")
	// ErrInvalid is returned when an operation would leave the workspace invalid.
	ErrInvalid = errors.New("workspace would be invalid")
)

// AddErrorKind classifies structural add failures.
type AddErrorKind string

const (
	// AddDuplicateHandle marks an add whose requested Handle is already live.
	AddDuplicateHandle AddErrorKind = "DuplicateHandle"
	// AddSchemaTypeUnknown marks an add of a type the schema does not define.
	AddSchemaTypeUnknown AddErrorKind = "SchemaTypeUnknown"
)

// AddError describes a rejected add.
type AddError struct {
	Kind   AddErrorKind
	Handle Handle
	Type   TypeID
}

func (e AddError) Error() string {
	switch e.Kind {
	case AddDuplicateHandle:
		return fmt.Sprintf("add %s: handle %s already exists", e.Type, e.Handle)
	default:
		return fmt.Sprintf("add: schema type %q unknown", e.Type)
	}
}

// Unwrap maps the kind onto its sentinel.
func (e AddError) Unwrap() error {
	if e.Kind == AddDuplicateHandle {
		return ErrDuplicateHandle
	}
	return ErrUnknownType
}

// PointerErrorKind classifies pointer failures.
type PointerErrorKind string

const (
	// PointerTypeMismatch marks a target whose type the field cannot reference.
	PointerTypeMismatch PointerErrorKind = "TypeMismatch"
	// PointerTargetNotFound marks a target missing from the workspace.
	PointerTargetNotFound PointerErrorKind = "TargetNotFound"
)

// PointerError describes a rejected pointer assignment.
type PointerError struct {
	Kind   PointerErrorKind
	Source Handle
	Field  int
	Target Handle
}

func (e PointerError) Error() string {
	return fmt.Sprintf("set pointer %s[%d] -> %s: %s", e.Source, e.Field, e.Target, e.Kind)
}

// Unwrap maps the kind onto its sentinel.
func (e PointerError) Unwrap() error {
	if e.Kind == PointerTypeMismatch {
		return ErrTypeMismatch
	}
	return ErrTargetNotFound
}

// SwapErrorKind classifies swap failures.
type SwapErrorKind string

const (
	// SwapIncompatibleReferrer marks a referrer that cannot point at the replacement type.
	SwapIncompatibleReferrer SwapErrorKind = "IncompatibleReferrer"
	// SwapIncompatibleTarget marks an outward pointer the replacement cannot hold.
	SwapIncompatibleTarget SwapErrorKind = "IncompatibleTarget"
)

// SwapError describes a rejected swap. Handle is the offending referrer or
// target, Field the field index involved.
type SwapError struct {
	Kind   SwapErrorKind
	Handle Handle
	Field  int
}

func (e SwapError) Error() string {
	return fmt.Sprintf("swap: %s (%s field %d)", e.Kind, e.Handle, e.Field)
}

// Unwrap maps the kind onto its sentinel.
func (e SwapError) Unwrap() error {
	if e.Kind == SwapIncompatibleReferrer {
		return ErrIncompatibleReferrer
	}
	return ErrIncompatibleTarget
}

// ValidityError is returned when an operation is rolled back because the
// workspace would fail its strictness level.
type ValidityError struct {
	Report ValidityReport
}

func (e ValidityError) Error() string {
	return fmt.Sprintf("workspace invalid at %s: %d error(s)", e.Report.Level, e.Report.ErrorCount())
}

// Unwrap returns ErrInvalid.
func (e ValidityError) Unwrap() error { return ErrInvalid }
