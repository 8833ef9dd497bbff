package domain

// TypeID names one schema type, e.g. "OS:ThermalZone".
type TypeID string

// FieldKind classifies how a field value is interpreted.
type FieldKind string

const (
	// FieldAlpha holds free text.
	FieldAlpha FieldKind = "alpha"
	// FieldReal holds a floating point number.
	FieldReal FieldKind = "real"
	// FieldInteger holds an integer.
	FieldInteger FieldKind = "integer"
	// FieldChoice holds one of a fixed set of keys.
	FieldChoice FieldKind = "choice"
	// FieldObjectList holds a pointer to another record.
	FieldObjectList FieldKind = "object-list"
)

// FieldSpec describes one field of a schema type.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	Min      *float64
	Max      *float64
	Keys     []string
	// ObjectLists are the reference list names an object-list field accepts.
	ObjectLists []string
	// References are reference list names a pointer held by this field
	// forwards onto its target.
	References []string
}

// Schema is the read-only field-definition catalog the workspace consults.
// Implementations must treat reference list names case-insensitively and must
// not change while a workspace uses them.
type Schema interface {
	HasType(t TypeID) bool
	Types() []TypeID
	FieldCount(t TypeID) int
	Field(t TypeID, index int) (FieldSpec, bool)
	IsRequired(t TypeID) bool
	IsUnique(t TypeID) bool
	IsVersion(t TypeID) bool
	NameFieldIndex(t TypeID) (int, bool)
	DefaultName(t TypeID) string
	ReferencesPublishedBy(t TypeID) []string
	ObjectListsAcceptedByField(t TypeID, index int) []string
	ReferencesForwardedByField(t TypeID, index int) []string
}
