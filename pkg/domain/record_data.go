package domain

// RecordData is the raw, store-independent content of one record: an ordered
// list of string field values of a given schema type. An optional Handle asks
// the workspace to keep that identity when the record is added.
type RecordData struct {
	Handle Handle   `json:"handle,omitzero"`
	Type   TypeID   `json:"type"`
	Fields []string `json:"fields"`
}

// NewRecordData returns empty data of type t with the schema's field count.
func NewRecordData(schema Schema, t TypeID) RecordData {
	return RecordData{Type: t, Fields: make([]string, schema.FieldCount(t))}
}

// Clone returns a deep copy.
func (d RecordData) Clone() RecordData {
	cp := d
	cp.Fields = append([]string(nil), d.Fields...)
	return cp
}

// Normalize pads or truncates Fields to the schema field count. It returns
// ErrFieldCount when non-empty values would be truncated.
func (d RecordData) Normalize(schema Schema) (RecordData, error) {
	n := schema.FieldCount(d.Type)
	out := d.Clone()
	if len(out.Fields) > n {
		for _, v := range out.Fields[n:] {
			if v != "" {
				return RecordData{}, ErrFieldCount
			}
		}
		out.Fields = out.Fields[:n]
	}
	for len(out.Fields) < n {
		out.Fields = append(out.Fields, "")
	}
	return out, nil
}

// Name returns the value of the schema's name field, if the type has one.
func (d RecordData) Name(schema Schema) (string, bool) {
	idx, ok := schema.NameFieldIndex(d.Type)
	if !ok || idx >= len(d.Fields) {
		return "", false
	}
	return d.Fields[idx], true
}

// WithName returns a copy with the name field set. Types without a name field
// are returned unchanged.
func (d RecordData) WithName(schema Schema, name string) RecordData {
	idx, ok := schema.NameFieldIndex(d.Type)
	if !ok {
		return d
	}
	out, err := d.Normalize(schema)
	if err != nil {
		out = d.Clone()
	}
	if idx < len(out.Fields) {
		out.Fields[idx] = name
	}
	return out
}
