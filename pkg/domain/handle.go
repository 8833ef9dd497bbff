package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Handle is the stable identity of one record. Handles are minted by the
// workspace when a record is created and are never reused.
type Handle uuid.UUID

// NilHandle is the zero Handle. It never identifies a live record.
var NilHandle Handle

// NewHandle mints a fresh random Handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// ParseHandle parses the canonical string form of a Handle, with or without
// surrounding braces.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	id, err := uuid.Parse(s)
	if err != nil {
		return NilHandle, err
	}
	return Handle(id), nil
}

// LooksLikeHandle reports whether s parses as a Handle.
func LooksLikeHandle(s string) bool {
	_, err := ParseHandle(s)
	return err == nil
}

// IsNil reports whether h is the zero Handle.
func (h Handle) IsNil() bool { return h == NilHandle }

func (h Handle) String() string {
	return "{" + uuid.UUID(h).String() + "}"
}

// Compare orders Handles by their byte representation.
func (h Handle) Compare(other Handle) int {
	for i := range h {
		if h[i] != other[i] {
			if h[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// MarshalText encodes the Handle in its braced string form.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a Handle produced by MarshalText.
func (h *Handle) UnmarshalText(b []byte) error {
	parsed, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
