package workspace

import (
	"slices"

	"idfcore/pkg/domain"
)

// OrderIndex keeps either no order (natural) or an explicit sequence of
// Handles (direct).
type OrderIndex struct {
	direct bool
	seq    []domain.Handle
}

// IsDirect reports whether an explicit sequence is maintained.
func (o *OrderIndex) IsDirect() bool { return o.direct }

// SetDirectOrder switches to direct mode with a copy of handles. The sequence
// is not validated; Sort degrades to natural order when it is damaged.
func (o *OrderIndex) SetDirectOrder(handles []domain.Handle) {
	o.direct = true
	o.seq = append([]domain.Handle(nil), handles...)
}

// SetNatural drops any explicit sequence.
func (o *OrderIndex) SetNatural() {
	o.direct = false
	o.seq = nil
}

// Sequence returns a copy of the direct sequence.
func (o *OrderIndex) Sequence() []domain.Handle {
	return append([]domain.Handle(nil), o.seq...)
}

// PushBack appends h. It is only legal in direct mode.
func (o *OrderIndex) PushBack(h domain.Handle) bool {
	if !o.direct {
		return false
	}
	o.seq = append(o.seq, h)
	return true
}

// IndexOf returns the position of h, or -1.
func (o *OrderIndex) IndexOf(h domain.Handle) int {
	return slices.Index(o.seq, h)
}

// Erase removes the first occurrence of h and returns its former position,
// or -1 when h was not present.
func (o *OrderIndex) Erase(h domain.Handle) int {
	i := o.IndexOf(h)
	if i < 0 {
		return -1
	}
	o.seq = slices.Delete(o.seq, i, i+1)
	return i
}

// Insert places h at pos, clamped to the sequence bounds.
func (o *OrderIndex) Insert(h domain.Handle, pos int) bool {
	if !o.direct {
		return false
	}
	pos = max(0, min(pos, len(o.seq)))
	o.seq = slices.Insert(o.seq, pos, h)
	return true
}

// Move relocates h to pos.
func (o *OrderIndex) Move(h domain.Handle, pos int) bool {
	if o.Erase(h) < 0 {
		return false
	}
	return o.Insert(h, pos)
}

// Sort orders handles by the direct sequence when that sequence covers every
// requested handle exactly once; otherwise it returns natural(handles).
func (o *OrderIndex) Sort(handles []domain.Handle, natural func([]domain.Handle) []domain.Handle) []domain.Handle {
	if !o.direct {
		return natural(handles)
	}
	pos := make(map[domain.Handle]int, len(o.seq))
	for i, h := range o.seq {
		if _, dup := pos[h]; dup {
			return natural(handles)
		}
		pos[h] = i
	}
	seen := make(map[domain.Handle]struct{}, len(handles))
	for _, h := range handles {
		if _, ok := pos[h]; !ok {
			return natural(handles)
		}
		if _, dup := seen[h]; dup {
			return natural(handles)
		}
		seen[h] = struct{}{}
	}
	out := append([]domain.Handle(nil), handles...)
	slices.SortFunc(out, func(a, b domain.Handle) int { return pos[a] - pos[b] })
	return out
}
