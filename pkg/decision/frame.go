package decision

import (
	"fmt"
	"math/bits"

	"github.com/primis-cohort/pkg/nullable"
)

// Mask is a packed boolean column.
type Mask struct {
	words []uint64
	n     int
}

// NewMask returns an all-false mask of length n.
func NewMask(n int) Mask {
	return Mask{words: make([]uint64, (n+63)/64), n: n}
}

// MaskOf packs a bool slice.
func MaskOf(vals []bool) Mask {
	m := NewMask(len(vals))
	for i, v := range vals {
		if v {
			m.words[i>>6] |= 1 << (uint(i) & 63)
		}
	}
	return m
}

// Len returns the number of rows in the mask.
func (m Mask) Len() int { return m.n }

// Get returns row i.
func (m Mask) Get(i int) bool {
	return m.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// Set assigns row i. Masks share storage with their copies; use Clone first
// when that matters.
func (m Mask) Set(i int, v bool) {
	if v {
		m.words[i>>6] |= 1 << (uint(i) & 63)
	} else {
		m.words[i>>6] &^= 1 << (uint(i) & 63)
	}
}

// Clone returns an independent copy.
func (m Mask) Clone() Mask {
	return Mask{words: append([]uint64(nil), m.words...), n: m.n}
}

// And returns m AND o.
func (m Mask) And(o Mask) Mask {
	out := NewMask(m.n)
	for i := range out.words {
		out.words[i] = m.words[i] & o.words[i]
	}
	return out
}

// Or returns m OR o.
func (m Mask) Or(o Mask) Mask {
	out := NewMask(m.n)
	for i := range out.words {
		out.words[i] = m.words[i] | o.words[i]
	}
	return out
}

// AndNot returns m AND NOT o.
func (m Mask) AndNot(o Mask) Mask {
	out := NewMask(m.n)
	for i := range out.words {
		out.words[i] = m.words[i] &^ o.words[i]
	}
	return out
}

// Not returns the complement of m.
func (m Mask) Not() Mask {
	out := NewMask(m.n)
	for i := range out.words {
		out.words[i] = ^m.words[i]
	}
	out.clearTail()
	return out
}

func (m Mask) clearTail() {
	if rem := uint(m.n) & 63; rem != 0 {
		m.words[len(m.words)-1] &= (1 << rem) - 1
	}
}

// Count returns the number of true rows.
func (m Mask) Count() int {
	total := 0
	for _, w := range m.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// Equal reports whether both masks hold the same rows.
func (m Mask) Equal(o Mask) bool {
	if m.n != o.n {
		return false
	}
	for i := range m.words {
		if m.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Bools unpacks the mask.
func (m Mask) Bools() []bool {
	out := make([]bool, m.n)
	for i := range out {
		out[i] = m.Get(i)
	}
	return out
}

// Frame is a columnar population: one slice of values per attribute and one
// mask per group outcome, all of the same length.
type Frame struct {
	n      int
	values map[string][]nullable.Value
	flags  map[string]Mask
}

// NewFrame returns an empty frame of n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		n:      n,
		values: make(map[string][]nullable.Value),
		flags:  make(map[string]Mask),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// SetValues adds or replaces an attribute column.
func (f *Frame) SetValues(name string, col []nullable.Value) error {
	if len(col) != f.n {
		return fmt.Errorf("column %s has %d rows, frame has %d", name, len(col), f.n)
	}
	f.values[name] = col
	return nil
}

// SetFlag adds or replaces a group outcome column.
func (f *Frame) SetFlag(name string, m Mask) error {
	if m.Len() != f.n {
		return fmt.Errorf("flag %s has %d rows, frame has %d", name, m.Len(), f.n)
	}
	f.flags[name] = m
	return nil
}

// Values returns an attribute column.
func (f *Frame) Values(name string) ([]nullable.Value, bool) {
	col, ok := f.values[name]
	return col, ok
}

// FlagMask returns a group outcome column.
func (f *Frame) FlagMask(name string) (Mask, bool) {
	m, ok := f.flags[name]
	return m, ok
}

// Row returns a Record view of row i.
func (f *Frame) Row(i int) Record {
	return frameRow{f: f, i: i}
}

type frameRow struct {
	f *Frame
	i int
}

func (r frameRow) Value(name string) (nullable.Value, bool) {
	col, ok := r.f.values[name]
	if !ok {
		return nullable.Absent(), false
	}
	return col[r.i], true
}

func (r frameRow) Flag(name string) (bool, bool) {
	m, ok := r.f.flags[name]
	if !ok {
		return false, false
	}
	return m.Get(r.i), true
}

// EvalFrame evaluates the formula over every row of the frame at once.
func (f Formula) EvalFrame(fr *Frame) (Mask, error) {
	return f.root.evalFrame(f.group, fr)
}

func (n *node) evalFrame(group string, fr *Frame) (Mask, error) {
	switch n.kind {
	case leafNode:
		return leafMask(group, n.cmp, fr)
	case notNode:
		m, err := n.kids[0].evalFrame(group, fr)
		if err != nil {
			return Mask{}, err
		}
		return m.Not(), nil
	}

	acc, err := n.kids[0].evalFrame(group, fr)
	if err != nil {
		return Mask{}, err
	}
	for _, k := range n.kids[1:] {
		m, err := k.evalFrame(group, fr)
		if err != nil {
			return Mask{}, err
		}
		if n.kind == andNode {
			acc = acc.And(m)
		} else {
			acc = acc.Or(m)
		}
	}
	return acc, nil
}

func leafMask(group string, c Comparison, fr *Frame) (Mask, error) {
	if c.Op == OpIsTrue || c.Op == OpIsFalse {
		m, ok := fr.flags[c.LHS.Name]
		if !ok {
			return Mask{}, missing(group, c.LHS.Name)
		}
		if c.Op == OpIsTrue {
			return m.Clone(), nil
		}
		return m.Not(), nil
	}

	lhs, ok := fr.values[c.LHS.Name]
	if !ok {
		return Mask{}, missing(group, c.LHS.Name)
	}

	out := NewMask(fr.n)
	switch {
	case c.Op.unary():
		for i, v := range lhs {
			if compare(c.Op, v, nullable.Absent()) {
				out.Set(i, true)
			}
		}
	case c.RHS.Kind == ConstOperand:
		for i, v := range lhs {
			if compare(c.Op, v, c.RHS.Const) {
				out.Set(i, true)
			}
		}
	default:
		rhs, ok := fr.values[c.RHS.Name]
		if !ok {
			return Mask{}, missing(group, c.RHS.Name)
		}
		for i, v := range lhs {
			if compare(c.Op, v, rhs[i]) {
				out.Set(i, true)
			}
		}
	}
	return out, nil
}
