package decision

import (
	"strings"
)

type nodeKind uint8

const (
	leafNode nodeKind = iota
	andNode
	orNode
	notNode
)

type node struct {
	kind nodeKind
	cmp  Comparison
	kids []*node
}

// Formula is a decision table rewritten as a single boolean expression over
// its row conditions. It is built by NewTable and never modified.
type Formula struct {
	group string
	root  *node
}

// compile folds the rows from the last one backwards. With c the row
// condition and f the formula for the remaining rows:
//
//	Select | Next    c OR f
//	Next   | Select  NOT c OR f
//	Reject | Next    NOT c AND f
//	Next   | Reject  c AND f
//
// The final row contributes c (Select | Reject) or NOT c (Reject | Select).
// Negation is always a NOT node. Flipping the operator instead (> into <=)
// is wrong when both operands are absent.
func compile(rows []Row) Formula {
	last := rows[len(rows)-1]
	f := conditionNode(last.When)
	if last.OnTrue == Reject {
		f = negate(f)
	}

	for i := len(rows) - 2; i >= 0; i-- {
		r := rows[i]
		c := conditionNode(r.When)
		switch {
		case r.OnTrue == Select:
			f = join(orNode, c, f)
		case r.OnFalse == Select:
			f = join(orNode, negate(c), f)
		case r.OnTrue == Reject:
			f = join(andNode, negate(c), f)
		case r.OnFalse == Reject:
			f = join(andNode, c, f)
		}
	}
	return Formula{root: f}
}

func conditionNode(c Condition) *node {
	if len(c) == 1 {
		return &node{kind: leafNode, cmp: c[0]}
	}
	kids := make([]*node, len(c))
	for i, cmp := range c {
		kids[i] = &node{kind: leafNode, cmp: cmp}
	}
	return &node{kind: andNode, kids: kids}
}

func negate(n *node) *node {
	if n.kind == notNode {
		return n.kids[0]
	}
	return &node{kind: notNode, kids: []*node{n}}
}

// join prepends a to f, flattening runs of the same connective.
func join(kind nodeKind, a, f *node) *node {
	if f.kind == kind {
		kids := make([]*node, 0, len(f.kids)+1)
		kids = append(kids, a)
		kids = append(kids, f.kids...)
		return &node{kind: kind, kids: kids}
	}
	return &node{kind: kind, kids: []*node{a, f}}
}

// Eval evaluates the formula against a single record.
func (f Formula) Eval(rec Record) (bool, error) {
	return f.root.eval(f.group, rec)
}

func (n *node) eval(group string, rec Record) (bool, error) {
	switch n.kind {
	case leafNode:
		return n.cmp.eval(group, rec)
	case notNode:
		v, err := n.kids[0].eval(group, rec)
		return !v, err
	case andNode:
		for _, k := range n.kids {
			v, err := k.eval(group, rec)
			if err != nil || !v {
				return false, err
			}
		}
		return true, nil
	default:
		for _, k := range n.kids {
			v, err := k.eval(group, rec)
			if err != nil || v {
				return v, err
			}
		}
		return false, nil
	}
}

// String renders the formula, e.g. "(immrx_dat <> NULL OR immdx_cov_dat <> NULL)".
func (f Formula) String() string {
	if f.root == nil {
		return ""
	}
	return f.root.String()
}

func (n *node) String() string {
	switch n.kind {
	case leafNode:
		return n.cmp.String()
	case notNode:
		return "NOT " + wrap(n.kids[0])
	}
	sep := " AND "
	if n.kind == orNode {
		sep = " OR "
	}
	parts := make([]string, len(n.kids))
	for i, k := range n.kids {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func wrap(n *node) string {
	if n.kind == leafNode {
		return "(" + n.String() + ")"
	}
	return n.String()
}
