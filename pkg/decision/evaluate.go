package decision

import (
	"fmt"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/nullable"
)

// Record is the per-patient view a table is evaluated against. The second
// return value reports whether the attribute exists at all; a missing
// attribute is a contract violation, not an absent value.
type Record interface {
	Value(name string) (nullable.Value, bool)
	Flag(name string) (bool, bool)
}

// MutableRecord also accepts group outcomes as they are computed.
type MutableRecord interface {
	Record
	SetFlag(name string, v bool)
}

// Outcome is the result of walking a table.
type Outcome struct {
	Value bool
	// Row is the 0-based index of the row whose branch ended the walk.
	Row int
}

// Evaluate walks the table rows against rec and returns the group outcome.
func Evaluate(t *Table, rec Record) (bool, error) {
	out, err := Walk(t, rec)
	if err != nil {
		return false, err
	}
	return out.Value, nil
}

// Walk is Evaluate that also reports which row decided the outcome. Rows after
// the deciding row are never consulted.
func Walk(t *Table, rec Record) (Outcome, error) {
	for i, r := range t.rows {
		ok, err := r.When.eval(t.name, rec)
		if err != nil {
			return Outcome{}, err
		}
		target := r.OnFalse
		if ok {
			target = r.OnTrue
		}
		switch target {
		case Select:
			return Outcome{Value: true, Row: i}, nil
		case Reject:
			return Outcome{Value: false, Row: i}, nil
		}
	}
	// NewTable guarantees the final row never continues.
	panic(fmt.Sprintf("decision: table %s fell through its final row", t.name))
}

func (c Condition) eval(group string, rec Record) (bool, error) {
	for _, cmp := range c {
		ok, err := cmp.eval(group, rec)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c Comparison) eval(group string, rec Record) (bool, error) {
	if c.Op == OpIsTrue || c.Op == OpIsFalse {
		v, ok := rec.Flag(c.LHS.Name)
		if !ok {
			return false, missing(group, c.LHS.Name)
		}
		return v == (c.Op == OpIsTrue), nil
	}

	lhs, err := operandValue(group, c.LHS, rec)
	if err != nil {
		return false, err
	}
	var rhs nullable.Value
	if !c.Op.unary() {
		if rhs, err = operandValue(group, c.RHS, rec); err != nil {
			return false, err
		}
	}
	return compare(c.Op, lhs, rhs), nil
}

func operandValue(group string, o Operand, rec Record) (nullable.Value, error) {
	if o.Kind == ConstOperand {
		return o.Const, nil
	}
	v, ok := rec.Value(o.Name)
	if !ok {
		return nullable.Absent(), missing(group, o.Name)
	}
	return v, nil
}

// compare is shared by the row walk and the bulk evaluator.
func compare(op Op, lhs, rhs nullable.Value) bool {
	switch op {
	case OpNotNull:
		return lhs.Present()
	case OpIsNull:
		return !lhs.Present()
	case OpGT:
		return nullable.GT(lhs, rhs)
	case OpGTE:
		return nullable.GTE(lhs, rhs)
	case OpLT:
		return nullable.LT(lhs, rhs)
	case OpLTE:
		return nullable.LTE(lhs, rhs)
	default:
		panic(fmt.Sprintf("decision: operator %d is not a value comparison", int(op)))
	}
}

func missing(group, attr string) error {
	return domain.NewConfigurationError(domain.ErrMissingAttribute, group,
		fmt.Sprintf("record has no attribute %s", attr))
}
