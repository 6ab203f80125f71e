// Package decision implements Select/Reject/Next decision tables.
//
// A Table is an ordered list of rows. Each row has a condition (one
// comparison, or an AND of two) and a pair of branch targets. Evaluation walks
// the rows in order: a true condition follows OnTrue, a false one OnFalse;
// Next moves on to the following row and Select/Reject end the walk with
// true/false.
//
// Every table can also be compiled into an equivalent boolean Formula, which
// evaluates either one record at a time or a whole columnar Frame at once.
// Both evaluators share the comparison primitives of package nullable, so
// they agree on every input.
package decision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/nullable"
)

// Target is the action taken on one branch of a row.
type Target int

const (
	// Next continues with the following row.
	Next Target = iota
	// Select ends evaluation with true.
	Select
	// Reject ends evaluation with false.
	Reject
)

// ParseTarget parses "Select", "Reject" or "Next" (case-insensitive).
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "select":
		return Select, nil
	case "reject":
		return Reject, nil
	case "next":
		return Next, nil
	default:
		return Next, fmt.Errorf("unknown row action %q", s)
	}
}

// String returns the action as written in PRIMIS decision tables.
func (t Target) String() string {
	switch t {
	case Select:
		return "Select"
	case Reject:
		return "Reject"
	case Next:
		return "Next"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

func (t Target) valid() bool {
	return t == Next || t == Select || t == Reject
}

// OperandKind distinguishes what an Operand refers to.
type OperandKind int

const (
	// AttrOperand is a date or numeric attribute of the record.
	AttrOperand OperandKind = iota
	// FlagOperand is the outcome of another group.
	FlagOperand
	// ConstOperand is a fixed threshold.
	ConstOperand
)

// Operand is one side of a comparison.
type Operand struct {
	Kind  OperandKind
	Name  string
	Const nullable.Value
}

// Attr references a date or numeric attribute.
func Attr(name string) Operand {
	return Operand{Kind: AttrOperand, Name: name}
}

// Flag references the boolean outcome of another group.
func Flag(name string) Operand {
	return Operand{Kind: FlagOperand, Name: name}
}

// Const is a threshold. Thresholds are never absent.
func Const(v float64) Operand {
	return Operand{Kind: ConstOperand, Const: nullable.Number(v)}
}

func (o Operand) String() string {
	if o.Kind == ConstOperand {
		return o.Const.String()
	}
	return o.Name
}

// Op is a comparison operator.
type Op int

const (
	OpNotNull Op = iota
	OpIsNull
	OpIsTrue
	OpIsFalse
	OpGT
	OpGTE
	OpLT
	OpLTE
)

var opSymbols = map[Op]string{
	OpNotNull: "<> NULL",
	OpIsNull:  "= NULL",
	OpIsTrue:  "is true",
	OpIsFalse: "is false",
	OpGT:      ">",
	OpGTE:     ">=",
	OpLT:      "<",
	OpLTE:     "<=",
}

func (op Op) unary() bool {
	return op == OpNotNull || op == OpIsNull || op == OpIsTrue || op == OpIsFalse
}

// Comparison is a single leaf condition.
type Comparison struct {
	Op  Op
	LHS Operand
	RHS Operand
}

// NotNull is "lhs <> NULL".
func NotNull(name string) Comparison { return Comparison{Op: OpNotNull, LHS: Attr(name)} }

// IsNull is "lhs = NULL".
func IsNull(name string) Comparison { return Comparison{Op: OpIsNull, LHS: Attr(name)} }

// IsTrue tests another group's outcome.
func IsTrue(group string) Comparison { return Comparison{Op: OpIsTrue, LHS: Flag(group)} }

// IsFalse tests another group's outcome for false.
func IsFalse(group string) Comparison { return Comparison{Op: OpIsFalse, LHS: Flag(group)} }

// Compare builds an ordering comparison.
func Compare(lhs Operand, op Op, rhs Operand) Comparison {
	return Comparison{Op: op, LHS: lhs, RHS: rhs}
}

func (c Comparison) String() string {
	if c.Op.unary() {
		return fmt.Sprintf("%s %s", c.LHS, opSymbols[c.Op])
	}
	return fmt.Sprintf("%s %s %s", c.LHS, opSymbols[c.Op], c.RHS)
}

func (c Comparison) validate() error {
	switch {
	case c.Op == OpNotNull || c.Op == OpIsNull:
		if c.LHS.Kind != AttrOperand || c.LHS.Name == "" {
			return fmt.Errorf("%s needs an attribute operand", opSymbols[c.Op])
		}
	case c.Op == OpIsTrue || c.Op == OpIsFalse:
		if c.LHS.Kind != FlagOperand || c.LHS.Name == "" {
			return fmt.Errorf("%s needs a group operand", opSymbols[c.Op])
		}
	case c.Op >= OpGT && c.Op <= OpLTE:
		if c.LHS.Kind != AttrOperand || c.LHS.Name == "" {
			return fmt.Errorf("left of %s must be an attribute", opSymbols[c.Op])
		}
		switch c.RHS.Kind {
		case AttrOperand:
			if c.RHS.Name == "" {
				return fmt.Errorf("right of %s has no name", opSymbols[c.Op])
			}
		case ConstOperand:
			if !c.RHS.Const.Present() {
				return fmt.Errorf("threshold of %s must be present", opSymbols[c.Op])
			}
		default:
			return fmt.Errorf("right of %s must be an attribute or threshold", opSymbols[c.Op])
		}
	default:
		return fmt.Errorf("unknown operator %d", int(c.Op))
	}
	return nil
}

// Condition is the AND of its comparisons. Rows hold one or two.
type Condition []Comparison

func (c Condition) String() string {
	parts := make([]string, len(c))
	for i, cmp := range c {
		parts[i] = cmp.String()
	}
	return strings.Join(parts, " AND ")
}

// Row is one line of a decision table.
type Row struct {
	When    Condition
	OnTrue  Target
	OnFalse Target
	// Text is the row as published, kept for logs and error messages.
	Text string
}

// When is a convenience constructor for a Row.
func When(cond Condition, onTrue, onFalse Target) Row {
	return Row{When: cond, OnTrue: onTrue, OnFalse: onFalse}
}

// Table is an immutable, validated decision table for one group.
type Table struct {
	name        string
	description string
	rows        []Row
	attrs       []string
	groups      []string
	formula     Formula
}

// NewTable validates rows and builds a Table. Every non-final row must have
// exactly one Next branch; the final row must end on both branches.
func NewTable(name, description string, rows []Row) (*Table, error) {
	if name == "" {
		return nil, domain.NewConfigurationError(domain.ErrMalformedTable, "", "table has no name")
	}
	if len(rows) == 0 {
		return nil, domain.NewConfigurationError(domain.ErrMalformedTable, name, "table has no rows")
	}

	last := len(rows) - 1
	attrs := map[string]struct{}{}
	groups := map[string]struct{}{}

	for i, r := range rows {
		if len(r.When) < 1 || len(r.When) > 2 {
			return nil, domain.NewRowError(name, i+1, fmt.Sprintf("condition must have one or two comparisons, got %d", len(r.When)))
		}
		for _, c := range r.When {
			if err := c.validate(); err != nil {
				return nil, domain.NewRowError(name, i+1, err.Error())
			}
			for _, o := range []Operand{c.LHS, c.RHS} {
				switch o.Kind {
				case AttrOperand:
					if o.Name != "" {
						attrs[o.Name] = struct{}{}
					}
				case FlagOperand:
					groups[o.Name] = struct{}{}
				}
			}
		}

		if !r.OnTrue.valid() || !r.OnFalse.valid() {
			return nil, domain.NewRowError(name, i+1,
				fmt.Sprintf("unknown row action %s | %s", r.OnTrue, r.OnFalse))
		}
		if i < last {
			if (r.OnTrue == Next) == (r.OnFalse == Next) {
				return nil, domain.NewRowError(name, i+1,
					fmt.Sprintf("non-final row must have exactly one Next branch, got %s | %s", r.OnTrue, r.OnFalse))
			}
		} else {
			if !(r.OnTrue == Select && r.OnFalse == Reject) && !(r.OnTrue == Reject && r.OnFalse == Select) {
				return nil, domain.NewRowError(name, i+1,
					fmt.Sprintf("final row must end on both branches, got %s | %s", r.OnTrue, r.OnFalse))
			}
		}
	}
	if _, self := groups[name]; self {
		return nil, domain.NewConfigurationError(domain.ErrDependencyCycle, name, "table references its own outcome")
	}

	t := &Table{
		name:        name,
		description: description,
		rows:        append([]Row(nil), rows...),
		attrs:       sortedKeys(attrs),
		groups:      sortedKeys(groups),
	}
	t.formula = compile(t.rows)
	t.formula.group = name
	return t, nil
}

// Name returns the group name, e.g. "immuno_group".
func (t *Table) Name() string { return t.name }

// Description returns the human readable group title.
func (t *Table) Description() string { return t.description }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the table rows.
func (t *Table) Rows() []Row { return append([]Row(nil), t.rows...) }

// Attributes returns the attribute names referenced by the table, sorted.
func (t *Table) Attributes() []string { return append([]string(nil), t.attrs...) }

// Groups returns the group names the table depends on, sorted.
func (t *Table) Groups() []string { return append([]string(nil), t.groups...) }

// Formula returns the boolean formula compiled from the table.
func (t *Table) Formula() Formula { return t.formula }

// String renders the table in the published row format.
func (t *Table) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", t.name, t.description)
	for _, r := range t.rows {
		text := r.Text
		if text == "" {
			text = "IF " + r.When.String()
		}
		fmt.Fprintf(&b, "  %-48s | %-6s | %s\n", text, r.OnTrue, r.OnFalse)
	}
	return b.String()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
