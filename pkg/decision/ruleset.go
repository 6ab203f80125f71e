package decision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/primis-cohort/internal/domain"
)

// RuleSet is a resolved, compiled collection of group tables. It is safe for
// concurrent use.
type RuleSet struct {
	order  []*Table
	byName map[string]*Table
	attrs  []string
}

// NewRuleSet resolves the evaluation order of tables and keeps their
// compiled formulas.
func NewRuleSet(tables ...*Table) (*RuleSet, error) {
	order, err := Resolve(tables)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Table, len(order))
	attrs := map[string]struct{}{}
	for _, t := range order {
		byName[t.name] = t
		for _, a := range t.attrs {
			attrs[a] = struct{}{}
		}
	}

	return &RuleSet{
		order:  order,
		byName: byName,
		attrs:  sortedKeys(attrs),
	}, nil
}

// Order returns the tables in evaluation order.
func (s *RuleSet) Order() []*Table {
	return append([]*Table(nil), s.order...)
}

// Names returns the group names in evaluation order.
func (s *RuleSet) Names() []string {
	names := make([]string, len(s.order))
	for i, t := range s.order {
		names[i] = t.name
	}
	return names
}

// Table returns the table for a group.
func (s *RuleSet) Table(name string) (*Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Formula returns the compiled formula for a group.
func (s *RuleSet) Formula(name string) (Formula, bool) {
	t, ok := s.byName[name]
	if !ok {
		return Formula{}, false
	}
	return t.formula, true
}

// Dependencies returns the groups a group references directly.
func (s *RuleSet) Dependencies(name string) []string {
	t, ok := s.byName[name]
	if !ok {
		return nil
	}
	return t.Groups()
}

// Attributes returns every input attribute referenced by any table, sorted.
func (s *RuleSet) Attributes() []string {
	return append([]string(nil), s.attrs...)
}

// CheckAttributes reports the first referenced attribute that has() does not
// know about, as a MISSING_ATTRIBUTE configuration error.
func (s *RuleSet) CheckAttributes(has func(name string) bool) error {
	var missingAttrs []string
	for _, a := range s.attrs {
		if !has(a) {
			missingAttrs = append(missingAttrs, a)
		}
	}
	if len(missingAttrs) == 0 {
		return nil
	}
	sort.Strings(missingAttrs)
	for _, t := range s.order {
		for _, a := range t.attrs {
			if a == missingAttrs[0] {
				return domain.NewConfigurationError(domain.ErrMissingAttribute, t.name,
					fmt.Sprintf("input has no attribute %s (missing: %s)", a, strings.Join(missingAttrs, ", ")))
			}
		}
	}
	return domain.NewConfigurationError(domain.ErrMissingAttribute, "",
		"input is missing attributes: "+strings.Join(missingAttrs, ", "))
}

// EvaluateRecord walks every table in dependency order, writing each outcome
// back onto rec before the next table is evaluated.
func (s *RuleSet) EvaluateRecord(rec MutableRecord) error {
	for _, t := range s.order {
		v, err := Evaluate(t, rec)
		if err != nil {
			return err
		}
		rec.SetFlag(t.name, v)
	}
	return nil
}

// EvaluateFrame evaluates every compiled formula over the frame in
// dependency order, adding one flag column per group.
func (s *RuleSet) EvaluateFrame(fr *Frame) error {
	for _, t := range s.order {
		m, err := t.formula.EvalFrame(fr)
		if err != nil {
			return err
		}
		if err := fr.SetFlag(t.name, m); err != nil {
			return err
		}
	}
	return nil
}
