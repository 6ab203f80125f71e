package decision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/primis-cohort/internal/domain"
)

var (
	comparisonPattern = regexp.MustCompile(`^([A-Za-z0-9_ ]+?)\s*(<>|>=|<=|=|>|<)\s*([A-Za-z0-9_. ]+?)$`)
	thresholdPattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	namePattern       = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	// Spelling variants found in the PRIMIS documents.
	splitSuffixPattern = regexp.MustCompile(`\s+_(DAT|GROUP)\b`) // "JND1RX _DAT"
	groupGluePattern   = regexp.MustCompile(`([^_])GROUP$`)      // "IMMUNOGROUP"
	bareMedPattern     = regexp.MustCompile(`^(ASTRXM\d)$`)      // "ASTRXM1"
)

// ParseRow parses one row of a PRIMIS decision table, e.g.
//
//	ParseRow("IF SHIELD_DAT <> NULL AND NONSHIELD_DAT = NULL", "Select", "Next")
//
// Names ending in _GROUP become references to other groups. Text in
// parentheses after a comparison is a comment.
func ParseRow(condition, onTrue, onFalse string) (Row, error) {
	t, err := ParseTarget(onTrue)
	if err != nil {
		return Row{}, err
	}
	f, err := ParseTarget(onFalse)
	if err != nil {
		return Row{}, err
	}

	text := strings.TrimSpace(condition)
	body := text
	if len(body) >= 3 && strings.EqualFold(body[:3], "IF ") {
		body = body[3:]
	} else {
		return Row{}, fmt.Errorf("condition %q does not start with IF", condition)
	}

	var cond Condition
	for _, part := range strings.Split(body, " AND ") {
		cmp, err := parseComparison(part)
		if err != nil {
			return Row{}, fmt.Errorf("condition %q: %w", condition, err)
		}
		cond = append(cond, cmp)
	}

	return Row{When: cond, OnTrue: t, OnFalse: f, Text: text}, nil
}

func parseComparison(s string) (Comparison, error) {
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	m := comparisonPattern.FindStringSubmatch(s)
	if m == nil {
		return Comparison{}, fmt.Errorf("cannot parse comparison %q", s)
	}
	lhs := normalizeName(m[1])
	op := m[2]
	rhsText := strings.TrimSpace(m[3])

	if !namePattern.MatchString(lhs) {
		return Comparison{}, fmt.Errorf("invalid name %q", m[1])
	}
	isGroup := strings.HasSuffix(lhs, "_group")

	if strings.EqualFold(rhsText, "NULL") {
		switch {
		case op == "<>" && isGroup:
			return IsTrue(lhs), nil
		case op == "=" && isGroup:
			return IsFalse(lhs), nil
		case op == "<>":
			return NotNull(lhs), nil
		case op == "=":
			return IsNull(lhs), nil
		default:
			return Comparison{}, fmt.Errorf("operator %s cannot compare with NULL", op)
		}
	}

	var ord Op
	switch op {
	case ">":
		ord = OpGT
	case ">=":
		ord = OpGTE
	case "<":
		ord = OpLT
	case "<=":
		ord = OpLTE
	default:
		return Comparison{}, fmt.Errorf("operator %s needs NULL on the right", op)
	}
	if isGroup {
		return Comparison{}, fmt.Errorf("group %s cannot be ordered", lhs)
	}

	if thresholdPattern.MatchString(rhsText) {
		v, err := strconv.ParseFloat(rhsText, 64)
		if err != nil {
			return Comparison{}, err
		}
		return Compare(Attr(lhs), ord, Const(v)), nil
	}

	rhs := normalizeName(rhsText)
	if !namePattern.MatchString(rhs) || strings.HasSuffix(rhs, "_group") {
		return Comparison{}, fmt.Errorf("invalid right operand %q", rhsText)
	}
	return Compare(Attr(lhs), ord, Attr(rhs)), nil
}

func normalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = splitSuffixPattern.ReplaceAllString(s, "_$1")
	s = groupGluePattern.ReplaceAllString(s, "${1}_GROUP")
	s = bareMedPattern.ReplaceAllString(s, "${1}_DAT")
	return strings.ToLower(s)
}

// ParseTable parses rows given as [condition, onTrue, onFalse] triples and
// builds a validated Table. Rows that do not parse are MALFORMED_TABLE errors.
func ParseTable(name, description string, rows [][3]string) (*Table, error) {
	parsed := make([]Row, 0, len(rows))
	for i, r := range rows {
		row, err := ParseRow(r[0], r[1], r[2])
		if err != nil {
			return nil, domain.NewRowError(name, i+1, err.Error())
		}
		parsed = append(parsed, row)
	}
	return NewTable(name, description, parsed)
}
