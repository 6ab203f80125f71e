// Package nullable provides orderable values that may be absent, together with
// the comparison primitives used by the cohort decision tables.
//
// An absent value means "no record of this event". It is distinct from zero and
// from the Unix epoch, and it takes part in ordering comparisons with fixed
// semantics rather than silently comparing false:
//
//	 lhs | rhs | GT | GTE | LT | LTE
//	-----+-----+----+-----+----+-----
//	  1  |  1  |  F |  T  |  F |  T
//	  1  |  2  |  F |  F  |  T |  T
//	  2  |  1  |  T |  T  |  F |  F
//	  1  |  -  |  T |  T  |  F |  F
//	  -  |  1  |  F |  F  |  T |  T
//	  -  |  -  |  F |  F  |  F |  F
package nullable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the on-the-wire date format of the extraction output.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Value is a date or number that may be absent. Dates are held as whole days
// since 1970-01-01 UTC so that dates and numbers share a single ordering.
// The zero Value is absent.
type Value struct {
	n       float64
	present bool
}

// Absent returns the absent value.
func Absent() Value {
	return Value{}
}

// Number returns a present numeric value.
func Number(f float64) Value {
	return Value{n: f, present: true}
}

// Date returns a present value for the calendar day of t.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Value{n: float64(day.Unix() / secondsPerDay), present: true}
}

// DateOf is shorthand for Date(time.Date(year, month, day, ...)).
func DateOf(year int, month time.Month, day int) Value {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD date. An empty string is absent.
func ParseDate(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Absent(), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Absent(), fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t), nil
}

// ParseNumber parses a decimal number. An empty string is absent.
func ParseNumber(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Absent(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Absent(), fmt.Errorf("invalid number %q: %w", s, err)
	}
	if math.IsNaN(f) {
		return Absent(), nil
	}
	return Number(f), nil
}

// Present reports whether a value is recorded.
func (v Value) Present() bool {
	return v.present
}

// Float returns the underlying number, or 0 when absent.
func (v Value) Float() float64 {
	if !v.present {
		return 0
	}
	return v.n
}

// Time interprets the value as a day number. ok is false when absent.
func (v Value) Time() (t time.Time, ok bool) {
	if !v.present {
		return time.Time{}, false
	}
	return time.Unix(int64(v.n)*secondsPerDay, 0).UTC(), true
}

// DateString formats the value as YYYY-MM-DD, or "" when absent.
func (v Value) DateString() string {
	t, ok := v.Time()
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	return strconv.FormatFloat(v.n, 'g', -1, 64)
}

// GT is lhs > rhs. False if lhs is absent; true if only rhs is absent.
func GT(lhs, rhs Value) bool {
	if !lhs.present {
		return false
	}
	if !rhs.present {
		return true
	}
	return lhs.n > rhs.n
}

// GTE is lhs >= rhs. False if lhs is absent; true if only rhs is absent.
func GTE(lhs, rhs Value) bool {
	if !lhs.present {
		return false
	}
	if !rhs.present {
		return true
	}
	return lhs.n >= rhs.n
}

// LT is lhs < rhs. False if rhs is absent; true if only lhs is absent.
func LT(lhs, rhs Value) bool {
	if !rhs.present {
		return false
	}
	if !lhs.present {
		return true
	}
	return lhs.n < rhs.n
}

// LTE is lhs <= rhs. False if rhs is absent; true if only lhs is absent.
func LTE(lhs, rhs Value) bool {
	if !rhs.present {
		return false
	}
	if !lhs.present {
		return true
	}
	return lhs.n <= rhs.n
}

// Min returns the earlier of the present operands, or absent if neither is.
func Min(a, b Value) Value {
	switch {
	case !a.present:
		return b
	case !b.present:
		return a
	case b.n < a.n:
		return b
	default:
		return a
	}
}

// MarshalJSON encodes an absent value as null and a present one as its
// number (days since epoch for dates).
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.n, 'g', -1, 64)), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*v = Absent()
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid value %s: %w", s, err)
	}
	*v = Number(f)
	return nil
}
