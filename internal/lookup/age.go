// Package lookup holds the static banding tables used to derive demographic
// columns. Every table is immutable once built and safe to share.
package lookup

import (
	"fmt"
	"math"
)

// AgeBand is a half-open age range [Lower, Upper).
type AgeBand struct {
	ID    int
	Lower int
	Upper int
}

// Contains reports whether age falls inside the band.
func (b AgeBand) Contains(age int) bool {
	return b.Lower <= age && age < b.Upper
}

func (b AgeBand) String() string {
	switch {
	case b.Lower == math.MinInt:
		return fmt.Sprintf("<%d", b.Upper)
	case b.Upper == math.MaxInt:
		return fmt.Sprintf("%d+", b.Lower)
	default:
		return fmt.Sprintf("%d-%d", b.Lower, b.Upper-1)
	}
}

// AgeBands assigns each age the first matching band of a fixed list.
type AgeBands struct {
	bands    []AgeBand
	assigned []int
}

var allAgeBands = []AgeBand{
	{1, math.MinInt, 16},
	{2, 16, 30},
	{3, 30, 40},
	{4, 40, 50},
	{5, 50, 55},
	{6, 55, 60},
	{7, 60, 65},
	{8, 65, 70},
	{9, 70, 75},
	{10, 75, 80},
	{11, 80, 85},
	{12, 85, 120},
	// Aggregate bands used by reports.
	{13, 65, 120},
	{14, 16, 40},
	{15, 50, 65},
	{16, 16, 50},
	{17, 65, 75},
	{18, 75, math.MaxInt},
}

// DefaultAgeBands returns the twelve partitioning bands 1-12 used to
// classify every record.
func DefaultAgeBands() *AgeBands {
	bands, _ := NewAgeBands(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	return bands
}

// NewAgeBands selects bands by ID, in assignment order.
func NewAgeBands(ids ...int) (*AgeBands, error) {
	for _, id := range ids {
		if id < 1 || id > len(allAgeBands) {
			return nil, fmt.Errorf("unknown age band %d", id)
		}
	}
	return &AgeBands{bands: allAgeBands, assigned: append([]int(nil), ids...)}, nil
}

// Band returns any band by ID, including the aggregates 13-18.
func (a *AgeBands) Band(id int) (AgeBand, bool) {
	if id < 1 || id > len(a.bands) {
		return AgeBand{}, false
	}
	return a.bands[id-1], true
}

// Assign returns the ID of the first selected band containing age, or 0.
func (a *AgeBands) Assign(age int) int {
	for _, id := range a.assigned {
		if a.bands[id-1].Contains(age) {
			return id
		}
	}
	return 0
}

// IDs returns the selected band IDs in assignment order.
func (a *AgeBands) IDs() []int {
	return append([]int(nil), a.assigned...)
}
