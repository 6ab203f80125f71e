package lookup

import (
	"fmt"

	"github.com/primis-cohort/pkg/nullable"
)

// DefaultIMDMax is the highest index of multiple deprivation rank in England.
const DefaultIMDMax = 32844

// DeprivationBands splits IMD ranks into quintiles of equal width.
type DeprivationBands struct {
	max    float64
	bounds [5]float64
}

// NewDeprivationBands builds quintiles over [0, max].
func NewDeprivationBands(max float64) (*DeprivationBands, error) {
	if max <= 0 {
		return nil, fmt.Errorf("imd maximum must be positive, got %v", max)
	}
	d := &DeprivationBands{max: max}
	for k := 1; k <= 5; k++ {
		d.bounds[k-1] = max * float64(k) / 5
	}
	return d, nil
}

// Assign returns 1-5 for the first quintile whose upper bound is at least
// imd, 5 for ranks above the maximum, and 0 when imd is absent.
func (d *DeprivationBands) Assign(imd nullable.Value) int {
	if !imd.Present() {
		return 0
	}
	v := imd.Float()
	for i, hi := range d.bounds {
		if v <= hi {
			return i + 1
		}
	}
	return 5
}

// Max returns the configured maximum rank.
func (d *DeprivationBands) Max() float64 { return d.max }
