package service

import (
	"math"

	"github.com/primis-cohort/pkg/decision"
)

// Groups the wave assignment depends on.
const (
	shieldGroup = "shield_group"
	atRiskGroup = "atrisk_group"
	careHomeDat = "longres_dat"
)

// waveRule selects patients aged [minAge, maxAge) who, when set, are in
// group or resident in a care home. The first matching rule gives the wave.
type waveRule struct {
	wave     int
	minAge   int
	maxAge   int
	group    string
	careHome bool
}

var waveRules = []waveRule{
	{wave: 1, minAge: math.MinInt, maxAge: math.MaxInt, careHome: true},
	{wave: 2, minAge: 80, maxAge: math.MaxInt},
	{wave: 3, minAge: 75, maxAge: 80},
	{wave: 4, minAge: math.MinInt, maxAge: math.MaxInt, group: shieldGroup},
	{wave: 4, minAge: 70, maxAge: 75},
	{wave: 5, minAge: 65, maxAge: 70},
	{wave: 6, minAge: 16, maxAge: 65, group: atRiskGroup},
	{wave: 7, minAge: 60, maxAge: 65},
	{wave: 8, minAge: 55, maxAge: 60},
	{wave: 9, minAge: 50, maxAge: 55},
}

// waveInput is what a single wave decision needs.
type waveInput struct {
	age      int
	careHome bool
	flags    func(group string) bool
}

func (w waveRule) matches(in waveInput) bool {
	if in.age < w.minAge || in.age >= w.maxAge {
		return false
	}
	if w.careHome && !in.careHome {
		return false
	}
	return w.group == "" || in.flags(w.group)
}

// assignWave returns the priority wave 1-9, or 0 when no rule matches.
func assignWave(in waveInput) int {
	for _, w := range waveRules {
		if w.matches(in) {
			return w.wave
		}
	}
	return 0
}

// assignWaves is assignWave over whole columns. Rules are applied in priority
// order to the rows not yet assigned.
func assignWaves(ages []int, careHome decision.Mask, flags map[string]decision.Mask) []int {
	n := len(ages)
	waves := make([]int, n)
	remaining := decision.NewMask(n).Not()

	for _, w := range waveRules {
		m := decision.NewMask(n)
		for i, age := range ages {
			if age >= w.minAge && age < w.maxAge {
				m.Set(i, true)
			}
		}
		if w.careHome {
			m = m.And(careHome)
		}
		if w.group != "" {
			m = m.And(flags[w.group])
		}
		m = m.And(remaining)

		for i := 0; i < n; i++ {
			if m.Get(i) {
				waves[i] = w.wave
			}
		}
		remaining = remaining.AndNot(m)
	}
	return waves
}
