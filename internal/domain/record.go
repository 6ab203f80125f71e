package domain

import (
	"sort"

	"github.com/primis-cohort/pkg/nullable"
)

// RawRecord is one patient row as extracted, before any derivation.
type RawRecord struct {
	PatientID string `json:"patient_id"`
	Age       int    `json:"age"`
	Sex       string `json:"sex"`
	// IMD is the index of multiple deprivation rank.
	IMD nullable.Value `json:"imd"`
	// Eth2001 is the 2001 census ethnicity category 1-16, or 0 when none was
	// recorded.
	Eth2001 int `json:"eth2001"`

	// Dates holds every *_dat column.
	Dates map[string]nullable.Value `json:"dates"`
	// Values holds numeric measurements such as bmi_val.
	Values map[string]nullable.Value `json:"values"`
}

// Has reports whether the record carries an attribute column at all.
func (r *RawRecord) Has(name string) bool {
	if _, ok := r.Dates[name]; ok {
		return true
	}
	_, ok := r.Values[name]
	return ok
}

// Attribute returns a date or numeric column by name.
func (r *RawRecord) Attribute(name string) (nullable.Value, bool) {
	if v, ok := r.Dates[name]; ok {
		return v, true
	}
	v, ok := r.Values[name]
	return v, ok
}

// PatientRecord is a RawRecord with its derived columns and group outcomes.
// It implements decision.MutableRecord.
type PatientRecord struct {
	RawRecord

	AgeBand            int             `json:"age_band"`
	IMDBand            int             `json:"imd_band"`
	Ethnicity          int             `json:"ethnicity"`
	HighLevelEthnicity int             `json:"high_level_ethnicity"`
	Vacc1Date          nullable.Value  `json:"vacc1_dat"`
	Vacc2Date          nullable.Value  `json:"vacc2_dat"`
	Groups             map[string]bool `json:"groups"`
	Wave               int             `json:"wave"`
}

// NewPatientRecord starts a derived record from raw. The raw maps are shared,
// never written.
func NewPatientRecord(raw RawRecord) *PatientRecord {
	return &PatientRecord{RawRecord: raw, Groups: make(map[string]bool)}
}

// Value implements decision.Record.
func (p *PatientRecord) Value(name string) (nullable.Value, bool) {
	return p.Attribute(name)
}

// Flag implements decision.Record.
func (p *PatientRecord) Flag(name string) (bool, bool) {
	v, ok := p.Groups[name]
	return v, ok
}

// SetFlag implements decision.MutableRecord.
func (p *PatientRecord) SetFlag(name string, v bool) {
	p.Groups[name] = v
}

// Equal compares every raw and derived field.
func (p *PatientRecord) Equal(o *PatientRecord) bool {
	if p.PatientID != o.PatientID || p.Age != o.Age || p.Sex != o.Sex ||
		p.IMD != o.IMD || p.Eth2001 != o.Eth2001 ||
		p.AgeBand != o.AgeBand || p.IMDBand != o.IMDBand ||
		p.Ethnicity != o.Ethnicity || p.HighLevelEthnicity != o.HighLevelEthnicity ||
		p.Vacc1Date != o.Vacc1Date || p.Vacc2Date != o.Vacc2Date || p.Wave != o.Wave {
		return false
	}
	return equalValues(p.Dates, o.Dates) && equalValues(p.Values, o.Values) && equalFlags(p.Groups, o.Groups)
}

// SelectedGroups returns the names of the groups the patient is in, sorted.
func (p *PatientRecord) SelectedGroups() []string {
	var out []string
	for g, v := range p.Groups {
		if v {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

func equalValues(a, b map[string]nullable.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func equalFlags(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Cohort is a transformed population in input order.
type Cohort struct {
	// Groups lists the group columns in evaluation order.
	Groups  []string         `json:"groups"`
	Records []*PatientRecord `json:"records"`
	// Filtered counts input records dropped as implausible.
	Filtered int `json:"filtered"`
}

// Len returns the number of records kept.
func (c *Cohort) Len() int { return len(c.Records) }

// Equal reports whether two cohorts hold the same records in the same order.
func (c *Cohort) Equal(o *Cohort) bool {
	if c.Filtered != o.Filtered || len(c.Groups) != len(o.Groups) || len(c.Records) != len(o.Records) {
		return false
	}
	for i := range c.Groups {
		if c.Groups[i] != o.Groups[i] {
			return false
		}
	}
	for i := range c.Records {
		if !c.Records[i].Equal(o.Records[i]) {
			return false
		}
	}
	return true
}

// GroupCounts returns the number of selected patients per group.
func (c *Cohort) GroupCounts() map[string]int {
	counts := make(map[string]int, len(c.Groups))
	for _, g := range c.Groups {
		counts[g] = 0
	}
	for _, r := range c.Records {
		for g, v := range r.Groups {
			if v {
				counts[g]++
			}
		}
	}
	return counts
}

// WaveCounts returns the number of patients per priority wave.
func (c *Cohort) WaveCounts() map[int]int {
	counts := make(map[int]int)
	for _, r := range c.Records {
		counts[r.Wave]++
	}
	return counts
}
