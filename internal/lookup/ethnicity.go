package lookup

// Detailed ethnicity categories outside the sixteen 2001 census groups.
const (
	EthnicityOtherCode   = 17
	EthnicityRefused     = 18
	EthnicityNotStated   = 19
	EthnicityNotRecorded = 20

	HighLevelUnknown = 6
)

var ethnicityNames = map[int]string{
	1:  "White - British",
	2:  "White - Irish",
	3:  "White - Any other White background",
	4:  "Mixed - White and Black Caribbean",
	5:  "Mixed - White and Black African",
	6:  "Mixed - White and Asian",
	7:  "Mixed - Any other mixed background",
	8:  "Asian or Asian British - Indian",
	9:  "Asian or Asian British - Pakistani",
	10: "Asian or Asian British - Bangladeshi",
	11: "Asian or Asian British - Any other Asian background",
	12: "Black or Black British - Caribbean",
	13: "Black or Black British - African",
	14: "Black or Black British - Any other Black background",
	15: "Other ethnic groups - Chinese",
	16: "Other ethnic groups - Any other ethnic group",
	17: "Patients with any other ethnicity code",
	18: "Ethnicity not given - patient refused",
	19: "Ethnicity not stated",
	20: "Ethnicity not recorded",
}

var highLevelNames = map[int]string{
	1: "White",
	2: "Mixed",
	3: "South Asian",
	4: "Black",
	5: "Other",
	6: "Unknown",
}

// Ethnicities maps the 2001 census categories onto the detailed and
// high-level bandings.
type Ethnicities struct {
	highLevel map[int]int
}

// DefaultEthnicities returns the PRIMIS banding.
func DefaultEthnicities() *Ethnicities {
	e := &Ethnicities{highLevel: make(map[int]int, 16)}
	for cat := 1; cat <= 16; cat++ {
		switch {
		case cat <= 3:
			e.highLevel[cat] = 1
		case cat <= 7:
			e.highLevel[cat] = 2
		case cat <= 11:
			e.highLevel[cat] = 3
		case cat <= 14:
			e.highLevel[cat] = 4
		default:
			e.highLevel[cat] = 5
		}
	}
	return e
}

// EthnicityEvidence is what a record says about ethnicity. Eth2001 is 0 when
// no census category was recorded.
type EthnicityEvidence struct {
	Eth2001         int
	OtherCode       bool
	NotGivenRefused bool
	NotStated       bool
}

// Assign returns the detailed category 1-20.
func (e *Ethnicities) Assign(ev EthnicityEvidence) int {
	switch {
	case ev.Eth2001 >= 1 && ev.Eth2001 <= 16:
		return ev.Eth2001
	case ev.OtherCode:
		return EthnicityOtherCode
	case ev.NotGivenRefused:
		return EthnicityRefused
	case ev.NotStated:
		return EthnicityNotStated
	default:
		return EthnicityNotRecorded
	}
}

// HighLevel returns the high-level category 1-6 for a detailed category.
func (e *Ethnicities) HighLevel(ethnicity int) int {
	if hl, ok := e.highLevel[ethnicity]; ok {
		return hl
	}
	return HighLevelUnknown
}

// Name returns the title of a detailed category.
func (e *Ethnicities) Name(ethnicity int) string { return ethnicityNames[ethnicity] }

// HighLevelName returns the title of a high-level category.
func (e *Ethnicities) HighLevelName(highLevel int) string { return highLevelNames[highLevel] }
