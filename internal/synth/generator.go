// Package synth generates reproducible synthetic extraction output. The
// population is shaped so that every row of every group table is reached:
// dates land on both sides of each comparison and some records are dropped
// by the plausibility filter.
package synth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/nullable"
)

var (
	runDate   = time.Date(2021, time.February, 14, 0, 0, 0, 0, time.UTC)
	startDate = time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC)
)

// Columns set for 20% of patients with no further structure.
var plainDateColumns = []string{
	"ast_dat", "astadm_dat", "astrxm1_dat", "astrxm2_dat", "astrxm3_dat",
	"resp_cov_dat", "chd_cov_dat", "ckd_cov_dat", "ckd15_dat", "cld_dat",
	"diab_dat", "dmres_dat", "immdx_cov_dat", "immrx_dat", "cns_cov_dat",
	"spln_cov_dat", "sev_mental_dat", "smhres_dat", "shield_dat", "nonshield_dat",
	"learndis_dat", "longres_dat", "non_eth2001_dat", "eth_notgiptref_dat",
	"eth_notstated_dat",
}

// SeedConfig controls the size and shape of a generated population.
type SeedConfig struct {
	Records  int      `json:"records"`
	Seed     int64    `json:"seed"`
	Products []string `json:"products"`
	// ProductRate is the share of vaccinated patients whose dose has a
	// product-specific record.
	ProductRate float64 `json:"product_rate"`
}

// DefaultSeedConfig returns a 10,000 record population.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Records:     10_000,
		Seed:        1,
		Products:    []string{"az", "pf", "mo", "nx", "jn", "gs", "vl"},
		ProductRate: 0.8,
	}
}

// DataGenerator produces synthetic raw records.
type DataGenerator struct {
	config SeedConfig
	rng    *rand.Rand
}

// NewDataGenerator creates a generator. The same config always yields the
// same population.
func NewDataGenerator(config SeedConfig) *DataGenerator {
	return &DataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Columns returns the date and numeric column names of every generated
// record, dates first.
func (g *DataGenerator) Columns() (dates, values []string) {
	dates = append(dates, plainDateColumns...)
	dates = append(dates, "ckd35_dat", "bmi_dat", "sev_obesity_dat", "preg_dat", "pregdel_dat",
		"covadm1_dat", "covadm2_dat", "covrx1_dat", "covrx2_dat")
	for _, p := range g.config.Products {
		dates = append(dates, fmt.Sprintf("%sd1rx_dat", p), fmt.Sprintf("%sd2rx_dat", p))
	}
	return dates, []string{"bmi_val"}
}

// Generate returns the whole population.
func (g *DataGenerator) Generate() []domain.RawRecord {
	out := make([]domain.RawRecord, g.config.Records)
	for i := range out {
		out[i] = g.GenerateRecord(i)
	}
	return out
}

// GenerateRecord builds one patient.
func (g *DataGenerator) GenerateRecord(ix int) domain.RawRecord {
	r := domain.RawRecord{
		PatientID: fmt.Sprintf("%d", ix),
		Age:       g.rng.Intn(125),
		Sex:       g.weighted([]string{"F", "M", "I", "U"}, []int{49, 49, 1, 1}),
		Dates:     make(map[string]nullable.Value),
		Values:    make(map[string]nullable.Value),
	}

	if g.rng.Float64() < 0.9 {
		r.IMD = nullable.Number(float64(g.rng.Intn(32845)))
	}
	r.Eth2001 = g.weightedInt([]int{0, 1, 5, 9, 13, 16}, []int{30, 40, 10, 10, 5, 5})

	for _, c := range plainDateColumns {
		r.Dates[c] = g.maybeDate(0.2, runDate.AddDate(-1, 0, 0), runDate)
	}

	// ckd35 is a subset of ckd15; either side of the comparison.
	r.Dates["ckd35_dat"] = nullable.Absent()
	if r.Dates["ckd15_dat"].Present() && g.rng.Float64() < 0.5 {
		r.Dates["ckd35_dat"] = g.date(runDate.AddDate(-1, 0, 0), runDate)
	}

	// The 40 threshold is reached exactly for some patients.
	r.Dates["bmi_dat"] = g.maybeDate(0.5, runDate.AddDate(-1, 0, 0), runDate)
	r.Values["bmi_val"] = nullable.Absent()
	if r.Dates["bmi_dat"].Present() {
		r.Values["bmi_val"] = nullable.Number(float64(10 + g.rng.Intn(41)))
	}
	r.Dates["sev_obesity_dat"] = nullable.Absent()
	if r.Values["bmi_val"].Float() >= 35 {
		r.Dates["sev_obesity_dat"] = g.date(runDate.AddDate(-2, 0, 0), runDate)
	}

	g.pregnancy(&r)
	g.vaccinations(&r)
	return r
}

func (g *DataGenerator) pregnancy(r *domain.RawRecord) {
	r.Dates["preg_dat"] = nullable.Absent()
	r.Dates["pregdel_dat"] = nullable.Absent()
	if r.Sex != "F" || r.Age >= 40 {
		return
	}
	lo := runDate.AddDate(0, 0, -253)
	switch x := g.rng.Float64(); {
	case x < 0.1:
		d := g.date(lo, runDate)
		r.Dates["preg_dat"], r.Dates["pregdel_dat"] = d, d
	case x < 0.2:
		r.Dates["preg_dat"] = g.date(lo, runDate)
	case x < 0.25:
		r.Dates["preg_dat"] = g.date(lo, runDate)
		r.Dates["pregdel_dat"] = g.date(lo, runDate)
	}
}

func (g *DataGenerator) vaccinations(r *domain.RawRecord) {
	for _, p := range g.config.Products {
		r.Dates[fmt.Sprintf("%sd1rx_dat", p)] = nullable.Absent()
		r.Dates[fmt.Sprintf("%sd2rx_dat", p)] = nullable.Absent()
	}

	adm1 := nullable.Absent()
	if g.rng.Float64() < float64(r.Age)/100 {
		adm1 = g.date(startDate, runDate)
	}
	adm2 := nullable.Absent()
	if adm1.Present() && g.rng.Float64() < float64(r.Age)/300 {
		first, _ := adm1.Time()
		adm2 = g.date(first.AddDate(0, 0, 20), runDate.AddDate(0, 0, 30))
	}

	rx1, rx2 := nullable.Absent(), nullable.Absent()
	if adm1.Present() && len(g.config.Products) > 0 && g.rng.Float64() < g.config.ProductRate {
		p := g.config.Products[g.rng.Intn(len(g.config.Products))]
		// Prescription may precede or follow the administration record.
		first, _ := adm1.Time()
		rx1 = g.date(first.AddDate(0, 0, -3), first.AddDate(0, 0, 4))
		r.Dates[fmt.Sprintf("%sd1rx_dat", p)] = rx1
		if adm2.Present() && g.rng.Float64() < g.config.ProductRate {
			rx2 = adm2
			r.Dates[fmt.Sprintf("%sd2rx_dat", p)] = rx2
		}
	}

	// A few vaccinations are known only from the product record.
	if !adm1.Present() && g.rng.Float64() < 0.02 {
		rx1 = g.date(startDate, runDate)
	}

	r.Dates["covadm1_dat"] = adm1
	r.Dates["covadm2_dat"] = adm2
	r.Dates["covrx1_dat"] = rx1
	r.Dates["covrx2_dat"] = rx2
}

func (g *DataGenerator) maybeDate(p float64, lo, hi time.Time) nullable.Value {
	if g.rng.Float64() >= p {
		return nullable.Absent()
	}
	return g.date(lo, hi)
}

// date picks a day in [lo, hi).
func (g *DataGenerator) date(lo, hi time.Time) nullable.Value {
	days := int(hi.Sub(lo).Hours() / 24)
	if days <= 0 {
		return nullable.Date(lo)
	}
	return nullable.Date(lo.AddDate(0, 0, g.rng.Intn(days)))
}

func (g *DataGenerator) weighted(options []string, weights []int) string {
	return options[g.pick(weights)]
}

func (g *DataGenerator) weightedInt(options []int, weights []int) int {
	return options[g.pick(weights)]
}

func (g *DataGenerator) pick(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := g.rng.Intn(total)
	for i, w := range weights {
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}
