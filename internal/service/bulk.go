package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/internal/logging"
	"github.com/primis-cohort/internal/lookup"
	"github.com/primis-cohort/pkg/decision"
	"github.com/primis-cohort/pkg/nullable"
)

// TransformBulk is Transform using the columnar evaluator: the kept records
// become a Frame, every group formula is evaluated once over whole columns,
// and each derived column is computed in its own pass. It returns the same
// cohort as Transform.
func (t *Transformer) TransformBulk(ctx context.Context, records []domain.RawRecord) (*domain.Cohort, error) {
	start := time.Now()
	entry := t.logger.WithField("evaluator", "bulk")

	done := logging.Stage(entry, "check_attributes")
	if err := t.CheckAttributes(records); err != nil {
		return nil, err
	}
	done(nil)

	done = logging.Stage(entry, "filter")
	kept := make([]int, 0, len(records))
	for i := range records {
		if t.keep(&records[i]) {
			kept = append(kept, i)
		}
	}
	done(logrus.Fields{"dropped": len(records) - len(kept)})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := len(kept)
	column := func(name string) []nullable.Value {
		col := make([]nullable.Value, n)
		for j, i := range kept {
			col[j], _ = records[i].Attribute(name)
		}
		return col
	}

	done = logging.Stage(entry, "evaluate")
	frame := decision.NewFrame(n)
	for _, a := range t.rules.Attributes() {
		if err := frame.SetValues(a, column(a)); err != nil {
			return nil, err
		}
	}
	if err := t.rules.EvaluateFrame(frame); err != nil {
		return nil, err
	}
	done(logrus.Fields{"rows": n, "groups": len(t.rules.Names())})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done = logging.Stage(entry, "derive")
	ages := make([]int, n)
	for j, i := range kept {
		ages[j] = records[i].Age
	}

	imdBands := make([]int, n)
	for j, i := range kept {
		imdBands[j] = t.lookups.Deprivation.Assign(records[i].IMD)
	}

	ethnicity := t.ethnicityColumn(records, kept, column)
	highLevel := make([]int, n)
	for j, e := range ethnicity {
		highLevel[j] = t.lookups.Ethnicities.HighLevel(e)
	}

	vacc1 := minColumns(column("covadm1_dat"), column("covrx1_dat"))
	vacc2 := minColumns(column("covadm2_dat"), column("covrx2_dat"))

	ageBands := make([]int, n)
	for j, age := range ages {
		ageBands[j] = t.lookups.Ages.Assign(age)
	}

	careHome := decision.NewMask(n)
	for j, v := range column(careHomeDat) {
		careHome.Set(j, v.Present())
	}
	flags := make(map[string]decision.Mask)
	for _, g := range t.rules.Names() {
		flags[g], _ = frame.FlagMask(g)
	}
	waves := assignWaves(ages, careHome, flags)
	done(nil)

	cohort := &domain.Cohort{Groups: t.rules.Names(), Filtered: len(records) - n}
	for j, i := range kept {
		p := domain.NewPatientRecord(records[i])
		p.IMDBand = imdBands[j]
		p.Ethnicity = ethnicity[j]
		p.HighLevelEthnicity = highLevel[j]
		p.Vacc1Date = vacc1[j]
		p.Vacc2Date = vacc2[j]
		p.AgeBand = ageBands[j]
		for g, m := range flags {
			p.Groups[g] = m.Get(j)
		}
		p.Wave = waves[j]
		cohort.Records = append(cohort.Records, p)
	}

	t.logSummary(entry, len(records), cohort, time.Since(start))
	return cohort, nil
}

func (t *Transformer) ethnicityColumn(records []domain.RawRecord, kept []int, column func(string) []nullable.Value) []int {
	other := column("non_eth2001_dat")
	refused := column("eth_notgiptref_dat")
	notStated := column("eth_notstated_dat")

	out := make([]int, len(kept))
	for j, i := range kept {
		out[j] = t.lookups.Ethnicities.Assign(lookup.EthnicityEvidence{
			Eth2001:         records[i].Eth2001,
			OtherCode:       other[j].Present(),
			NotGivenRefused: refused[j].Present(),
			NotStated:       notStated[j].Present(),
		})
	}
	return out
}

func minColumns(a, b []nullable.Value) []nullable.Value {
	out := make([]nullable.Value, len(a))
	for i := range a {
		out[i] = nullable.Min(a[i], b[i])
	}
	return out
}
