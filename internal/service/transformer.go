package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/internal/logging"
	"github.com/primis-cohort/internal/lookup"
	"github.com/primis-cohort/pkg/decision"
	"github.com/primis-cohort/pkg/nullable"
)

// Columns read by the demographic stages, beyond those the group tables use.
var derivationAttributes = []string{
	"non_eth2001_dat", "eth_notgiptref_dat", "eth_notstated_dat",
	"covadm1_dat", "covrx1_dat", "covadm2_dat", "covrx2_dat",
	careHomeDat,
}

// Lookups bundles the banding tables.
type Lookups struct {
	Ages        *lookup.AgeBands
	Deprivation *lookup.DeprivationBands
	Ethnicities *lookup.Ethnicities
}

// DefaultLookups builds the PRIMIS bandings for an IMD maximum.
func DefaultLookups(imdMax float64) (Lookups, error) {
	deprivation, err := lookup.NewDeprivationBands(imdMax)
	if err != nil {
		return Lookups{}, domain.NewConfigurationError(domain.ErrInvalidConfig, "", err.Error())
	}
	return Lookups{
		Ages:        lookup.DefaultAgeBands(),
		Deprivation: deprivation,
		Ethnicities: lookup.DefaultEthnicities(),
	}, nil
}

// Transformer turns extracted patient rows into an augmented cohort. It holds
// no per-run state and is safe for concurrent use.
type Transformer struct {
	config  domain.PipelineConfig
	lookups Lookups
	rules   *decision.RuleSet
	logger  *logrus.Logger
}

// NewTransformer creates a transformer. The rule set must define the groups
// the wave assignment reads.
func NewTransformer(config domain.PipelineConfig, lookups Lookups, rules *decision.RuleSet, logger *logrus.Logger) (*Transformer, error) {
	for _, g := range []string{shieldGroup, atRiskGroup} {
		if _, ok := rules.Table(g); !ok {
			return nil, domain.NewConfigurationError(domain.ErrUnknownGroup, g, "wave assignment needs this group")
		}
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Transformer{
		config:  config,
		lookups: lookups,
		rules:   rules,
		logger:  logger,
	}, nil
}

// Groups returns the group columns in evaluation order.
func (t *Transformer) Groups() []string {
	return t.rules.Names()
}

// RequiredAttributes lists every column a raw record must carry.
func (t *Transformer) RequiredAttributes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range append(t.rules.Attributes(), derivationAttributes...) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// CheckAttributes fails with MISSING_ATTRIBUTE if any record lacks a column
// the pipeline reads.
func (t *Transformer) CheckAttributes(records []domain.RawRecord) error {
	for i := range records {
		if err := t.checkRecord(&records[i]); err != nil {
			return fmt.Errorf("record %d (patient %s): %w", i, records[i].PatientID, err)
		}
	}
	return nil
}

func (t *Transformer) checkRecord(r *domain.RawRecord) error {
	if err := t.rules.CheckAttributes(r.Has); err != nil {
		return err
	}
	for _, a := range derivationAttributes {
		if !r.Has(a) {
			return domain.NewConfigurationError(domain.ErrMissingAttribute, "", "input has no attribute "+a)
		}
	}
	return nil
}

// keep is the plausibility filter: sex F or M and age below the maximum.
// Each dropped record is logged at Debug.
func (t *Transformer) keep(r *domain.RawRecord) bool {
	if (r.Sex == "F" || r.Sex == "M") && r.Age < t.config.MaxAge {
		return true
	}
	t.logger.WithFields(logrus.Fields{
		"patient_id": r.PatientID,
		"sex":        r.Sex,
		"age":        r.Age,
	}).Debug("Dropped implausible record")
	return false
}

// TransformRecord transforms one record with the row-walk evaluator. ok is
// false when the record is filtered out.
func (t *Transformer) TransformRecord(raw domain.RawRecord) (rec *domain.PatientRecord, ok bool, err error) {
	if err := t.checkRecord(&raw); err != nil {
		return nil, false, err
	}
	if !t.keep(&raw) {
		return nil, false, nil
	}
	rec, err = t.transform(raw)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (t *Transformer) transform(raw domain.RawRecord) (*domain.PatientRecord, error) {
	p := domain.NewPatientRecord(raw)

	p.IMDBand = t.lookups.Deprivation.Assign(raw.IMD)
	p.Ethnicity = t.lookups.Ethnicities.Assign(lookup.EthnicityEvidence{
		Eth2001:         raw.Eth2001,
		OtherCode:       raw.Dates["non_eth2001_dat"].Present(),
		NotGivenRefused: raw.Dates["eth_notgiptref_dat"].Present(),
		NotStated:       raw.Dates["eth_notstated_dat"].Present(),
	})
	p.HighLevelEthnicity = t.lookups.Ethnicities.HighLevel(p.Ethnicity)
	p.Vacc1Date = nullable.Min(raw.Dates["covadm1_dat"], raw.Dates["covrx1_dat"])
	p.Vacc2Date = nullable.Min(raw.Dates["covadm2_dat"], raw.Dates["covrx2_dat"])
	p.AgeBand = t.lookups.Ages.Assign(raw.Age)

	if err := t.rules.EvaluateRecord(p); err != nil {
		return nil, err
	}

	p.Wave = assignWave(waveInput{
		age:      raw.Age,
		careHome: raw.Dates[careHomeDat].Present(),
		flags:    func(g string) bool { return p.Groups[g] },
	})
	return p, nil
}

// Transform runs the per-record path over a population, splitting it into
// contiguous row ranges across the configured number of workers. Output
// keeps input order. Nothing is returned if any record fails.
func (t *Transformer) Transform(ctx context.Context, records []domain.RawRecord) (*domain.Cohort, error) {
	start := time.Now()
	entry := t.logger.WithField("evaluator", "walk")

	done := logging.Stage(entry, "check_attributes")
	if err := t.CheckAttributes(records); err != nil {
		return nil, err
	}
	done(nil)

	done = logging.Stage(entry, "evaluate")
	results := make([]*domain.PatientRecord, len(records))
	workers := t.config.Workers
	if workers > len(records) {
		workers = len(records)
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := 0
	if workers > 0 {
		chunk = (len(records) + workers - 1) / workers
	}
	for lo := 0; lo < len(records); lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > len(records) {
			hi = len(records)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if !t.keep(&records[i]) {
					continue
				}
				rec, err := t.transform(records[i])
				if err != nil {
					return fmt.Errorf("record %d (patient %s): %w", i, records[i].PatientID, err)
				}
				results[i] = rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cohort := &domain.Cohort{Groups: t.rules.Names()}
	for _, r := range results {
		if r != nil {
			cohort.Records = append(cohort.Records, r)
		}
	}
	cohort.Filtered = len(records) - len(cohort.Records)
	done(logrus.Fields{"workers": workers, "dropped": cohort.Filtered})

	t.logSummary(entry, len(records), cohort, time.Since(start))
	return cohort, nil
}

func (t *Transformer) logSummary(entry *logrus.Entry, in int, cohort *domain.Cohort, elapsed time.Duration) {
	fields := logrus.Fields{
		"records_in":  in,
		"filtered":    cohort.Filtered,
		"records_out": cohort.Len(),
		"duration_ms": elapsed.Milliseconds(),
	}
	entry.WithFields(fields).Info("Transform completed")
	entry.WithFields(logrus.Fields{"selected": cohort.GroupCounts()}).Debug("Group counts")
}
