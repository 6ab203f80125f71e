package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Deterministic(t *testing.T) {
	config := DefaultSeedConfig()
	config.Records = 500

	a := NewDataGenerator(config).Generate()
	b := NewDataGenerator(config).Generate()
	require.Len(t, a, 500)
	assert.Equal(t, a, b)

	config.Seed = 2
	c := NewDataGenerator(config).Generate()
	assert.NotEqual(t, a, c)
}

func TestGenerate_EveryRecordHasEveryColumn(t *testing.T) {
	config := DefaultSeedConfig()
	config.Records = 200
	gen := NewDataGenerator(config)
	dates, values := gen.Columns()

	for _, r := range gen.Generate() {
		assert.Len(t, r.Dates, len(dates))
		for _, c := range dates {
			assert.True(t, r.Has(c), "record %s lacks %s", r.PatientID, c)
		}
		for _, c := range values {
			assert.True(t, r.Has(c), "record %s lacks %s", r.PatientID, c)
		}
	}
}

func TestGenerate_Shape(t *testing.T) {
	records := NewDataGenerator(DefaultSeedConfig()).Generate()

	var implausible, bmi40, ckd35, pregnantDelivered, unstated int
	for _, r := range records {
		if r.Age >= 120 || (r.Sex != "F" && r.Sex != "M") {
			implausible++
		}
		if v := r.Values["bmi_val"]; v.Present() && v.Float() == 40 {
			bmi40++
		}
		if r.Dates["ckd35_dat"].Present() {
			ckd35++
		}
		if r.Dates["preg_dat"].Present() && r.Dates["pregdel_dat"].Present() {
			pregnantDelivered++
		}
		if r.Dates["covadm1_dat"].Present() && !r.Dates["covrx1_dat"].Present() {
			unstated++
		}
	}

	assert.Greater(t, implausible, 0)
	assert.Greater(t, bmi40, 0)
	assert.Greater(t, ckd35, 0)
	assert.Greater(t, pregnantDelivered, 0)
	assert.Greater(t, unstated, 0)
}
