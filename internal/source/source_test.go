package source

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/internal/synth"
	"github.com/primis-cohort/pkg/nullable"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestCSVSource_Read(t *testing.T) {
	input := strings.Join([]string{
		"patient_id,age,sex,imd,eth2001,immrx_dat,shield_dat,bmi_val",
		"1,82,f,1200,3,2020-11-02,,41.5",
		"2,30,M,,,,2021-01-10,",
	}, "\n")

	records, err := NewCSVSource(strings.NewReader(input), testLogger()).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "1", first.PatientID)
	assert.Equal(t, 82, first.Age)
	assert.Equal(t, "F", first.Sex)
	assert.Equal(t, nullable.Number(1200), first.IMD)
	assert.Equal(t, 3, first.Eth2001)
	assert.Equal(t, nullable.DateOf(2020, time.November, 2), first.Dates["immrx_dat"])
	assert.False(t, first.Dates["shield_dat"].Present())
	assert.True(t, first.Has("shield_dat"))
	assert.Equal(t, nullable.Number(41.5), first.Values["bmi_val"])

	second := records[1]
	assert.False(t, second.IMD.Present())
	assert.Equal(t, 0, second.Eth2001)
	assert.False(t, second.Values["bmi_val"].Present())
	assert.True(t, second.Has("bmi_val"))
}

func TestCSVSource_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"missing sex column", "patient_id,age\n1,2", "header"},
		{"duplicate column", "patient_id,age,sex,age\n1,2,F,2", "header"},
		{"bad age", "patient_id,age,sex\n1,old,F", "age"},
		{"bad date", "patient_id,age,sex,immrx_dat\n1,40,F,02/11/2020", "immrx_dat"},
		{"bad number", "patient_id,age,sex,bmi_val\n1,40,F,heavy", "bmi_val"},
		{"bad ethnicity", "patient_id,age,sex,eth2001\n1,40,F,17", "eth2001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVSource(strings.NewReader(tt.input), testLogger()).Read(context.Background())
			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr), "%v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	_, err := NewCSVSource(strings.NewReader("patient_id,age,sex\n1,40"), testLogger()).Read(context.Background())
	assert.ErrorContains(t, err, "line 2")

	_, err = NewCSVFile(filepath.Join(t.TempDir(), "missing.csv"), testLogger()).Read(context.Background())
	assert.Error(t, err)
}

func TestCSVSource_OptionalColumns(t *testing.T) {
	input := strings.Join([]string{
		"patient_id,age,sex,azd1rx_dat",
		"1,70,F,2021-01-04",
	}, "\n")

	records, err := NewCSVSource(strings.NewReader(input), testLogger()).
		WithOptionalColumns("azd1rx_dat", "MOD1RX_DAT", "extra_val").
		Read(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, nullable.DateOf(2021, time.January, 4), r.Dates["azd1rx_dat"])
	assert.True(t, r.Has("mod1rx_dat"))
	assert.False(t, r.Dates["mod1rx_dat"].Present())
	assert.True(t, r.Has("extra_val"))
	assert.False(t, r.Values["extra_val"].Present())
	assert.Len(t, r.Dates, 2)

	_, err = NewCSVSource(strings.NewReader("patient_id,age\n1,2"), testLogger()).
		WithOptionalColumns("sex").
		Read(context.Background())
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr), "%v", err)
	assert.Equal(t, "header", vErr.Field)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	config := synth.DefaultSeedConfig()
	config.Records = 300
	gen := synth.NewDataGenerator(config)
	records := gen.Generate()
	dates, values := gen.Columns()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, dates, values, records))

	read, err := NewCSVSource(&buf, testLogger()).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, read)
}

func TestParquetWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cohort.parquet")
	writer, err := NewParquetWriter(path)
	require.NoError(t, err)

	shielded := domain.NewPatientRecord(domain.RawRecord{PatientID: "1", Age: 72, Sex: "F"})
	shielded.AgeBand = 9
	shielded.IMDBand = 2
	shielded.Ethnicity = 20
	shielded.HighLevelEthnicity = 6
	shielded.Vacc1Date = nullable.DateOf(2021, time.January, 4)
	shielded.Groups = map[string]bool{"shield_group": true, "atrisk_group": true, "ckd_group": false}
	shielded.Wave = 4

	plain := domain.NewPatientRecord(domain.RawRecord{PatientID: "2", Age: 30, Sex: "M"})
	plain.Groups = map[string]bool{"shield_group": false}

	cohort := &domain.Cohort{Groups: []string{"ckd_group", "atrisk_group", "shield_group"},
		Records: []*domain.PatientRecord{shielded, plain}}
	require.NoError(t, writer.WriteCohort(context.Background(), cohort))
	assert.Equal(t, 2, writer.Count())
	require.NoError(t, writer.Close())

	rows, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0].PatientID)
	assert.Equal(t, int32(72), rows[0].Age)
	assert.Equal(t, int32(9), rows[0].AgeBand)
	assert.Equal(t, int32(6), rows[0].HighLevelEthnicity)
	require.NotNil(t, rows[0].Vacc1Date)
	assert.Equal(t, "2021-01-04", *rows[0].Vacc1Date)
	assert.Nil(t, rows[0].Vacc2Date)
	assert.Equal(t, []string{"atrisk_group", "shield_group"}, rows[0].Groups)
	assert.Equal(t, int32(4), rows[0].Wave)

	assert.Empty(t, rows[1].Groups)
	assert.Equal(t, int32(0), rows[1].Wave)
}
