package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/nullable"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cohort.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCohort() *domain.Cohort {
	a := domain.NewPatientRecord(domain.RawRecord{
		PatientID: "1",
		Age:       72,
		Sex:       "F",
		IMD:       nullable.Number(1200),
		Eth2001:   3,
		Dates: map[string]nullable.Value{
			"shield_dat":    nullable.DateOf(2021, time.January, 10),
			"nonshield_dat": nullable.Absent(),
		},
		Values: map[string]nullable.Value{"bmi_val": nullable.Number(41.5)},
	})
	a.AgeBand = 9
	a.IMDBand = 1
	a.Ethnicity = 3
	a.HighLevelEthnicity = 1
	a.Vacc1Date = nullable.DateOf(2021, time.January, 4)
	a.Groups = map[string]bool{"shield_group": true, "atrisk_group": false}
	a.Wave = 4

	b := domain.NewPatientRecord(domain.RawRecord{
		PatientID: "2",
		Age:       30,
		Sex:       "M",
		Dates: map[string]nullable.Value{
			"shield_dat":    nullable.Absent(),
			"nonshield_dat": nullable.Absent(),
		},
		Values: map[string]nullable.Value{"bmi_val": nullable.Absent()},
	})
	b.AgeBand = 3
	b.Ethnicity = 20
	b.HighLevelEthnicity = 6
	b.Groups = map[string]bool{"shield_group": false, "atrisk_group": true}

	return &domain.Cohort{
		Groups:   []string{"atrisk_group", "shield_group"},
		Records:  []*domain.PatientRecord{a, b},
		Filtered: 3,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "cohort.db")

	store, err := NewSQLiteStore(dbPath, testLogger())
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")

	version, dirty, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cohort.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath, testLogger())
	require.NoError(t, err)
	run := &domain.Run{Evaluator: "walk"}
	require.NoError(t, store.SaveRun(ctx, run, testCohort()))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(dbPath, testLogger())
	require.NoError(t, err)
	defer store.Close()
	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RecordsOut)

	_, _, err = NewWithDB(nil, testLogger()).SchemaVersion()
	assert.Error(t, err)
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	cohort := testCohort()

	run := &domain.Run{Source: "extract.csv", Evaluator: "bulk", Products: []string{"az", "pf"}, RecordsIn: 5}
	require.NoError(t, store.SaveRun(ctx, run, cohort))
	assert.Len(t, run.ID, 36)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "extract.csv", got.Source)
	assert.Equal(t, "bulk", got.Evaluator)
	assert.Equal(t, []string{"az", "pf"}, got.Products)
	assert.Equal(t, 5, got.RecordsIn)
	assert.Equal(t, 2, got.RecordsOut)
	assert.Equal(t, 3, got.Filtered)
	assert.Equal(t, cohort.Groups, got.Groups)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))

	loaded, err := store.LoadCohort(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, cohort.Equal(loaded))
	assert.False(t, loaded.Records[1].IMD.Present())
	assert.False(t, loaded.Records[1].Vacc1Date.Present())
	assert.True(t, loaded.Records[0].Has("nonshield_dat"))

	counts, err := store.GroupCounts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"atrisk_group": 1, "shield_group": 1}, counts)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2021, time.February, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		run := &domain.Run{Evaluator: "walk", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.SaveRun(ctx, run, testCohort()))
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))

	runs, err = store.ListRuns(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.LoadCohort(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.GroupCounts(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.ExportJSON(ctx, "nope", &bytes.Buffer{}), ErrRunNotFound)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	cohort := testCohort()
	run := &domain.Run{Evaluator: "walk"}
	require.NoError(t, store.SaveRun(ctx, run, cohort))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, run.ID, &buf))

	var export RunExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, run.ID, export.Run.ID)
	assert.Equal(t, 1, export.Counts["shield_group"])
	assert.True(t, cohort.Equal(export.Cohort))
}

func TestSQLiteStore_SaveRun_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO cohort_records").
		ExpectExec().
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	store := NewWithDB(db, testLogger())
	err = store.SaveRun(context.Background(), &domain.Run{ID: "run-1", Evaluator: "walk"}, testCohort())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert patient 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
