package source

import (
	"context"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/nullable"
)

// CohortRow is one augmented patient in the parquet output. Group outcomes
// are written as the list of selected group names.
type CohortRow struct {
	PatientID          string   `parquet:"patient_id"`
	Age                int32    `parquet:"age"`
	Sex                string   `parquet:"sex"`
	AgeBand            int32    `parquet:"age_band"`
	IMDBand            int32    `parquet:"imd_band"`
	Ethnicity          int32    `parquet:"ethnicity"`
	HighLevelEthnicity int32    `parquet:"high_level_ethnicity"`
	Vacc1Date          *string  `parquet:"vacc1_dat,optional"`
	Vacc2Date          *string  `parquet:"vacc2_dat,optional"`
	Groups             []string `parquet:"groups,list"`
	Wave               int32    `parquet:"wave"`
}

const parquetFlushInterval = 100_000

// ParquetWriter writes an augmented cohort to a Snappy-compressed parquet
// file.
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[CohortRow]
	count  int
}

// NewParquetWriter creates the file at filename.
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[CohortRow](file,
		parquet.Compression(&parquet.Snappy),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// NewCohortRow flattens a patient record.
func NewCohortRow(p *domain.PatientRecord) CohortRow {
	return CohortRow{
		PatientID:          p.PatientID,
		Age:                int32(p.Age),
		Sex:                p.Sex,
		AgeBand:            int32(p.AgeBand),
		IMDBand:            int32(p.IMDBand),
		Ethnicity:          int32(p.Ethnicity),
		HighLevelEthnicity: int32(p.HighLevelEthnicity),
		Vacc1Date:          optionalDate(p.Vacc1Date),
		Vacc2Date:          optionalDate(p.Vacc2Date),
		Groups:             p.SelectedGroups(),
		Wave:               int32(p.Wave),
	}
}

func optionalDate(v nullable.Value) *string {
	if !v.Present() {
		return nil
	}
	s := v.DateString()
	return &s
}

// Write appends one patient.
func (pw *ParquetWriter) Write(p *domain.PatientRecord) error {
	if _, err := pw.writer.Write([]CohortRow{NewCohortRow(p)}); err != nil {
		return fmt.Errorf("failed to write parquet record: %w", err)
	}
	pw.count++

	if pw.count%parquetFlushInterval == 0 {
		if err := pw.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush parquet row group: %w", err)
		}
	}
	return nil
}

// WriteCohort implements domain.CohortWriter.
func (pw *ParquetWriter) WriteCohort(ctx context.Context, cohort *domain.Cohort) error {
	for i, p := range cohort.Records {
		if i%parquetFlushInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := pw.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the file.
func (pw *ParquetWriter) Close() error {
	if err := pw.writer.Close(); err != nil {
		pw.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return pw.file.Close()
}

// Count returns the number of rows written.
func (pw *ParquetWriter) Count() int {
	return pw.count
}

// ReadParquet loads every row of a cohort parquet file.
func ReadParquet(filename string) ([]CohortRow, error) {
	rows, err := parquet.ReadFile[CohortRow](filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}
