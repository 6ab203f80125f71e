// Package source reads extraction output into raw records and writes
// populations and augmented cohorts back out.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/primis-cohort/internal/domain"
	"github.com/primis-cohort/pkg/nullable"
)

// Fixed demographic columns. Every other column ending in _dat is a date and
// anything else is numeric.
const (
	ColPatientID = "patient_id"
	ColAge       = "age"
	ColSex       = "sex"
	ColIMD       = "imd"
	ColEth2001   = "eth2001"
)

var requiredColumns = []string{ColPatientID, ColAge, ColSex}

// CSVSource reads a population from CSV with a header row. Blank cells are
// absent values.
type CSVSource struct {
	path     string
	reader   io.Reader
	optional []string
	logger   *logrus.Logger
}

// NewCSVFile creates a source reading the file at path.
func NewCSVFile(path string, logger *logrus.Logger) *CSVSource {
	return &CSVSource{path: path, logger: logger}
}

// NewCSVSource creates a source over an open reader.
func NewCSVSource(r io.Reader, logger *logrus.Logger) *CSVSource {
	return &CSVSource{reader: r, logger: logger}
}

// WithOptionalColumns names columns that may be missing from the header.
// A missing optional column is read as absent on every record, so
// extractions that predate a vaccine product still carry its dose columns.
func (s *CSVSource) WithOptionalColumns(names ...string) *CSVSource {
	s.optional = append(s.optional, names...)
	return s
}

// Read implements domain.RecordSource.
func (s *CSVSource) Read(ctx context.Context) ([]domain.RawRecord, error) {
	r := s.reader
	if r == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
		}
		defer f.Close()
		r = f
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := newColumnSet(header)
	if err != nil {
		return nil, err
	}
	if filled := cols.addAbsent(s.optional); len(filled) > 0 {
		s.logger.WithFields(logrus.Fields{
			"source":  s.path,
			"columns": filled,
		}).Debug("Filled missing optional columns as absent")
	}

	var records []domain.RawRecord
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := cols.parse(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	s.logger.WithFields(logrus.Fields{
		"source":  s.path,
		"records": len(records),
		"dates":   len(cols.dates),
		"values":  len(cols.values),
	}).Info("Read extraction output")
	return records, nil
}

type columnSet struct {
	index   map[string]int
	dates   []string
	values  []string
	imd     int
	eth2001 int
	// absent columns are not in the header and read as absent.
	absentDates  []string
	absentValues []string
}

func newColumnSet(header []string) (*columnSet, error) {
	c := &columnSet{index: make(map[string]int, len(header)), imd: -1, eth2001: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := c.index[name]; dup {
			return nil, domain.NewValidationError("header", "duplicate column", name)
		}
		c.index[name] = i
		switch {
		case name == ColIMD:
			c.imd = i
		case name == ColEth2001:
			c.eth2001 = i
		case name == ColPatientID || name == ColAge || name == ColSex:
		case strings.HasSuffix(name, "_dat"):
			c.dates = append(c.dates, name)
		default:
			c.values = append(c.values, name)
		}
	}
	for _, r := range requiredColumns {
		if _, ok := c.index[r]; !ok {
			return nil, domain.NewValidationError("header", "missing required column", r)
		}
	}
	return c, nil
}

// addAbsent registers the names missing from the header and returns them.
func (c *columnSet) addAbsent(names []string) []string {
	var filled []string
	for _, n := range names {
		name := strings.ToLower(strings.TrimSpace(n))
		if _, ok := c.index[name]; ok || name == "" {
			continue
		}
		c.index[name] = -1
		if strings.HasSuffix(name, "_dat") {
			c.absentDates = append(c.absentDates, name)
		} else {
			c.absentValues = append(c.absentValues, name)
		}
		filled = append(filled, name)
	}
	return filled
}

func (c *columnSet) parse(row []string) (domain.RawRecord, error) {
	rec := domain.RawRecord{
		PatientID: strings.TrimSpace(row[c.index[ColPatientID]]),
		Sex:       strings.ToUpper(strings.TrimSpace(row[c.index[ColSex]])),
		Dates:     make(map[string]nullable.Value, len(c.dates)+len(c.absentDates)),
		Values:    make(map[string]nullable.Value, len(c.values)+len(c.absentValues)),
	}
	for _, name := range c.absentDates {
		rec.Dates[name] = nullable.Absent()
	}
	for _, name := range c.absentValues {
		rec.Values[name] = nullable.Absent()
	}

	ageText := strings.TrimSpace(row[c.index[ColAge]])
	age, err := strconv.Atoi(ageText)
	if err != nil {
		return rec, domain.NewValidationError(ColAge, "not an integer", ageText)
	}
	rec.Age = age

	if c.imd >= 0 {
		if rec.IMD, err = nullable.ParseNumber(row[c.imd]); err != nil {
			return rec, domain.NewValidationError(ColIMD, err.Error(), row[c.imd])
		}
	}
	if c.eth2001 >= 0 {
		if text := strings.TrimSpace(row[c.eth2001]); text != "" {
			eth, err := strconv.Atoi(text)
			if err != nil || eth < 0 || eth > 16 {
				return rec, domain.NewValidationError(ColEth2001, "must be a census category 1-16", text)
			}
			rec.Eth2001 = eth
		}
	}

	for _, name := range c.dates {
		v, err := nullable.ParseDate(row[c.index[name]])
		if err != nil {
			return rec, domain.NewValidationError(name, err.Error(), row[c.index[name]])
		}
		rec.Dates[name] = v
	}
	for _, name := range c.values {
		v, err := nullable.ParseNumber(row[c.index[name]])
		if err != nil {
			return rec, domain.NewValidationError(name, err.Error(), row[c.index[name]])
		}
		rec.Values[name] = v
	}
	return rec, nil
}

// WriteCSV writes raw records with the fixed columns followed by the given
// date and numeric columns. Absent values are written as blank cells.
func WriteCSV(w io.Writer, dates, values []string, records []domain.RawRecord) error {
	cw := csv.NewWriter(w)
	header := append([]string{ColPatientID, ColAge, ColSex, ColIMD, ColEth2001}, dates...)
	header = append(header, values...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for _, r := range records {
		row = row[:0]
		row = append(row, r.PatientID, strconv.Itoa(r.Age), r.Sex, formatNumber(r.IMD), "")
		if r.Eth2001 > 0 {
			row[4] = strconv.Itoa(r.Eth2001)
		}
		for _, d := range dates {
			row = append(row, r.Dates[d].DateString())
		}
		for _, v := range values {
			row = append(row, formatNumber(r.Values[v]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write patient %s: %w", r.PatientID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(v nullable.Value) string {
	if !v.Present() {
		return ""
	}
	return strconv.FormatFloat(v.Float(), 'f', -1, 64)
}
