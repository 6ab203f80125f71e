package domain

import (
	"context"
	"io"
	"time"
)

// RecordSource supplies the extracted population
type RecordSource interface {
	Read(ctx context.Context) ([]RawRecord, error)
}

// CohortTransformer augments a population with bands, group flags and waves
type CohortTransformer interface {
	Transform(ctx context.Context, records []RawRecord) (*Cohort, error)
	TransformBulk(ctx context.Context, records []RawRecord) (*Cohort, error)
	TransformRecord(raw RawRecord) (*PatientRecord, bool, error)
}

// CohortWriter writes an augmented cohort to an output format
type CohortWriter interface {
	WriteCohort(ctx context.Context, cohort *Cohort) error
	Close() error
}

// Run describes one stored transform run.
type Run struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	Evaluator  string    `json:"evaluator"` // "walk" or "bulk"
	Products   []string  `json:"products"`
	RecordsIn  int       `json:"records_in"`
	RecordsOut int       `json:"records_out"`
	Filtered   int       `json:"filtered"`
	Groups     []string  `json:"groups"`
}

// RunRepository defines the interface for cohort persistence
type RunRepository interface {
	SaveRun(ctx context.Context, run *Run, cohort *Cohort) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	LoadCohort(ctx context.Context, id string) (*Cohort, error)
	GroupCounts(ctx context.Context, id string) (map[string]int, error)
	ExportJSON(ctx context.Context, id string, w io.Writer) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetPipelineConfig() *PipelineConfig
	GetStoreConfig() *StoreConfig
	Validate() error
}
