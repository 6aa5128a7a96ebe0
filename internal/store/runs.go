package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PipelineRun is one row of the append-only run audit log.
type PipelineRun struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunAt           time.Time `json:"run_at"`
	RunType         string    `json:"run_type"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	RecordsFetched  int       `json:"records_fetched"`
	RecordsParsed   int       `json:"records_parsed"`
	RecordsRejected int       `json:"records_rejected"`
	RecordsNew      int       `json:"records_new"`
	RecordsEnriched int       `json:"records_enriched"`
	Errors          *string   `json:"errors,omitempty"`
	DurationSecs    float64   `json:"duration_secs"`
}

// RecordRun appends a run to the audit log, assigning an ID and timestamp
// when they are unset.
func (s *Store) RecordRun(ctx context.Context, run *PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}
	if err := s.handle().WithContext(ctx).Table(s.table("pipeline_log")).Create(run).Error; err != nil {
		return fmt.Errorf("record pipeline run: %w", err)
	}
	return nil
}

// LastRun returns the most recent audit row, or nil when there is none.
func (s *Store) LastRun(ctx context.Context) (*PipelineRun, error) {
	var run PipelineRun
	err := s.handle().WithContext(ctx).Table(s.table("pipeline_log")).Order("run_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last pipeline run: %w", err)
	}
	return &run, nil
}

// Runs returns the most recent audit rows, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]PipelineRun, error) {
	var runs []PipelineRun
	err := s.handle().WithContext(ctx).Table(s.table("pipeline_log")).Order("run_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	return runs, nil
}
