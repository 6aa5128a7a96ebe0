package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
)

const upsertRawSQL = `
INSERT INTO {s}.co_permits_raw (
	permit_num, masterpermitnum, permit_class, permit_type, issue_date,
	submitted_date, address, zip_code, latitude, longitude, work_class,
	total_units, area_sf, project_name, permit_status, council_district, raw_json
) VALUES (
	?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?,
	?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''),
	?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?::jsonb
)
ON CONFLICT (permit_num) DO UPDATE SET
	masterpermitnum  = EXCLUDED.masterpermitnum,
	permit_class     = EXCLUDED.permit_class,
	permit_type      = EXCLUDED.permit_type,
	issue_date       = EXCLUDED.issue_date,
	submitted_date   = EXCLUDED.submitted_date,
	address          = EXCLUDED.address,
	zip_code         = EXCLUDED.zip_code,
	latitude         = EXCLUDED.latitude,
	longitude        = EXCLUDED.longitude,
	work_class       = EXCLUDED.work_class,
	total_units      = EXCLUDED.total_units,
	area_sf          = EXCLUDED.area_sf,
	project_name     = EXCLUDED.project_name,
	permit_status    = EXCLUDED.permit_status,
	council_district = EXCLUDED.council_district,
	raw_json         = EXCLUDED.raw_json,
	ingested_at      = NOW()
RETURNING (xmax = 0) AS inserted`

func upsertArgs(p permit.Permit) []interface{} {
	raw := "{}"
	if len(p.RawJSON) > 0 {
		raw = string(p.RawJSON)
	}
	return []interface{}{
		p.PermitNum, p.MasterPermitNum, p.PermitClass, p.PermitType, dateArg(p.IssueDate),
		dateArg(p.SubmittedDate), p.Address, p.ZipCode, p.Latitude, p.Longitude, p.WorkClass,
		p.TotalUnits, p.AreaSF, p.ProjectName, p.PermitStatus, p.CouncilDistrict, raw,
	}
}

// dateArg hands a nil pointer through as a typed NULL.
func dateArg(t *time.Time) interface{} {
	if t == nil {
		return sql.NullTime{}
	}
	return *t
}

func (s *Store) upsert(tx *gorm.DB, p permit.Permit) (bool, error) {
	var inserted bool
	if err := tx.Raw(s.sql(upsertRawSQL), upsertArgs(p)...).Row().Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert permit %s: %w", p.PermitNum, err)
	}
	return inserted, nil
}

// Upsert inserts or updates one raw permit. inserted is true only the first
// time a permit number is seen.
func (s *Store) Upsert(ctx context.Context, p permit.Permit) (bool, error) {
	return s.upsert(s.handle().WithContext(ctx), p)
}

// UpsertBatch writes permits in a single transaction and returns how many
// were new. A failure rolls back the whole batch.
func (s *Store) UpsertBatch(ctx context.Context, permits []permit.Permit) (int, error) {
	inserted := 0
	err := s.handle().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range permits {
			isNew, err := s.upsert(tx, p)
			if err != nil {
				return err
			}
			if isNew {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Watermark returns the latest persisted issue date, or nil when no permit
// has one yet.
func (s *Store) Watermark(ctx context.Context) (*time.Time, error) {
	var latest sql.NullTime
	row := s.handle().WithContext(ctx).Raw(s.sql(`SELECT MAX(issue_date) FROM {s}.co_permits_raw`)).Row()
	if err := row.Scan(&latest); err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}

// CountRaw returns the number of raw permits.
func (s *Store) CountRaw(ctx context.Context) (int64, error) {
	var n int64
	err := s.handle().WithContext(ctx).Table(s.table("co_permits_raw")).Count(&n).Error
	return n, err
}
