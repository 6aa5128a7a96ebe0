package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// enrichSQL rebuilds co_permits from the raw table in one statement.
// Submarket resolution: the containing polygon with the lowest submarket_id,
// else the ZIP crosswalk on the stored ZIP or the trailing ZIP of the
// address, else NULL.
const enrichSQL = `
INSERT INTO {s}.co_permits (
	permit_num, masterpermitnum, permit_class, issue_date, submitted_date,
	address, zip_code, latitude, longitude, geom, total_units, area_sf,
	project_name, work_class, council_district,
	submarket_id, submarket_name, match_source
)
SELECT
	r.permit_num,
	r.masterpermitnum,
	r.permit_class,
	COALESCE(r.issue_date, r.submitted_date),
	r.submitted_date,
	r.address,
	r.zip_code,
	r.latitude,
	r.longitude,
	CASE WHEN r.latitude IS NOT NULL AND r.longitude IS NOT NULL
	     THEN ST_SetSRID(ST_MakePoint(r.longitude, r.latitude), 4326) END,
	r.total_units,
	r.area_sf,
	r.project_name,
	r.work_class,
	r.council_district,
	s.submarket_id,
	COALESCE(s.submarket_name, z.submarket_name),
	CASE WHEN s.submarket_id IS NOT NULL THEN 'polygon'
	     WHEN z.submarket_name IS NOT NULL THEN 'zip' END
FROM {s}.co_permits_raw r
LEFT JOIN LATERAL (
	SELECT cs.submarket_id, cs.submarket_name
	FROM {s}.costar_submarkets cs
	WHERE cs.geom IS NOT NULL
	  AND r.latitude IS NOT NULL
	  AND r.longitude IS NOT NULL
	  AND ST_Contains(cs.geom, ST_SetSRID(ST_MakePoint(r.longitude, r.latitude), 4326))
	ORDER BY cs.submarket_id
	LIMIT 1
) s ON TRUE
LEFT JOIN {s}.zip_submarket_crosswalk z
	ON z.zip_code = COALESCE(
		r.zip_code,
		SUBSTRING(r.address FROM '([0-9]{5})(?:-[0-9]{4})?\s*$')
	)
WHERE COALESCE(r.issue_date, r.submitted_date) IS NOT NULL
ON CONFLICT (permit_num) DO UPDATE SET
	masterpermitnum  = EXCLUDED.masterpermitnum,
	permit_class     = EXCLUDED.permit_class,
	issue_date       = EXCLUDED.issue_date,
	submitted_date   = EXCLUDED.submitted_date,
	address          = EXCLUDED.address,
	zip_code         = EXCLUDED.zip_code,
	latitude         = EXCLUDED.latitude,
	longitude        = EXCLUDED.longitude,
	geom             = EXCLUDED.geom,
	total_units      = EXCLUDED.total_units,
	area_sf          = EXCLUDED.area_sf,
	project_name     = EXCLUDED.project_name,
	work_class       = EXCLUDED.work_class,
	council_district = EXCLUDED.council_district,
	submarket_id     = EXCLUDED.submarket_id,
	submarket_name   = EXCLUDED.submarket_name,
	match_source     = EXCLUDED.match_source,
	enriched_at      = NOW()`

// Enrich rebuilds the enriched table from every raw permit in one
// transaction and returns the number of rows written. It may be run any
// number of times.
func (s *Store) Enrich(ctx context.Context) (int64, error) {
	start := time.Now()
	var n int64
	err := s.handle().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(s.sql(enrichSQL))
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enrich: %w", err)
	}
	log.Printf("[store] enriched %d permits in %dms", n, time.Since(start).Milliseconds())
	return n, nil
}
