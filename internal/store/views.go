package store

import (
	"context"
	"fmt"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/project"
)

const projectColumns = `project_key, permit_num,
	COALESCE(masterpermitnum, '') AS masterpermitnum,
	COALESCE(permit_class, '') AS permit_class,
	issue_date, submitted_date, address,
	COALESCE(zip_code, '') AS zip_code,
	latitude, longitude, area_sf, total_units,
	COALESCE(project_name, '') AS project_name,
	COALESCE(work_class, '') AS work_class,
	COALESCE(council_district, '') AS council_district,
	COALESCE(submarket_id, '') AS submarket_id,
	COALESCE(submarket_name, '') AS submarket_name,
	COALESCE(match_source, '') AS match_source,
	delivery_year, delivery_quarter, delivery_yyyyq`

// Projects reads the deduplicated project view, newest first. limit <= 0
// returns every project.
func (s *Store) Projects(ctx context.Context, limit int) ([]project.Project, error) {
	q := s.handle().WithContext(ctx).
		Table(s.table("co_projects")).
		Select(projectColumns).
		Order("issue_date DESC, permit_num DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []project.Project
	if err := q.Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("read co_projects: %w", err)
	}
	return out, nil
}

// Deliveries reads the submarket delivery view ordered by quarter, then
// units delivered descending.
func (s *Store) Deliveries(ctx context.Context) ([]project.Delivery, error) {
	var out []project.Delivery
	err := s.handle().WithContext(ctx).
		Table(s.table("submarket_deliveries")).
		Order("delivery_yyyyq, total_units_delivered DESC, submarket_name").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("read submarket_deliveries: %w", err)
	}
	return out, nil
}

// EnrichedPermits reads co_permits, used to cross-check the views against
// the in-process fold.
func (s *Store) EnrichedPermits(ctx context.Context) ([]project.EnrichedPermit, error) {
	var out []project.EnrichedPermit
	err := s.handle().WithContext(ctx).
		Table(s.table("co_permits")).
		Select(`permit_num,
			COALESCE(masterpermitnum, '') AS masterpermitnum,
			COALESCE(permit_class, '') AS permit_class,
			issue_date, submitted_date, address,
			COALESCE(zip_code, '') AS zip_code,
			latitude, longitude, total_units, area_sf,
			COALESCE(project_name, '') AS project_name,
			COALESCE(work_class, '') AS work_class,
			COALESCE(council_district, '') AS council_district,
			COALESCE(submarket_id, '') AS submarket_id,
			COALESCE(submarket_name, '') AS submarket_name,
			COALESCE(match_source, '') AS match_source,
			delivery_year, delivery_quarter, delivery_yyyyq`).
		Order("permit_num").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("read co_permits: %w", err)
	}
	return out, nil
}
