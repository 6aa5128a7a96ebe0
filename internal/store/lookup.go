package store

import (
	"context"
	"fmt"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/project"
)

// FindSubmarketsByPoint performs a PostGIS point-in-polygon query and
// returns every submarket containing the coordinate, lowest ID first. The
// first entry is the one enrichment would pick.
func (s *Store) FindSubmarketsByPoint(ctx context.Context, lat, lng float64) ([]geo.Match, error) {
	query := s.sql(`
		SELECT submarket_id, submarket_name
		FROM {s}.costar_submarkets
		WHERE geom IS NOT NULL
		  AND ST_Contains(geom, ST_SetSRID(ST_MakePoint(?, ?), 4326))
		ORDER BY submarket_id
	`)

	rows, err := s.handle().WithContext(ctx).Raw(query, lng, lat).Rows()
	if err != nil {
		return nil, fmt.Errorf("submarket lookup query failed: %w", err)
	}
	defer rows.Close()

	var matches []geo.Match
	for rows.Next() {
		m := geo.Match{Source: geo.MatchPolygon}
		if err := rows.Scan(&m.SubmarketID, &m.SubmarketName); err != nil {
			return nil, fmt.Errorf("scan submarket match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CrosswalkSubmarket looks a ZIP up in the stored crosswalk.
func (s *Store) CrosswalkSubmarket(ctx context.Context, zip string) (string, bool, error) {
	var names []string
	err := s.handle().WithContext(ctx).
		Table(s.table("zip_submarket_crosswalk")).
		Where("zip_code = ?", zip).
		Pluck("submarket_name", &names).Error
	if err != nil {
		return "", false, fmt.Errorf("crosswalk lookup: %w", err)
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return names[0], true, nil
}

// PermitsByZip lists enriched permits in a ZIP, newest first.
func (s *Store) PermitsByZip(ctx context.Context, zip string) ([]project.EnrichedPermit, error) {
	var out []project.EnrichedPermit
	err := s.handle().WithContext(ctx).
		Table(s.table("co_permits")).
		Select(`permit_num,
			COALESCE(masterpermitnum, '') AS masterpermitnum,
			issue_date, address,
			COALESCE(zip_code, '') AS zip_code,
			latitude, longitude, total_units,
			COALESCE(project_name, '') AS project_name,
			COALESCE(work_class, '') AS work_class,
			COALESCE(submarket_id, '') AS submarket_id,
			COALESCE(submarket_name, '') AS submarket_name,
			COALESCE(match_source, '') AS match_source,
			delivery_year, delivery_quarter, delivery_yyyyq`).
		Where("zip_code = ?", zip).
		Order("issue_date DESC, permit_num DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("permits by zip: %w", err)
	}
	return out, nil
}
