package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SubmarketUnits is one row of the top-submarkets ranking.
type SubmarketUnits struct {
	SubmarketName string `gorm:"column:submarket_name" json:"submarket_name"`
	Projects      int    `gorm:"column:projects" json:"projects"`
	Units         int    `gorm:"column:units" json:"units"`
}

// Status summarizes the state of a city's tables.
type Status struct {
	City            string           `json:"city"`
	LastRun         *PipelineRun     `json:"last_run,omitempty"`
	RawPermits      int64            `json:"raw_permits"`
	EnrichedPermits int64            `json:"enriched_permits"`
	MatchedPermits  int64            `json:"matched_permits"`
	Projects        int64            `json:"projects"`
	EarliestIssue   *time.Time       `json:"earliest_issue,omitempty"`
	LatestIssue     *time.Time       `json:"latest_issue,omitempty"`
	TopSubmarkets   []SubmarketUnits `json:"top_submarkets"`
	TotalAreaSF     *int64           `json:"total_area_sf,omitempty"`
	AvgAreaSF       *float64         `json:"avg_area_sf,omitempty"`
}

// MatchRate is the share of enriched permits with a submarket, 0..1.
func (s Status) MatchRate() float64 {
	if s.EnrichedPermits == 0 {
		return 0
	}
	return float64(s.MatchedPermits) / float64(s.EnrichedPermits)
}

// Status collects counts, the issue-date range, the top submarkets by
// delivered units and, where the city records building area, area totals.
// topN <= 0 leaves the ranking empty.
func (s *Store) Status(ctx context.Context, topN int) (Status, error) {
	st := Status{City: s.city.Name, TopSubmarkets: []SubmarketUnits{}}
	gdb := s.handle().WithContext(ctx)

	last, err := s.LastRun(ctx)
	if err != nil {
		return st, err
	}
	st.LastRun = last

	if st.RawPermits, err = s.CountRaw(ctx); err != nil {
		return st, fmt.Errorf("count raw: %w", err)
	}
	if err := gdb.Table(s.table("co_permits")).Count(&st.EnrichedPermits).Error; err != nil {
		return st, fmt.Errorf("count enriched: %w", err)
	}
	if err := gdb.Table(s.table("co_permits")).Where("submarket_name IS NOT NULL").Count(&st.MatchedPermits).Error; err != nil {
		return st, fmt.Errorf("count matched: %w", err)
	}
	if err := gdb.Table(s.table("co_projects")).Count(&st.Projects).Error; err != nil {
		return st, fmt.Errorf("count projects: %w", err)
	}

	var lo, hi sql.NullTime
	row := gdb.Raw(s.sql(`SELECT MIN(issue_date), MAX(issue_date) FROM {s}.co_permits`)).Row()
	if err := row.Scan(&lo, &hi); err != nil {
		return st, fmt.Errorf("issue date range: %w", err)
	}
	if lo.Valid {
		st.EarliestIssue = &lo.Time
	}
	if hi.Valid {
		st.LatestIssue = &hi.Time
	}

	if topN > 0 {
		err := gdb.Raw(s.sql(`
			SELECT submarket_name, COUNT(*) AS projects, SUM(total_units) AS units
			FROM {s}.co_projects
			WHERE submarket_name IS NOT NULL
			GROUP BY submarket_name
			ORDER BY units DESC, submarket_name
			LIMIT ?`), topN).Scan(&st.TopSubmarkets).Error
		if err != nil {
			return st, fmt.Errorf("top submarkets: %w", err)
		}
	}

	var (
		areaCount int64
		areaSum   sql.NullInt64
		areaAvg   sql.NullFloat64
	)
	row = gdb.Raw(s.sql(`SELECT COUNT(area_sf), SUM(area_sf), AVG(area_sf)::DOUBLE PRECISION FROM {s}.co_permits_raw`)).Row()
	if err := row.Scan(&areaCount, &areaSum, &areaAvg); err != nil {
		return st, fmt.Errorf("area totals: %w", err)
	}
	if areaCount > 0 {
		st.TotalAreaSF = &areaSum.Int64
		st.AvgAreaSF = &areaAvg.Float64
	}
	return st, nil
}
