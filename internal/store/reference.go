package store

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
)

// LoadCrosswalk replaces the ZIP crosswalk table with the given mapping.
func (s *Store) LoadCrosswalk(ctx context.Context, crosswalk map[string]string) (int, error) {
	zips := make([]string, 0, len(crosswalk))
	for z := range crosswalk {
		zips = append(zips, z)
	}
	sort.Strings(zips)
	names := make([]string, len(zips))
	for i, z := range zips {
		names[i] = crosswalk[z]
	}

	err := s.handle().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(s.sql(`DELETE FROM {s}.zip_submarket_crosswalk`)).Error; err != nil {
			return err
		}
		return tx.Exec(s.sql(`
			INSERT INTO {s}.zip_submarket_crosswalk (zip_code, submarket_name)
			SELECT * FROM unnest(?::text[], ?::text[])`),
			pq.Array(zips), pq.Array(names)).Error
	})
	if err != nil {
		return 0, fmt.Errorf("load crosswalk: %w", err)
	}
	log.Printf("[store] loaded %d crosswalk ZIPs into %s", len(zips), s.city.Schema)
	return len(zips), nil
}

const upsertSubmarketSQL = `
INSERT INTO {s}.costar_submarkets (submarket_id, submarket_name, geom)
VALUES (?, ?, ST_Multi(ST_SetSRID(ST_GeomFromGeoJSON(?), 4326)))
ON CONFLICT (submarket_id) DO UPDATE SET
	submarket_name = EXCLUDED.submarket_name,
	geom           = EXCLUDED.geom,
	loaded_at      = NOW()`

// LoadBoundaries upserts submarket polygons by submarket_id in one
// transaction. Submarkets without geometry are stored with a NULL geom so
// they still appear in the reference table.
func (s *Store) LoadBoundaries(ctx context.Context, submarkets []geo.Submarket) (int, error) {
	err := s.handle().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sm := range submarkets {
			if len(sm.Geometry) == 0 {
				err := tx.Exec(s.sql(`
					INSERT INTO {s}.costar_submarkets (submarket_id, submarket_name)
					VALUES (?, ?)
					ON CONFLICT (submarket_id) DO UPDATE SET
						submarket_name = EXCLUDED.submarket_name,
						geom = NULL,
						loaded_at = NOW()`), sm.ID, sm.Name).Error
				if err != nil {
					return fmt.Errorf("submarket %s: %w", sm.ID, err)
				}
				continue
			}
			gj, err := sm.GeoJSON()
			if err != nil {
				return fmt.Errorf("submarket %s: %w", sm.ID, err)
			}
			if err := tx.Exec(s.sql(upsertSubmarketSQL), sm.ID, sm.Name, gj).Error; err != nil {
				return fmt.Errorf("submarket %s: %w", sm.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify("load boundaries", err)
	}
	log.Printf("[store] upserted %d submarket boundaries into %s", len(submarkets), s.city.Schema)
	return len(submarkets), nil
}
