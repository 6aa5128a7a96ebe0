package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/db"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
)

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS {s}.costar_submarkets (
		id             SERIAL PRIMARY KEY,
		submarket_id   VARCHAR(64) UNIQUE NOT NULL,
		submarket_name VARCHAR(128) NOT NULL,
		geom           GEOMETRY(MULTIPOLYGON, 4326),
		loaded_at      TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submarkets_geom ON {s}.costar_submarkets USING GIST(geom)`,

	`CREATE TABLE IF NOT EXISTS {s}.zip_submarket_crosswalk (
		zip_code       VARCHAR(5) PRIMARY KEY,
		submarket_name VARCHAR(128) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS {s}.co_permits_raw (
		id               SERIAL PRIMARY KEY,
		permit_num       VARCHAR(64) UNIQUE NOT NULL,
		masterpermitnum  VARCHAR(64),
		permit_class     VARCHAR(128),
		permit_type      VARCHAR(128),
		issue_date       DATE,
		submitted_date   DATE,
		address          TEXT NOT NULL DEFAULT '',
		zip_code         VARCHAR(10),
		latitude         DOUBLE PRECISION,
		longitude        DOUBLE PRECISION,
		work_class       VARCHAR(64),
		total_units      INTEGER NOT NULL DEFAULT 0,
		area_sf          INTEGER,
		project_name     TEXT,
		permit_status    VARCHAR(64),
		council_district VARCHAR(8),
		raw_json         JSONB,
		ingested_at      TIMESTAMPTZ DEFAULT NOW(),
		CONSTRAINT co_permits_raw_dated CHECK (issue_date IS NOT NULL OR submitted_date IS NOT NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_masterpermit ON {s}.co_permits_raw(masterpermitnum)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_issue_date ON {s}.co_permits_raw(issue_date)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_total_units ON {s}.co_permits_raw(total_units)`,

	`CREATE TABLE IF NOT EXISTS {s}.co_permits (
		id               SERIAL PRIMARY KEY,
		permit_num       VARCHAR(64) UNIQUE NOT NULL REFERENCES {s}.co_permits_raw(permit_num),
		masterpermitnum  VARCHAR(64),
		permit_class     VARCHAR(128),
		issue_date       DATE NOT NULL,
		submitted_date   DATE,
		address          TEXT NOT NULL DEFAULT '',
		zip_code         VARCHAR(10),
		latitude         DOUBLE PRECISION,
		longitude        DOUBLE PRECISION,
		geom             GEOMETRY(POINT, 4326),
		total_units      INTEGER NOT NULL DEFAULT 0,
		area_sf          INTEGER,
		project_name     TEXT,
		work_class       VARCHAR(64),
		council_district VARCHAR(8),
		submarket_id     VARCHAR(64),
		submarket_name   VARCHAR(128),
		match_source     VARCHAR(8),
		delivery_year    INTEGER GENERATED ALWAYS AS (EXTRACT(YEAR FROM issue_date)::INTEGER) STORED,
		delivery_quarter INTEGER GENERATED ALWAYS AS (EXTRACT(QUARTER FROM issue_date)::INTEGER) STORED,
		delivery_yyyyq   VARCHAR(7) GENERATED ALWAYS AS (
			EXTRACT(YEAR FROM issue_date)::TEXT || '-Q' || EXTRACT(QUARTER FROM issue_date)::TEXT
		) STORED,
		enriched_at      TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_permits_geom ON {s}.co_permits USING GIST(geom)`,
	`CREATE INDEX IF NOT EXISTS idx_permits_date ON {s}.co_permits(issue_date)`,
	`CREATE INDEX IF NOT EXISTS idx_permits_submarket ON {s}.co_permits(submarket_name)`,
	`CREATE INDEX IF NOT EXISTS idx_permits_yyyyq ON {s}.co_permits(delivery_yyyyq)`,

	`CREATE TABLE IF NOT EXISTS {s}.pipeline_log (
		id               UUID PRIMARY KEY,
		run_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		run_type         VARCHAR(32) NOT NULL,
		city             VARCHAR(32) NOT NULL,
		state            VARCHAR(16) NOT NULL,
		records_fetched  INTEGER NOT NULL DEFAULT 0,
		records_parsed   INTEGER NOT NULL DEFAULT 0,
		records_rejected INTEGER NOT NULL DEFAULT 0,
		records_new      INTEGER NOT NULL DEFAULT 0,
		records_enriched INTEGER NOT NULL DEFAULT 0,
		errors           TEXT,
		duration_secs    DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_log_run_at ON {s}.pipeline_log(run_at DESC)`,
}

// ProjectKeyExpr is the SQL grouping expression for a dedup rule.
func ProjectKeyExpr(rule market.DedupRule) string {
	if rule.Key == market.DedupAddressUnits {
		return `address || '|' || total_units::TEXT`
	}
	return `COALESCE(masterpermitnum, permit_num)`
}

// viewDDL recreates the views so a changed dedup rule takes effect on the
// next setup.
func viewDDL(rule market.DedupRule) []string {
	filter := fmt.Sprintf("total_units BETWEEN %d AND %d", rule.MinUnits, rule.MaxUnits)
	if rule.WorkClass != "" {
		filter += fmt.Sprintf(" AND work_class = '%s'", strings.ReplaceAll(rule.WorkClass, "'", "''"))
	}

	return []string{
		`DROP VIEW IF EXISTS {s}.submarket_deliveries`,
		`DROP VIEW IF EXISTS {s}.co_projects`,
		fmt.Sprintf(`CREATE VIEW {s}.co_projects AS
		SELECT DISTINCT ON (project_key)
			project_key, id, permit_num, masterpermitnum, permit_class, issue_date,
			submitted_date, address, zip_code, latitude, longitude, area_sf,
			total_units, project_name, work_class, council_district,
			submarket_id, submarket_name, match_source,
			delivery_year, delivery_quarter, delivery_yyyyq
		FROM (
			SELECT %s AS project_key, p.*
			FROM {s}.co_permits p
			WHERE %s
		) keyed
		ORDER BY project_key, issue_date DESC, permit_num DESC`, ProjectKeyExpr(rule), filter),
		`CREATE VIEW {s}.submarket_deliveries AS
		SELECT
			COALESCE(submarket_name, 'Unknown') AS submarket_name,
			delivery_year,
			delivery_quarter,
			delivery_yyyyq,
			COUNT(*)         AS project_count,
			SUM(total_units) AS total_units_delivered
		FROM {s}.co_projects
		GROUP BY COALESCE(submarket_name, 'Unknown'), delivery_year, delivery_quarter, delivery_yyyyq`,
	}
}

// Migrate installs PostGIS and creates the city schema, tables, indexes and
// views. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	gdb := s.handle().WithContext(ctx)
	if err := db.EnsureExtension(gdb, "postgis"); err != nil {
		return classify("create extension postgis", err)
	}
	if err := db.EnsureSchema(gdb, s.city.Schema); err != nil {
		return fmt.Errorf("create schema %s: %w", s.city.Schema, err)
	}

	stmts := append(append([]string{}, tableDDL...), viewDDL(s.city.Dedup)...)
	err := gdb.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range stmts {
			if err := tx.Exec(s.sql(stmt)).Error; err != nil {
				return classify("migrate", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[store] schema %s ready (%d statements)", s.city.Schema, len(stmts))
	return nil
}

// classify turns PostGIS-related SQLSTATEs into ErrPostGISMissing.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "58P01", "0A000": // control file missing, extension not installable
			return fmt.Errorf("%s: %w: install the postgis package on the server (%s)", op, ErrPostGISMissing, pgErr.Message)
		case "42501": // insufficient_privilege
			return fmt.Errorf("%s: %w: CREATE EXTENSION needs a superuser or a pre-installed extension (%s)", op, ErrPostGISMissing, pgErr.Message)
		case "42704": // undefined_object, e.g. type "geometry"
			if strings.Contains(pgErr.Message, "geometry") {
				return fmt.Errorf("%s: %w (%s)", op, ErrPostGISMissing, pgErr.Message)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
