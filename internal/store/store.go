// Package store persists permits in Postgres/PostGIS, one schema per city:
// the raw permit table, the enriched table, the project and delivery views,
// the reference tables and the run audit log.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/db"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
)

var ErrPostGISMissing = errors.New("postgis extension is not available")

// Store is a city-scoped handle on the permit database.
type Store struct {
	dsn   string
	level logger.LogLevel
	city  market.City

	mu sync.RWMutex
	db *gorm.DB
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string, city market.City, level logger.LogLevel) (*Store, error) {
	gdb, err := db.Open(dsn, level)
	if err != nil {
		return nil, err
	}
	s := &Store{dsn: dsn, level: level, city: city, db: gdb}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. Reconnect is unavailable on such a
// store because it does not own the DSN.
func New(gdb *gorm.DB, city market.City) *Store {
	return &Store{city: city, db: gdb}
}

// City returns the city this store is scoped to.
func (s *Store) City() market.City { return s.city }

// DB exposes the current handle for ad-hoc queries.
func (s *Store) DB() *gorm.DB { return s.handle() }

// handle returns the live pool. Every query goes through it so a concurrent
// Reconnect never exposes a closed pool.
func (s *Store) handle() *gorm.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return ping(ctx, s.handle())
}

func ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return db.Close(s.handle())
}

// Reconnect dials a fresh pool and swaps it in once it answers a ping. It is
// used after a failed batch write, when the server may have dropped our
// connections. On failure the old pool is kept, so later writes such as the
// run audit row can still succeed once the server is back.
func (s *Store) Reconnect(ctx context.Context) error {
	if s.dsn == "" {
		return fmt.Errorf("reconnect: store was not opened from a DSN")
	}
	gdb, err := db.Open(s.dsn, s.level)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if err := ping(ctx, gdb); err != nil {
		_ = db.Close(gdb)
		return fmt.Errorf("reconnect: %w", err)
	}

	s.mu.Lock()
	old := s.db
	s.db = gdb
	s.mu.Unlock()

	if err := db.Close(old); err != nil {
		log.Printf("[store] close old pool: %v", err)
	}
	log.Printf("[store] reconnected (%s)", s.city.Schema)
	return nil
}

// table qualifies a table or view name with the city schema. Schema names
// come from market configuration and are plain lowercase identifiers.
func (s *Store) table(name string) string {
	return s.city.Schema + "." + name
}

// sql expands {s} placeholders in a statement to the city schema.
func (s *Store) sql(stmt string) string {
	return strings.ReplaceAll(stmt, "{s}", s.city.Schema)
}
