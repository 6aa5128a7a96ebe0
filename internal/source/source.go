// Package source abstracts the municipal open-data portals permits are
// pulled from. Each portal kind (Socrata, CKAN) registers an Adapter
// constructor from its own package; callers build one for a city with New.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
)

// Common errors
var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrUnknownCity      = errors.New("no source adapter for city")
	ErrMissingEndpoint  = errors.New("source endpoint is not configured")
)

// Adapter fetches raw records from a portal and normalizes them into permits.
type Adapter interface {
	// Name returns the adapter name for logging purposes.
	Name() string

	// Fetch returns every raw record issued strictly after since, or the
	// full history when since is nil. Pages are requested sequentially and a
	// failed page fails the whole fetch.
	Fetch(ctx context.Context, since *time.Time) ([]Record, error)

	// Parse normalizes one raw record. Records that cannot become a permit
	// return an error wrapping permit.ErrRejected.
	Parse(rec Record) (permit.Permit, error)
}

// Constructor builds an adapter for a city from the shared configuration.
type Constructor func(Config, market.City) (Adapter, error)

var registry = make(map[string]Constructor)

// Register registers an adapter constructor for a source kind. This should
// be called from init() in each adapter package.
func Register(kind string, constructor Constructor) {
	registry[kind] = constructor
}

// New creates the adapter serving the city's source kind.
func New(cfg Config, city market.City) (Adapter, error) {
	constructor, ok := registry[city.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %s (source %q)", ErrUnknownCity, city.Name, city.Source)
	}
	if err := cfg.Validate(city.Source); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return constructor(cfg, city)
}
