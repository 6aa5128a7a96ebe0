// Package boundary imports submarket polygons from a GeoJSON export into a
// city's costar_submarkets table.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
)

const (
	DefaultIDProp   = "submarket_id"
	DefaultNameProp = "submarket_name"
)

type Config struct {
	Path     string
	City     market.City
	IDProp   string
	NameProp string
	DryRun   bool
}

// Loader persists parsed submarkets. store.Store satisfies it.
type Loader interface {
	LoadBoundaries(ctx context.Context, submarkets []geo.Submarket) (int, error)
}

// Result describes one import.
type Result struct {
	Parsed  int
	Loaded  int
	Outside []string // ids whose extent does not touch the metro box
}

func (c *Config) withDefaults() {
	if c.IDProp == "" {
		c.IDProp = DefaultIDProp
	}
	if c.NameProp == "" {
		c.NameProp = DefaultNameProp
	}
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("boundary file path is required")
	}
	if c.City.Name == "" {
		return errors.New("city is required")
	}
	return nil
}

// Run parses the file and, unless DryRun is set, upserts every submarket.
// A file whose polygons all fall outside the metro is refused since it
// almost certainly belongs to another city or uses projected coordinates.
func Run(ctx context.Context, cfg Config, loader Loader) (Result, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	subs, err := geo.ReadFeatureCollection(cfg.Path, cfg.IDProp, cfg.NameProp)
	if err != nil {
		return Result{}, err
	}
	res := Result{Parsed: len(subs)}

	for _, s := range subs {
		if !overlaps(cfg.City.BBox, s.Geometry.Bound()) {
			res.Outside = append(res.Outside, s.ID)
			log.Printf("[boundary] %s: submarket %s (%s) lies outside the metro box", cfg.City.Name, s.ID, s.Name)
		}
	}
	if len(res.Outside) == len(subs) {
		return res, fmt.Errorf("%s: none of the %d submarkets overlap the metro area", cfg.City.Name, len(subs))
	}

	if cfg.DryRun || loader == nil {
		return res, nil
	}
	if res.Loaded, err = loader.LoadBoundaries(ctx, subs); err != nil {
		return res, fmt.Errorf("load boundaries: %w", err)
	}
	log.Printf("[boundary] %s: loaded %d submarkets from %s", cfg.City.Name, res.Loaded, cfg.Path)
	return res, nil
}

func overlaps(box geo.BBox, b orb.Bound) bool {
	return b.Min.Lat() < box.MaxLat && b.Max.Lat() > box.MinLat &&
		b.Min.Lon() < box.MaxLon && b.Max.Lon() > box.MinLon
}
