// Package geo holds the spatial primitives used to assign permits to
// submarkets: metro bounding boxes, submarket polygons and the two-tier
// polygon-then-ZIP resolver.
package geo

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// BBox is a plausible lat/lon envelope for a metro area. Coordinates outside
// of it are treated as GIS artifacts.
type BBox struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Contains reports whether the point lies strictly inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return lat > b.MinLat && lat < b.MaxLat && lon > b.MinLon && lon < b.MaxLon
}

// Submarket is a named region with optional polygon geometry.
type Submarket struct {
	ID       string
	Name     string
	Geometry orb.MultiPolygon
}

// MatchSource records which tier resolved a submarket.
type MatchSource string

const (
	MatchPolygon MatchSource = "polygon"
	MatchZip     MatchSource = "zip"
)

// Match is the outcome of a successful resolution.
type Match struct {
	SubmarketID   string      `json:"submarket_id,omitempty"`
	SubmarketName string      `json:"submarket_name"`
	Source        MatchSource `json:"source"`
}

// Resolver assigns submarkets: polygon containment first, then the ZIP
// crosswalk. It is immutable once built.
type Resolver struct {
	submarkets []Submarket
	crosswalk  map[string]string
}

// NewResolver copies its inputs. Submarkets are ordered by ID so that a point
// inside overlapping polygons always resolves to the same one.
func NewResolver(submarkets []Submarket, crosswalk map[string]string) *Resolver {
	subs := make([]Submarket, 0, len(submarkets))
	for _, s := range submarkets {
		if len(s.Geometry) == 0 {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })

	cw := make(map[string]string, len(crosswalk))
	for zip, name := range crosswalk {
		cw[zip] = name
	}
	return &Resolver{submarkets: subs, crosswalk: cw}
}

// Resolve returns the submarket for a permit location. lat/lon may be nil
// when the permit has no usable coordinates; zip may be empty.
func (r *Resolver) Resolve(lat, lon *float64, zip string) (Match, bool) {
	if lat != nil && lon != nil {
		pt := orb.Point{*lon, *lat}
		for _, s := range r.submarkets {
			if !s.Geometry.Bound().Contains(pt) {
				continue
			}
			if planar.MultiPolygonContains(s.Geometry, pt) {
				return Match{SubmarketID: s.ID, SubmarketName: s.Name, Source: MatchPolygon}, true
			}
		}
	}
	if zip != "" {
		if name, ok := r.crosswalk[zip]; ok {
			return Match{SubmarketName: name, Source: MatchZip}, true
		}
	}
	return Match{}, false
}
