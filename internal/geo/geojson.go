package geo

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNoFeatures = errors.New("feature collection has no polygon features")

// ReadFeatureCollection loads submarkets from a GeoJSON file. idProp and
// nameProp name the feature properties carrying the submarket id and name.
func ReadFeatureCollection(path, idProp, nameProp string) ([]Submarket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	return ParseFeatureCollection(data, idProp, nameProp)
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection into submarkets.
// Polygon geometries are promoted to MultiPolygon; other geometry types are
// rejected.
func ParseFeatureCollection(data []byte, idProp, nameProp string) ([]Submarket, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	seen := map[string]bool{}
	var out []Submarket
	for i, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.MustString(nameProp, ""))
		if name == "" {
			return nil, fmt.Errorf("feature %d: property %q is required", i, nameProp)
		}
		id := strings.TrimSpace(propString(f.Properties, idProp))
		if id == "" {
			id = Slug(name)
		}
		if seen[id] {
			return nil, fmt.Errorf("feature %d: duplicate submarket id %q", i, id)
		}
		seen[id] = true

		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			return nil, fmt.Errorf("feature %d (%s): unsupported geometry %T", i, name, f.Geometry)
		}
		out = append(out, Submarket{ID: id, Name: name, Geometry: mp})
	}
	if len(out) == 0 {
		return nil, ErrNoFeatures
	}
	return out, nil
}

// GeoJSON renders the submarket geometry as a GeoJSON geometry object.
func (s Submarket) GeoJSON() (string, error) {
	b, err := geojson.NewGeometry(s.Geometry).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Slug derives a stable identifier from a submarket name.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func propString(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
