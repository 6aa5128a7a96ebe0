package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}}
}

func ptr(f float64) *float64 { return &f }

func TestBBoxContains(t *testing.T) {
	box := BBox{MinLat: 28, MaxLat: 30.5, MinLon: -100, MaxLon: -97}
	assert.True(t, box.Contains(29.42, -98.49))
	assert.False(t, box.Contains(-98.49, 29.42))
	assert.False(t, box.Contains(13700000, 3100000))
	assert.False(t, box.Contains(28, -98))
}

func TestResolver_FallbackOrder(t *testing.T) {
	downtown := Submarket{ID: "dt", Name: "Downtown Austin", Geometry: square(-97.76, 30.25, -97.73, 30.28)}
	r := NewResolver([]Submarket{downtown}, map[string]string{
		"78701": "Central Austin",
		"78745": "South Austin",
	})

	// Polygon wins over a ZIP that maps elsewhere.
	m, ok := r.Resolve(ptr(30.27), ptr(-97.74), "78701")
	require.True(t, ok)
	assert.Equal(t, "Downtown Austin", m.SubmarketName)
	assert.Equal(t, "dt", m.SubmarketID)
	assert.Equal(t, MatchPolygon, m.Source)

	// No coordinates: ZIP crosswalk.
	m, ok = r.Resolve(nil, nil, "78745")
	require.True(t, ok)
	assert.Equal(t, "South Austin", m.SubmarketName)
	assert.Equal(t, MatchZip, m.Source)
	assert.Empty(t, m.SubmarketID)

	// Coordinates outside every polygon: ZIP crosswalk.
	m, ok = r.Resolve(ptr(30.10), ptr(-97.80), "78745")
	require.True(t, ok)
	assert.Equal(t, "South Austin", m.SubmarketName)

	// Neither.
	_, ok = r.Resolve(ptr(30.10), ptr(-97.80), "99999")
	assert.False(t, ok)
	_, ok = r.Resolve(nil, nil, "")
	assert.False(t, ok)
}

func TestResolver_OverlapIsDeterministic(t *testing.T) {
	a := Submarket{ID: "b-second", Name: "B", Geometry: square(0, 0, 10, 10)}
	b := Submarket{ID: "a-first", Name: "A", Geometry: square(0, 0, 10, 10)}

	for _, order := range [][]Submarket{{a, b}, {b, a}} {
		m, ok := NewResolver(order, nil).Resolve(ptr(5), ptr(5), "")
		require.True(t, ok)
		assert.Equal(t, "a-first", m.SubmarketID)
	}
}

func TestResolver_NoPolygonsDegradesToZip(t *testing.T) {
	r := NewResolver([]Submarket{{ID: "empty", Name: "Empty"}}, map[string]string{"78205": "Downtown"})
	m, ok := r.Resolve(ptr(29.42), ptr(-98.49), "78205")
	require.True(t, ok)
	assert.Equal(t, "Downtown", m.SubmarketName)
}

func TestParseFeatureCollection(t *testing.T) {
	data := []byte(`{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {"submarket_id": 12, "submarket_name": "Riverside"},
	     "geometry": {"type": "Polygon", "coordinates": [[[-97.73,30.22],[-97.70,30.22],[-97.70,30.25],[-97.73,30.25],[-97.73,30.22]]]}},
	    {"type": "Feature", "properties": {"submarket_name": "East Austin"},
	     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-97.72,30.26],[-97.68,30.26],[-97.68,30.29],[-97.72,30.29],[-97.72,30.26]]]]}}
	  ]
	}`)

	subs, err := ParseFeatureCollection(data, "submarket_id", "submarket_name")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "12", subs[0].ID)
	assert.Equal(t, "Riverside", subs[0].Name)
	assert.Len(t, subs[0].Geometry, 1)
	assert.Equal(t, "east-austin", subs[1].ID)

	js, err := subs[1].GeoJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"MultiPolygon"`)
}

func TestParseFeatureCollection_Errors(t *testing.T) {
	_, err := ParseFeatureCollection([]byte(`{"type":"FeatureCollection","features":[]}`), "id", "name")
	assert.ErrorIs(t, err, ErrNoFeatures)

	_, err = ParseFeatureCollection([]byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"name":"Pt"},"geometry":{"type":"Point","coordinates":[1,2]}}]}`), "id", "name")
	assert.Error(t, err)

	_, err = ParseFeatureCollection([]byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`), "id", "name")
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "helotes-leon-valley", Slug("Helotes/Leon Valley"))
	assert.Equal(t, "south-central-austin", Slug("  South Central Austin "))
}
