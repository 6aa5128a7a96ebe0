package permit

import (
	"regexp"
	"strconv"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Candidate is an unordered coordinate pair read from a source record. The
// source may hold (lat, lon) or (lon, lat); zero values mean "absent".
type Candidate [2]float64

// ResolveCoordinates returns the first candidate that, in either order, falls
// inside the metro box. State-plane values and zeros never match.
func ResolveCoordinates(box geo.BBox, candidates ...Candidate) (Coordinates, bool) {
	for _, c := range candidates {
		a, b := c[0], c[1]
		if a == 0 || b == 0 {
			continue
		}
		if box.Contains(a, b) {
			return Coordinates{Lat: a, Lon: b}, true
		}
		if box.Contains(b, a) {
			return Coordinates{Lat: b, Lon: a}, true
		}
	}
	return Coordinates{}, false
}

var coordText = regexp.MustCompile(`(-?\d+\.\d+)[,\s]+(-?\d+\.\d+)`)

// CandidateFromText sniffs the first "a, b" decimal pair out of free text such
// as "(29.4241, -98.4936)" or "POINT (-98.4936 29.4241)".
func CandidateFromText(s string) (Candidate, bool) {
	m := coordText.FindStringSubmatch(s)
	if m == nil {
		return Candidate{}, false
	}
	a, err1 := strconv.ParseFloat(m[1], 64)
	b, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Candidate{}, false
	}
	return Candidate{a, b}, true
}
