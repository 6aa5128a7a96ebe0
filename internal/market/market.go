// Package market defines the immutable per-city configuration that every
// pipeline component is built from: source kind, metro geography, paging and
// batching sizes, the project dedup rule and the ZIP crosswalk.
package market

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
)

// Source kinds understood by the adapter registry.
const (
	SourceSocrata = "socrata"
	SourceCKAN    = "ckan"
)

var ErrUnknownCity = errors.New("unknown city")

// DedupKey selects how permits collapse into projects.
type DedupKey string

const (
	// DedupMasterPermit groups sub-permits under their master permit, falling
	// back to the permit's own number.
	DedupMasterPermit DedupKey = "master_permit"
	// DedupAddressUnits groups permits sharing an address and unit count.
	DedupAddressUnits DedupKey = "address_units"
)

// DedupRule is the grain and filter set of the project view.
type DedupRule struct {
	Key       DedupKey
	MinUnits  int
	MaxUnits  int
	WorkClass string // empty means no work-class filter
}

// Admits reports whether a permit passes the unit range and work-class filter.
func (r DedupRule) Admits(units int, workClass string) bool {
	if units < r.MinUnits || units > r.MaxUnits {
		return false
	}
	return r.WorkClass == "" || workClass == r.WorkClass
}

// City is the configuration for one metro. Values are built once at package
// init and handed out by copy; the crosswalk is only reachable through
// methods that do not expose the underlying map.
type City struct {
	Name   string
	Label  string
	Schema string
	Source string

	BBox       geo.BBox
	ZipPattern *regexp.Regexp

	PageSize      int
	PageInterval  time.Duration
	BatchSize     int
	TopSubmarkets int

	Dedup DedupRule

	crosswalk map[string]string
}

// Crosswalk returns a copy of the ZIP -> submarket table.
func (c City) Crosswalk() map[string]string {
	out := make(map[string]string, len(c.crosswalk))
	for k, v := range c.crosswalk {
		out[k] = v
	}
	return out
}

// SubmarketForZip looks a ZIP up in the crosswalk.
func (c City) SubmarketForZip(zip string) (string, bool) {
	name, ok := c.crosswalk[zip]
	return name, ok
}

var cities = map[string]City{}

func register(c City, crosswalkFile string) {
	cw, err := loadCrosswalk(crosswalkFile)
	if err != nil {
		panic(fmt.Sprintf("market %s: %v", c.Name, err))
	}
	c.crosswalk = cw
	cities[c.Name] = c
}

// Lookup returns the configuration for a city name (case-insensitive).
func Lookup(name string) (City, error) {
	c, ok := cities[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return City{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownCity, name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the configured cities in sorted order.
func Names() []string {
	out := make([]string, 0, len(cities))
	for n := range cities {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
