// Package socrata is the adapter for Socrata SODA datasets (Austin issued
// construction permits).
package socrata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
)

// PermitClasses are the residential building classes that can hold
// multifamily projects. Unit thresholds are applied downstream, not here.
var PermitClasses = []string{
	"C- 104 Three & Four Family Bldgs",
	"C- 105 Five or More Family Bldgs",
	"C- 106 Mixed Use",
}

func init() {
	source.Register(market.SourceSocrata, New)
}

// Adapter fetches and parses Socrata permit rows for one city.
type Adapter struct {
	city     market.City
	endpoint string
	client   *source.Client
}

// New creates a Socrata adapter.
func New(cfg source.Config, city market.City) (source.Adapter, error) {
	client := source.NewClient("socrata", cfg, city.PageInterval)
	if cfg.SocrataAppToken != "" {
		client.SetHeader("X-App-Token", cfg.SocrataAppToken)
	}
	return &Adapter{city: city, endpoint: cfg.SocrataEndpoint, client: client}, nil
}

// Name returns the adapter name for logging purposes.
func (a *Adapter) Name() string { return "socrata" }

// Where builds the SoQL filter: the permit-class set plus, for incremental
// runs, an exclusive lower bound on issue_date.
func Where(since *time.Time) string {
	quoted := make([]string, len(PermitClasses))
	for i, c := range PermitClasses {
		quoted[i] = "'" + strings.ReplaceAll(c, "'", "''") + "'"
	}
	where := fmt.Sprintf("permit_class in(%s)", strings.Join(quoted, ", "))
	if since != nil {
		where += fmt.Sprintf(" AND issue_date > '%sT00:00:00.000'", since.Format("2006-01-02"))
	}
	return where
}

// Fetch pages through the dataset with $limit/$offset until a short page.
func (a *Adapter) Fetch(ctx context.Context, since *time.Time) ([]source.Record, error) {
	start := time.Now()
	pageSize := a.city.PageSize
	where := Where(since)

	var all []source.Record
	offset := 0
	for {
		params := url.Values{}
		params.Set("$limit", strconv.Itoa(pageSize))
		params.Set("$offset", strconv.Itoa(offset))
		params.Set("$where", where)
		// Stable row order so offsets do not skip or repeat rows between pages.
		params.Set("$order", ":id")

		pageStart := time.Now()
		source.LogRequest(a.Name(), "GET", a.endpoint, map[string]interface{}{
			"offset": offset,
			"since":  formatSince(since),
		})

		var page []source.Record
		if err := a.client.GetJSON(ctx, a.endpoint, params, &page); err != nil {
			source.LogError(a.Name(), "fetch", err)
			return nil, fmt.Errorf("socrata page at offset %d: %w", offset, err)
		}
		source.LogResponse(a.Name(), 200, time.Since(pageStart), len(page))

		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
		offset += len(page)
	}

	source.LogFetch(a.Name(), len(all), time.Since(start))
	return all, nil
}

// Parse maps a Socrata row onto a permit. Rows without a permit number or a
// parseable issue date are rejected.
func (a *Adapter) Parse(rec source.Record) (permit.Permit, error) {
	num := rec.String("permit_number", "permitnum")
	if num == "" {
		return permit.Permit{}, fmt.Errorf("%w: missing permit number", permit.ErrRejected)
	}
	issued := permit.ParseDate(rec.String("issue_date"))
	if issued == nil {
		return permit.Permit{}, fmt.Errorf("%w: %s: missing or unparseable issue_date %q", permit.ErrRejected, num, rec.String("issue_date"))
	}

	p := permit.Permit{
		PermitNum:       num,
		MasterPermitNum: rec.String("masterpermitnum"),
		PermitClass:     permit.CleanText(rec.String("permit_class")),
		PermitType:      permit.CleanText(rec.String("permit_type_desc")),
		IssueDate:       issued,
		Address:         permit.CleanText(rec.String("permit_location", "location_address")),
		WorkClass:       permit.UpperText(rec.String("work_class")),
		TotalUnits:      permit.SafeInt(rec.Value("housing_units")),
		ProjectName:     permit.CleanText(rec.String("description", "projectname")),
		PermitStatus:    permit.CleanText(rec.String("status_current", "permit_status")),
		RawJSON:         rec.JSON(),
	}

	var candidates []permit.Candidate
	lat, _ := permit.SafeFloat(rec.Value("latitude"))
	lon, _ := permit.SafeFloat(rec.Value("longitude"))
	candidates = append(candidates, permit.Candidate{lat, lon})
	if loc := rec.Nested("location"); loc != nil {
		nlat, _ := permit.SafeFloat(loc.Value("latitude"))
		nlon, _ := permit.SafeFloat(loc.Value("longitude"))
		candidates = append(candidates, permit.Candidate{nlat, nlon})
	}
	if c, ok := permit.ResolveCoordinates(a.city.BBox, candidates...); ok {
		p.Latitude, p.Longitude = &c.Lat, &c.Lon
	} else if lat != 0 || lon != 0 {
		source.LogDiscard(a.Name(), num, "coordinates", fmt.Sprintf("%v,%v", lat, lon))
	}

	p.ZipCode = permit.NormalizeZip(rec.String("original_zip"))
	if p.ZipCode == "" {
		p.ZipCode = permit.ExtractZip(a.city.ZipPattern, p.Address)
	}
	return p, nil
}

func formatSince(since *time.Time) string {
	if since == nil {
		return "beginning"
	}
	return since.Format("2006-01-02")
}
