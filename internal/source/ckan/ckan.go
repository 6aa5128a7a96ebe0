// Package ckan is the adapter for CKAN datastore portals (San Antonio
// building permits). The city publishes permits in two resources, current
// and historical, which are fetched one after the other and merged.
package ckan

import (
	"context"
	"fmt"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
)

// Datastore resources.
const (
	ResourceCurrent    = "c21106f9-3ef5-4f3a-8604-f992b4db7512"
	ResourceHistorical = "c22b1ef2-dcf8-4d77-be1a-ee3638092aab"
)

// Multifamily filter values. The portal has no residential class; new
// commercial buildings are filtered by estimated size at parse time.
const (
	PermitType = "Comm New Building Permit"
	WorkType   = "New"
)

// Column names as published in the data dictionary.
const (
	fieldPermitNum   = "PERMIT #"
	fieldPermitType  = "PERMIT TYPE"
	fieldWorkType    = "WORK TYPE"
	fieldIssued      = "DATE ISSUED"
	fieldSubmitted   = "DATE SUBMITTED"
	fieldAddress     = "ADDRESS"
	fieldX           = "X_COORD"
	fieldY           = "Y_COORD"
	fieldLocation    = "LOCATION"
	fieldArea        = "AREA (SF)"
	fieldAreaAlt     = "AREA_SF"
	fieldProjectName = "PROJECT NAME"
	fieldStatus      = "STATUS"
	fieldDistrict    = "CD"
)

func init() {
	source.Register(market.SourceCKAN, New)
}

// Adapter fetches and parses CKAN permit rows for one city.
type Adapter struct {
	city      market.City
	resources []string
	client    *Client
}

// New creates a CKAN adapter.
func New(cfg source.Config, city market.City) (source.Adapter, error) {
	resources := cfg.CKANResources
	if len(resources) == 0 {
		resources = []string{ResourceCurrent, ResourceHistorical}
	}
	return &Adapter{
		city:      city,
		resources: resources,
		client:    NewClient(cfg.CKANBaseURL, source.NewClient("ckan", cfg, city.PageInterval)),
	}, nil
}

// Name returns the adapter name for logging purposes.
func (a *Adapter) Name() string { return "ckan" }

// Fetch pulls every resource, drops rows that are not new commercial
// buildings and de-duplicates by permit number, keeping the first
// occurrence (current before historical).
func (a *Adapter) Fetch(ctx context.Context, since *time.Time) ([]source.Record, error) {
	start := time.Now()
	var merged []source.Record
	for _, res := range a.resources {
		var (
			recs []source.Record
			err  error
		)
		if since != nil {
			recs, err = a.fetchSince(ctx, res, *since)
		} else {
			recs, err = a.fetchAll(ctx, res)
		}
		if err != nil {
			return nil, fmt.Errorf("ckan resource %s: %w", short(res), err)
		}
		merged = append(merged, recs...)
	}

	seen := make(map[string]bool, len(merged))
	out := make([]source.Record, 0, len(merged))
	for _, r := range merged {
		if !isMultifamilyCandidate(r) {
			continue
		}
		num := r.String(fieldPermitNum)
		if num == "" {
			// Left for Parse to reject and count.
			out = append(out, r)
			continue
		}
		if seen[num] {
			continue
		}
		seen[num] = true
		out = append(out, r)
	}

	source.LogFetch(a.Name(), len(out), time.Since(start))
	return out, nil
}

// SinceSQL is the datastore_search_sql statement for an incremental fetch.
func SinceSQL(resourceID string, since time.Time) string {
	return fmt.Sprintf(`SELECT * FROM "%s" WHERE "%s" = '%s' AND "%s" = '%s' AND "%s" > '%s'`,
		resourceID, fieldPermitType, PermitType, fieldWorkType, WorkType,
		fieldIssued, since.Format("2006-01-02"))
}

// fetchSince prefers the SQL endpoint. Portals often disable it, so any
// API failure falls back to full pagination filtered locally on issue date.
func (a *Adapter) fetchSince(ctx context.Context, resourceID string, since time.Time) ([]source.Record, error) {
	res, err := a.client.SearchSQL(ctx, SinceSQL(resourceID, since))
	if err == nil {
		return res.Records, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	source.LogError(a.Name(), "sql fallback to paginated fetch", err)

	all, err := a.fetchAll(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if d := permit.ParseDate(r.String(fieldIssued)); d != nil && d.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *Adapter) fetchAll(ctx context.Context, resourceID string) ([]source.Record, error) {
	filters := map[string]string{fieldPermitType: PermitType, fieldWorkType: WorkType}
	pageSize := a.city.PageSize

	var all []source.Record
	offset := 0
	for {
		res, err := a.client.Search(ctx, resourceID, filters, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("page at offset %d: %w", offset, err)
		}
		all = append(all, res.Records...)
		if len(res.Records) < pageSize {
			break
		}
		offset += pageSize
	}
	return all, nil
}

func isMultifamilyCandidate(r source.Record) bool {
	return r.String(fieldPermitType) == PermitType && r.String(fieldWorkType) == WorkType
}

// Parse maps a CKAN row onto a permit. The portal has no unit count, so
// units are estimated from gross area and buildings estimated below the
// multifamily floor are rejected.
func (a *Adapter) Parse(rec source.Record) (permit.Permit, error) {
	num := rec.String(fieldPermitNum)
	if num == "" {
		return permit.Permit{}, fmt.Errorf("%w: missing %s", permit.ErrRejected, fieldPermitNum)
	}

	issued := permit.ParseDate(rec.String(fieldIssued))
	submitted := permit.ParseDate(rec.String(fieldSubmitted))
	if issued == nil && submitted == nil {
		return permit.Permit{}, fmt.Errorf("%w: %s: no issued or submitted date", permit.ErrRejected, num)
	}

	area := permit.SafeInt(rec.Value(fieldArea, fieldAreaAlt))
	units, ok := permit.EstimateUnits(area)
	if !ok {
		return permit.Permit{}, fmt.Errorf("%w: %s: %d sf estimates %d units, below %d",
			permit.ErrRejected, num, area, units, permit.MinUnits)
	}

	p := permit.Permit{
		PermitNum:       num,
		PermitType:      permit.CleanText(rec.String(fieldPermitType)),
		IssueDate:       issued,
		SubmittedDate:   submitted,
		Address:         permit.CleanText(rec.String(fieldAddress)),
		WorkClass:       permit.UpperText(rec.String(fieldWorkType)),
		TotalUnits:      units,
		AreaSF:          &area,
		ProjectName:     permit.CleanText(rec.String(fieldProjectName)),
		PermitStatus:    permit.CleanText(rec.String(fieldStatus, "permit_status")),
		CouncilDistrict: rec.String(fieldDistrict),
		RawJSON:         rec.JSON(),
	}

	x, _ := permit.SafeFloat(rec.Value(fieldX))
	y, _ := permit.SafeFloat(rec.Value(fieldY))
	candidates := []permit.Candidate{{y, x}}
	if c, ok := permit.CandidateFromText(rec.String(fieldLocation)); ok {
		candidates = append(candidates, c)
	}
	if c, ok := permit.ResolveCoordinates(a.city.BBox, candidates...); ok {
		p.Latitude, p.Longitude = &c.Lat, &c.Lon
	} else if x != 0 || y != 0 {
		source.LogDiscard(a.Name(), num, "coordinates", fmt.Sprintf("%v,%v", x, y))
	}

	p.ZipCode = permit.ExtractZip(a.city.ZipPattern, p.Address)
	return p, nil
}
