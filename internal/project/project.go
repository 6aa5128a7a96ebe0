// Package project folds enriched permits into deduplicated projects and
// quarterly submarket deliveries. It is the in-process twin of the
// co_projects and submarket_deliveries views.
package project

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
)

// UnknownSubmarket labels deliveries with no resolved submarket.
const UnknownSubmarket = "Unknown"

// EnrichedPermit is a permit with an effective delivery date, a resolved
// submarket and calendar buckets. It mirrors a co_permits row.
type EnrichedPermit struct {
	PermitNum       string          `gorm:"column:permit_num" json:"permit_num"`
	MasterPermitNum string          `gorm:"column:masterpermitnum" json:"masterpermitnum,omitempty"`
	PermitClass     string          `gorm:"column:permit_class" json:"permit_class,omitempty"`
	IssueDate       time.Time       `gorm:"column:issue_date" json:"issue_date"`
	SubmittedDate   *time.Time      `gorm:"column:submitted_date" json:"submitted_date,omitempty"`
	Address         string          `gorm:"column:address" json:"address"`
	ZipCode         string          `gorm:"column:zip_code" json:"zip_code,omitempty"`
	Latitude        *float64        `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude       *float64        `gorm:"column:longitude" json:"longitude,omitempty"`
	TotalUnits      int             `gorm:"column:total_units" json:"total_units"`
	AreaSF          *int            `gorm:"column:area_sf" json:"area_sf,omitempty"`
	ProjectName     string          `gorm:"column:project_name" json:"project_name,omitempty"`
	WorkClass       string          `gorm:"column:work_class" json:"work_class,omitempty"`
	CouncilDistrict string          `gorm:"column:council_district" json:"council_district,omitempty"`
	SubmarketID     string          `gorm:"column:submarket_id" json:"submarket_id,omitempty"`
	SubmarketName   string          `gorm:"column:submarket_name" json:"submarket_name,omitempty"`
	MatchSource     geo.MatchSource `gorm:"column:match_source" json:"match_source,omitempty"`
	DeliveryYear    int             `gorm:"column:delivery_year" json:"delivery_year"`
	DeliveryQuarter int             `gorm:"column:delivery_quarter" json:"delivery_quarter"`
	DeliveryYYYYQ   string          `gorm:"column:delivery_yyyyq" json:"delivery_yyyyq"`
}

// Enrich resolves a permit's submarket and calendar buckets. ok is false
// when the permit has neither an issue nor a submitted date. The ZIP used
// for the crosswalk is the stored ZIP, else one sniffed from the address.
func Enrich(p permit.Permit, r *geo.Resolver, zipPattern *regexp.Regexp) (EnrichedPermit, bool) {
	date := p.EffectiveDate()
	if date == nil {
		return EnrichedPermit{}, false
	}

	e := EnrichedPermit{
		PermitNum:       p.PermitNum,
		MasterPermitNum: p.MasterPermitNum,
		PermitClass:     p.PermitClass,
		IssueDate:       *date,
		SubmittedDate:   p.SubmittedDate,
		Address:         p.Address,
		ZipCode:         p.ZipCode,
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		TotalUnits:      p.TotalUnits,
		AreaSF:          p.AreaSF,
		ProjectName:     p.ProjectName,
		WorkClass:       p.WorkClass,
		CouncilDistrict: p.CouncilDistrict,
	}
	e.DeliveryYear, e.DeliveryQuarter, e.DeliveryYYYYQ = permit.Quarter(*date)

	zip := p.ZipCode
	if zip == "" {
		zip = permit.ExtractZip(zipPattern, p.Address)
	}
	if r != nil {
		if m, ok := r.Resolve(p.Latitude, p.Longitude, zip); ok {
			e.SubmarketID = m.SubmarketID
			e.SubmarketName = m.SubmarketName
			e.MatchSource = m.Source
		}
	}
	return e, true
}

// Project is one deduplicated delivery, represented by its latest permit.
type Project struct {
	ProjectKey string `gorm:"column:project_key" json:"project_key"`
	EnrichedPermit
}

// Key returns the grouping key of a permit under a dedup rule.
func Key(rule market.DedupRule, e EnrichedPermit) string {
	switch rule.Key {
	case market.DedupAddressUnits:
		return e.Address + "|" + strconv.Itoa(e.TotalUnits)
	default:
		if e.MasterPermitNum != "" {
			return e.MasterPermitNum
		}
		return e.PermitNum
	}
}

// newer reports whether a should represent a project over b: later issue
// date first, then the higher permit number.
func newer(a, b EnrichedPermit) bool {
	if !a.IssueDate.Equal(b.IssueDate) {
		return a.IssueDate.After(b.IssueDate)
	}
	return a.PermitNum > b.PermitNum
}

// Dedup filters permits by the rule and keeps one representative per key.
// The result does not depend on input order and is sorted newest first.
func Dedup(rule market.DedupRule, rows []EnrichedPermit) []Project {
	best := make(map[string]EnrichedPermit)
	for _, e := range rows {
		if !rule.Admits(e.TotalUnits, e.WorkClass) {
			continue
		}
		k := Key(rule, e)
		if cur, ok := best[k]; !ok || newer(e, cur) {
			best[k] = e
		}
	}

	out := make([]Project, 0, len(best))
	for k, e := range best {
		out = append(out, Project{ProjectKey: k, EnrichedPermit: e})
	}
	sort.Slice(out, func(i, j int) bool {
		if newer(out[i].EnrichedPermit, out[j].EnrichedPermit) {
			return true
		}
		if newer(out[j].EnrichedPermit, out[i].EnrichedPermit) {
			return false
		}
		return out[i].ProjectKey < out[j].ProjectKey
	})
	return out
}

// Delivery is the quarterly unit total for one submarket.
type Delivery struct {
	SubmarketName       string `gorm:"column:submarket_name" json:"submarket_name"`
	DeliveryYear        int    `gorm:"column:delivery_year" json:"delivery_year"`
	DeliveryQuarter     int    `gorm:"column:delivery_quarter" json:"delivery_quarter"`
	DeliveryYYYYQ       string `gorm:"column:delivery_yyyyq" json:"delivery_yyyyq"`
	ProjectCount        int    `gorm:"column:project_count" json:"project_count"`
	TotalUnitsDelivered int    `gorm:"column:total_units_delivered" json:"total_units_delivered"`
}

// Aggregate groups projects by submarket and quarter, ordered by quarter
// label then units delivered descending.
func Aggregate(projects []Project) []Delivery {
	type key struct {
		name  string
		label string
	}
	idx := make(map[key]int)
	var out []Delivery
	for _, p := range projects {
		name := p.SubmarketName
		if name == "" {
			name = UnknownSubmarket
		}
		k := key{name, p.DeliveryYYYYQ}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Delivery{
				SubmarketName:   name,
				DeliveryYear:    p.DeliveryYear,
				DeliveryQuarter: p.DeliveryQuarter,
				DeliveryYYYYQ:   p.DeliveryYYYYQ,
			})
		}
		out[i].ProjectCount++
		out[i].TotalUnitsDelivered += p.TotalUnits
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DeliveryYYYYQ != out[j].DeliveryYYYYQ {
			return out[i].DeliveryYYYYQ < out[j].DeliveryYYYYQ
		}
		if out[i].TotalUnitsDelivered != out[j].TotalUnitsDelivered {
			return out[i].TotalUnitsDelivered > out[j].TotalUnitsDelivered
		}
		return out[i].SubmarketName < out[j].SubmarketName
	})
	return out
}
