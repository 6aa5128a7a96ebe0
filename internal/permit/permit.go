// Package permit defines the canonical permit shape shared by every city and
// the pure field-coercion helpers the source adapters normalize with.
package permit

import (
	"errors"
	"time"
)

// ErrRejected marks a record that cannot become a permit. Adapters wrap it
// with the reason.
var ErrRejected = errors.New("record rejected")

// Permit is one normalized permit, keyed by PermitNum. Optional values are
// nil or empty when the source does not supply them.
type Permit struct {
	PermitNum       string     `json:"permit_num"`
	MasterPermitNum string     `json:"masterpermitnum,omitempty"`
	PermitClass     string     `json:"permit_class,omitempty"`
	PermitType      string     `json:"permit_type,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	SubmittedDate   *time.Time `json:"submitted_date,omitempty"`
	Address         string     `json:"address"`
	ZipCode         string     `json:"zip_code,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	WorkClass       string     `json:"work_class,omitempty"`
	TotalUnits      int        `json:"total_units"`
	AreaSF          *int       `json:"area_sf,omitempty"`
	ProjectName     string     `json:"project_name,omitempty"`
	PermitStatus    string     `json:"permit_status,omitempty"`
	CouncilDistrict string     `json:"council_district,omitempty"`
	RawJSON         []byte     `json:"-"`
}

// EffectiveDate is the issue date, or the submitted date when the permit has
// not been issued yet. Nil when neither is known.
func (p Permit) EffectiveDate() *time.Time {
	if p.IssueDate != nil {
		return p.IssueDate
	}
	return p.SubmittedDate
}

// HasCoordinates reports whether both latitude and longitude are set.
func (p Permit) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}
