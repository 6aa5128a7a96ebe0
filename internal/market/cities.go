package market

import (
	"regexp"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
)

func init() {
	register(City{
		Name:   "austin",
		Label:  "Austin",
		Schema: "austin",
		Source: SourceSocrata,
		// Five-county MSA plus the Hill Country / Comal fringe in the crosswalk.
		BBox:          geo.BBox{MinLat: 29.4, MaxLat: 31.2, MinLon: -99.3, MaxLon: -96.9},
		ZipPattern:    regexp.MustCompile(`\b(78[0-7]\d{2})(?:-\d{4})?\b`),
		PageSize:      1000,
		PageInterval:  200 * time.Millisecond,
		BatchSize:     500,
		TopSubmarkets: 10,
		Dedup: DedupRule{
			Key:       DedupMasterPermit,
			MinUnits:  5,
			MaxUnits:  1000,
			WorkClass: "NEW",
		},
	}, "crosswalks/austin.yaml")

	register(City{
		Name:          "sanantonio",
		Label:         "San Antonio",
		Schema:        "sanantonio",
		Source:        SourceCKAN,
		BBox:          geo.BBox{MinLat: 28.0, MaxLat: 30.5, MinLon: -100.0, MaxLon: -97.0},
		ZipPattern:    regexp.MustCompile(`\b(7[89]\d{3})(?:-\d{4})?\b`),
		PageSize:      100,
		PageInterval:  300 * time.Millisecond,
		BatchSize:     200,
		TopSubmarkets: 13,
		Dedup: DedupRule{
			Key:      DedupAddressUnits,
			MinUnits: 5,
			MaxUnits: 2000,
		},
	}, "crosswalks/sanantonio.yaml")
}
