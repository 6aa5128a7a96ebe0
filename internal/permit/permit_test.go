package permit

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-03-15T00:00:00.000", "2024-03-15"},
		{"2024-03-15", "2024-03-15"},
		{"03/15/2024", "2024-03-15"},
		{"3/5/2024", "2024-03-05"},
		{"3/5/2024 12:00:00 AM", "2024-03-05"},
		{" 2023-12-31 ", "2023-12-31"},
	}
	for _, tc := range cases {
		got := ParseDate(tc.in)
		require.NotNil(t, got, tc.in)
		assert.Equal(t, tc.want, got.Format("2006-01-02"), tc.in)
	}

	for _, bad := range []string{"", "N/A", "2024-13-01", "02/30/2024", "15/03/24", "yesterday"} {
		assert.Nil(t, ParseDate(bad), bad)
	}
}

func TestQuarter(t *testing.T) {
	y, q, label := Quarter(time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2024, y)
	assert.Equal(t, 3, q)
	assert.Equal(t, "2024-Q3", label)

	_, q, _ = Quarter(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 4, q)
}

func TestEffectiveDate(t *testing.T) {
	issued := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	submitted := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, &issued, Permit{IssueDate: &issued, SubmittedDate: &submitted}.EffectiveDate())
	assert.Equal(t, &submitted, Permit{SubmittedDate: &submitted}.EffectiveDate())
	assert.Nil(t, Permit{}.EffectiveDate())
}

var austinBox = geo.BBox{MinLat: 29.4, MaxLat: 31.2, MinLon: -99.3, MaxLon: -96.9}

func TestResolveCoordinates(t *testing.T) {
	c, ok := ResolveCoordinates(austinBox, Candidate{30.27, -97.74})
	require.True(t, ok)
	assert.Equal(t, Coordinates{Lat: 30.27, Lon: -97.74}, c)

	c, ok = ResolveCoordinates(austinBox, Candidate{-97.74, 30.27})
	require.True(t, ok)
	assert.Equal(t, Coordinates{Lat: 30.27, Lon: -97.74}, c)

	// State-plane values first, then a usable pair.
	c, ok = ResolveCoordinates(austinBox, Candidate{2130000.5, 13700000.1}, Candidate{0, -97.7}, Candidate{30.1, -97.6})
	require.True(t, ok)
	assert.Equal(t, 30.1, c.Lat)

	_, ok = ResolveCoordinates(austinBox, Candidate{40.7, -74.0})
	assert.False(t, ok)
	_, ok = ResolveCoordinates(austinBox)
	assert.False(t, ok)
}

func TestCandidateFromText(t *testing.T) {
	c, ok := CandidateFromText("(29.4241, -98.4936)")
	require.True(t, ok)
	assert.Equal(t, Candidate{29.4241, -98.4936}, c)

	c, ok = CandidateFromText("POINT (-98.4936 29.4241)")
	require.True(t, ok)
	assert.Equal(t, Candidate{-98.4936, 29.4241}, c)

	_, ok = CandidateFromText("no coordinates here")
	assert.False(t, ok)
}

func TestExtractZip(t *testing.T) {
	austin := regexp.MustCompile(`\b(78[0-7]\d{2})(?:-\d{4})?\b`)
	sa := regexp.MustCompile(`\b(7[89]\d{3})(?:-\d{4})?\b`)

	assert.Equal(t, "78702", ExtractZip(austin, "1100 E 5th St, Austin, TX 78702"))
	assert.Equal(t, "78704", ExtractZip(austin, "78701 Congress Ave, Austin TX 78704-1234"))
	assert.Equal(t, "", ExtractZip(austin, "123 Main St, Dallas TX 75201"))
	assert.Equal(t, "", ExtractZip(austin, ""))
	assert.Equal(t, "78205", ExtractZip(sa, "100 Alamo Plaza, San Antonio 78205"))
	assert.Equal(t, "", ExtractZip(nil, "78205"))
}

func TestNormalizeZip(t *testing.T) {
	assert.Equal(t, "78701", NormalizeZip("78701-1234"))
	assert.Equal(t, "78701", NormalizeZip(" 78701 "))
	assert.Equal(t, "", NormalizeZip("787"))
	assert.Equal(t, "", NormalizeZip("ABCDE"))
}

func TestEstimateUnits(t *testing.T) {
	cases := []struct {
		area  int
		units int
		ok    bool
	}{
		{0, 0, false},
		{-50, 0, false},
		{100, 1, false},
		{450, 1, false},
		{3600, 4, false},
		{3601, 5, true},
		{4500, 5, true},
		{90000, 100, true},
		{5_000_000, MaxEstimatedUnits, true},
	}
	for _, tc := range cases {
		units, ok := EstimateUnits(tc.area)
		assert.Equal(t, tc.ok, ok, "area %d", tc.area)
		if tc.ok {
			assert.Equal(t, tc.units, units, "area %d", tc.area)
		}
	}
}

func TestSafeNumbers(t *testing.T) {
	assert.Equal(t, 12, SafeInt("12"))
	assert.Equal(t, 12, SafeInt("12.7"))
	assert.Equal(t, 1200, SafeInt("1,200"))
	assert.Equal(t, 7, SafeInt(json.Number("7")))
	assert.Equal(t, 3, SafeInt(float64(3)))
	assert.Equal(t, 0, SafeInt(nil))
	assert.Equal(t, 0, SafeInt("none"))
	assert.Equal(t, 0, SafeInt("abc"))

	f, ok := SafeFloat("30.25")
	assert.True(t, ok)
	assert.Equal(t, 30.25, f)
	_, ok = SafeFloat("0")
	assert.False(t, ok)
	_, ok = SafeFloat("")
	assert.False(t, ok)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "100 MAIN ST", CleanText("  100 MAIN   ST \n"))
	assert.Equal(t, "NEW", UpperText(" new "))
	assert.Equal(t, "", CleanText("   "))
}
