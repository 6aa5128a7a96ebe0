package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
)

func austin(t *testing.T) market.City {
	t.Helper()
	c, err := market.Lookup("austin")
	require.NoError(t, err)
	c.PageInterval = 0
	return c
}

func testConfig(endpoint string) source.Config {
	return source.Config{
		SocrataEndpoint: endpoint,
		SocrataAppToken: "app-token",
		Retry:           source.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func TestWhere(t *testing.T) {
	w := Where(nil)
	assert.Equal(t, "permit_class in('C- 104 Three & Four Family Bldgs', 'C- 105 Five or More Family Bldgs', 'C- 106 Mixed Use')", w)

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Contains(t, Where(&since), " AND issue_date > '2024-05-01T00:00:00.000'")
}

func TestFetchPaginates(t *testing.T) {
	city := austin(t)
	city.PageSize = 2

	var offsets []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app-token", r.Header.Get("X-App-Token"))
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("$limit"))
		assert.Contains(t, q.Get("$where"), "issue_date > '2024-01-01")
		off, _ := strconv.Atoi(q.Get("$offset"))
		offsets = append(offsets, off)

		var rows []map[string]string
		for i := off; i < 5 && i < off+2; i++ {
			rows = append(rows, map[string]string{"permit_number": fmt.Sprintf("P-%d", i)})
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	a, err := New(testConfig(srv.URL), city)
	require.NoError(t, err)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs, err := a.Fetch(context.Background(), &since)
	require.NoError(t, err)
	assert.Len(t, recs, 5)
	assert.Equal(t, []int{0, 2, 4}, offsets)
}

func TestFetchEmptyPageStops(t *testing.T) {
	city := austin(t)
	city.PageSize = 2
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("$offset") == "0" {
			_, _ = w.Write([]byte(`[{"permit_number":"A"},{"permit_number":"B"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a, err := New(testConfig(srv.URL), city)
	require.NoError(t, err)
	recs, err := a.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 2, calls)
}

func TestFetchFailsAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, err := New(testConfig(srv.URL), austin(t))
	require.NoError(t, err)
	_, err = a.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, source.ErrRetriesExhausted)
}

func TestParse(t *testing.T) {
	a, err := New(testConfig("http://unused"), austin(t))
	require.NoError(t, err)

	rec := source.Record{
		"permitnum":        "2024-000123 BP",
		"masterpermitnum":  "3000100",
		"permit_class":     "C- 105 Five or More Family Bldgs",
		"permit_type_desc": "Building Permit",
		"issue_date":       "2024-03-15T00:00:00.000",
		"permit_location":  "1100  E 5TH ST, AUSTIN TX 78702",
		"latitude":         "30.2649",
		"longitude":        "-97.7300",
		"housing_units":    json.Number("240"),
		"work_class":       "new",
		"description":      "Mixed-use apartments",
		"status_current":   "Active",
		"original_zip":     "78702-1234",
	}
	p, err := a.Parse(rec)
	require.NoError(t, err)
	assert.Equal(t, "2024-000123 BP", p.PermitNum)
	assert.Equal(t, "3000100", p.MasterPermitNum)
	assert.Equal(t, "2024-03-15", p.IssueDate.Format("2006-01-02"))
	assert.Nil(t, p.SubmittedDate)
	assert.Equal(t, "1100 E 5TH ST, AUSTIN TX 78702", p.Address)
	assert.Equal(t, "78702", p.ZipCode)
	require.True(t, p.HasCoordinates())
	assert.Equal(t, 30.2649, *p.Latitude)
	assert.Equal(t, -97.73, *p.Longitude)
	assert.Equal(t, 240, p.TotalUnits)
	assert.Equal(t, "NEW", p.WorkClass)
	assert.Equal(t, "Mixed-use apartments", p.ProjectName)
	assert.Equal(t, "Active", p.PermitStatus)
	assert.JSONEq(t, string(rec.JSON()), string(p.RawJSON))
}

func TestParseFallbacks(t *testing.T) {
	a, err := New(testConfig("http://unused"), austin(t))
	require.NoError(t, err)

	p, err := a.Parse(source.Record{
		"permit_number":    "P-1",
		"issue_date":       "2023-07-01T00:00:00.000",
		"location_address": "500 W 2ND ST AUSTIN TX 78701",
		"location":         map[string]interface{}{"latitude": "30.266", "longitude": "-97.747"},
		"housing_units":    "not a number",
	})
	require.NoError(t, err)
	assert.Equal(t, "78701", p.ZipCode)
	require.True(t, p.HasCoordinates())
	assert.Equal(t, 30.266, *p.Latitude)
	assert.Equal(t, 0, p.TotalUnits)
	assert.Empty(t, p.MasterPermitNum)

	// Out-of-metro coordinates are dropped, the record is kept.
	p, err = a.Parse(source.Record{
		"permit_number": "P-2",
		"issue_date":    "2023-07-01",
		"latitude":      "40.71",
		"longitude":     "-74.00",
	})
	require.NoError(t, err)
	assert.False(t, p.HasCoordinates())
}

func TestParseRejects(t *testing.T) {
	a, err := New(testConfig("http://unused"), austin(t))
	require.NoError(t, err)

	_, err = a.Parse(source.Record{"issue_date": "2024-01-01"})
	assert.ErrorIs(t, err, permit.ErrRejected)

	_, err = a.Parse(source.Record{"permit_number": "P-3"})
	assert.ErrorIs(t, err, permit.ErrRejected)

	_, err = a.Parse(source.Record{"permit_number": "P-4", "issue_date": "soon"})
	assert.ErrorIs(t, err, permit.ErrRejected)
}
