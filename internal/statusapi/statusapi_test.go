package statusapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/pipeline"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/project"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/statusapi"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store/memstore"
)

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func seeded(t *testing.T) *memstore.Store {
	t.Helper()
	city, err := market.Lookup("austin")
	require.NoError(t, err)
	s := memstore.New(city, nil)
	ctx := context.Background()

	_, err = s.UpsertBatch(ctx, []permit.Permit{
		{PermitNum: "B-1", MasterPermitNum: "M-1", IssueDate: date("2024-02-01"), ZipCode: "78702", WorkClass: "NEW", TotalUnits: 40, Address: "1 E 6TH ST"},
		{PermitNum: "B-2", MasterPermitNum: "M-1", IssueDate: date("2024-03-01"), ZipCode: "78702", WorkClass: "NEW", TotalUnits: 40, Address: "1 E 6TH ST"},
		{PermitNum: "B-3", IssueDate: date("2024-05-01"), ZipCode: "78704", WorkClass: "NEW", TotalUnits: 12, Address: "9 S LAMAR"},
		{PermitNum: "B-4", IssueDate: date("2024-05-02"), ZipCode: "78799", WorkClass: "NEW", TotalUnits: 3, Address: "TOO SMALL"},
	})
	require.NoError(t, err)
	_, err = s.Enrich(ctx)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := statusapi.New(seeded(t), nil, nil)
	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestStatus(t *testing.T) {
	h := statusapi.New(seeded(t), nil, nil)
	rec := get(t, h, "/status?top=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		City            string                 `json:"city"`
		RawPermits      int64                  `json:"raw_permits"`
		EnrichedPermits int64                  `json:"enriched_permits"`
		Projects        int64                  `json:"projects"`
		MatchRate       float64                `json:"match_rate"`
		TopSubmarkets   []store.SubmarketUnits `json:"top_submarkets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "austin", body.City)
	assert.Equal(t, int64(4), body.RawPermits)
	assert.Equal(t, int64(4), body.EnrichedPermits)
	assert.Equal(t, int64(2), body.Projects)
	assert.InDelta(t, 0.75, body.MatchRate, 1e-9)
	require.Len(t, body.TopSubmarkets, 1)
	assert.Equal(t, 40, body.TopSubmarkets[0].Units)
}

func TestStatusRejectsBadTop(t *testing.T) {
	h := statusapi.New(seeded(t), nil, nil)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/status?top=zero").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/status?top=-3").Code)
}

func TestProjectsLimit(t *testing.T) {
	h := statusapi.New(seeded(t), nil, nil)

	rec := get(t, h, "/projects")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []project.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "B-3", all[0].PermitNum)
	assert.Equal(t, "B-2", all[1].PermitNum)
	assert.Equal(t, "M-1", all[1].ProjectKey)

	rec = get(t, h, "/projects?limit=1")
	var one []project.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Len(t, one, 1)
}

func TestDeliveries(t *testing.T) {
	h := statusapi.New(seeded(t), nil, nil)
	rec := get(t, h, "/deliveries")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []project.Delivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	total := 0
	for _, d := range rows {
		total += d.TotalUnitsDelivered
	}
	assert.Equal(t, 52, total)
}

func TestCurrentRun(t *testing.T) {
	h := statusapi.New(seeded(t), nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/current").Code)

	progress := func() pipeline.Progress {
		return pipeline.Progress{City: "austin", Mode: pipeline.Incremental, State: pipeline.StateStoring, BatchesDone: 2, BatchesTotal: 5}
	}
	h = statusapi.New(seeded(t), progress, nil)
	rec := get(t, h, "/runs/current")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "storing", rec.Header().Get("X-Pipeline-State"))

	var p pipeline.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 2, p.BatchesDone)
}

type failingReader struct{}

func (failingReader) Status(context.Context, int) (store.Status, error) {
	return store.Status{}, errors.New("connection refused")
}

func (failingReader) Projects(context.Context, int) ([]project.Project, error) {
	return nil, errors.New("connection refused")
}

func (failingReader) Deliveries(context.Context) ([]project.Delivery, error) {
	return nil, nil
}

func TestReaderErrors(t *testing.T) {
	h := statusapi.New(failingReader{}, nil, nil)
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/status").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/projects").Code)

	rec := get(t, h, "/deliveries")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCORSAllowList(t *testing.T) {
	h := statusapi.New(seeded(t), nil, []string{"https://dash.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
