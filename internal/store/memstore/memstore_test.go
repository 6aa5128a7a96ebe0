package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newStore(t *testing.T, city string, subs ...geo.Submarket) *Store {
	t.Helper()
	c, err := market.Lookup(city)
	require.NoError(t, err)
	return New(c, subs)
}

func TestUpsertIdempotent(t *testing.T) {
	s := newStore(t, "austin")
	ctx := context.Background()
	p := permit.Permit{PermitNum: "P-1", IssueDate: date("2024-01-01"), TotalUnits: 10}

	isNew, err := s.Upsert(ctx, p)
	require.NoError(t, err)
	assert.True(t, isNew)

	p.TotalUnits = 11
	isNew, err = s.Upsert(ctx, p)
	require.NoError(t, err)
	assert.False(t, isNew)

	n, _ := s.CountRaw(ctx)
	assert.Equal(t, int64(1), n)
	got, ok := s.Permit("P-1")
	require.True(t, ok)
	assert.Equal(t, 11, got.TotalUnits)

	inserted, err := s.UpsertBatch(ctx, []permit.Permit{p, {PermitNum: "P-2", IssueDate: date("2024-01-02")}})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestWatermark(t *testing.T) {
	s := newStore(t, "sanantonio")
	ctx := context.Background()

	wm, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.Nil(t, wm)

	_, _ = s.UpsertBatch(ctx, []permit.Permit{
		{PermitNum: "A", IssueDate: date("2024-03-01")},
		{PermitNum: "B", IssueDate: date("2024-05-20")},
		{PermitNum: "C", SubmittedDate: date("2025-01-01")},
	})
	wm, err = s.Watermark(ctx)
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, "2024-05-20", wm.Format("2006-01-02"))
}

func TestMasterPermitScenario(t *testing.T) {
	core := geo.Submarket{
		ID:       "CBD",
		Name:     "Downtown",
		Geometry: orb.MultiPolygon{{{{-97.8, 30.2}, {-97.7, 30.2}, {-97.7, 30.3}, {-97.8, 30.3}, {-97.8, 30.2}}}},
	}
	s := newStore(t, "austin", core)
	ctx := context.Background()
	lat, lon := 30.25, -97.75

	_, err := s.UpsertBatch(ctx, []permit.Permit{
		{PermitNum: "P1", MasterPermitNum: "M1", IssueDate: date("2024-01-10"), TotalUnits: 200, WorkClass: "NEW", Latitude: &lat, Longitude: &lon},
		{PermitNum: "P2", MasterPermitNum: "M1", IssueDate: date("2024-03-05"), TotalUnits: 200, WorkClass: "NEW", Latitude: &lat, Longitude: &lon},
	})
	require.NoError(t, err)

	n, err := s.Enrich(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	projects, err := s.Projects(ctx, 0)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "P2", projects[0].PermitNum)
	assert.Equal(t, "2024-03-05", projects[0].IssueDate.Format("2006-01-02"))
	assert.Equal(t, "Downtown", projects[0].SubmarketName)

	deliveries, err := s.Deliveries(ctx)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "2024-Q1", deliveries[0].DeliveryYYYYQ)
	assert.Equal(t, 200, deliveries[0].TotalUnitsDelivered)
	assert.Equal(t, 1, deliveries[0].ProjectCount)
}

func TestEnrichZipFallback(t *testing.T) {
	s := newStore(t, "austin")
	ctx := context.Background()
	_, _ = s.UpsertBatch(ctx, []permit.Permit{
		{PermitNum: "Z1", IssueDate: date("2024-02-02"), TotalUnits: 50, WorkClass: "NEW", ZipCode: "78704"},
		{PermitNum: "Z2", IssueDate: date("2024-02-02"), TotalUnits: 50, WorkClass: "NEW", ZipCode: "90210"},
	})
	_, err := s.Enrich(ctx)
	require.NoError(t, err)

	rows, _ := s.EnrichedPermits(ctx)
	require.Len(t, rows, 2)
	want, _ := s.City().SubmarketForZip("78704")
	assert.Equal(t, want, rows[0].SubmarketName)
	assert.Equal(t, geo.MatchZip, rows[0].MatchSource)
	assert.Empty(t, rows[1].SubmarketName)

	st, err := s.Status(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.EnrichedPermits)
	assert.Equal(t, int64(1), st.MatchedPermits)
	assert.InDelta(t, 0.5, st.MatchRate(), 1e-9)
	require.Len(t, st.TopSubmarkets, 1)
	assert.Equal(t, 50, st.TopSubmarkets[0].Units)
	assert.Nil(t, st.TotalAreaSF)
}

func TestRuns(t *testing.T) {
	s := newStore(t, "sanantonio")
	ctx := context.Background()

	last, _ := s.LastRun(ctx)
	assert.Nil(t, last)

	require.NoError(t, s.RecordRun(ctx, &store.PipelineRun{RunType: "backfill", State: "done"}))
	require.NoError(t, s.RecordRun(ctx, &store.PipelineRun{RunType: "incremental", State: "failed"}))

	last, _ = s.LastRun(ctx)
	require.NotNil(t, last)
	assert.Equal(t, "incremental", last.RunType)

	runs, _ := s.Runs(ctx, 1)
	require.Len(t, runs, 1)
	assert.Equal(t, "incremental", runs[0].RunType)
}

func TestStatusArea(t *testing.T) {
	s := newStore(t, "sanantonio")
	ctx := context.Background()
	a, b := 9000, 27000
	_, _ = s.UpsertBatch(ctx, []permit.Permit{
		{PermitNum: "A", IssueDate: date("2024-01-01"), TotalUnits: 10, AreaSF: &a},
		{PermitNum: "B", IssueDate: date("2024-01-01"), TotalUnits: 30, AreaSF: &b},
	})
	st, err := s.Status(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, st.TotalAreaSF)
	assert.Equal(t, int64(36000), *st.TotalAreaSF)
	assert.InDelta(t, 18000.0, *st.AvgAreaSF, 1e-9)
}

func TestStatusTopN(t *testing.T) {
	s := newStore(t, "austin")
	ctx := context.Background()
	_, _ = s.UpsertBatch(ctx, []permit.Permit{
		{PermitNum: "A", IssueDate: date("2024-01-01"), ZipCode: "78702", WorkClass: "NEW", TotalUnits: 10},
		{PermitNum: "B", IssueDate: date("2024-01-01"), ZipCode: "78704", WorkClass: "NEW", TotalUnits: 30},
	})
	_, _ = s.Enrich(ctx)

	for _, n := range []int{0, -1} {
		st, err := s.Status(ctx, n)
		require.NoError(t, err)
		assert.NotNil(t, st.TopSubmarkets)
		assert.Empty(t, st.TopSubmarkets, "topN=%d", n)
	}

	st, err := s.Status(ctx, 1)
	require.NoError(t, err)
	require.Len(t, st.TopSubmarkets, 1)
	assert.Equal(t, "South Central Austin", st.TopSubmarkets[0].SubmarketName)
}
