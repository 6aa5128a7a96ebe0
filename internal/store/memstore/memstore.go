// Package memstore is an in-process implementation of the permit store. It
// backs dry runs and tests, resolving submarkets with geo.Resolver and
// building projects with the project fold instead of SQL views.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/geo"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/project"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

// Store holds one city's permits in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	city     market.City
	resolver *geo.Resolver
	raw      map[string]permit.Permit
	enriched map[string]project.EnrichedPermit
	runs     []store.PipelineRun
}

// New creates an empty store resolving against the city's crosswalk and
// the given submarket polygons.
func New(city market.City, submarkets []geo.Submarket) *Store {
	return &Store{
		city:     city,
		resolver: geo.NewResolver(submarkets, city.Crosswalk()),
		raw:      make(map[string]permit.Permit),
		enriched: make(map[string]project.EnrichedPermit),
	}
}

// City returns the city this store is scoped to.
func (s *Store) City() market.City { return s.city }

// Upsert inserts or replaces a permit; true means it was new.
func (s *Store) Upsert(_ context.Context, p permit.Permit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.raw[p.PermitNum]
	s.raw[p.PermitNum] = p
	return !exists, nil
}

// UpsertBatch upserts every permit and returns how many were new.
func (s *Store) UpsertBatch(ctx context.Context, permits []permit.Permit) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range permits {
		isNew, _ := s.Upsert(ctx, p)
		if isNew {
			n++
		}
	}
	return n, nil
}

// Reconnect is a no-op.
func (s *Store) Reconnect(context.Context) error { return nil }

// Watermark returns the latest issue date stored, nil when none.
func (s *Store) Watermark(context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *time.Time
	for _, p := range s.raw {
		if p.IssueDate != nil && (latest == nil || p.IssueDate.After(*latest)) {
			d := *p.IssueDate
			latest = &d
		}
	}
	return latest, nil
}

// Enrich rebuilds every enriched permit from the raw set.
func (s *Store) Enrich(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for num, p := range s.raw {
		e, ok := project.Enrich(p, s.resolver, s.city.ZipPattern)
		if !ok {
			continue
		}
		s.enriched[num] = e
		n++
	}
	return n, nil
}

// Permit returns a raw permit by number.
func (s *Store) Permit(num string) (permit.Permit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.raw[num]
	return p, ok
}

// CountRaw returns the number of raw permits.
func (s *Store) CountRaw(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.raw)), nil
}

// EnrichedPermits returns the enriched permits ordered by permit number.
func (s *Store) EnrichedPermits(context.Context) ([]project.EnrichedPermit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]project.EnrichedPermit, 0, len(s.enriched))
	for _, e := range s.enriched {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PermitNum < out[j].PermitNum })
	return out, nil
}

// Projects folds the enriched permits with the city's dedup rule.
func (s *Store) Projects(ctx context.Context, limit int) ([]project.Project, error) {
	rows, _ := s.EnrichedPermits(ctx)
	projects := project.Dedup(s.city.Dedup, rows)
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

// Deliveries aggregates every project by submarket and quarter.
func (s *Store) Deliveries(ctx context.Context) ([]project.Delivery, error) {
	projects, _ := s.Projects(ctx, 0)
	return project.Aggregate(projects), nil
}

// RecordRun appends a run to the in-memory audit log.
func (s *Store) RecordRun(_ context.Context, run *store.PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

// LastRun returns the latest recorded run, nil when none.
func (s *Store) LastRun(context.Context) (*store.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return nil, nil
	}
	last := s.runs[len(s.runs)-1]
	return &last, nil
}

// Runs returns recorded runs, newest first.
func (s *Store) Runs(_ context.Context, limit int) ([]store.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.PipelineRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

// Status mirrors store.Store.Status, including an empty ranking for topN <= 0.
func (s *Store) Status(ctx context.Context, topN int) (store.Status, error) {
	st := store.Status{City: s.city.Name}
	st.LastRun, _ = s.LastRun(ctx)
	st.RawPermits, _ = s.CountRaw(ctx)

	rows, _ := s.EnrichedPermits(ctx)
	st.EnrichedPermits = int64(len(rows))
	for _, e := range rows {
		if e.SubmarketName != "" {
			st.MatchedPermits++
		}
		d := e.IssueDate
		if st.EarliestIssue == nil || d.Before(*st.EarliestIssue) {
			st.EarliestIssue = &d
		}
		if st.LatestIssue == nil || d.After(*st.LatestIssue) {
			st.LatestIssue = &d
		}
	}

	projects := project.Dedup(s.city.Dedup, rows)
	st.Projects = int64(len(projects))

	bySub := map[string]*store.SubmarketUnits{}
	for _, p := range projects {
		if p.SubmarketName == "" {
			continue
		}
		su, ok := bySub[p.SubmarketName]
		if !ok {
			su = &store.SubmarketUnits{SubmarketName: p.SubmarketName}
			bySub[p.SubmarketName] = su
		}
		su.Projects++
		su.Units += p.TotalUnits
	}
	st.TopSubmarkets = []store.SubmarketUnits{}
	for _, su := range bySub {
		st.TopSubmarkets = append(st.TopSubmarkets, *su)
	}
	sort.Slice(st.TopSubmarkets, func(i, j int) bool {
		a, b := st.TopSubmarkets[i], st.TopSubmarkets[j]
		if a.Units != b.Units {
			return a.Units > b.Units
		}
		return a.SubmarketName < b.SubmarketName
	})
	if topN <= 0 {
		st.TopSubmarkets = []store.SubmarketUnits{}
	} else if len(st.TopSubmarkets) > topN {
		st.TopSubmarkets = st.TopSubmarkets[:topN]
	}

	s.mu.RLock()
	var count, sum int64
	for _, p := range s.raw {
		if p.AreaSF != nil {
			count++
			sum += int64(*p.AreaSF)
		}
	}
	s.mu.RUnlock()
	if count > 0 {
		avg := float64(sum) / float64(count)
		st.TotalAreaSF, st.AvgAreaSF = &sum, &avg
	}
	return st, nil
}
