// Package pipeline sequences one ingestion run for a city: fetch, parse,
// store in independently committed batches, enrich, and always append an
// audit row describing the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

// Mode selects what a run fetches.
type Mode string

const (
	// Backfill fetches the full history.
	Backfill Mode = "backfill"
	// Incremental fetches permits issued after the stored watermark.
	Incremental Mode = "incremental"
	// EnrichOnly skips fetching and rebuilds enrichment.
	EnrichOnly Mode = "enrich"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Backfill, Incremental, EnrichOnly:
		return m, nil
	}
	return "", fmt.Errorf("unknown run mode %q", s)
}

// State is the phase a run is in.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateParsing   State = "parsing"
	StateStoring   State = "storing"
	StateEnriching State = "enriching"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Store is the persistence the orchestrator needs. store.Store and
// memstore.Store both satisfy it.
type Store interface {
	UpsertBatch(ctx context.Context, permits []permit.Permit) (int, error)
	Reconnect(ctx context.Context) error
	Watermark(ctx context.Context) (*time.Time, error)
	Enrich(ctx context.Context) (int64, error)
	RecordRun(ctx context.Context, run *store.PipelineRun) error
}

// Progress is a point-in-time view of the current or last run.
type Progress struct {
	RunID        string     `json:"run_id,omitempty"`
	City         string     `json:"city"`
	Mode         Mode       `json:"mode,omitempty"`
	State        State      `json:"state"`
	Fetched      int        `json:"fetched"`
	Parsed       int        `json:"parsed"`
	Rejected     int        `json:"rejected"`
	Stored       int        `json:"stored"`
	New          int        `json:"new"`
	Enriched     int        `json:"enriched"`
	BatchesDone  int        `json:"batches_done"`
	BatchesTotal int        `json:"batches_total"`
	Error        string     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Orchestrator runs the pipeline for one city. Runs must not overlap; the
// scheduler calls Run inline.
type Orchestrator struct {
	city    market.City
	adapter source.Adapter
	store   Store

	mu       sync.Mutex
	progress Progress
}

// New creates an orchestrator. adapter may be nil when only EnrichOnly runs
// are made.
func New(city market.City, adapter source.Adapter, st Store) *Orchestrator {
	return &Orchestrator{
		city:     city,
		adapter:  adapter,
		store:    st,
		progress: Progress{City: city.Name, State: StateIdle},
	}
}

// Progress returns a snapshot of the current or last run.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

func (o *Orchestrator) update(fn func(p *Progress)) {
	o.mu.Lock()
	fn(&o.progress)
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.update(func(p *Progress) { p.State = s })
	log.Printf("[pipeline] %s: %s", o.city.Name, s)
}

// Run executes one run and returns its audit row. The audit row is written
// even when the run fails or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (store.PipelineRun, error) {
	start := time.Now()
	run := store.PipelineRun{
		ID:      uuid.New(),
		RunAt:   start.UTC(),
		RunType: string(mode),
		City:    o.city.Name,
	}
	o.update(func(p *Progress) {
		*p = Progress{RunID: run.ID.String(), City: o.city.Name, Mode: mode, State: StateIdle, StartedAt: &start}
	})
	log.Printf("[pipeline] %s: %s run %s started", o.city.Name, mode, run.ID)

	err := o.execute(ctx, mode, &run)

	finished := time.Now()
	run.DurationSecs = finished.Sub(start).Seconds()
	if err != nil {
		run.State = string(StateFailed)
		msg := err.Error()
		run.Errors = &msg
	} else {
		run.State = string(StateDone)
	}
	o.update(func(p *Progress) {
		p.State = State(run.State)
		p.FinishedAt = &finished
		if err != nil {
			p.Error = err.Error()
		}
	})

	if recErr := o.store.RecordRun(context.WithoutCancel(ctx), &run); recErr != nil {
		log.Printf("[pipeline] %s: record run: %v", o.city.Name, recErr)
		if err == nil {
			err = fmt.Errorf("record run: %w", recErr)
		} else {
			err = errors.Join(err, fmt.Errorf("record run: %w", recErr))
		}
	}

	if err != nil {
		log.Printf("[pipeline] %s: %s run failed after %.1fs: %v", o.city.Name, mode, run.DurationSecs, err)
	} else {
		log.Printf("[pipeline] %s: %s run done in %.1fs fetched=%d parsed=%d rejected=%d new=%d enriched=%d",
			o.city.Name, mode, run.DurationSecs, run.RecordsFetched, run.RecordsParsed,
			run.RecordsRejected, run.RecordsNew, run.RecordsEnriched)
	}
	return run, err
}

func (o *Orchestrator) execute(ctx context.Context, mode Mode, run *store.PipelineRun) error {
	switch mode {
	case Backfill, Incremental:
		if o.adapter == nil {
			return fmt.Errorf("%s run needs a source adapter", mode)
		}
		if err := o.ingest(ctx, mode, run); err != nil {
			return err
		}
	case EnrichOnly:
	default:
		return fmt.Errorf("unknown run mode %q", mode)
	}

	o.setState(StateEnriching)
	n, err := o.store.Enrich(ctx)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	run.RecordsEnriched = int(n)
	o.update(func(p *Progress) { p.Enriched = int(n) })
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context, mode Mode, run *store.PipelineRun) error {
	var since *time.Time
	if mode == Incremental {
		wm, err := o.store.Watermark(ctx)
		if err != nil {
			return fmt.Errorf("read watermark: %w", err)
		}
		since = wm
		if since == nil {
			log.Printf("[pipeline] %s: store is empty, incremental run fetches full history", o.city.Name)
		} else {
			log.Printf("[pipeline] %s: incremental since %s", o.city.Name, since.Format("2006-01-02"))
		}
	}

	o.setState(StateFetching)
	records, err := o.adapter.Fetch(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	run.RecordsFetched = len(records)
	o.update(func(p *Progress) { p.Fetched = len(records) })

	o.setState(StateParsing)
	permits := make([]permit.Permit, 0, len(records))
	for _, rec := range records {
		p, err := o.adapter.Parse(rec)
		if err != nil {
			run.RecordsRejected++
			source.LogReject(o.adapter.Name(), "", err)
			continue
		}
		permits = append(permits, p)
	}
	run.RecordsParsed = len(permits)
	o.update(func(p *Progress) {
		p.Parsed = run.RecordsParsed
		p.Rejected = run.RecordsRejected
	})
	log.Printf("[pipeline] %s: parsed %d permits, rejected %d", o.city.Name, run.RecordsParsed, run.RecordsRejected)

	o.setState(StateStoring)
	return o.storeBatches(ctx, permits, run)
}

func (o *Orchestrator) storeBatches(ctx context.Context, permits []permit.Permit, run *store.PipelineRun) error {
	size := o.city.BatchSize
	if size <= 0 {
		size = len(permits)
	}
	total := 0
	if size > 0 {
		total = (len(permits) + size - 1) / size
	}
	o.update(func(p *Progress) { p.BatchesTotal = total })

	for i, batchNo := 0, 1; i < len(permits); i, batchNo = i+size, batchNo+1 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		end := i + size
		if end > len(permits) {
			end = len(permits)
		}
		batch := permits[i:end]

		n, err := o.writeBatch(ctx, batchNo, batch)
		if err != nil {
			return err
		}
		run.RecordsNew += n
		o.update(func(p *Progress) {
			p.BatchesDone = batchNo
			p.Stored += len(batch)
			p.New += n
		})
		log.Printf("[pipeline] %s: batch %d/%d committed (%d permits, %d new)", o.city.Name, batchNo, total, len(batch), n)
	}
	return nil
}

// writeBatch commits one batch. A failed batch gets one retry on a fresh
// connection; earlier batches stay committed either way.
func (o *Orchestrator) writeBatch(ctx context.Context, batchNo int, batch []permit.Permit) (int, error) {
	n, err := o.store.UpsertBatch(ctx, batch)
	if err == nil {
		return n, nil
	}
	log.Printf("[pipeline] %s: batch %d failed, reconnecting: %v", o.city.Name, batchNo, err)

	if rerr := o.store.Reconnect(ctx); rerr != nil {
		return 0, fmt.Errorf("batch %d: %w (reconnect: %v)", batchNo, err, rerr)
	}
	n, err = o.store.UpsertBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("batch %d failed after reconnect: %w", batchNo, err)
	}
	return n, nil
}
