// Package scheduler drives periodic, per-source fetch cycles. Each enabled
// source runs on its own timer: one source's cycle duration or failure
// never delays another's, and each source's own cycles are strictly
// sequential.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"flatwatch/internal/dedup"
	"flatwatch/internal/filter"
	"flatwatch/internal/model"
	"flatwatch/internal/normalize"
	"flatwatch/internal/parser"
)

// Source pairs a parser with its polling configuration.
type Source struct {
	Config model.SourceConfig
	Parser parser.Parser
}

// Dispatcher sends the notification for one accepted listing.
type Dispatcher interface {
	Dispatch(ctx context.Context, l model.Listing) error
}

// State is a source runner's position in its cycle, exposed through Snapshot.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateBackoff    State = "backoff"
	StateDisabled   State = "disabled"
)

// Options tune the scheduler. Zero values take defaults.
type Options struct {
	FetchTimeout time.Duration // per-fetch deadline (default 60s)
	StoreTimeout time.Duration // per store call (default 5s)
	BackoffCap   int           // max backoff as a multiple of the base interval (default 8)
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 60 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 8
	}
	return o
}

// Scheduler owns one runner goroutine per source.
type Scheduler struct {
	store      dedup.Store
	dispatcher Dispatcher
	opts       Options

	mu       sync.RWMutex
	criteria filter.Criteria
	runners  map[string]*runner
}

// New creates a Scheduler. Criteria may be swapped later via SetCriteria.
func New(store dedup.Store, dispatcher Dispatcher, criteria filter.Criteria, opts Options) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
		criteria:   criteria,
		runners:    make(map[string]*runner),
	}
}

// SetCriteria replaces the filter criteria. Runners pick the new value up
// at their next cycle boundary.
func (s *Scheduler) SetCriteria(c filter.Criteria) {
	s.mu.Lock()
	s.criteria = c
	s.mu.Unlock()
}

// Criteria returns the criteria in effect for the next cycle.
func (s *Scheduler) Criteria() filter.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// UpdateSources applies new per-source configs (interval, enabled flag) to
// running sources, matched by id. Unknown ids are logged and ignored;
// adding a source requires a restart.
func (s *Scheduler) UpdateSources(configs []model.SourceConfig) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cfg := range configs {
		r, ok := s.runners[cfg.ID]
		if !ok {
			log.Printf("[scheduler] Config for unknown source %q ignored (restart to add sources)", cfg.ID)
			continue
		}
		r.updateConfig(cfg)
	}
}

// Run starts one runner per source and blocks until ctx is cancelled and
// every runner has observed the cancellation at its next suspension point.
func (s *Scheduler) Run(ctx context.Context, sources []Source) {
	var wg sync.WaitGroup

	s.mu.Lock()
	for _, src := range sources {
		r := newRunner(src)
		s.runners[src.Config.ID] = r
		wg.Add(1)
		go func(r *runner) {
			defer wg.Done()
			s.runSource(ctx, r)
		}(r)
	}
	s.mu.Unlock()

	log.Printf("[scheduler] Started %d source runner(s)", len(sources))
	wg.Wait()
	log.Println("[scheduler] All source runners stopped")
}

// runSource is the per-source loop: cycle, then wait for the interval (or
// the backoff delay after a fetch failure), until shutdown.
func (s *Scheduler) runSource(ctx context.Context, r *runner) {
	for {
		cfg := r.config()
		delay := cfg.Interval

		if !cfg.Enabled {
			r.setState(StateDisabled)
		} else {
			res := s.runCycle(ctx, r)
			r.finishCycle(res)

			if res.fetchErr != nil {
				// Fetch failures back off; storage failures retry at the
				// plain interval once the store recovers.
				r.failures++
				delay = backoffDelay(cfg.Interval, r.failures, s.opts.BackoffCap)
				r.setState(StateBackoff)
				log.Printf("[scheduler] Source %s fetch failed (attempt %d, next in %s): %v",
					cfg.ID, r.failures, delay, res.fetchErr)
			} else {
				r.failures = 0
				r.setState(StateIdle)
				if res.storeErr != nil {
					log.Printf("[scheduler] Source %s cycle aborted, store unavailable: %v", cfg.ID, res.storeErr)
				} else {
					log.Printf("[scheduler] Source %s cycle done: fetched=%d skipped=%d invalid=%d new=%d dispatched=%d",
						cfg.ID, res.fetched, res.skippedParse, res.invalid, res.recorded, res.dispatched)
				}
			}
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			r.setState(StateIdle)
			return
		case <-t.C:
		}
	}
}

// cycleResult aggregates one fetch-normalize-dedup-filter-dispatch pass.
type cycleResult struct {
	fetched      int
	skippedParse int
	invalid      int
	known        int
	recorded     int
	filtered     int
	dispatched   int

	fetchErr error
	storeErr error
}

// runCycle executes one complete cycle for r's source.
//
// Processing is two-phase: every valid listing is dedup-checked-and-recorded
// first, in parser order, and only then are the newly recorded ones filtered
// and dispatched. A StorageError therefore always aborts the cycle before
// any dispatch. A listing that fails normalization is skipped and counted;
// a dispatch failure leaves the listing recorded as seen.
func (s *Scheduler) runCycle(ctx context.Context, r *runner) cycleResult {
	cfg := r.config()
	criteria := s.Criteria()
	var res cycleResult

	r.setState(StateFetching)
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	raws, skipped, err := r.source.Parser.Fetch(fctx)
	cancel()
	res.fetched = len(raws)
	res.skippedParse = skipped
	if err != nil {
		res.fetchErr = err
		return res
	}

	r.setState(StateProcessing)

	// Phase 1: record. Stable parser order, so an in-page duplicate
	// fingerprint is recorded (and later notified) only for the first copy.
	var fresh []model.Listing
	for _, raw := range raws {
		l, err := normalize.Normalize(raw, r.strategy)
		if err != nil {
			res.invalid++
			log.Printf("[scheduler] Source %s: dropping listing %q: %v", cfg.ID, raw.URL, err)
			continue
		}

		known, err := s.storeExists(ctx, l.Fingerprint)
		if err != nil {
			res.storeErr = err
			return res
		}
		if known {
			res.known++
			continue
		}

		inserted, err := s.storeRecord(ctx, l)
		if err != nil {
			res.storeErr = err
			return res
		}
		if !inserted {
			// Lost a race with a concurrent writer — already seen.
			res.known++
			continue
		}
		res.recorded++
		fresh = append(fresh, l)
	}

	// Phase 2: filter and dispatch the newly recorded listings.
	for _, l := range fresh {
		if !filter.Accepts(l, criteria) {
			res.filtered++
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, l); err != nil {
			// Listing stays seen: no-duplicate-notification wins over delivery.
			log.Printf("[scheduler] Source %s: dispatch failed for %.12s: %v", cfg.ID, l.Fingerprint, err)
			continue
		}
		res.dispatched++
	}

	return res
}

func (s *Scheduler) storeExists(ctx context.Context, fingerprint string) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.store.Exists(sctx, fingerprint)
}

func (s *Scheduler) storeRecord(ctx context.Context, l model.Listing) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.store.Record(sctx, l)
}

// backoffDelay returns base * 2^(failures-1), capped at capMult * base.
// Non-decreasing in failures.
func backoffDelay(base time.Duration, failures, capMult int) time.Duration {
	if failures < 1 {
		return base
	}
	mult := 1
	for i := 1; i < failures && mult < capMult; i++ {
		mult *= 2
	}
	if mult > capMult {
		mult = capMult
	}
	return base * time.Duration(mult)
}
