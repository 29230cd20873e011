package scheduler

import (
	"log"
	"sort"
	"sync"
	"time"

	"flatwatch/internal/model"
	"flatwatch/internal/normalize"
)

// runner holds the mutable per-source state: current config (hot-reloadable),
// cycle state, consecutive failure count, and lifetime counters.
type runner struct {
	source   Source
	strategy normalize.Strategy

	// failures is only touched from the source's own goroutine.
	failures int

	mu    sync.Mutex
	cfg   model.SourceConfig
	state State
	stats SourceStatus
}

func newRunner(src Source) *runner {
	strategy, err := normalize.StrategyFor(src.Config.Fingerprint)
	if err != nil {
		// Configs are validated at load; fall back rather than die mid-run.
		log.Printf("[scheduler] Source %s: %v, using external_id fingerprints", src.Config.ID, err)
		strategy = normalize.ByExternalID
	}
	return &runner{
		source:   src,
		strategy: strategy,
		cfg:      src.Config,
		state:    StateIdle,
		stats:    SourceStatus{SourceID: src.Config.ID, State: StateIdle},
	}
}

func (r *runner) config() model.SourceConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// updateConfig swaps in the interval and enabled flag from a reloaded
// config. Identity-shaping fields (kind, url, fingerprint strategy) are
// fixed for the life of the runner.
func (r *runner) updateConfig(cfg model.SourceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.Interval > 0 {
		r.cfg.Interval = cfg.Interval
	}
	r.cfg.Enabled = cfg.Enabled
	if cfg.MaxItems > 0 {
		r.cfg.MaxItems = cfg.MaxItems
	}
}

func (r *runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.stats.State = s
	r.mu.Unlock()
}

// finishCycle folds one cycle's result into the lifetime counters.
func (r *runner) finishCycle(res cycleResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Cycles++
	r.stats.Fetched += int64(res.fetched)
	r.stats.SkippedParse += int64(res.skippedParse)
	r.stats.Invalid += int64(res.invalid)
	r.stats.Recorded += int64(res.recorded)
	r.stats.Dispatched += int64(res.dispatched)
	r.stats.LastCycleAt = time.Now()
	switch {
	case res.fetchErr != nil:
		r.stats.LastError = res.fetchErr.Error()
	case res.storeErr != nil:
		r.stats.LastError = res.storeErr.Error()
	default:
		r.stats.LastError = ""
	}
}

// SourceStatus is a point-in-time view of one source runner.
type SourceStatus struct {
	SourceID     string    `json:"source_id"`
	State        State     `json:"state"`
	Cycles       int64     `json:"cycles"`
	Fetched      int64     `json:"fetched"`
	SkippedParse int64     `json:"skipped_parse"`
	Invalid      int64     `json:"invalid"`
	Recorded     int64     `json:"recorded"`
	Dispatched   int64     `json:"dispatched"`
	LastError    string    `json:"last_error,omitempty"`
	LastCycleAt  time.Time `json:"last_cycle_at"`
}

// Snapshot returns the current status of every source runner.
func (s *Scheduler) Snapshot() []SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SourceStatus, 0, len(s.runners))
	for _, r := range s.runners {
		r.mu.Lock()
		st := r.stats
		r.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}
