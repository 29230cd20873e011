package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"flatwatch/internal/dedup"
	"flatwatch/internal/filter"
	"flatwatch/internal/model"
)

// ReloadFunc re-reads filter criteria and source configs from wherever the
// operator keeps them (env + sources file).
type ReloadFunc func() (filter.Criteria, []model.SourceConfig, error)

// Maintenance wires up the cron jobs that run beside the polling loops:
// periodic config hot-reload and the daily history purge.
type Maintenance struct {
	cron *cron.Cron
}

// NewMaintenance registers the jobs. reload runs every reloadEvery; the
// purge job runs daily when retention > 0 and is skipped otherwise.
func NewMaintenance(sched *Scheduler, store dedup.Store, reload ReloadFunc, reloadEvery, retention time.Duration) (*Maintenance, error) {
	c := cron.New()

	if reload != nil && reloadEvery > 0 {
		_, err := c.AddFunc("@every "+reloadEvery.String(), func() {
			criteria, sources, err := reload()
			if err != nil {
				log.Printf("[maintenance] Config reload failed, keeping previous config: %v", err)
				return
			}
			sched.SetCriteria(criteria)
			sched.UpdateSources(sources)
		})
		if err != nil {
			return nil, err
		}
	}

	if retention > 0 {
		_, err := c.AddFunc("@daily", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, err := store.Purge(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Printf("[maintenance] Purge failed: %v", err)
				return
			}
			log.Printf("[maintenance] Purged %d listing(s) older than %s", n, retention)
		})
		if err != nil {
			return nil, err
		}
	}

	return &Maintenance{cron: c}, nil
}

// Start launches the cron loop.
func (m *Maintenance) Start() {
	m.cron.Start()
	log.Println("[maintenance] Cron started")
}

// Stop shuts the cron loop down.
func (m *Maintenance) Stop() {
	m.cron.Stop()
	log.Println("[maintenance] Cron stopped")
}
