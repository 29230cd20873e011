// flatwatch — apartment listing monitor.
//
// Periodically scrapes configured listing sources, normalizes and
// deduplicates what they return, and pushes new matches under the
// configured price ceiling to Telegram.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flatwatch/internal/config"
	"flatwatch/internal/db"
	"flatwatch/internal/dedup"
	"flatwatch/internal/filter"
	"flatwatch/internal/httpapi"
	"flatwatch/internal/model"
	"flatwatch/internal/notify"
	"flatwatch/internal/parser"
	"flatwatch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[main] Postgres: %v", err)
	}
	defer pool.Close()

	var store dedup.Store
	store, err = dedup.NewPostgresStore(ctx, pool)
	if err != nil {
		log.Fatalf("[main] Dedup store: %v", err)
	}

	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("[main] Redis: %v", err)
		}
		defer rdb.Close()
		store = dedup.NewCachedStore(store, rdb, cfg.CacheTTL)
		log.Println("[main] Fingerprint cache enabled")
	}

	var channel notify.Channel
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		channel = notify.NewTelegramChannel(cfg.TelegramToken)
	} else {
		log.Println("[main] TELEGRAM_BOT_TOKEN / TELEGRAM_CHANNEL_ID not set, notifications go to the log")
		channel = notify.LogChannel{}
	}
	dispatcher := notify.NewDispatcher(channel, cfg.TelegramChatID)

	sourceConfigs, err := config.LoadSources(cfg.SourcesPath, cfg.CheckInterval)
	if err != nil {
		log.Fatalf("[main] Sources: %v", err)
	}

	sources := make([]scheduler.Source, 0, len(sourceConfigs))
	for _, sc := range sourceConfigs {
		p, err := parser.New(sc)
		if err != nil {
			log.Fatalf("[main] Source %s: %v", sc.ID, err)
		}
		sources = append(sources, scheduler.Source{Config: sc, Parser: p})
	}

	sched := scheduler.New(store, dispatcher, cfg.Criteria(), scheduler.Options{})

	reload := func() (filter.Criteria, []model.SourceConfig, error) {
		fresh, err := config.Load()
		if err != nil {
			return filter.Criteria{}, nil, err
		}
		srcs, err := config.LoadSources(fresh.SourcesPath, fresh.CheckInterval)
		if err != nil {
			return filter.Criteria{}, nil, err
		}
		return fresh.Criteria(), srcs, nil
	}
	maint, err := scheduler.NewMaintenance(sched, store, reload, cfg.ReloadInterval, cfg.Retention)
	if err != nil {
		log.Fatalf("[main] Maintenance: %v", err)
	}
	maint.Start()
	defer maint.Stop()

	api := httpapi.New(cfg.HTTPAddr, store, sched)
	api.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Shutdown(sctx); err != nil {
			log.Printf("[main] HTTP shutdown: %v", err)
		}
	}()

	log.Printf("[main] Monitoring %d source(s), max price %d", len(sources), cfg.MaxPrice)
	sched.Run(ctx, sources)
	log.Println("[main] Shutdown complete")
}
