package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phiphung-web/redirect/internal/api"
	"github.com/phiphung-web/redirect/internal/config"
	"github.com/phiphung-web/redirect/internal/engine"
	"github.com/phiphung-web/redirect/internal/geo"
	"github.com/phiphung-web/redirect/internal/listener"
	"github.com/phiphung-web/redirect/internal/report"
	"github.com/phiphung-web/redirect/internal/storage"
	"github.com/phiphung-web/redirect/internal/traffic"
)

func Run(cfg config.Config) {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	defer store.Close()

	// Geo
	var resolver geo.Resolver
	if cfg.Geo.DBPath != "" {
		mm, err := geo.OpenMaxMind(cfg.Geo.DBPath, cfg.Geo.FallbackCountry)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Geo.DBPath).Msg("init geoip")
		}
		defer mm.Close()
		resolver = mm
	} else {
		log.Warn().Str("fallback", cfg.Geo.FallbackCountry).Msg("no geoip database configured; every visit resolves to the fallback country")
		resolver = geo.Static{Location: geo.Location{Country: cfg.Geo.FallbackCountry}}
	}

	// Engine snapshot
	eng := engine.New()
	if err := eng.BuildSnapshot(rootCtx, store); err != nil {
		log.Fatal().Err(err).Msg("initial snapshot build")
	}

	// Outcome logger
	recorder := traffic.NewRecorder(store, cfg.Traffic.QueueSize)

	// HTTP
	decide := api.NewDecisionHandler(eng, resolver, recorder, store)
	reports := api.NewReportHandler(report.NewService(store, cfg.Traffic.RecentLimit), store)

	public := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.PublicRouter(decide),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ops := &http.Server{
		Addr:         cfg.Server.AdminAddr,
		Handler:      api.OpsRouter(reports),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Config change feed + periodic safety net
	go listener.ListenAndRefresh(rootCtx, store, eng, cfg.Listener.Channel, cfg.Backoff())
	go listener.RefreshPeriodically(rootCtx, store, eng, cfg.RefreshEvery())

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("decision server starting")
		if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("decision server crashed")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.Server.AdminAddr).Msg("ops server starting")
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = public.Shutdown(shCtx)
	_ = ops.Shutdown(shCtx)
	recorder.Close() // drain queued traffic events before the pool closes
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
