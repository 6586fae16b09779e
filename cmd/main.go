package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"anomaly-monitor/internal/analytics"
	"anomaly-monitor/internal/cache"
	"anomaly-monitor/internal/classifier"
	"anomaly-monitor/internal/collector"
	"anomaly-monitor/internal/config"
	"anomaly-monitor/internal/eventlog"
	"anomaly-monitor/internal/explain"
	"anomaly-monitor/internal/monitor"
	"anomaly-monitor/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	profileFlag := flag.String("profile", "", "monitoring profile: host, server or network")
	flag.Parse()

	if *profileFlag != "" {
		os.Setenv("MONITOR_PROFILE", *profileFlag)
	}

	cfg, err := config.Load(*configPath)
	logger := newLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	profile, err := monitor.LookupProfile(cfg.Profile)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid profile")
	}

	var model classifier.Classifier = classifier.Disabled{}
	if profile.Classify {
		adapter, err := classifier.LoadAdapter(cfg.Models.Binary, cfg.Models.Multiclass)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load classifier models")
		}
		model = adapter
	}

	store, err := eventlog.Open(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open event log")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mirror monitor.Mirror
	var statusCache server.Cache
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		redisClient, err := cache.NewRedisClient(pingCtx, cfg.RedisAddr, "monitor:"+profile.Name)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, continuing without mirror")
		} else {
			defer redisClient.Close()
			mirror = redisClient
			statusCache = redisClient
		}
	}

	var narrator explain.Narrator
	if cfg.NarrativeActive() {
		narrator = explain.NewNarrativeClient(explain.NarrativeConfig{
			URL:         cfg.Narrative.URL,
			Model:       cfg.Narrative.Model,
			APIKey:      cfg.Narrative.APIKey,
			Temperature: cfg.Narrative.Temperature,
			Timeout:     cfg.Narrative.Timeout,
		})
	} else {
		logger.Info().Msg("narrative augmentation disabled, using rule-based explanations")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stats := analytics.NewStats(profile.Name, 50)
	loop, err := monitor.NewLoop(monitor.Options{
		Profile:  profile,
		Interval: cfg.Interval,
		Provider: collector.NewHostProvider(cfg.CPUSampleWindow),
		Store:    store,
		Detector: analytics.ThresholdDetector{
			CPU:    cfg.Thresholds.CPU,
			Memory: cfg.Thresholds.Memory,
			Disk:   cfg.Thresholds.Disk,
		},
		PortScans:  analytics.NewPortScanTracker(cfg.PortScanThreshold),
		Classifier: model,
		Explainer:  explain.NewGenerator(narrator, logger),
		Stats:      stats,
		Mirror:     mirror,
		Metrics:    monitor.NewMetrics(reg),
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build monitoring loop")
	}

	var wg sync.WaitGroup
	if cfg.HTTPAddr != "" {
		srv := server.New(server.Options{
			Stats:    stats,
			Store:    store,
			Cache:    statusCache,
			Registry: reg,
			Logger:   logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	logger.Info().
		Str("profile", profile.Name).
		Str("store", cfg.Store.Kind).
		Str("path", cfg.Store.Path).
		Msg("anomaly monitor started")

	loop.Run(ctx)
	wg.Wait()
}
