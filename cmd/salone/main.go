package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"salone/internal/cache"
	"salone/internal/cli"
	apphttp "salone/internal/http"
	"salone/internal/ingest"
	"salone/internal/log"
	"salone/internal/metrics"
	"salone/internal/services"
	"salone/internal/session"
	"salone/internal/sheets/xlsx"
	"salone/internal/suggest"
)

func main() {
	boot := log.Default(log.ComponentApp)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		boot.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		boot.Error("Invalid log configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	chartCache := cache.NewLRUCache[[]byte](cfg.SessionMax*16, cfg.SessionTTL)
	var sessions *session.Store
	sessions = session.NewStore(cfg.SessionMax, cfg.SessionTTL, func(id string) {
		chartCache.DeletePrefix(apphttp.ChartKeyPrefix(id))
		m.SessionsActive(sessions.Len())
	})

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache))
	cacheManager.Register("sessions", sessions.Cleaner())
	cacheManager.Register("charts", chartCache)
	cacheManager.StartCleanup(ctx, time.Minute)

	decoder := xlsx.New()
	source, err := cli.OpenSource(ctx, cfg, decoder, logger.WithComponent(log.ComponentSheets))
	if err != nil {
		logger.Error("Failed to initialize data source", log.FieldError, err, "data_source", cfg.DataSource)
		os.Exit(1)
	}

	opts := services.Options{
		Ingest:   ingest.NewService(decoder, cfg.DecodeConcurrency, m, logger.WithComponent(log.ComponentIngest)),
		Sessions: sessions,
		Source:   source,
		Suggester: suggest.New(suggest.Config{
			APIKey:  cfg.GPTAPIKey,
			BaseURL: cfg.GPTAPIURL,
			Model:   cfg.GPTModel,
			Timeout: cfg.GPTTimeout,
		}, logger.WithComponent(log.ComponentSuggest)),
		Observer: m,
		Logger:   logger.WithComponent(log.ComponentAnalysis),
	}
	publisher, err := cli.OpenPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Warn("Event publishing disabled", log.FieldError, err)
	} else if publisher != nil {
		opts.Publisher = publisher
	}
	svc := services.NewAnalysisService(opts)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               cfg.Addr(),
		Service:            svc,
		Metrics:            m,
		Charts:             chartCache,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Warn("Publisher close error", log.FieldError, err)
		}
		cancel()
	})

	logger.Info("Starting salone server",
		"addr", cfg.Addr(),
		"data_source", cfg.DataSource,
		"suggestions", cfg.GPTAPIKey != "",
		"events", opts.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
