// Package cli holds the start-up steps shared by the salone commands:
// configuration, logging, data sources and graceful shutdown.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salone/internal/amqp"
	"salone/internal/config"
	"salone/internal/log"
	ports "salone/internal/sheets"
	gsheet "salone/internal/sheets/google"
	mem "salone/internal/sheets/memory"
)

// LoadAndValidateConfig reads .env (when present) and the environment, then
// validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg and makes it the default.
func SetupLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	lc := log.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.LogFormat
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger, nil
}

// OpenSource returns the bulk import source selected by DATA_SOURCE, or nil
// when imports are disabled.
func OpenSource(ctx context.Context, cfg *config.Config, dec ports.Decoder, logger *log.Logger) (ports.PeriodSource, error) {
	switch cfg.DataSource {
	case config.SourceMemory:
		store, err := mem.NewFromDir(ctx, cfg.SeedDir, dec)
		if err != nil {
			return nil, fmt.Errorf("memory source: %w", err)
		}
		logger.Info("Initialized memory source", "seed_dir", cfg.SeedDir)
		return store, nil
	case config.SourceSheets:
		client, err := gsheet.NewFromOptions(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("google sheets source: %w", err)
		}
		logger.Info("Initialized Google Sheets source", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return client, nil
	}
	return nil, nil
}

// OpenPublisher connects to the broker when AMQP_URL is set. A nil client
// with a nil error means events are disabled.
func OpenPublisher(ctx context.Context, cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		return nil, fmt.Errorf("amqp: %w", err)
	}
	return client, nil
}

// GracefulShutdown runs cleanup once SIGINT or SIGTERM arrives, bounded by
// timeout. The returned channel closes when cleanup has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
		}
		close(done)
	}()
	return done
}
