package main

import (
	"context"
	"errors"
	"os"

	"salone/internal/amqp"
	"salone/internal/cli"
	"salone/internal/config"
	"salone/internal/log"
	"salone/internal/worker"
)

func main() {
	boot := log.Default(log.ComponentWorker)

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		boot.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		boot.Error("Invalid log configuration", log.FieldError, err)
		os.Exit(1)
	}
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting salone-worker", "queue", cfg.AMQPQueue, "report", cfg.ReportPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	reports := worker.NewReportWorker(cfg.ReportPath, logger)

	done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) { cancel() })

	err = client.ConsumeAnalysisCompleted(ctx, reports.HandleAnalysisCompleted)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("Worker stopped gracefully")
}
