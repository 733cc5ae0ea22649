package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/reelsmith/reelsmith/internal/api"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/download"
	"github.com/reelsmith/reelsmith/internal/queue"
)

func runServe(parent context.Context) error {
	startTime := time.Now()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	apiServer := api.NewServer(api.ServerConfig{
		Addr:           cfg.Addr(),
		Studio:         a.studio,
		Tracker:        a.tracker,
		Assets:         a.catalog,
		Downloads:      download.NewServer(cfg.OutputsDir(), logger),
		Doctor:         a.doctor,
		UploadsDir:     cfg.UploadsDir(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Version:        config.Version,
		Logger:         logger,
		StartTime:      startTime,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- err
		}
	}()

	var wg sync.WaitGroup
	if kc := cfg.Kafka(); kc.Enabled() {
		consumer, err := queue.NewConsumer(queue.Config{
			Brokers: kc.Brokers,
			Topic:   kc.Topic,
			GroupID: kc.Group,
		}, a.studio, logger)
		if err != nil {
			logger.Error("kafka consumer unavailable, queue intake disabled", "error", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := consumer.Run(ctx); err != nil {
					logger.Error("kafka consumer stopped", "error", err)
				}
			}()
			defer consumer.Close()
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("HTTP server error", "error", err)
		stop()
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	wg.Wait()

	logger.Info("shutdown complete")
	return nil
}
