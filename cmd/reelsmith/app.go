package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/db"
	"github.com/reelsmith/reelsmith/internal/engine"
	"github.com/reelsmith/reelsmith/internal/logging"
	"github.com/reelsmith/reelsmith/internal/pipeline"
	"github.com/reelsmith/reelsmith/internal/progress"
	"github.com/reelsmith/reelsmith/internal/publish"
	"github.com/reelsmith/reelsmith/internal/store"
	"github.com/reelsmith/reelsmith/internal/studio"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.EnvConfig
	logger  *slog.Logger
	db      *db.DB
	engine  *engine.Engine
	doctor  *engine.CachedDoctor
	catalog *assets.Catalog
	tracker progress.Tracker
	studio  *studio.Service

	closers []func() error
}

func loadConfig() (*config.EnvConfig, *slog.Logger, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel())
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.DataDir(), cfg.OutputsDir(), cfg.UploadsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	logger.Info("starting reelsmith",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"config_file", cfg.File(),
	)

	a := &app{cfg: cfg, logger: logger}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, database.Close)

	runner := engine.NewRunner(logger)
	a.engine = engine.New(engine.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Logger:      logger,
	}, runner)
	a.doctor = engine.NewCachedDoctor(a.engine, logger)
	if caps := a.doctor.Refresh(ctx); caps.Ready() {
		logger.Info("media engine detected", "ffmpeg_version", caps.FFmpegVersion)
	} else {
		logger.Warn("media engine incomplete, processing requests will fail", "ffmpeg", caps.FFmpeg, "ffprobe", caps.FFprobe)
	}

	tc := cfg.Transcription()
	transcriber, err := transcribe.New(transcribe.Options{
		Kind:         tc.Kind,
		Language:     tc.Language,
		WhisperBin:   tc.WhisperBin,
		WhisperModel: tc.WhisperModel,
		URL:          tc.URL,
		APIKey:       tc.APIKey,
		Model:        tc.Model,
	}, runner, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to configure transcription: %w", err)
	}
	logger.Info("transcription backend", "kind", tc.Kind, "api_key", logging.SanitizeToken(tc.APIKey))

	a.catalog = assets.NewCatalog(cfg.AssetsDir(), logger)

	if url := cfg.RedisURL(); url != "" {
		rt, err := progress.NewRedisTracker(url, cfg.ProgressTTL(), logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to configure redis progress: %w", err)
		}
		a.tracker = rt
		a.closers = append(a.closers, rt.Close)
	} else {
		mt := progress.NewMemoryTracker(cfg.ProgressTTL(), logger)
		go mt.Run(ctx)
		a.tracker = mt
	}

	var publisher studio.Publisher
	if s3cfg := cfg.S3(); s3cfg.Enabled() {
		p, err := publish.NewS3Publisher(ctx, publish.Options{
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			Prefix:    s3cfg.Prefix,
			Endpoint:  s3cfg.Endpoint,
			PathStyle: s3cfg.PathStyle,
		}, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to configure s3 publishing: %w", err)
		}
		publisher = p
		logger.Info("publishing enabled", "bucket", s3cfg.Bucket, "prefix", s3cfg.Prefix)
	}

	orchestrator := pipeline.New(a.engine, transcriber, a.catalog, a.tracker, cfg.OutputsDir(), logger)
	a.studio = studio.New(
		orchestrator,
		store.NewRepository(database.Conn()),
		publisher,
		studio.SettingsFrom(cfg.Tuning(), cfg.StageTimeout()),
		logger,
	)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
