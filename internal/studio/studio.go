// Package studio is the service layer shared by the HTTP API, the queue
// consumer and the CLI. It wraps each pipeline run with a run record,
// optional publishing and upload cleanup.
package studio

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/logging"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/pipeline"
	"github.com/reelsmith/reelsmith/internal/queue"
	"github.com/reelsmith/reelsmith/internal/store"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// Pipeline is the orchestrator surface the service drives.
type Pipeline interface {
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	ApplyTransitions(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	ApplyOverlays(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Transcribe(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Publisher copies a finished artifact somewhere reachable and returns its
// URL.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Job describes one unit of work coming from any front end.
type Job struct {
	RequestID   string
	Input       string
	InputName   string
	Transitions []media.TransitionSpec
	Audios      []media.AudioOverlaySpec
	Overrides   Overrides
	// OwnsInput removes Input once the run ends; set for uploads.
	OwnsInput bool
}

// Overrides are the per-request tuning fields; nil keeps the default.
type Overrides struct {
	SilenceThresholdDB *float64
	MinSilence         *float64
	Padding            *float64
	FillerSensitivity  *float64
	Zoom               *media.ZoomSpec
}

// Output is a finished run.
type Output struct {
	RunID string
	pipeline.Result
}

type Service struct {
	pipeline  Pipeline
	runs      store.Repository
	publisher Publisher
	defaults  pipeline.Settings
	logger    *slog.Logger
}

// New builds the service. publisher may be nil to disable publishing.
func New(p Pipeline, runs store.Repository, publisher Publisher, defaults pipeline.Settings, logger *slog.Logger) *Service {
	return &Service{
		pipeline:  p,
		runs:      runs,
		publisher: publisher,
		defaults:  defaults,
		logger:    logging.WithComponent(logger, "studio"),
	}
}

// SettingsFrom maps configured tuning onto pipeline settings.
func SettingsFrom(t config.Tuning, stageTimeout time.Duration) pipeline.Settings {
	return pipeline.Settings{
		SilenceThresholdDB:    t.SilenceThresholdDB,
		MinSilence:            t.MinSilenceSec,
		SilencePadding:        t.SilencePaddingSec,
		FillerSensitivity:     t.FillerSensitivity,
		FillerUpperDB:         t.FillerUpperDB,
		FillerMin:             t.FillerMinSec,
		FillerMax:             t.FillerMaxSec,
		FillerPadding:         t.FillerPaddingSec,
		Zoom:                  t.Zoom,
		StageTimeout:          stageTimeout,
		StopListOnItemFailure: t.StopListOnItemFailure,
	}
}

func (s *Service) settings(o Overrides) pipeline.Settings {
	st := s.defaults
	if o.SilenceThresholdDB != nil {
		st.SilenceThresholdDB = *o.SilenceThresholdDB
	}
	if o.MinSilence != nil {
		st.MinSilence = *o.MinSilence
	}
	if o.Padding != nil {
		st.SilencePadding = *o.Padding
	}
	if o.FillerSensitivity != nil {
		st.FillerSensitivity = *o.FillerSensitivity
	}
	if o.Zoom != nil {
		st.Zoom = *o.Zoom
	}
	return st
}

// NewRequestID is used when the caller supplies none.
func NewRequestID() string {
	return uuid.NewString()
}

func (s *Service) Process(ctx context.Context, job Job) (Output, error) {
	return s.run(ctx, store.KindProcess, job, s.pipeline.Process)
}

func (s *Service) ApplyTransitions(ctx context.Context, job Job) (Output, error) {
	return s.run(ctx, store.KindTransitions, job, s.pipeline.ApplyTransitions)
}

func (s *Service) ApplyAudio(ctx context.Context, job Job) (Output, error) {
	return s.run(ctx, store.KindAudio, job, s.pipeline.ApplyOverlays)
}

func (s *Service) Transcribe(ctx context.Context, job Job) (transcribe.Transcript, error) {
	out, err := s.run(ctx, store.KindTranscribe, job, s.pipeline.Transcribe)
	return out.Transcript, err
}

// RunJob runs a queued job through the full pipeline. The input file
// belongs to the producer and is left in place.
func (s *Service) RunJob(ctx context.Context, job queue.Job) error {
	_, err := s.Process(ctx, Job{
		RequestID:   job.RequestID,
		Input:       job.InputPath,
		InputName:   filepath.Base(job.InputPath),
		Transitions: job.Transitions,
		Audios:      job.Audios,
	})
	return err
}

func (s *Service) Runs(ctx context.Context, limit int) ([]*store.Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

// Run returns nil, nil for an unknown id.
func (s *Service) Run(ctx context.Context, id string) (*store.Run, error) {
	return s.runs.GetRun(ctx, id)
}

func (s *Service) run(ctx context.Context, kind string, job Job, fn func(context.Context, pipeline.Request) (pipeline.Result, error)) (Output, error) {
	if job.RequestID == "" {
		job.RequestID = NewRequestID()
	}
	if job.InputName == "" {
		job.InputName = filepath.Base(job.Input)
	}
	logger := logging.WithRequestID(s.logger, job.RequestID)
	if job.OwnsInput {
		defer func() {
			if err := os.Remove(job.Input); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove upload", "path", logging.SanitizePath(job.Input), "error", err)
			}
		}()
	}

	rec := &store.Run{
		ID:        store.NewID(),
		RequestID: job.RequestID,
		Kind:      kind,
		InputName: job.InputName,
	}
	recorded := true
	if err := s.runs.CreateRun(ctx, rec); err != nil {
		logger.Warn("failed to record run", "error", err)
		recorded = false
	}
	logger = logging.WithRunID(logger, rec.ID)

	res, err := fn(ctx, pipeline.Request{
		ID:          job.RequestID,
		Input:       job.Input,
		InputName:   job.InputName,
		Transitions: job.Transitions,
		Audios:      job.Audios,
		Settings:    s.settings(job.Overrides),
	})
	// Bookkeeping outlives a cancelled request.
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if recorded {
			if ferr := s.runs.FailRun(bg, rec.ID, err.Error()); ferr != nil {
				logger.Warn("failed to mark run failed", "error", ferr)
			}
		}
		return Output{RunID: rec.ID}, err
	}

	if s.publisher != nil && res.OutputPath != "" {
		url, perr := s.publisher.Publish(ctx, res.OutputPath)
		if perr != nil {
			logger.Warn("publish failed, artifact stays local", "output", res.OutputFile, "error", perr)
		} else {
			res.Stats.RemoteURL = url
		}
	}

	if recorded {
		if cerr := s.runs.CompleteRun(bg, rec.ID, res.OutputFile, res.Stats, res.Stats.RemoteURL); cerr != nil {
			logger.Warn("failed to mark run completed", "error", cerr)
		}
	}
	return Output{RunID: rec.ID, Result: res}, nil
}
