// Package pipeline sequences the post-production stages for one request.
//
// Stages run strictly one after another. Each consumes the artifact of the
// previous one and either produces a new artifact (Ok), keeps the prior one
// after logging the error (SoftFail), or aborts the run (HardFail).
package pipeline

import (
	"context"
	"time"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/filtergraph"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/segments"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// Engine is the media engine surface the orchestrator drives.
type Engine interface {
	Probe(ctx context.Context, path string) (media.Probe, error)
	Render(ctx context.Context, stage string, cmd filtergraph.Command) error
	ExtractAudio(ctx context.Context, src, dst string) error
	BurnSubtitles(ctx context.Context, src, subtitles, dst string) error
	Copy(ctx context.Context, stage, src, dst string) error
	DetectSilence(ctx context.Context, src string, thresholdDB, minDuration float64) ([]segments.Event, error)
	LoudnessTrace(ctx context.Context, src, scratchDir string) (segments.Trace, error)
}

// Catalog resolves transition and track ids to files.
type Catalog interface {
	Transition(id string) (assets.Transition, error)
	Track(id string) (assets.Track, error)
}

// Settings are the tuning knobs of one run.
type Settings struct {
	SilenceThresholdDB float64
	MinSilence         float64
	SilencePadding     float64

	FillerSensitivity float64
	FillerUpperDB     float64
	FillerMin         float64
	FillerMax         float64
	FillerPadding     float64

	Zoom media.ZoomSpec

	// StageTimeout bounds every stage; zero disables the limit.
	StageTimeout time.Duration
	// StopListOnItemFailure drops the remaining transitions (or overlays)
	// after one of them fails instead of attempting the rest.
	StopListOnItemFailure bool
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		SilenceThresholdDB: -35,
		MinSilence:         0.25,
		SilencePadding:     0.12,
		FillerSensitivity:  1,
		FillerUpperDB:      -10,
		FillerMin:          0.15,
		FillerMax:          0.8,
		Zoom: media.ZoomSpec{
			StartZoom: 1.0,
			EndZoom:   1.15,
			Duration:  1.0,
			Easing:    media.DefaultEasing,
		},
		StageTimeout: 20 * time.Minute,
	}
}

// Request is one unit of work.
type Request struct {
	ID          string
	Input       string
	InputName   string // original upload name, used for artifact naming
	Transitions []media.TransitionSpec
	Audios      []media.AudioOverlaySpec
	Settings    Settings
}

// Stats summarises what a run did.
type Stats struct {
	OriginalDuration   float64          `json:"originalDuration"`
	FinalDuration      float64          `json:"finalDuration"`
	SilenceRemoved     float64          `json:"silenceRemoved"`
	FillerRemoved      float64          `json:"fillerRemoved"`
	KeepSegments       int              `json:"keepSegments"`
	TransitionsApplied int              `json:"transitionsApplied"`
	OverlaysApplied    int              `json:"overlaysApplied"`
	Skipped            []string         `json:"skipped"`
	StageTimings       map[string]int64 `json:"stageTimings"`
	RemoteURL          string           `json:"remoteUrl,omitempty"`
}

// Result is returned for a successful run.
type Result struct {
	OutputFile string // bare name in the outputs root
	OutputPath string
	Transcript transcribe.Transcript
	Stats      Stats
}
