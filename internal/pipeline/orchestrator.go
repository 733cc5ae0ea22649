package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/reelsmith/reelsmith/internal/artifacts"
	"github.com/reelsmith/reelsmith/internal/logging"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/progress"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// ErrEmptyTranscript fails the transcription stage when no speech was
// recognised.
var ErrEmptyTranscript = errors.New("transcription returned no speech")

type Orchestrator struct {
	engine      Engine
	transcriber transcribe.Transcriber
	catalog     Catalog
	tracker     progress.Tracker
	outputs     string
	logger      *slog.Logger
}

// New builds an orchestrator that writes artifacts under outputsDir.
func New(engine Engine, transcriber transcribe.Transcriber, catalog Catalog, tracker progress.Tracker, outputsDir string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		engine:      engine,
		transcriber: transcriber,
		catalog:     catalog,
		tracker:     tracker,
		outputs:     outputsDir,
		logger:      logging.WithComponent(logger, "pipeline"),
	}
}

// Process runs the full post-production pipeline.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Result, error) {
	stages := []stage{
		{name: "silence", policy: Hard, percent: 10, message: "Removing silence", fn: o.trimSilence},
		{name: "filler", policy: Soft, percent: 20, message: "Removing filler words", fn: o.trimFiller},
		{name: "extract_audio", policy: Hard, percent: 30, message: "Extracting audio", fn: o.extractAudio},
		{name: "transcribe", policy: Hard, percent: 45, message: "Transcribing", fn: o.transcribe},
		{name: "zoom", policy: Soft, percent: 55, message: "Adding zoom", fn: o.zoom},
		{name: "transitions", policy: Soft, percent: 65, message: "Applying transitions", fn: o.applyTransitions},
		{name: "overlays", policy: Soft, percent: 75, message: "Mixing background audio", fn: o.applyOverlays},
		{name: "subtitles", policy: Hard, percent: 85, message: "Generating subtitles", fn: o.writeSubtitles},
		{name: "burn_subtitles", policy: Hard, percent: 95, message: "Burning subtitles", fn: o.burnSubtitles},
	}
	return o.execute(ctx, req, stages, prepareOptions{zoom: true}, true)
}

// ApplyTransitions splices the requested transitions into the input and
// nothing else.
func (o *Orchestrator) ApplyTransitions(ctx context.Context, req Request) (Result, error) {
	if len(req.Transitions) == 0 {
		return Result{}, o.reject(ctx, req.ID, &media.ValidationError{Field: "transitions", Reason: "at least one transition is required"})
	}
	stages := []stage{
		{name: "transitions", policy: Soft, percent: 90, message: "Applying transitions", fn: o.applyTransitions},
	}
	return o.execute(ctx, req, stages, prepareOptions{}, true)
}

// ApplyOverlays mixes the requested background tracks under the input
// audio and nothing else.
func (o *Orchestrator) ApplyOverlays(ctx context.Context, req Request) (Result, error) {
	if len(req.Audios) == 0 {
		return Result{}, o.reject(ctx, req.ID, &media.ValidationError{Field: "audios", Reason: "at least one audio overlay is required"})
	}
	stages := []stage{
		{name: "overlays", policy: Soft, percent: 90, message: "Mixing background audio", fn: o.applyOverlays},
	}
	return o.execute(ctx, req, stages, prepareOptions{}, true)
}

// Transcribe extracts and transcribes the input without producing a video.
func (o *Orchestrator) Transcribe(ctx context.Context, req Request) (Result, error) {
	stages := []stage{
		{name: "extract_audio", policy: Hard, percent: 40, message: "Extracting audio", fn: o.extractAudio},
		{name: "transcribe", policy: Hard, percent: 90, message: "Transcribing", fn: o.transcribe},
	}
	return o.execute(ctx, req, stages, prepareOptions{}, false)
}

type prepareOptions struct {
	zoom bool
}

// run is the mutable state of one request.
type run struct {
	req    Request
	ws     *artifacts.Workspace
	logger *slog.Logger

	probes      map[string]media.Probe
	transitions []resolvedTransition
	overlays    []resolvedOverlay

	audio      string
	captions   string
	cues       int
	transcript transcribe.Transcript
	stats      Stats
}

type resolvedTransition struct {
	spec media.TransitionSpec
	path string
}

type resolvedOverlay struct {
	spec media.AudioOverlaySpec
	path string
}

func (o *Orchestrator) execute(ctx context.Context, req Request, stages []stage, opts prepareOptions, keepOutput bool) (Result, error) {
	logger := logging.WithRequestID(o.logger, req.ID)
	r := &run{
		req:    req,
		logger: logger,
		probes: make(map[string]media.Probe),
		stats: Stats{
			Skipped:      []string{},
			StageTimings: make(map[string]int64),
		},
	}
	if err := o.prepare(r, opts); err != nil {
		return Result{}, o.reject(ctx, req.ID, err)
	}

	o.update(ctx, req.ID, progress.Started("Starting"))

	inputName := req.InputName
	if inputName == "" {
		inputName = req.Input
	}
	ws, err := artifacts.NewWorkspace(o.outputs, inputName, logger)
	if err != nil {
		return Result{}, o.abort(ctx, r, "workspace", err)
	}
	r.ws = ws

	src, err := o.probe(ctx, r, req.Input)
	if err != nil {
		return Result{}, o.abort(ctx, r, "probe", err)
	}
	r.stats.OriginalDuration = src.Duration

	current := req.Input
	for _, st := range stages {
		o.update(ctx, req.ID, progress.Message(st.message))
		start := time.Now()
		res := st.exec(ctx, r, current, req.Settings.StageTimeout)
		r.stats.StageTimings[st.name] = time.Since(start).Milliseconds()

		switch res.Outcome {
		case Ok:
			if res.Artifact != current {
				r.ws.Discard(current)
				current = res.Artifact
			}
		case SoftFail:
			logger.Warn("stage failed, continuing with prior artifact", "stage", st.name, "error", res.Err)
			r.stats.Skipped = append(r.stats.Skipped, st.name)
		case HardFail:
			return Result{}, o.abort(ctx, r, st.name, res.Err)
		}
		o.update(ctx, req.ID, progress.Percent(st.percent))
	}

	result := Result{Transcript: r.transcript}
	if keepOutput {
		if p, err := o.probe(ctx, r, current); err == nil {
			r.stats.FinalDuration = p.Duration
		} else {
			logger.Warn("could not probe final artifact", "error", err)
		}
		name, err := r.ws.Finalize(current)
		if err != nil {
			return Result{}, o.abort(ctx, r, "finalize", err)
		}
		result.OutputFile = name
		result.OutputPath = filepath.Join(o.outputs, name)
	} else {
		r.ws.Cleanup()
	}
	result.Stats = r.stats

	o.update(ctx, req.ID, progress.Finished("Complete"))
	logger.Info("pipeline complete",
		"output", result.OutputFile,
		"skipped", r.stats.Skipped,
		"original_duration", r.stats.OriginalDuration,
		"final_duration", r.stats.FinalDuration,
	)
	return result, nil
}

// prepare validates every spec and resolves catalog ids before any engine
// work starts.
func (o *Orchestrator) prepare(r *run, opts prepareOptions) error {
	if opts.zoom {
		if err := r.req.Settings.Zoom.Validate(); err != nil {
			return err
		}
	}
	for _, t := range r.req.Transitions {
		if err := t.Validate(); err != nil {
			return err
		}
		asset, err := o.catalog.Transition(t.TransitionID)
		if err != nil {
			return err
		}
		r.transitions = append(r.transitions, resolvedTransition{spec: t, path: asset.Path})
	}
	// Each splice shifts everything after it, so offsets only make sense
	// when applied in time order.
	sort.SliceStable(r.transitions, func(i, j int) bool {
		return r.transitions[i].spec.Time < r.transitions[j].spec.Time
	})

	for _, a := range r.req.Audios {
		if err := a.Validate(); err != nil {
			return err
		}
		track, err := o.catalog.Track(a.TrackID)
		if err != nil {
			return err
		}
		r.overlays = append(r.overlays, resolvedOverlay{spec: a, path: track.Path})
	}
	return nil
}

// reject reports a request that failed validation before any stage ran.
// It replaces any state an earlier run with the same id left.
func (o *Orchestrator) reject(ctx context.Context, id string, err error) error {
	p := progress.Failed(err)
	p.Reset = true
	o.update(ctx, id, p)
	return err
}

func (o *Orchestrator) abort(ctx context.Context, r *run, stageName string, err error) error {
	failure := &media.HardStageFailure{Stage: stageName, Err: err}
	r.logger.Error("pipeline aborted", "stage", stageName, "error", err)
	if r.ws != nil {
		r.ws.Cleanup()
	}
	o.update(ctx, r.req.ID, progress.Failed(failure))
	return failure
}

// update never fails a run; progress is best effort.
func (o *Orchestrator) update(ctx context.Context, id string, p progress.Patch) {
	if id == "" {
		return
	}
	if err := o.tracker.Update(context.WithoutCancel(ctx), id, p); err != nil {
		o.logger.Warn("progress update failed", "request_id", id, "error", err)
	}
}

func (o *Orchestrator) probe(ctx context.Context, r *run, path string) (media.Probe, error) {
	if p, ok := r.probes[path]; ok {
		return p, nil
	}
	p, err := o.engine.Probe(ctx, path)
	if err != nil {
		return media.Probe{}, err
	}
	r.probes[path] = p
	return p, nil
}
