package pipeline

import (
	"context"
	"fmt"

	"github.com/reelsmith/reelsmith/internal/filtergraph"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/segments"
	"github.com/reelsmith/reelsmith/internal/subtitles"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// render binds plan to a fresh workspace artifact and runs it. The partial
// output is removed when the engine fails.
func (o *Orchestrator) render(ctx context.Context, r *run, stageName string, plan filtergraph.Plan, inputs ...string) (string, error) {
	out := r.ws.Path(stageName, "mp4")
	if err := o.engine.Render(ctx, stageName, plan.Bind(out, inputs...)); err != nil {
		r.ws.Discard(out)
		return "", err
	}
	return out, nil
}

// cut turns removals into keep segments and renders them. The input is
// returned unchanged when nothing needs cutting.
func (o *Orchestrator) cut(ctx context.Context, r *run, stageName string, in string, src media.Probe, removals []media.RemovalSegment, padding float64) (string, []media.KeepSegment, error) {
	keeps := segments.BuildKeepSegments(removals, src.Duration, padding)
	if len(keeps) == 0 {
		return "", nil, media.ErrNoContent
	}
	plan, err := filtergraph.Cut(keeps, src)
	if err != nil {
		return "", nil, err
	}
	if plan.Copy {
		return in, keeps, nil
	}
	out, err := o.render(ctx, r, stageName, plan, in)
	return out, keeps, err
}

func (o *Orchestrator) trimSilence(ctx context.Context, r *run, in string) (string, error) {
	src, err := o.probe(ctx, r, in)
	if err != nil {
		return "", err
	}
	if !src.HasAudio {
		r.logger.Info("input has no audio stream, skipping silence detection")
		return in, nil
	}
	if src.Duration <= 0 {
		return "", &media.ValidationError{Field: "video", Reason: "input has no duration"}
	}

	s := r.req.Settings
	events, err := o.engine.DetectSilence(ctx, in, s.SilenceThresholdDB, s.MinSilence)
	if err != nil {
		return "", err
	}
	removals := segments.FromSilenceEvents(events, src.Duration, s.MinSilence)

	out, keeps, err := o.cut(ctx, r, "silence", in, src, removals, s.SilencePadding)
	if err != nil {
		return "", err
	}
	r.stats.KeepSegments = len(keeps)
	r.stats.SilenceRemoved = src.Duration - segments.KeptDuration(keeps)
	r.logger.Info("silence trimmed",
		"removals", len(removals),
		"keep_segments", len(keeps),
		"removed_sec", r.stats.SilenceRemoved,
	)
	return out, nil
}

func (o *Orchestrator) trimFiller(ctx context.Context, r *run, in string) (string, error) {
	src, err := o.probe(ctx, r, in)
	if err != nil {
		return "", err
	}
	if !src.HasAudio {
		return in, nil
	}

	trace, err := o.engine.LoudnessTrace(ctx, in, r.ws.Dir())
	if err != nil {
		return "", err
	}
	s := r.req.Settings
	gate := segments.FillerGate(s.FillerSensitivity, s.FillerUpperDB, s.FillerMin, s.FillerMax)
	removals := segments.Detect(trace, gate)
	if len(removals) == 0 {
		r.logger.Info("no filler detected", "samples", len(trace))
		return in, nil
	}

	out, keeps, err := o.cut(ctx, r, "filler", in, src, removals, s.FillerPadding)
	if err != nil {
		return "", err
	}
	r.stats.FillerRemoved = src.Duration - segments.KeptDuration(keeps)
	r.logger.Info("filler trimmed", "removals", len(removals), "removed_sec", r.stats.FillerRemoved)
	return out, nil
}

func (o *Orchestrator) extractAudio(ctx context.Context, r *run, in string) (string, error) {
	wav := r.ws.Path("audio", "wav")
	if err := o.engine.ExtractAudio(ctx, in, wav); err != nil {
		r.ws.Discard(wav)
		return "", err
	}
	r.audio = wav
	return in, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, r *run, in string) (string, error) {
	if r.audio == "" {
		return "", fmt.Errorf("no extracted audio to transcribe")
	}
	defer r.ws.Discard(r.audio)

	t, err := o.transcriber.Transcribe(ctx, r.audio)
	if err != nil {
		return "", err
	}
	if t.Empty() {
		return "", ErrEmptyTranscript
	}
	r.transcript = t
	r.logger.Info("transcription complete", "segments", len(t.Segments), "chars", len(t.Text))
	return in, nil
}

func (o *Orchestrator) zoom(ctx context.Context, r *run, in string) (string, error) {
	src, err := o.probe(ctx, r, in)
	if err != nil {
		return "", err
	}
	plan, err := filtergraph.Zoom(r.req.Settings.Zoom, src)
	if err != nil {
		return "", err
	}
	return o.render(ctx, r, "zoom", plan, in)
}

// applyList runs one item per entry against the running artifact. A
// failed item leaves the artifact as it was; later items still run unless
// StopListOnItemFailure is set. Only cancellation fails the whole list.
func (o *Orchestrator) applyList(ctx context.Context, r *run, in, kind string, labels []string, apply func(i int, current string) (string, error)) (string, int, error) {
	current := in
	applied := 0
	for i := range labels {
		out, err := apply(i, current)
		if err != nil {
			if ctx.Err() != nil {
				return "", applied, ctx.Err()
			}
			r.logger.Warn(kind+" failed, keeping previous artifact", "item", labels[i], "error", &media.SoftStageFailure{Stage: labels[i], Err: err})
			r.stats.Skipped = append(r.stats.Skipped, labels[i])
			if r.req.Settings.StopListOnItemFailure {
				r.stats.Skipped = append(r.stats.Skipped, labels[i+1:]...)
				break
			}
			continue
		}
		if current != in {
			r.ws.Discard(current)
		}
		current = out
		applied++
	}
	return current, applied, nil
}

func (o *Orchestrator) applyTransitions(ctx context.Context, r *run, in string) (string, error) {
	labels := make([]string, len(r.transitions))
	for i, t := range r.transitions {
		labels[i] = fmt.Sprintf("transition:%s@%s", t.spec.TransitionID, filtergraph.Num(t.spec.Time))
	}
	out, applied, err := o.applyList(ctx, r, in, "transition", labels, func(i int, current string) (string, error) {
		t := r.transitions[i]
		cur, err := o.probe(ctx, r, current)
		if err != nil {
			return "", err
		}
		clip, err := o.probe(ctx, r, t.path)
		if err != nil {
			return "", err
		}
		plan, err := filtergraph.Splice(filtergraph.SpliceInput{
			Current:    cur,
			Transition: clip,
			At:         t.spec.Time,
			Duration:   t.spec.Duration,
		})
		if err != nil {
			return "", err
		}
		out, err := o.render(ctx, r, "transition", plan, current, t.path)
		if err != nil {
			return "", err
		}
		at := min(max(t.spec.Time, 0), cur.Duration)
		r.transcript.Segments = shiftSegments(r.transcript.Segments, at, spliceLength(t.spec, clip))
		return out, nil
	})
	r.stats.TransitionsApplied += applied
	return out, err
}

// spliceLength is how much time a transition inserts into the timeline.
func spliceLength(spec media.TransitionSpec, clip media.Probe) float64 {
	if spec.Duration > 0 && (clip.Duration <= 0 || spec.Duration < clip.Duration) {
		return spec.Duration
	}
	return clip.Duration
}

// shiftSegments moves speech that starts at or after at by d seconds so
// captions stay on the words after a splice.
func shiftSegments(segs []transcribe.Segment, at, d float64) []transcribe.Segment {
	if d <= 0 || len(segs) == 0 {
		return segs
	}
	out := make([]transcribe.Segment, len(segs))
	for i, s := range segs {
		if s.Start >= at {
			s.Start += d
			s.End += d
		}
		out[i] = s
	}
	return out
}

func (o *Orchestrator) applyOverlays(ctx context.Context, r *run, in string) (string, error) {
	labels := make([]string, len(r.overlays))
	for i, a := range r.overlays {
		labels[i] = fmt.Sprintf("audio:%s@%s", a.spec.TrackID, filtergraph.Num(a.spec.StartTime))
	}
	out, applied, err := o.applyList(ctx, r, in, "overlay", labels, func(i int, current string) (string, error) {
		a := r.overlays[i]
		cur, err := o.probe(ctx, r, current)
		if err != nil {
			return "", err
		}
		track, err := o.probe(ctx, r, a.path)
		if err != nil {
			return "", err
		}
		plan, err := filtergraph.Overlay(filtergraph.OverlayInput{Current: cur, Track: track, Spec: a.spec})
		if err != nil {
			return "", err
		}
		return o.render(ctx, r, "overlay", plan, current, a.path)
	})
	r.stats.OverlaysApplied += applied
	return out, err
}

func (o *Orchestrator) writeSubtitles(ctx context.Context, r *run, in string) (string, error) {
	path := r.ws.Path("captions", "srt")
	n, err := subtitles.WriteFile(path, r.transcript.Segments)
	if err != nil {
		return "", err
	}
	r.captions = path
	r.cues = n
	return in, nil
}

func (o *Orchestrator) burnSubtitles(ctx context.Context, r *run, in string) (string, error) {
	defer r.ws.Discard(r.captions)

	out := r.ws.Path("subtitled", "mp4")
	var err error
	if r.cues == 0 {
		r.logger.Info("no caption cues, copying without burn-in")
		err = o.engine.Copy(ctx, "burn_subtitles", in, out)
	} else {
		err = o.engine.BurnSubtitles(ctx, in, r.captions, out)
	}
	if err != nil {
		r.ws.Discard(out)
		return "", err
	}
	return out, nil
}
