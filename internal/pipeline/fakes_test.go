package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/filtergraph"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/progress"
	"github.com/reelsmith/reelsmith/internal/segments"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var defaultProbe = media.Probe{Width: 1080, Height: 1920, FPS: 30, Duration: 10, HasVideo: true, HasAudio: true}

type renderCall struct {
	stage  string
	inputs []string
	output string
}

// fakeEngine writes an empty file for every output so the workspace sees
// real artifacts.
type fakeEngine struct {
	mu       sync.Mutex
	probes   map[string]media.Probe
	silence  []segments.Event
	trace    segments.Trace
	traceErr error
	// failRender returns an error for matching calls.
	failRender func(stage string, cmd filtergraph.Command) error
	renders    []renderCall
	burned     bool
	copied     bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{probes: make(map[string]media.Probe)}
}

func touch(path string) error {
	return os.WriteFile(path, []byte("media"), 0o644)
}

func (f *fakeEngine) Probe(ctx context.Context, path string) (media.Probe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.probes[path]; ok {
		return p, nil
	}
	return defaultProbe, nil
}

func (f *fakeEngine) Render(ctx context.Context, stage string, cmd filtergraph.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	call := renderCall{stage: stage, output: cmd.Output}
	for _, in := range cmd.Inputs {
		call.inputs = append(call.inputs, in.Path)
	}
	f.renders = append(f.renders, call)
	fail := f.failRender
	f.mu.Unlock()

	if fail != nil {
		if err := fail(stage, cmd); err != nil {
			return err
		}
	}
	return touch(cmd.Output)
}

func (f *fakeEngine) ExtractAudio(ctx context.Context, src, dst string) error {
	return touch(dst)
}

func (f *fakeEngine) BurnSubtitles(ctx context.Context, src, subs, dst string) error {
	if _, err := os.Stat(subs); err != nil {
		return err
	}
	f.burned = true
	return touch(dst)
}

func (f *fakeEngine) Copy(ctx context.Context, stage, src, dst string) error {
	f.copied = true
	return touch(dst)
}

func (f *fakeEngine) DetectSilence(ctx context.Context, src string, th, min float64) ([]segments.Event, error) {
	return f.silence, nil
}

func (f *fakeEngine) LoudnessTrace(ctx context.Context, src, scratch string) (segments.Trace, error) {
	return f.trace, f.traceErr
}

func (f *fakeEngine) stages() []string {
	var out []string
	for _, r := range f.renders {
		out = append(out, r.stage)
	}
	return out
}

type fakeTranscriber struct {
	transcript transcribe.Transcript
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wav string) (transcribe.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

var helloTranscript = transcribe.Transcript{
	Text: "hello world",
	Segments: []transcribe.Segment{
		{Start: 0.5, End: 1.5, Text: "hello"},
		{Start: 2, End: 3, Text: "world"},
	},
}

type fakeCatalog struct {
	dir string
}

func (c fakeCatalog) Transition(id string) (assets.Transition, error) {
	if strings.HasPrefix(id, "missing") {
		return assets.Transition{}, &media.ValidationError{Field: "transitionId", Reason: "not found"}
	}
	return assets.Transition{ID: id, Path: filepath.Join(c.dir, "transition-"+id+".mp4")}, nil
}

func (c fakeCatalog) Track(id string) (assets.Track, error) {
	if strings.HasPrefix(id, "missing") {
		return assets.Track{}, &media.ValidationError{Field: "trackId", Reason: "not found"}
	}
	return assets.Track{ID: id, Path: filepath.Join(c.dir, "track-"+id+".mp3")}, nil
}

// recordingTracker remembers every percent a poller could have observed.
type recordingTracker struct {
	*progress.MemoryTracker
	mu   sync.Mutex
	seen []int
}

func (r *recordingTracker) Update(ctx context.Context, id string, p progress.Patch) error {
	err := r.MemoryTracker.Update(ctx, id, p)
	s, _ := r.Get(ctx, id)
	r.mu.Lock()
	r.seen = append(r.seen, s.Percent)
	r.mu.Unlock()
	return err
}

type harness struct {
	engine      *fakeEngine
	transcriber *fakeTranscriber
	tracker     *recordingTracker
	outputs     string
	input       string
	orch        *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	uploads := t.TempDir()
	input := filepath.Join(uploads, "clip.mp4")
	if err := touch(input); err != nil {
		t.Fatal(err)
	}
	h := &harness{
		engine:      newFakeEngine(),
		transcriber: &fakeTranscriber{transcript: helloTranscript},
		tracker:     &recordingTracker{MemoryTracker: progress.NewMemoryTracker(0, quietLogger())},
		outputs:     t.TempDir(),
		input:       input,
	}
	h.orch = New(h.engine, h.transcriber, fakeCatalog{dir: uploads}, h.tracker, h.outputs, quietLogger())
	return h
}

func (h *harness) request(id string) Request {
	return Request{ID: id, Input: h.input, InputName: "clip.mp4", Settings: DefaultSettings()}
}

func (h *harness) outputEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.outputs)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var errEngine = errors.New("engine exploded")
