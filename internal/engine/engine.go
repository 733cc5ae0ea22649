package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/reelsmith/reelsmith/internal/filtergraph"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/segments"
)

// Config holds the engine's binaries.
type Config struct {
	FFmpegPath  string // default "ffmpeg"
	FFprobePath string // default "ffprobe"
	// SubtitleStyle is passed to the subtitles filter as force_style.
	SubtitleStyle string
	Logger        *slog.Logger
}

// Engine implements the media operations the pipeline needs on top of a
// Runner.
type Engine struct {
	ffmpeg  string
	ffprobe string
	style   string
	runner  Runner
	logger  *slog.Logger
}

// quietArgs are appended as global options; silencedetect needs the
// default info level and does not use them.
var quietArgs = []string{"-hide_banner", "-nostdin", "-loglevel", "error"}

// DefaultSubtitleStyle renders bold centred captions near the bottom.
const DefaultSubtitleStyle = "FontName=Arial,FontSize=16,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,BorderStyle=1,Outline=2,Alignment=2,MarginV=60"

func New(cfg Config, runner Runner) *Engine {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if runner == nil {
		runner = NewRunner(cfg.Logger)
	}
	return &Engine{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		style:   cfg.SubtitleStyle,
		runner:  runner,
		logger:  cfg.Logger,
	}
}

// Probe returns stream facts for path.
func (e *Engine) Probe(ctx context.Context, path string) (media.Probe, error) {
	var stdout bytes.Buffer
	_, err := e.runner.Run(ctx, Invocation{
		Stage:  "probe",
		Tool:   e.ffprobe,
		Args:   probeArgs(path),
		Stdout: &stdout,
	})
	if err != nil {
		return media.Probe{}, err
	}
	p, err := parseProbe(stdout.Bytes())
	if err != nil {
		return media.Probe{}, &media.ExternalProcessFailure{Stage: "probe", Tool: e.ffprobe, Err: err}
	}
	return p, nil
}

// Render runs a bound filter-graph command.
func (e *Engine) Render(ctx context.Context, stage string, cmd filtergraph.Command) error {
	if err := cmd.Validate(); err != nil {
		return &media.ValidationError{Field: stage, Reason: err.Error()}
	}
	_, err := e.runner.Run(ctx, Invocation{Stage: stage, Tool: e.ffmpeg, Args: cmd.Args()})
	return err
}

// ExtractAudio writes a 16 kHz mono PCM wav, the input format speech
// recognisers expect.
func (e *Engine) ExtractAudio(ctx context.Context, src, dst string) error {
	args := ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{
			"vn":  "",
			"ac":  1,
			"ar":  16000,
			"c:a": "pcm_s16le",
		}).
		GlobalArgs(quietArgs...).
		OverWriteOutput().
		GetArgs()
	_, err := e.runner.Run(ctx, Invocation{Stage: "extract_audio", Tool: e.ffmpeg, Args: args})
	return err
}

// BurnSubtitles renders the caption file into the video track.
func (e *Engine) BurnSubtitles(ctx context.Context, src, subtitles, dst string) error {
	style := e.style
	if style == "" {
		style = DefaultSubtitleStyle
	}
	args := ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{
			"vf":       filtergraph.Chain(filtergraph.Subtitles(subtitles, style)...),
			"c:v":      "libx264",
			"preset":   "veryfast",
			"crf":      20,
			"pix_fmt":  "yuv420p",
			"c:a":      "copy",
			"movflags": "+faststart",
		}).
		GlobalArgs(quietArgs...).
		OverWriteOutput().
		GetArgs()
	_, err := e.runner.Run(ctx, Invocation{Stage: "burn_subtitles", Tool: e.ffmpeg, Args: args})
	return err
}

// Copy remuxes src into dst without re-encoding.
func (e *Engine) Copy(ctx context.Context, stage, src, dst string) error {
	args := ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{"c": "copy", "map": "0"}).
		GlobalArgs(quietArgs...).
		OverWriteOutput().
		GetArgs()
	_, err := e.runner.Run(ctx, Invocation{Stage: stage, Tool: e.ffmpeg, Args: args})
	return err
}

// DetectSilence runs silencedetect over the audio of src and returns the
// raw start/end events.
func (e *Engine) DetectSilence(ctx context.Context, src string, thresholdDB, minDuration float64) ([]segments.Event, error) {
	collector := &silenceCollector{}
	args := ffmpeg.Input(src).
		Output("-", ffmpeg.KwArgs{
			"af": filtergraph.Chain(filtergraph.SilenceDetect(thresholdDB, minDuration)...),
			"vn": "",
			"f":  "null",
		}).
		GlobalArgs("-hide_banner", "-nostdin").
		GetArgs()
	_, err := e.runner.Run(ctx, Invocation{
		Stage:      "silence_detect",
		Tool:       e.ffmpeg,
		Args:       args,
		StderrLine: collector.line,
	})
	if err != nil {
		return nil, err
	}
	return collector.events, nil
}

// LoudnessTrace measures RMS loudness in fixed windows of
// filtergraph.TraceInterval seconds. scratchDir receives the metadata file,
// which is removed before returning.
func (e *Engine) LoudnessTrace(ctx context.Context, src, scratchDir string) (segments.Trace, error) {
	f, err := os.CreateTemp(scratchDir, "loudness-*.txt")
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	tracePath := f.Name()
	f.Close()
	defer os.Remove(tracePath)

	args := ffmpeg.Input(src).
		Output("-", ffmpeg.KwArgs{
			"af": filtergraph.Chain(filtergraph.LoudnessTrace(filepath.ToSlash(tracePath))...),
			"vn": "",
			"f":  "null",
		}).
		GlobalArgs(quietArgs...).
		GetArgs()
	if _, err := e.runner.Run(ctx, Invocation{Stage: "loudness_trace", Tool: e.ffmpeg, Args: args}); err != nil {
		return nil, err
	}

	data, err := os.Open(tracePath)
	if err != nil {
		return nil, fmt.Errorf("read trace file: %w", err)
	}
	defer data.Close()

	trace, err := parseTrace(data)
	if err != nil {
		return nil, &media.ExternalProcessFailure{Stage: "loudness_trace", Tool: e.ffmpeg, Err: err}
	}
	return trace, nil
}

// Binaries returns the configured ffmpeg and ffprobe paths.
func (e *Engine) Binaries() (string, string) {
	return e.ffmpeg, e.ffprobe
}
