package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/reelsmith/reelsmith/internal/engine"
	"github.com/reelsmith/reelsmith/internal/media"
)

// WhisperCPP runs the whisper.cpp command line tool and reads its JSON
// output file.
type WhisperCPP struct {
	bin      string
	model    string
	language string
	runner   engine.Runner
	logger   *slog.Logger
}

func NewWhisperCPP(bin, model, language string, runner engine.Runner, logger *slog.Logger) *WhisperCPP {
	if bin == "" {
		bin = "whisper-cli"
	}
	if language == "" {
		language = "auto"
	}
	return &WhisperCPP{bin: bin, model: model, language: language, runner: runner, logger: logger}
}

type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (w *WhisperCPP) Transcribe(ctx context.Context, wavPath string) (Transcript, error) {
	prefix := strings.TrimSuffix(wavPath, ".wav")
	outPath := prefix + ".json"
	defer os.Remove(outPath)

	args := []string{
		"-m", w.model,
		"-f", wavPath,
		"-l", w.language,
		"-oj",
		"-of", prefix,
		"-np",
	}
	if _, err := w.runner.Run(ctx, engine.Invocation{Stage: "transcribe", Tool: w.bin, Args: args}); err != nil {
		return Transcript{}, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return Transcript{}, &media.ExternalProcessFailure{Stage: "transcribe", Tool: w.bin, Err: fmt.Errorf("read output: %w", err)}
	}
	t, err := parseWhisperJSON(data)
	if err != nil {
		return Transcript{}, &media.ExternalProcessFailure{Stage: "transcribe", Tool: w.bin, Err: err}
	}
	w.logger.Info("whisper transcription complete", "segments", len(t.Segments), "language", t.Language)
	return t, nil
}

func parseWhisperJSON(data []byte) (Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Transcript{}, fmt.Errorf("parse whisper json: %w", err)
	}
	t := Transcript{Language: out.Result.Language}
	for _, item := range out.Transcription {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		t.Segments = append(t.Segments, Segment{
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
			Text:  text,
		})
	}
	t.Text = joinText(t.Segments)
	return t, nil
}
