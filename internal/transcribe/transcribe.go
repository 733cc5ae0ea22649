// Package transcribe turns extracted speech audio into timed text segments.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/reelsmith/reelsmith/internal/engine"
)

// Segment is one timed piece of recognised speech, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the result of one transcription.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Empty reports whether no speech was recognised.
func (t Transcript) Empty() bool {
	if strings.TrimSpace(t.Text) != "" {
		return false
	}
	for _, s := range t.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// joinText rebuilds the full text from segments.
func joinText(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Transcriber is implemented by every backend.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (Transcript, error)
}

const (
	KindWhisperCPP = "whisper-cpp"
	KindHTTP       = "http"
)

// Options selects and configures a backend.
type Options struct {
	Kind     string
	Language string

	WhisperBin   string
	WhisperModel string

	URL    string
	APIKey string
	Model  string
}

// New builds the backend named by opts.Kind. runner is used by the
// whisper.cpp backend only.
func New(opts Options, runner engine.Runner, logger *slog.Logger) (Transcriber, error) {
	switch opts.Kind {
	case KindWhisperCPP, "":
		return NewWhisperCPP(opts.WhisperBin, opts.WhisperModel, opts.Language, runner, logger), nil
	case KindHTTP:
		if opts.URL == "" {
			return nil, fmt.Errorf("http transcriber needs a url")
		}
		return NewHTTPClient(opts.URL, opts.APIKey, opts.Model, opts.Language, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", opts.Kind)
	}
}
