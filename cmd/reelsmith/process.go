package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/pipeline"
	"github.com/reelsmith/reelsmith/internal/studio"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

type processOutput struct {
	RequestID       string                `json:"requestId"`
	RunID           string                `json:"runId"`
	OutputFile      string                `json:"outputFile"`
	OutputPath      string                `json:"outputPath"`
	Transcription   transcribe.Transcript `json:"transcription"`
	ProcessingStats pipeline.Stats        `json:"processingStats"`
}

func runProcess(parent context.Context, out io.Writer, input, transitionsJSON, audiosJSON, requestID string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	abs, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	job := studio.Job{
		RequestID: requestID,
		Input:     abs,
		InputName: filepath.Base(abs),
	}
	if job.Transitions, err = decodeList[media.TransitionSpec]("transitions", transitionsJSON); err != nil {
		return err
	}
	if job.Audios, err = decodeList[media.AudioOverlaySpec]("audios", audiosJSON); err != nil {
		return err
	}
	if job.RequestID == "" {
		job.RequestID = studio.NewRequestID()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.studio.Process(ctx, job)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(processOutput{
		RequestID:       job.RequestID,
		RunID:           res.RunID,
		OutputFile:      res.OutputFile,
		OutputPath:      res.OutputPath,
		Transcription:   res.Transcript,
		ProcessingStats: res.Stats,
	})
}

func decodeList[T any](name, raw string) ([]T, error) {
	if raw == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return out, nil
}
