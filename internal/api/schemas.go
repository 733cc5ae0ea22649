package api

import (
	"encoding/json"
	"time"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/pipeline"
	"github.com/reelsmith/reelsmith/internal/store"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	UptimeS int64           `json:"uptime_s"`
	Engine  *EngineResponse `json:"engine,omitempty"`
}

type EngineResponse struct {
	FFmpeg        bool   `json:"ffmpeg"`
	FFprobe       bool   `json:"ffprobe"`
	FFmpegVersion string `json:"ffmpeg_version,omitempty"`
	ProbedAt      string `json:"probed_at"`
}

type ProcessResponse struct {
	Success         bool                  `json:"success"`
	RequestID       string                `json:"requestId"`
	RunID           string                `json:"runId"`
	OutputFile      string                `json:"outputFile"`
	DownloadURL     string                `json:"downloadUrl"`
	Transcription   transcribe.Transcript `json:"transcription"`
	ProcessingStats pipeline.Stats        `json:"processingStats"`
}

// ApplyResponse answers the single-concern endpoints.
type ApplyResponse struct {
	Success         bool           `json:"success"`
	RequestID       string         `json:"requestId"`
	RunID           string         `json:"runId"`
	OutputFile      string         `json:"outputFile"`
	DownloadURL     string         `json:"downloadUrl"`
	ProcessingStats pipeline.Stats `json:"processingStats"`
}

type TranscriptionResponse struct {
	Success       bool                  `json:"success"`
	Transcription transcribe.Transcript `json:"transcription"`
	Text          string                `json:"text"`
}

type RunResponse struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"requestId"`
	Kind        string          `json:"kind"`
	InputName   string          `json:"inputName"`
	Status      string          `json:"status"`
	OutputFile  string          `json:"outputFile,omitempty"`
	DownloadURL string          `json:"downloadUrl,omitempty"`
	RemoteURL   string          `json:"remoteUrl,omitempty"`
	Error       string          `json:"error,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type TransitionsResponse struct {
	Transitions []assets.Transition `json:"transitions"`
}

type TracksResponse struct {
	Tracks []assets.Track `json:"tracks"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func downloadURL(file string) string {
	if file == "" {
		return ""
	}
	return "/download/" + file
}

func RunToResponse(r *store.Run) RunResponse {
	resp := RunResponse{
		ID:         r.ID,
		RequestID:  r.RequestID,
		Kind:       r.Kind,
		InputName:  r.InputName,
		Status:     r.Status,
		OutputFile: r.OutputFile,
		RemoteURL:  r.RemoteURL,
		Error:      r.Error,
		Stats:      r.Stats,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Status == store.StatusCompleted {
		resp.DownloadURL = downloadURL(r.OutputFile)
	}
	return resp
}
