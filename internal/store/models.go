// Package store persists one record per pipeline run.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	KindProcess     = "process"
	KindTransitions = "transitions"
	KindAudio       = "audio"
	KindTranscribe  = "transcribe"
)

type Run struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"requestId"`
	Kind       string          `json:"kind"`
	InputName  string          `json:"inputName"`
	OutputFile string          `json:"outputFile,omitempty"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Stats      json.RawMessage `json:"stats,omitempty"`
	RemoteURL  string          `json:"remoteUrl,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func NewID() string {
	return uuid.NewString()
}
