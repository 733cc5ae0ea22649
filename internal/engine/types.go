// Package engine drives ffmpeg and ffprobe as black-box subprocesses.
// Every call blocks until the process exits and honours context
// cancellation by killing the child.
package engine

import (
	"io"
	"time"
)

// Invocation is one subprocess call.
type Invocation struct {
	Stage string // pipeline stage, for diagnostics
	Tool  string // binary to execute
	Args  []string

	// Stdout receives standard output when set; otherwise it is discarded.
	Stdout io.Writer
	// StderrLine, when set, is called for every stderr line in addition
	// to the bounded tail kept for diagnostics.
	StderrLine func(line string)
}

// RunResult is the structured outcome of one subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Capabilities reports which engine binaries are usable.
type Capabilities struct {
	FFmpeg        bool      `json:"ffmpeg"`
	FFprobe       bool      `json:"ffprobe"`
	FFmpegVersion string    `json:"ffmpeg_version,omitempty"`
	ProbedAt      time.Time `json:"probed_at"`
}

// Ready reports whether every binary needed by the pipeline is present.
func (c Capabilities) Ready() bool { return c.FFmpeg && c.FFprobe }
