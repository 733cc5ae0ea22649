package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/reelsmith/reelsmith/internal/artifacts"
	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/studio"
)

// maxFormMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const maxFormMemory = 32 << 20

func processVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := readJob(cfg, w, r, formOptions{specs: true, tuning: true})
		if !ok {
			return
		}
		out, err := cfg.Studio.Process(r.Context(), job)
		if err != nil {
			writePipelineError(cfg, w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProcessResponse{
			Success:         true,
			RequestID:       job.RequestID,
			RunID:           out.RunID,
			OutputFile:      out.OutputFile,
			DownloadURL:     downloadURL(out.OutputFile),
			Transcription:   out.Transcript,
			ProcessingStats: out.Stats,
		})
	}
}

func applyTransitionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := readJob(cfg, w, r, formOptions{specs: true})
		if !ok {
			return
		}
		out, err := cfg.Studio.ApplyTransitions(r.Context(), job)
		writeApplyResult(cfg, w, job, out, err)
	}
}

func applyAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := readJob(cfg, w, r, formOptions{specs: true})
		if !ok {
			return
		}
		out, err := cfg.Studio.ApplyAudio(r.Context(), job)
		writeApplyResult(cfg, w, job, out, err)
	}
}

// transcribeHandler serves the transcription-only upload path.
func transcribeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := readJob(cfg, w, r, formOptions{})
		if !ok {
			return
		}
		transcript, err := cfg.Studio.Transcribe(r.Context(), job)
		if err != nil {
			writePipelineError(cfg, w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TranscriptionResponse{
			Success:       true,
			Transcription: transcript,
			Text:          transcript.Text,
		})
	}
}

func writeApplyResult(cfg ServerConfig, w http.ResponseWriter, job studio.Job, out studio.Output, err error) {
	if err != nil {
		writePipelineError(cfg, w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ApplyResponse{
		Success:         true,
		RequestID:       job.RequestID,
		RunID:           out.RunID,
		OutputFile:      out.OutputFile,
		DownloadURL:     downloadURL(out.OutputFile),
		ProcessingStats: out.Stats,
	})
}

// writePipelineError maps the error taxonomy onto HTTP. A hard stage failure
// is checked first since it may wrap a validation error.
func writePipelineError(cfg ServerConfig, w http.ResponseWriter, err error) {
	var hard *media.HardStageFailure
	switch {
	case errors.As(err, &hard):
		WriteError(w, http.StatusInternalServerError, err.Error(), "PIPELINE_FAILED")
	case media.IsValidation(err):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		cfg.Logger.Error("unexpected pipeline error", "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

type formOptions struct {
	specs  bool // transitions and audios
	tuning bool // per-request pipeline knobs
}

// readJob parses the multipart form, validates its fields and stores the
// upload. On failure it has already written the error response.
func readJob(cfg ServerConfig, w http.ResponseWriter, r *http.Request, opts formOptions) (studio.Job, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", cfg.MaxUploadBytes>>20), "PAYLOAD_TOO_LARGE")
			return studio.Job{}, false
		}
		WriteError(w, http.StatusBadRequest, "expected multipart form data", "BAD_REQUEST")
		return studio.Job{}, false
	}
	defer r.MultipartForm.RemoveAll()

	job := studio.Job{
		RequestID: strings.TrimSpace(r.FormValue("requestId")),
		OwnsInput: true,
	}
	if job.RequestID == "" {
		job.RequestID = RequestIDFrom(r.Context())
	}

	var err error
	if opts.specs {
		if job.Transitions, err = jsonField[media.TransitionSpec](r, "transitions"); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return studio.Job{}, false
		}
		if job.Audios, err = jsonField[media.AudioOverlaySpec](r, "audios"); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return studio.Job{}, false
		}
	}
	if opts.tuning {
		if job.Overrides, err = readOverrides(r); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return studio.Job{}, false
		}
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "video file is required", "BAD_REQUEST")
		return studio.Job{}, false
	}
	defer file.Close()
	if !assets.IsVideoFile(header.Filename) {
		WriteError(w, http.StatusBadRequest, "unsupported video type: "+filepath.Ext(header.Filename), "BAD_REQUEST")
		return studio.Job{}, false
	}

	path, err := saveUpload(cfg.UploadsDir, header.Filename, file)
	if err != nil {
		cfg.Logger.Error("failed to store upload", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to store upload", "INTERNAL_ERROR")
		return studio.Job{}, false
	}
	job.Input = path
	job.InputName = header.Filename
	return job, true
}

// jsonField decodes an optional JSON array form field.
func jsonField[T any](r *http.Request, name string) ([]T, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid %s: %v", name, err)
	}
	return out, nil
}

func readOverrides(r *http.Request) (studio.Overrides, error) {
	var o studio.Overrides
	fields := []struct {
		name string
		dst  **float64
	}{
		{"silenceThreshold", &o.SilenceThresholdDB},
		{"minSilenceLength", &o.MinSilence},
		{"padding", &o.Padding},
		{"fillerSensitivity", &o.FillerSensitivity},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(r.FormValue(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return o, fmt.Errorf("invalid %s: %q is not a number", f.name, raw)
		}
		*f.dst = &v
	}
	if o.MinSilence != nil && *o.MinSilence < 0 {
		return o, errors.New("invalid minSilenceLength: must be >= 0")
	}
	if o.Padding != nil && *o.Padding < 0 {
		return o, errors.New("invalid padding: must be >= 0")
	}
	if raw := strings.TrimSpace(r.FormValue("zoom")); raw != "" {
		var z media.ZoomSpec
		if err := json.Unmarshal([]byte(raw), &z); err != nil {
			return o, fmt.Errorf("invalid zoom: %v", err)
		}
		if z.Easing == "" {
			z.Easing = media.DefaultEasing
		}
		o.Zoom = &z
	}
	return o, nil
}

func saveUpload(dir, original string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(original))
	name := uuid.NewString() + "-" + artifacts.BaseName(original) + ext
	path := filepath.Join(dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
