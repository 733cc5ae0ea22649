package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/download"
	"github.com/reelsmith/reelsmith/internal/media"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	r.Get("/health", healthHandler(cfg))

	r.Post("/process-video", processVideoHandler(cfg))
	r.Post("/upload", transcribeHandler(cfg))
	r.Post("/apply-transitions", applyTransitionsHandler(cfg))
	r.Post("/apply-audio", applyAudioHandler(cfg))

	r.Get("/download/{filename}", downloadHandler(cfg))
	r.Head("/download/{filename}", downloadHandler(cfg))
	r.Get("/progress/{id}", progressHandler(cfg))

	r.Get("/runs", listRunsHandler(cfg))
	r.Get("/runs/{id}", getRunHandler(cfg))

	r.Get("/assets/transitions", listTransitionsHandler(cfg))
	r.Get("/assets/tracks", listTracksHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Doctor != nil {
			caps := cfg.Doctor.Get(r.Context())
			resp.Engine = &EngineResponse{
				FFmpeg:        caps.FFmpeg,
				FFprobe:       caps.FFprobe,
				FFmpegVersion: caps.FFmpegVersion,
				ProbedAt:      caps.ProbedAt.Format(time.RFC3339),
			}
			if !caps.Ready() {
				resp.Status = "degraded"
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// progressHandler never 404s: unknown ids read as pending.
func progressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		state, err := cfg.Tracker.Get(r.Context(), id)
		if err != nil {
			cfg.Logger.Error("failed to read progress", "id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read progress", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, state)
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "filename")
		err := cfg.Downloads.Serve(w, r, name)
		switch {
		case err == nil:
		case media.IsValidation(err):
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		case errors.Is(err, download.ErrNotFound):
			WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
		default:
			cfg.Logger.Error("download error", "error", err, "file", name)
			WriteError(w, http.StatusInternalServerError, "failed to read file", "INTERNAL_ERROR")
		}
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := cfg.Studio.Runs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "run id required", "BAD_REQUEST")
			return
		}

		run, err := cfg.Studio.Run(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}

func listTransitionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Assets.Transitions()
		if err != nil {
			cfg.Logger.Error("failed to read transitions", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read transitions", "INTERNAL_ERROR")
			return
		}
		if list == nil {
			list = []assets.Transition{}
		}
		WriteJSON(w, http.StatusOK, TransitionsResponse{Transitions: list})
	}
}

func listTracksHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Assets.Tracks()
		if err != nil {
			cfg.Logger.Error("failed to read tracks", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read tracks", "INTERNAL_ERROR")
			return
		}
		if list == nil {
			list = []assets.Track{}
		}
		WriteJSON(w, http.StatusOK, TracksResponse{Tracks: list})
	}
}
