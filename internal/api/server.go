package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/engine"
	"github.com/reelsmith/reelsmith/internal/progress"
	"github.com/reelsmith/reelsmith/internal/store"
	"github.com/reelsmith/reelsmith/internal/studio"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// Studio is the service surface behind the media endpoints.
type Studio interface {
	Process(ctx context.Context, job studio.Job) (studio.Output, error)
	ApplyTransitions(ctx context.Context, job studio.Job) (studio.Output, error)
	ApplyAudio(ctx context.Context, job studio.Job) (studio.Output, error)
	Transcribe(ctx context.Context, job studio.Job) (transcribe.Transcript, error)
	Runs(ctx context.Context, limit int) ([]*store.Run, error)
	Run(ctx context.Context, id string) (*store.Run, error)
}

type AssetCatalog interface {
	Transitions() ([]assets.Transition, error)
	Tracks() ([]assets.Track, error)
}

type Doctor interface {
	Get(ctx context.Context) engine.Capabilities
}

// Downloads streams finished artifacts by bare file name.
type Downloads interface {
	Serve(w http.ResponseWriter, r *http.Request, name string) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr           string
	Studio         Studio
	Tracker        progress.Tracker
	Assets         AssetCatalog
	Downloads      Downloads
	Doctor         Doctor // optional
	UploadsDir     string
	MaxUploadBytes int64
	Version        string
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// Uploads and renders can run for minutes.
			ReadTimeout:  0,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
