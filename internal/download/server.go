// Package download serves finished artifacts from the outputs directory.
package download

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/reelsmith/reelsmith/internal/artifacts"
	"github.com/reelsmith/reelsmith/internal/media"
)

// ErrNotFound is returned when no artifact has the requested name.
var ErrNotFound = errors.New("artifact not found")

type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: root, logger: logger}
}

// Serve streams the named artifact as an attachment. A *media.ValidationError
// for a bad name and ErrNotFound are returned before anything is written.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	if err := artifacts.ValidateFilename(name); err != nil {
		return &media.ValidationError{Field: "filename", Reason: err.Error()}
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return ErrNotFound
	}
	size := info.Size()

	h := w.Header()
	h.Set("Content-Type", "video/mp4")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	h.Set("Accept-Ranges", "bytes")

	sp, err := parseSpan(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, errRangeNotSatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// Malformed ranges are ignored and the whole file is sent.
		sp = nil
	}

	if sp == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		if _, err := io.Copy(w, f); err != nil {
			s.logger.Debug("download interrupted", "file", name, "error", err)
		}
		return nil
	}

	if _, err := f.Seek(sp.first, io.SeekStart); err != nil {
		return fmt.Errorf("seek artifact: %w", err)
	}
	h.Set("Content-Length", strconv.FormatInt(sp.length(), 10))
	h.Set("Content-Range", sp.header(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.CopyN(w, f, sp.length()); err != nil {
		s.logger.Debug("download interrupted", "file", name, "error", err)
	}
	return nil
}
