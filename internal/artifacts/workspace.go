// Package artifacts owns the on-disk files of one pipeline run.
//
// Every intermediate lives in a request-scoped directory under the outputs
// root, named <basename>-<stage>-<timestamp>.<ext>. Finalize moves the last
// artifact out of that directory and deletes the directory, so nothing but
// the final file survives a run.
package artifacts

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

type Workspace struct {
	root   string
	dir    string
	base   string
	stamp  string
	salt   string
	logger *slog.Logger

	mu   sync.Mutex
	used map[string]int
}

// NewWorkspace creates the request directory under root for an upload
// named sourceName.
func NewWorkspace(root, sourceName string, logger *slog.Logger) (*Workspace, error) {
	return newWorkspace(root, sourceName, time.Now(), logger)
}

func newWorkspace(root, sourceName string, now time.Time, logger *slog.Logger) (*Workspace, error) {
	salt, err := randomSalt()
	if err != nil {
		return nil, err
	}
	w := &Workspace{
		root:   root,
		base:   BaseName(sourceName),
		stamp:  strconv.FormatInt(now.UnixMilli(), 10),
		salt:   salt,
		logger: logger,
		used:   make(map[string]int),
	}
	w.dir = filepath.Join(root, fmt.Sprintf("%s-%s-%s", w.base, w.stamp, w.salt))
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return w, nil
}

func randomSalt() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (w *Workspace) Dir() string  { return w.dir }
func (w *Workspace) Base() string { return w.base }

// Path names the artifact a stage is about to produce. Repeated stage names
// get a numeric suffix so list stages never collide.
func (w *Workspace) Path(stage, ext string) string {
	w.mu.Lock()
	n := w.used[stage]
	w.used[stage] = n + 1
	w.mu.Unlock()

	if n > 0 {
		stage = fmt.Sprintf("%s%d", stage, n+1)
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s-%s.%s", w.base, stage, w.stamp, ext))
}

// Discard removes an artifact that is no longer needed. Only files inside
// the workspace are touched; failures are logged.
func (w *Workspace) Discard(path string) {
	if path == "" || filepath.Dir(path) != w.dir {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("failed to delete intermediate artifact", "path", path, "error", err)
	}
}

// Finalize moves path out of the workspace into the outputs root and removes
// the workspace. The returned name is the download file name.
func (w *Workspace) Finalize(path string) (string, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp4"
	}
	name := fmt.Sprintf("%s-final-%s-%s%s", w.base, w.stamp, w.salt, ext)
	dst := filepath.Join(w.root, name)

	if filepath.Dir(path) == w.dir {
		if err := os.Rename(path, dst); err != nil {
			return "", fmt.Errorf("move final artifact: %w", err)
		}
	} else if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("copy final artifact: %w", err)
	}
	w.Cleanup()
	return name, nil
}

// Cleanup deletes the workspace and everything left in it.
func (w *Workspace) Cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn("failed to remove workspace", "dir", w.dir, "error", err)
	}
}

// copyFile streams src into a new file at dst. A partial dst is removed on
// failure.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
