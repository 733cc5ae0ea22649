// Package assets reads the transition and background-track catalogs.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reelsmith/reelsmith/internal/media"
)

const (
	transitionsDir = "transitions"
	tracksDir      = "music"
)

var (
	transitionManifests = []string{"transitions.json"}
	trackManifests      = []string{"tracks.json", "music.json"}
)

var videoExts = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".m4v": true, ".avi": true}
var audioExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true}

// IsVideoFile reports whether name has a supported video extension.
func IsVideoFile(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

func isAudioFile(name string) bool {
	return audioExts[strings.ToLower(filepath.Ext(name))]
}

type Transition struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration,omitempty"`
	Category string  `json:"category,omitempty"`
	Path     string  `json:"-"`
}

type Track struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration,omitempty"`
	Mood     string  `json:"mood,omitempty"`
	Path     string  `json:"-"`
}

// Catalog serves both catalogs from one assets root:
//
//	<root>/transitions/transitions.json
//	<root>/music/tracks.json
//
// A missing manifest falls back to listing the directory.
type Catalog struct {
	root   string
	logger *slog.Logger
}

func NewCatalog(root string, logger *slog.Logger) *Catalog {
	return &Catalog{root: root, logger: logger}
}

func (c *Catalog) Root() string { return c.root }

func (c *Catalog) Transitions() ([]Transition, error) {
	dir := filepath.Join(c.root, transitionsDir)
	var manifest struct {
		Transitions []Transition `json:"transitions"`
	}
	found, err := readManifest(dir, transitionManifests, &manifest)
	if err != nil {
		return nil, err
	}
	if !found {
		entries, err := scanDir(dir, IsVideoFile)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("transition manifest missing, scanned directory", "dir", dir, "count", len(entries))
		for _, e := range entries {
			manifest.Transitions = append(manifest.Transitions, Transition{ID: e.id, Filename: e.filename, Name: e.name})
		}
	}
	for i := range manifest.Transitions {
		manifest.Transitions[i].Path = filepath.Join(dir, manifest.Transitions[i].Filename)
	}
	return manifest.Transitions, nil
}

func (c *Catalog) Tracks() ([]Track, error) {
	dir := filepath.Join(c.root, tracksDir)
	var manifest struct {
		Tracks []Track `json:"tracks"`
	}
	found, err := readManifest(dir, trackManifests, &manifest)
	if err != nil {
		return nil, err
	}
	if !found {
		entries, err := scanDir(dir, isAudioFile)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("track manifest missing, scanned directory", "dir", dir, "count", len(entries))
		for _, e := range entries {
			manifest.Tracks = append(manifest.Tracks, Track{ID: e.id, Filename: e.filename, Name: e.name})
		}
	}
	for i := range manifest.Tracks {
		manifest.Tracks[i].Path = filepath.Join(dir, manifest.Tracks[i].Filename)
	}
	return manifest.Tracks, nil
}

// Transition resolves id to an existing file.
func (c *Catalog) Transition(id string) (Transition, error) {
	all, err := c.Transitions()
	if err != nil {
		return Transition{}, err
	}
	for _, t := range all {
		if t.ID == id {
			if err := checkFile(t.Path); err != nil {
				return Transition{}, &media.ValidationError{Field: "transitionId", Reason: fmt.Sprintf("transition %q file missing", id)}
			}
			return t, nil
		}
	}
	return Transition{}, &media.ValidationError{Field: "transitionId", Reason: fmt.Sprintf("transition %q not found", id)}
}

// Track resolves id to an existing file.
func (c *Catalog) Track(id string) (Track, error) {
	all, err := c.Tracks()
	if err != nil {
		return Track{}, err
	}
	for _, t := range all {
		if t.ID == id {
			if err := checkFile(t.Path); err != nil {
				return Track{}, &media.ValidationError{Field: "trackId", Reason: fmt.Sprintf("track %q file missing", id)}
			}
			return t, nil
		}
	}
	return Track{}, &media.ValidationError{Field: "trackId", Reason: fmt.Sprintf("track %q not found", id)}
}

func readManifest(dir string, names []string, v any) (bool, error) {
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return false, fmt.Errorf("parse %s: %w", name, err)
		}
		return true, nil
	}
	return false, nil
}

type scanned struct {
	id, filename, name string
}

func scanDir(dir string, match func(string) bool) ([]scanned, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var out []scanned
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !match(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		out = append(out, scanned{id: stem, filename: e.Name(), name: displayName(stem)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func displayName(stem string) string {
	words := strings.FieldsFunc(stem, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
