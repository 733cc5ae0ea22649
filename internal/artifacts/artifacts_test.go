package artifacts

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Clip (final)", "My_Clip__final"},
		{"a\nb", "ab"},
		{"...", "video"},
		{"", "video"},
		{"réel", "r_el"},
		{"ok-name_1.v2", "ok-name_1.v2"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in, 100); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeName(strings.Repeat("a", 80), 10); len(got) != 10 {
		t.Errorf("max length not applied: %q", got)
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"clip-final-1700000000000-a1b2c3.mp4", false},
		{"", true},
		{"../etc/passwd", true},
		{"a/b.mp4", true},
		{`a\b.mp4`, true},
		{".env", true},
		{"x..mp4", true},
	}
	for _, tt := range tests {
		err := ValidateFilename(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestWorkspace_Naming(t *testing.T) {
	root := t.TempDir()
	now := time.UnixMilli(1700000000123)
	w, err := newWorkspace(root, "Beach Day.MOV", now, quietLogger())
	if err != nil {
		t.Fatalf("newWorkspace() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(w.Dir()), "Beach_Day-1700000000123-") {
		t.Errorf("dir = %q", w.Dir())
	}

	first := w.Path("transition", "mp4")
	second := w.Path("transition", "mp4")
	if filepath.Base(first) != "Beach_Day-transition-1700000000123.mp4" {
		t.Errorf("first = %q", filepath.Base(first))
	}
	if filepath.Base(second) != "Beach_Day-transition2-1700000000123.mp4" {
		t.Errorf("second = %q", filepath.Base(second))
	}
}

func TestWorkspace_SaltSeparatesRequests(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	a, _ := newWorkspace(root, "same.mp4", now, quietLogger())
	b, _ := newWorkspace(root, "same.mp4", now, quietLogger())
	if a.Dir() == b.Dir() {
		t.Fatal("two workspaces created at the same instant share a directory")
	}
}

func TestWorkspace_FinalizeLeavesOnlyFinal(t *testing.T) {
	root := t.TempDir()
	w, err := NewWorkspace(root, "clip.mp4", quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	for _, stage := range []string{"silence", "filler", "zoom", "subtitled"} {
		os.WriteFile(w.Path(stage, "mp4"), []byte(stage), 0o644)
	}
	os.WriteFile(w.Path("captions", "srt"), []byte("1"), 0o644)
	last := filepath.Join(w.Dir(), "last.mp4")
	os.WriteFile(last, []byte("final"), 0o644)

	name, err := w.Finalize(last)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 || entries[0].Name() != name {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("outputs root = %v, want only %q", names, name)
	}
	data, _ := os.ReadFile(filepath.Join(root, name))
	if string(data) != "final" {
		t.Errorf("final content = %q", data)
	}
}

func TestWorkspace_FinalizeCopiesForeignPath(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "upload.mp4")
	os.WriteFile(src, []byte("raw"), 0o644)

	w, _ := NewWorkspace(root, "upload.mp4", quietLogger())
	name, err := w.Finalize(src)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("source outside the workspace must not be moved")
	}
	if _, err := os.Stat(filepath.Join(root, name)); err != nil {
		t.Errorf("final missing: %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.mp4")
	data := bytes.Repeat([]byte("frame"), 100_000)
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "final.mp4")
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("copy differs from source (err = %v, %d bytes)", err, len(got))
	}

	missing := filepath.Join(dir, "missing.mp4")
	if err := copyFile(missing, filepath.Join(dir, "other.mp4")); err == nil {
		t.Error("copyFile() of a missing source succeeded")
	}
	if _, err := os.Stat(filepath.Join(dir, "other.mp4")); !os.IsNotExist(err) {
		t.Error("destination created for a failed copy")
	}
	if err := copyFile(src, dst); err == nil {
		t.Error("copyFile() overwrote an existing destination")
	}
	if got, _ := os.ReadFile(dst); !bytes.Equal(got, data) {
		t.Error("existing destination damaged by a refused copy")
	}
}

func TestWorkspace_DiscardIgnoresOutsideFiles(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "keep.mp4")
	os.WriteFile(outside, []byte("x"), 0o644)

	w, _ := NewWorkspace(t.TempDir(), "a.mp4", quietLogger())
	w.Discard(outside)
	if _, err := os.Stat(outside); err != nil {
		t.Fatal("Discard removed a file outside the workspace")
	}

	inside := w.Path("cut", "mp4")
	os.WriteFile(inside, []byte("x"), 0o644)
	w.Discard(inside)
	if _, err := os.Stat(inside); !os.IsNotExist(err) {
		t.Error("Discard left an intermediate behind")
	}
}
