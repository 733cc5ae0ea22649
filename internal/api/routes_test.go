package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelsmith/reelsmith/internal/assets"
	"github.com/reelsmith/reelsmith/internal/download"
	"github.com/reelsmith/reelsmith/internal/engine"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/pipeline"
	"github.com/reelsmith/reelsmith/internal/progress"
	"github.com/reelsmith/reelsmith/internal/store"
	"github.com/reelsmith/reelsmith/internal/studio"
	"github.com/reelsmith/reelsmith/internal/transcribe"
)

type fakeStudio struct {
	jobs []studio.Job
	err  error
	runs []*store.Run
}

func (f *fakeStudio) output(job studio.Job) (studio.Output, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return studio.Output{}, f.err
	}
	return studio.Output{
		RunID: "run-1",
		Result: pipeline.Result{
			OutputFile: "clip-final-1-abc.mp4",
			Transcript: transcribe.Transcript{Text: "hello world"},
			Stats:      pipeline.Stats{FinalDuration: 8.5, Skipped: []string{"filler"}},
		},
	}, nil
}

func (f *fakeStudio) Process(ctx context.Context, job studio.Job) (studio.Output, error) {
	return f.output(job)
}

func (f *fakeStudio) ApplyTransitions(ctx context.Context, job studio.Job) (studio.Output, error) {
	return f.output(job)
}

func (f *fakeStudio) ApplyAudio(ctx context.Context, job studio.Job) (studio.Output, error) {
	return f.output(job)
}

func (f *fakeStudio) Transcribe(ctx context.Context, job studio.Job) (transcribe.Transcript, error) {
	out, err := f.output(job)
	return out.Transcript, err
}

func (f *fakeStudio) Runs(ctx context.Context, limit int) ([]*store.Run, error) {
	return f.runs, nil
}

func (f *fakeStudio) Run(ctx context.Context, id string) (*store.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

type fakeAssets struct{}

func (fakeAssets) Transitions() ([]assets.Transition, error) {
	return []assets.Transition{{ID: "whoosh", Filename: "whoosh.mp4", Name: "Whoosh"}}, nil
}

func (fakeAssets) Tracks() ([]assets.Track, error) {
	return nil, nil
}

type fakeDoctor struct{ caps engine.Capabilities }

func (d fakeDoctor) Get(ctx context.Context) engine.Capabilities { return d.caps }

func testConfig(t *testing.T, s *fakeStudio) (ServerConfig, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	outputs := t.TempDir()
	return ServerConfig{
		Studio:         s,
		Tracker:        progress.NewMemoryTracker(time.Minute, logger),
		Assets:         fakeAssets{},
		Downloads:      download.NewServer(outputs, logger),
		UploadsDir:     filepath.Join(t.TempDir(), "uploads"),
		MaxUploadBytes: 1 << 20,
		Version:        "test",
		Logger:         logger,
		StartTime:      time.Now(),
	}, outputs
}

func multipartRequest(t *testing.T, path, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("fake video bytes"))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func serve(cfg ServerConfig, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)
	return rr
}

func TestProcessVideo_Success(t *testing.T) {
	s := &fakeStudio{}
	cfg, _ := testConfig(t, s)

	rr := serve(cfg, multipartRequest(t, "/process-video", "My Clip.mov", map[string]string{
		"requestId":        "req-42",
		"transitions":      `[{"id":"whoosh","time":3},{"transitionId":"flash","time":1}]`,
		"audios":           `[{"trackId":"lofi","startTime":0,"volume":0.3}]`,
		"silenceThreshold": "-40",
		"zoom":             `{"startZoom":1,"endZoom":1.2,"durationSec":2}`,
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["success"] != true || body["outputFile"] != "clip-final-1-abc.mp4" {
		t.Errorf("body = %v", body)
	}
	if body["downloadUrl"] != "/download/clip-final-1-abc.mp4" || body["requestId"] != "req-42" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["processingStats"].(map[string]interface{}); !ok {
		t.Error("processingStats missing")
	}

	job := s.jobs[0]
	if job.InputName != "My Clip.mov" || !job.OwnsInput {
		t.Errorf("job = %+v", job)
	}
	if filepath.Dir(job.Input) != cfg.UploadsDir {
		t.Errorf("upload stored at %q", job.Input)
	}
	if len(job.Transitions) != 2 || job.Transitions[1].TransitionID != "flash" {
		t.Errorf("transitions = %+v", job.Transitions)
	}
	if len(job.Audios) != 1 || job.Audios[0].Volume != 0.3 {
		t.Errorf("audios = %+v", job.Audios)
	}
	if job.Overrides.SilenceThresholdDB == nil || *job.Overrides.SilenceThresholdDB != -40 {
		t.Errorf("silence override = %v", job.Overrides.SilenceThresholdDB)
	}
	if z := job.Overrides.Zoom; z == nil || z.EndZoom != 1.2 || z.Easing != media.DefaultEasing {
		t.Errorf("zoom override = %+v", z)
	}
}

func TestProcessVideo_DefaultsRequestIDToHeader(t *testing.T) {
	s := &fakeStudio{}
	cfg, _ := testConfig(t, s)
	req := multipartRequest(t, "/process-video", "a.mp4", nil)
	req.Header.Set("X-Request-ID", "hdr-1")

	if rr := serve(cfg, req); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if s.jobs[0].RequestID != "hdr-1" {
		t.Errorf("RequestID = %q", s.jobs[0].RequestID)
	}
}

func TestProcessVideo_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"missing video", "", nil},
		{"not a video", "notes.txt", nil},
		{"bad transitions json", "a.mp4", map[string]string{"transitions": "[{"}},
		{"bad threshold", "a.mp4", map[string]string{"silenceThreshold": "loud"}},
		{"negative padding", "a.mp4", map[string]string{"padding": "-1"}},
		{"bad zoom", "a.mp4", map[string]string{"zoom": "yes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeStudio{}
			cfg, _ := testConfig(t, s)
			rr := serve(cfg, multipartRequest(t, "/process-video", tt.filename, tt.fields))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			body := decodeJSONBody(t, rr)
			if body["success"] != false || body["code"] != "BAD_REQUEST" {
				t.Errorf("body = %v", body)
			}
			if len(s.jobs) != 0 {
				t.Error("studio should not be called")
			}
		})
	}
}

func TestProcessVideo_TooLarge(t *testing.T) {
	cfg, _ := testConfig(t, &fakeStudio{})
	cfg.MaxUploadBytes = 64
	rr := serve(cfg, multipartRequest(t, "/process-video", "a.mp4", map[string]string{"pad": string(bytes.Repeat([]byte("x"), 512))}))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestProcessVideo_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"hard stage", &media.HardStageFailure{Stage: "silence", Err: media.ErrNoContent}, http.StatusInternalServerError, "PIPELINE_FAILED"},
		{"validation", &media.ValidationError{Field: "transitions.id", Reason: "unknown"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := testConfig(t, &fakeStudio{err: tt.err})
			rr := serve(cfg, multipartRequest(t, "/process-video", "a.mp4", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			body := decodeJSONBody(t, rr)
			if body["code"] != tt.wantCode || body["success"] != false || body["error"] == "" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestUpload_Transcription(t *testing.T) {
	cfg, _ := testConfig(t, &fakeStudio{})
	rr := serve(cfg, multipartRequest(t, "/upload", "a.webm", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["text"] != "hello world" || body["success"] != true {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["transcription"].(map[string]interface{}); !ok {
		t.Error("transcription missing")
	}
}

func TestApplyEndpoints(t *testing.T) {
	for _, path := range []string{"/apply-transitions", "/apply-audio"} {
		t.Run(path, func(t *testing.T) {
			s := &fakeStudio{}
			cfg, _ := testConfig(t, s)
			rr := serve(cfg, multipartRequest(t, path, "a.mp4", map[string]string{
				"transitions": `[{"id":"whoosh","time":1}]`,
				"audios":      `[{"id":"lofi"}]`,
			}))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			body := decodeJSONBody(t, rr)
			if body["downloadUrl"] != "/download/clip-final-1-abc.mp4" {
				t.Errorf("body = %v", body)
			}
			if _, ok := body["transcription"]; ok {
				t.Error("apply responses carry no transcription")
			}
		})
	}
}

func TestDownload(t *testing.T) {
	cfg, outputs := testConfig(t, &fakeStudio{})
	if err := os.WriteFile(filepath.Join(outputs, "clip-final.mp4"), []byte("abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := serve(cfg, httptest.NewRequest(http.MethodGet, "/download/clip-final.mp4", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "abcdef" {
		t.Fatalf("status = %d body = %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "video/mp4" || rr.Header().Get("Content-Length") != "6" {
		t.Errorf("headers = %v", rr.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/download/clip-final.mp4", nil)
	req.Header.Set("Range", "bytes=-2")
	rr = serve(cfg, req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "ef" {
		t.Errorf("range status = %d body = %q", rr.Code, rr.Body.String())
	}

	rr = serve(cfg, httptest.NewRequest(http.MethodGet, "/download/missing.mp4", nil))
	if rr.Code != http.StatusNotFound || decodeJSONBody(t, rr)["code"] != "NOT_FOUND" {
		t.Errorf("missing status = %d", rr.Code)
	}

	rr = serve(cfg, httptest.NewRequest(http.MethodGet, "/download/..secret.mp4", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d, want 400", rr.Code)
	}
}

func TestProgress_NeverNotFound(t *testing.T) {
	cfg, _ := testConfig(t, &fakeStudio{})

	rr := serve(cfg, httptest.NewRequest(http.MethodGet, "/progress/unknown", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["percent"] != float64(0) || body["message"] != "pending" || body["done"] != false {
		t.Errorf("body = %v", body)
	}

	cfg.Tracker.Update(context.Background(), "r1", progress.Step(45, "Transcribing"))
	body = decodeJSONBody(t, serve(cfg, httptest.NewRequest(http.MethodGet, "/progress/r1", nil)))
	if body["percent"] != float64(45) || body["message"] != "Transcribing" {
		t.Errorf("body = %v", body)
	}
}

func TestRuns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &fakeStudio{runs: []*store.Run{
		{ID: "a", Kind: store.KindProcess, Status: store.StatusCompleted, OutputFile: "a.mp4", CreatedAt: now, UpdatedAt: now},
		{ID: "b", Kind: store.KindProcess, Status: store.StatusFailed, Error: "boom", CreatedAt: now, UpdatedAt: now},
	}}
	cfg, _ := testConfig(t, s)

	body := decodeJSONBody(t, serve(cfg, httptest.NewRequest(http.MethodGet, "/runs", nil)))
	runs, _ := body["runs"].([]interface{})
	if len(runs) != 2 {
		t.Fatalf("runs = %v", body)
	}
	first := runs[0].(map[string]interface{})
	if first["downloadUrl"] != "/download/a.mp4" || first["createdAt"] != "2026-03-01T12:00:00Z" {
		t.Errorf("first = %v", first)
	}

	rr := serve(cfg, httptest.NewRequest(http.MethodGet, "/runs/b", nil))
	if rr.Code != http.StatusOK || decodeJSONBody(t, rr)["error"] != "boom" {
		t.Errorf("get run status = %d", rr.Code)
	}
	rr = serve(cfg, httptest.NewRequest(http.MethodGet, "/runs/zzz", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d", rr.Code)
	}
}

func TestAssets(t *testing.T) {
	cfg, _ := testConfig(t, &fakeStudio{})

	body := decodeJSONBody(t, serve(cfg, httptest.NewRequest(http.MethodGet, "/assets/transitions", nil)))
	list, _ := body["transitions"].([]interface{})
	if len(list) != 1 {
		t.Errorf("transitions = %v", body)
	}

	body = decodeJSONBody(t, serve(cfg, httptest.NewRequest(http.MethodGet, "/assets/tracks", nil)))
	if tracks, ok := body["tracks"].([]interface{}); !ok || len(tracks) != 0 {
		t.Errorf("tracks should be an empty list, got %v", body["tracks"])
	}
}

func TestHealth(t *testing.T) {
	cfg, _ := testConfig(t, &fakeStudio{})
	body := decodeJSONBody(t, serve(cfg, httptest.NewRequest(http.MethodGet, "/health", nil)))
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["engine"]; ok {
		t.Error("engine should be omitted without a doctor")
	}

	cfg.Doctor = fakeDoctor{caps: engine.Capabilities{FFmpeg: true, ProbedAt: time.Now()}}
	body = decodeJSONBody(t, serve(cfg, httptest.NewRequest(http.MethodGet, "/health", nil)))
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded without ffprobe", body["status"])
	}
}
