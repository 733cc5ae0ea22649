package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelsmith/reelsmith/internal/media"
)

// HTTPClient talks to an OpenAI-compatible /v1/audio/transcriptions
// endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, apiKey, model, language string, logger *slog.Logger) *HTTPClient {
	if model == "" {
		model = "whisper-1"
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger,
	}
}

type verboseResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

func (c *HTTPClient) Transcribe(ctx context.Context, wavPath string) (Transcript, error) {
	body, contentType, err := c.buildForm(wavPath)
	if err != nil {
		return Transcript{}, err
	}

	url := c.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Transcript{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Info("requesting transcription", "url", url, "model", c.model, "body_bytes", body.Len())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transcript{}, &media.ExternalProcessFailure{Stage: "transcribe", Tool: "http", ExitCode: -1, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Transcript{}, &media.ExternalProcessFailure{
			Stage:      "transcribe",
			Tool:       "http",
			ExitCode:   resp.StatusCode,
			Diagnostic: truncate(string(respBody), 1024),
			Err:        fmt.Errorf("transcription service returned HTTP %d", resp.StatusCode),
		}
	}

	var out verboseResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Transcript{}, &media.ExternalProcessFailure{Stage: "transcribe", Tool: "http", Err: fmt.Errorf("decode response: %w", err)}
	}
	t := Transcript{Text: strings.TrimSpace(out.Text), Language: out.Language}
	for _, s := range out.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text != "" {
			t.Segments = append(t.Segments, s)
		}
	}
	if t.Text == "" {
		t.Text = joinText(t.Segments)
	}
	return t, nil
}

func (c *HTTPClient) buildForm(wavPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	fields := map[string]string{
		"model":                     c.model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if c.language != "" && c.language != "auto" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
