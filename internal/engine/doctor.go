package engine

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// CachedDoctor caches engine capability probes with a TTL so health
// checks do not spawn processes on every request.
type CachedDoctor struct {
	engine *Engine
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(engine *Engine, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		engine: engine,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := *d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := Capabilities{ProbedAt: time.Now()}

	var out bytes.Buffer
	if _, err := d.engine.runner.Run(ctx, Invocation{Stage: "doctor", Tool: d.engine.ffmpeg, Args: []string{"-hide_banner", "-version"}, Stdout: &out}); err == nil {
		caps.FFmpeg = true
		caps.FFmpegVersion = firstLineVersion(out.String())
	} else {
		d.logger.Warn("ffmpeg unavailable", "path", d.engine.ffmpeg, "error", err)
	}
	if _, err := d.engine.runner.Run(ctx, Invocation{Stage: "doctor", Tool: d.engine.ffprobe, Args: []string{"-hide_banner", "-version"}}); err == nil {
		caps.FFprobe = true
	} else {
		d.logger.Warn("ffprobe unavailable", "path", d.engine.ffprobe, "error", err)
	}

	d.cached = &caps
	return caps
}

// firstLineVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func firstLineVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	sc := bufio.NewScanner(strings.NewReader(line))
	sc.Split(bufio.ScanWords)
	var prev string
	for sc.Scan() {
		if prev == "version" {
			return sc.Text()
		}
		prev = sc.Text()
	}
	return ""
}
