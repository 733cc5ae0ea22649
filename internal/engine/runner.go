package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/reelsmith/reelsmith/internal/media"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Runner executes one engine subprocess.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (RunResult, error)
}

// SubprocessRunner is the production Runner.
type SubprocessRunner struct {
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *SubprocessRunner {
	return &SubprocessRunner{logger: logger}
}

// Run executes inv and returns a *media.ExternalProcessFailure for a
// non-zero exit, a failed start or a cancelled context.
func (r *SubprocessRunner) Run(ctx context.Context, inv Invocation) (RunResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Stdout = io.Discard
	if inv.Stdout != nil {
		cmd.Stdout = inv.Stdout
	}

	var stderrBuf bytes.Buffer
	tail := &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	var (
		lines *io.PipeWriter
		wg    sync.WaitGroup
	)
	if inv.StderrLine != nil {
		pr, pw := io.Pipe()
		lines = pw
		cmd.Stderr = io.MultiWriter(tail, pw)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scanLines(pr, inv.StderrLine)
		}()
	} else {
		cmd.Stderr = tail
	}

	r.logger.Debug("executing engine command",
		"stage", inv.Stage,
		"tool", inv.Tool,
		"args", inv.Args,
	)

	err := cmd.Run()
	if lines != nil {
		lines.Close()
		wg.Wait()
	}
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}

	if err == nil {
		r.logger.Info("engine command succeeded",
			"stage", inv.Stage,
			"tool", inv.Tool,
			"duration_ms", elapsed.Milliseconds(),
		)
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	r.logger.Warn("engine command failed",
		"stage", inv.Stage,
		"tool", inv.Tool,
		"exit_code", exitCode,
		"duration_ms", elapsed.Milliseconds(),
		"stderr_tail", truncate(result.StderrTail, 512),
	)
	return result, &media.ExternalProcessFailure{
		Stage:      inv.Stage,
		Tool:       inv.Tool,
		ExitCode:   exitCode,
		Diagnostic: strings.TrimSpace(result.StderrTail),
		Err:        err,
	}
}

func scanLines(r io.Reader, fn func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		fn(sc.Text())
	}
	// Drain so the writer side never blocks after a scan error.
	io.Copy(io.Discard, r)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
