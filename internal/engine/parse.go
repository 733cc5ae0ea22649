package engine

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/reelsmith/reelsmith/internal/segments"
)

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)
)

// silenceCollector accumulates silencedetect events from stderr lines.
type silenceCollector struct {
	events []segments.Event
}

func (c *silenceCollector) line(s string) {
	if !strings.Contains(s, "silencedetect") {
		return
	}
	if m := silenceStartRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			c.events = append(c.events, segments.Event{Kind: segments.SilenceStart, Time: v})
		}
	}
	if m := silenceEndRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			c.events = append(c.events, segments.Event{Kind: segments.SilenceEnd, Time: v})
		}
	}
}

// parseTrace reads the ametadata print format:
//
//	frame:12   pts:57600   pts_time:1.2
//	lavfi.astats.Overall.RMS_level=-31.207
func parseTrace(r io.Reader) (segments.Trace, error) {
	var (
		out     segments.Trace
		t       float64
		haveT   bool
		scanner = bufio.NewScanner(r)
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "frame:"):
			haveT = false
			for _, field := range strings.Fields(line) {
				if v, ok := strings.CutPrefix(field, "pts_time:"); ok {
					f, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return nil, fmt.Errorf("bad pts_time %q: %w", v, err)
					}
					t, haveT = f, true
				}
			}
		case strings.Contains(line, "RMS_level="):
			if !haveT {
				continue
			}
			_, v, _ := strings.Cut(line, "=")
			level, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("bad RMS level %q: %w", v, err)
			}
			out = append(out, segments.Sample{Time: t, Level: level})
			haveT = false
		}
	}
	return out, scanner.Err()
}
