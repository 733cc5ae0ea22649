// Package subtitles renders transcription segments as an SRT caption track.
package subtitles

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/reelsmith/reelsmith/internal/transcribe"
)

// Cue is one timed caption entry.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Cues converts segments one-to-one, in input order. Segments whose text is
// empty after cleaning produce no cue since SRT cannot carry a blank body.
func Cues(segs []transcribe.Segment) []Cue {
	cues := make([]Cue, 0, len(segs))
	for _, s := range segs {
		text := cleanText(s.Text)
		if text == "" {
			continue
		}
		start := math.Max(0, s.Start)
		end := math.Max(start, s.End)
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Text: text})
	}
	return cues
}

// Format renders cues in SubRip format.
func Format(segs []transcribe.Segment) string {
	var b strings.Builder
	for _, c := range Cues(segs) {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", c.Index, Timestamp(c.Start), Timestamp(c.End), c.Text)
	}
	return b.String()
}

// WriteFile writes the SRT track for segs to path.
func WriteFile(path string, segs []transcribe.Segment) (int, error) {
	body := Format(segs)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return 0, fmt.Errorf("write subtitles: %w", err)
	}
	return strings.Count(body, " --> "), nil
}

// Timestamp renders seconds as HH:MM:SS,mmm.
func Timestamp(sec float64) string {
	ms := int64(math.Round(sec * 1000))
	if ms < 0 {
		ms = 0
	}
	millis := ms % 1000
	totalSeconds := ms / 1000
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

var stripper = strings.NewReplacer("-->", " ", "<", "", ">", "", "{", "", "}", "")

func cleanText(s string) string {
	s = stripper.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
