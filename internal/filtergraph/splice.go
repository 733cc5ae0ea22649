package filtergraph

import (
	"math"

	"github.com/reelsmith/reelsmith/internal/media"
)

// edge is the tolerance below which a head or tail is considered empty.
const edge = 0.001

const (
	mixRate   = 48000
	mixLayout = "stereo"
)

// SpliceInput describes one transition: input 0 is the current artifact,
// input 1 the transition clip.
type SpliceInput struct {
	Current    media.Probe
	Transition media.Probe
	At         float64
	Duration   float64 // 0 = full transition clip
}

// Splice cuts the current artifact at At and inserts the transition clip
// between head and tail. Both videos are letterboxed onto the larger of
// the two frames. Transition audio is used only when the clip has an
// audio stream; otherwise a silent bed of the same length is generated.
func Splice(in SpliceInput) (Plan, error) {
	cur, tr := in.Current, in.Transition
	if !cur.HasVideo || !tr.HasVideo {
		return Plan{}, &media.ValidationError{Field: "transition", Reason: "both inputs need a video stream"}
	}
	trDur := tr.Duration
	if in.Duration > 0 && (trDur <= 0 || in.Duration < trDur) {
		trDur = in.Duration
	}
	if trDur <= 0 {
		return Plan{}, &media.ValidationError{Field: "transition.duration", Reason: "transition clip has no duration"}
	}

	w, h := even(max(cur.Width, tr.Width)), even(max(cur.Height, tr.Height))
	fps := cur.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	fit := []Filter{
		F("scale", KV("w", w), KV("h", h), KV("force_original_aspect_ratio", "decrease")),
		F("pad", KV("w", w), KV("h", h), KV("x", "(ow-iw)/2"), KV("y", "(oh-ih)/2")),
		F("setsar", Pos(1)),
		F("fps", Pos(fps)),
	}
	fmtAudio := F("aformat", KV("sample_rates", mixRate), KV("channel_layouts", mixLayout))

	at := math.Min(math.Max(in.At, 0), cur.Duration)
	hasHead := at > edge
	hasTail := cur.Duration-at > edge
	withAudio := cur.HasAudio

	g := New()
	var parts []Pad

	splitInput := func(src Pad, name string, n int, prefix string) []Pad {
		if n == 1 {
			return []Pad{src}
		}
		outs := []Pad{g.Label(prefix), g.Label(prefix)}
		g.Add([]Pad{src}, []Filter{F(name, Pos(2))}, outs...)
		return outs
	}
	pieces := 0
	if hasHead {
		pieces++
	}
	if hasTail {
		pieces++
	}

	var vSrc, aSrc []Pad
	if pieces > 0 {
		vSrc = splitInput("0:v", "split", pieces, "sv")
		if withAudio {
			aSrc = splitInput("0:a", "asplit", pieces, "sa")
		}
	}

	segment := func(i int, window Filter, awindow Filter) {
		parts = append(parts, g.Pipe(vSrc[i], "v", append([]Filter{window, F("setpts", Pos("PTS-STARTPTS"))}, fit...)...))
		if withAudio {
			parts = append(parts, g.Pipe(aSrc[i], "a", awindow, F("asetpts", Pos("PTS-STARTPTS")), fmtAudio))
		}
	}

	idx := 0
	if hasHead {
		segment(idx, F("trim", KV("end", Seconds(at))), F("atrim", KV("end", Seconds(at))))
		idx++
	}

	parts = append(parts, g.Pipe("1:v", "v",
		append([]Filter{F("trim", KV("end", Seconds(trDur))), F("setpts", Pos("PTS-STARTPTS"))}, fit...)...))
	if withAudio {
		var bed Pad
		if tr.HasAudio {
			bed = g.Pipe("1:a", "a",
				F("atrim", KV("end", Seconds(trDur))),
				F("asetpts", Pos("PTS-STARTPTS")),
				fmtAudio)
		} else {
			bed = g.Label("a")
			g.Add(nil, []Filter{
				F("anullsrc", KV("channel_layout", mixLayout), KV("sample_rate", mixRate)),
				F("atrim", KV("end", Seconds(trDur))),
			}, bed)
		}
		parts = append(parts, bed)
	}

	if hasTail {
		segment(idx, F("trim", KV("start", Seconds(at))), F("atrim", KV("start", Seconds(at))))
	}

	segmentsN := 1 + pieces
	maps := concatOutputs(true, withAudio)
	g.Add(parts, []Filter{concat(segmentsN, true, withAudio)}, maps...)

	return Plan{
		Graph:   g,
		Maps:    maps,
		Options: encodeOptions(true, withAudio),
	}, nil
}

func even(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}
