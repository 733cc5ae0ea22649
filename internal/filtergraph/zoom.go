package filtergraph

import (
	"fmt"

	"github.com/reelsmith/reelsmith/internal/media"
)

const defaultFPS = 30.0

// Zoom animates a centred crop of iw/zoom x ih/zoom scaled back to the
// source size. When the zoom is shorter than the clip, only the head is
// zoomed and the untouched tail is concatenated back on.
func Zoom(z media.ZoomSpec, src media.Probe) (Plan, error) {
	if err := z.Validate(); err != nil {
		return Plan{}, err
	}
	if !src.HasVideo || src.Width <= 0 || src.Height <= 0 {
		return Plan{}, &media.ValidationError{Field: "input", Reason: "zoom requires a video stream"}
	}
	fps := src.FPS
	if fps <= 0 {
		fps = defaultFPS
	}

	zoompan := F("zoompan",
		KV("z", zoomExpr(z, fps)),
		KV("x", "iw/2-(iw/zoom/2)"),
		KV("y", "ih/2-(ih/zoom/2)"),
		KV("d", 1),
		KV("s", fmt.Sprintf("%dx%d", src.Width, src.Height)),
		KV("fps", Num(fps)),
	)
	setsar := F("setsar", Pos(1))

	g := New()
	out := Pad("outv")
	if src.Duration > 0 && z.Duration < src.Duration {
		head, tail := g.Label("zh"), g.Label("zt")
		g.Add([]Pad{"0:v"}, []Filter{F("split", Pos(2))}, head, tail)
		zoomed := g.Pipe(head, "vz",
			F("trim", KV("end", Seconds(z.Duration))),
			F("setpts", Pos("PTS-STARTPTS")),
			zoompan, setsar)
		rest := g.Pipe(tail, "vt",
			F("trim", KV("start", Seconds(z.Duration))),
			F("setpts", Pos("PTS-STARTPTS")),
			setsar)
		g.Add([]Pad{zoomed, rest}, []Filter{concat(2, true, false)}, out)
	} else {
		g.Add([]Pad{"0:v"}, []Filter{zoompan, setsar}, out)
	}

	opts := append([]string{}, videoCodec...)
	if src.HasAudio {
		opts = append(opts, "-c:a", "copy")
	}
	opts = append(opts, "-movflags", "+faststart")

	return Plan{
		Graph:   g,
		Maps:    []Pad{out, "0:a?"},
		Options: opts,
	}, nil
}
