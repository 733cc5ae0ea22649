package filtergraph

import (
	"math"
	"strconv"

	"github.com/reelsmith/reelsmith/internal/media"
)

// OverlayInput describes one background bed: input 0 is the current
// artifact, input 1 the catalog track.
type OverlayInput struct {
	Current media.Probe
	Track   media.Probe
	Spec    media.AudioOverlaySpec
}

// Repeats returns how many whole plays of a track of length trackDur are
// needed to cover target seconds.
func Repeats(trackDur, target float64) int {
	if trackDur <= 0 || target <= trackDur {
		return 1
	}
	return int(math.Ceil(target / trackDur))
}

// Overlay trims or loops the track to the overlay window, applies volume
// and fades, delays it to StartTime and mixes it under the original audio.
// The mix lasts as long as the original track.
func Overlay(in OverlayInput) (Plan, error) {
	if err := in.Spec.Validate(); err != nil {
		return Plan{}, err
	}
	if !in.Track.HasAudio {
		return Plan{}, &media.ValidationError{Field: "audios.trackId", Reason: "track has no audio stream"}
	}
	win := in.Spec.Window(in.Current.Duration)
	if !win.Valid() {
		return Plan{}, &media.ValidationError{Field: "audios.startTime", Reason: "overlay starts after the clip ends"}
	}

	length := win.Duration()
	var inputOpts map[int][]string
	if in.Spec.Loop {
		if n := Repeats(in.Track.Duration, length); n > 1 {
			inputOpts = map[int][]string{1: {"-stream_loop", strconv.Itoa(n - 1)}}
		}
	} else if in.Track.Duration > 0 && in.Track.Duration < length {
		length = in.Track.Duration
	}

	chain := []Filter{
		F("atrim", KV("start", 0), KV("end", Seconds(length))),
		F("asetpts", Pos("PTS-STARTPTS")),
		F("aformat", KV("sample_rates", mixRate), KV("channel_layouts", mixLayout)),
		F("volume", Pos(in.Spec.Volume)),
	}
	if fi := math.Min(in.Spec.FadeIn, length); fi > 0 {
		chain = append(chain, F("afade", KV("t", "in"), KV("st", 0), KV("d", Seconds(fi))))
	}
	if fo := math.Min(in.Spec.FadeOut, length); fo > 0 {
		chain = append(chain, F("afade", KV("t", "out"), KV("st", Seconds(length-fo)), KV("d", Seconds(fo))))
	}
	if win.Start > 0 {
		chain = append(chain, F("adelay", KV("delays", strconv.FormatInt(int64(math.Round(win.Start*1000)), 10)), KV("all", 1)))
	}

	g := New()
	bed := g.Pipe("1:a", "bg", chain...)

	var base Pad
	if in.Current.HasAudio {
		base = g.Pipe("0:a", "base", F("aformat", KV("sample_rates", mixRate), KV("channel_layouts", mixLayout)))
	} else {
		base = g.Label("base")
		g.Add(nil, []Filter{
			F("anullsrc", KV("channel_layout", mixLayout), KV("sample_rate", mixRate)),
			F("atrim", KV("end", Seconds(in.Current.Duration))),
		}, base)
	}

	out := Pad("outa")
	g.Add([]Pad{base, bed}, []Filter{
		F("amix", KV("inputs", 2), KV("duration", "first"), KV("dropout_transition", 0)),
	}, out)

	opts := []string{}
	if in.Current.HasVideo {
		opts = append(opts, "-c:v", "copy")
	}
	opts = append(opts, audioCodec...)
	opts = append(opts, "-movflags", "+faststart")

	return Plan{
		Graph:        g,
		Maps:         []Pad{"0:v?", out},
		Options:      opts,
		InputOptions: inputOpts,
	}, nil
}
