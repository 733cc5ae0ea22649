package filtergraph

import (
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/segments"
)

// videoCodec and audioCodec are the re-encode settings shared by every
// plan that filters a stream.
var (
	videoCodec = []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "20", "-pix_fmt", "yuv420p"}
	audioCodec = []string{"-c:a", "aac", "-b:a", "192k"}
)

func encodeOptions(video, audio bool) []string {
	var opts []string
	if video {
		opts = append(opts, videoCodec...)
	}
	if audio {
		opts = append(opts, audioCodec...)
	}
	return append(opts, "-movflags", "+faststart")
}

// Cut keeps the given segments of input 0 and concatenates them in order.
// A single segment spanning the whole source degenerates to a stream copy.
func Cut(keeps []media.KeepSegment, src media.Probe) (Plan, error) {
	if len(keeps) == 0 {
		return Plan{}, media.ErrNoContent
	}
	if segments.IsIdentity(keeps, src.Duration) {
		return Plan{Copy: true}, nil
	}
	if !src.HasVideo && !src.HasAudio {
		return Plan{}, &media.ValidationError{Field: "input", Reason: "no audio or video stream"}
	}

	g := New()
	var concatIn []Pad
	for _, k := range keeps {
		if src.HasVideo {
			concatIn = append(concatIn, g.Pipe("0:v", "v", trim("trim", k), F("setpts", Pos("PTS-STARTPTS"))))
		}
		if src.HasAudio {
			concatIn = append(concatIn, g.Pipe("0:a", "a", trim("atrim", k), F("asetpts", Pos("PTS-STARTPTS"))))
		}
	}

	maps := concatOutputs(src.HasVideo, src.HasAudio)
	g.Add(concatIn, []Filter{concat(len(keeps), src.HasVideo, src.HasAudio)}, maps...)

	return Plan{
		Graph:   g,
		Maps:    maps,
		Options: encodeOptions(src.HasVideo, src.HasAudio),
	}, nil
}

func trim(name string, k media.KeepSegment) Filter {
	params := []Param{KV("start", Seconds(k.Start))}
	if !k.OpenEnd {
		params = append(params, KV("end", Seconds(k.End)))
	}
	return F(name, params...)
}

func concat(n int, video, audio bool) Filter {
	return F("concat", KV("n", n), KV("v", boolInt(video)), KV("a", boolInt(audio)))
}

func concatOutputs(video, audio bool) []Pad {
	var out []Pad
	if video {
		out = append(out, "outv")
	}
	if audio {
		out = append(out, "outa")
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Seconds renders a timestamp with millisecond precision.
func Seconds(v float64) string {
	return Num(float64(int64(v*1000+0.5)) / 1000)
}
